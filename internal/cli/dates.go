package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/datetally/internal/app"
	"github.com/sandeepkv93/datetally/internal/calendar"
	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/gate"
	"github.com/sandeepkv93/datetally/internal/tui"
	"github.com/sandeepkv93/datetally/internal/validation"
)

// monthArg resolves an optional YYYY-MM argument, defaulting to today's month.
func monthArg(args []string) (int, time.Month, error) {
	if len(args) == 0 {
		today := domain.Today()
		return today.Year, today.Month, nil
	}
	year, month, err := calendar.ParseMonth(args[0])
	if err != nil {
		return 0, 0, validation.NewError("month", "month must be formatted as YYYY-MM")
	}
	return year, month, nil
}

func newMonthCommand(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "month [YYYY-MM]",
		Short: "Print a month's calendar with its counts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				year, month, err := monthArg(args)
				if err != nil {
					return err
				}
				view, err := a.Dates.Month(ctx, year, month)
				if err != nil && !view.Stale {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(view.Entries)
				}
				writeMonth(out, view)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the month's entries as JSON")
	return cmd
}

func newSetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set DATE COUNT",
		Short: "Record the count for a day (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				count, err := strconv.Atoi(args[1])
				if err != nil {
					return validation.NewError("count", "count must be a whole number")
				}
				view, err := a.Dates.Set(ctx, args[0], count)
				if err != nil && view.Year == 0 {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %d for %s\n", count, args[0])
				if err != nil {
					return err
				}
				writeMonth(cmd.OutOrStdout(), view)
				return nil
			})
		},
	}
}

func newExportCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [YYYY-MM]",
		Short: "Export a month's counts as a PDF report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				year, month, err := monthArg(args)
				if err != nil {
					return err
				}
				location, err := a.Dates.Export(ctx, year, month)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Report saved to %s\n", location)
				return nil
			})
		},
	}
}

func newCalendarCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "calendar",
		Short: "Open the interactive calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if !a.Sessions.IsAuthenticated() {
					return fmt.Errorf("calendar: %w", gate.ErrReauthRequired)
				}
				m := tui.New(ctx, a.Dates,
					tui.WithLogger(a.Logger),
					tui.WithDebounce(a.Config.DebounceDelay),
				)
				return tui.Run(m)
			})
		},
	}
}
