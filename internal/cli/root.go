// Package cli implements the datetally command tree.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sandeepkv93/datetally/internal/app"
	"github.com/sandeepkv93/datetally/internal/config"
)

type options struct {
	configFile string
	v          *viper.Viper

	// build is swapped in tests.
	build func(ctx context.Context, cfg *config.Config) (*app.App, error)
}

var boundFlags = map[string]string{
	"api-base-url": "api_base_url",
	"state-dir":    "state_dir",
	"marker-store": "marker_store",
	"cache-dsn":    "cache_dsn",
	"report-sink":  "report_sink",
	"report-dir":   "report_dir",
	"log-level":    "log_level",
	"log-format":   "log_format",
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{v: config.NewViper(), build: app.Build})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "datetally",
		Short:         "Track a count per calendar day",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/datetally/config.yaml)")
	flags.String("api-base-url", "", "backend base URL")
	flags.String("state-dir", "", "directory for session, cookies and expiry marker")
	flags.String("marker-store", "", "expiry marker store: file, redis or memory")
	flags.String("cache-dsn", "", "offline cache DSN (sqlite path or postgres URL)")
	flags.String("report-sink", "", "where exports go: file or minio")
	flags.String("report-dir", "", "directory for exported reports")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "text or json")
	for flag, key := range boundFlags {
		_ = opts.v.BindPFlag(key, flags.Lookup(flag))
	}

	cmd.AddCommand(
		newSignUpCommand(opts),
		newSignInCommand(opts),
		newLogoutCommand(opts),
		newStatusCommand(opts),
		newMonthCommand(opts),
		newSetCommand(opts),
		newExportCommand(opts),
		newCalendarCommand(opts),
	)
	return cmd
}

// withApp loads configuration, builds the application and runs fn with it.
// Errors returned by fn are operation failures and map to exit codes.
func (o *options) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(o.v, o.configFile)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := o.build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() { _ = a.Close() }()
	if err := fn(ctx, a); err != nil {
		return &opError{err: err}
	}
	return nil
}
