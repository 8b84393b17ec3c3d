package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/datetally/internal/api"
	"github.com/sandeepkv93/datetally/internal/app"
	"github.com/sandeepkv93/datetally/internal/domain"
	"github.com/sandeepkv93/datetally/internal/validation"
)

func newSignUpCommand(opts *options) *cobra.Command {
	var otp, role string
	cmd := &cobra.Command{
		Use:   "signup EMAIL",
		Short: "Create an account; sends a one-time code, then verifies it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return otpFlow(cmd, otp,
					func() (string, error) { return a.Auth.RequestSignUpOTP(ctx, email) },
					func(code string) (domain.Identity, error) { return a.Auth.VerifySignUp(ctx, email, code, role) },
				)
			})
		},
	}
	cmd.Flags().StringVar(&otp, "otp", "", "verify a code already received instead of requesting one")
	cmd.Flags().StringVar(&role, "role", api.DefaultSignUpRole, "role requested for the new account")
	return cmd
}

func newSignInCommand(opts *options) *cobra.Command {
	var otp string
	cmd := &cobra.Command{
		Use:   "signin EMAIL",
		Short: "Sign in with a one-time code sent by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return otpFlow(cmd, otp,
					func() (string, error) { return a.Auth.RequestSignInOTP(ctx, email) },
					func(code string) (domain.Identity, error) { return a.Auth.VerifySignIn(ctx, email, code) },
				)
			})
		},
	}
	cmd.Flags().StringVar(&otp, "otp", "", "verify a code already received instead of requesting one")
	return cmd
}

// otpFlow requests a code and prompts for it, unless one was given on the
// command line, then verifies it.
func otpFlow(cmd *cobra.Command, otp string, request func() (string, error), verify func(string) (domain.Identity, error)) error {
	out := cmd.OutOrStdout()
	if otp == "" {
		msg, err := request()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, msg)
		otp, err = prompt(cmd.InOrStdin(), out, "Enter the code: ")
		if err != nil {
			return err
		}
	}
	identity, err := verify(otp)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s (%s)\n", identity.Email, identity.Role)
	if identity.Role == domain.RoleAdmin {
		fmt.Fprintln(out, "Administrator account.")
	}
	return nil
}

func prompt(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := bufio.NewReader(in).ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("read code: %w", err)
		}
		return "", validation.NewError("otp", "otp is required")
	}
	return line, nil
}

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget saved credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				a.Auth.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				st := a.Auth.Status(ctx)
				if !st.Authenticated {
					fmt.Fprintln(out, "Not signed in.")
					return nil
				}
				who := "unknown user"
				if st.Identity != nil {
					who = fmt.Sprintf("%s (%s)", st.Identity.Email, st.Identity.Role)
				}
				fmt.Fprintf(out, "Signed in as %s\n", who)
				if st.Admin {
					fmt.Fprintln(out, "Administrator account.")
				}
				switch {
				case !st.HasMarker:
					fmt.Fprintln(out, "Access token: no expiry recorded, will refresh on next request")
				case st.Expired:
					fmt.Fprintf(out, "Access token: expired at %s, will refresh on next request\n", st.ExpiresAt.Local().Format(time.DateTime))
				default:
					fmt.Fprintf(out, "Access token: valid until %s\n", st.ExpiresAt.Local().Format(time.DateTime))
				}
				if st.Claims != nil && st.Claims.ExpiresAt != nil {
					fmt.Fprintf(out, "Token claims: expires %s\n", st.Claims.ExpiresAt.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}
}
