package main

import (
	"authclient/internal/app"
	"authclient/internal/form"
	"authclient/internal/guard"
	"authclient/internal/model"
	"authclient/internal/normalize"
	"authclient/internal/provider"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func loginCmd(g *globals) *cobra.Command {
	var in form.Login

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				user, err := a.Auth.Login(ctx, in.Email, in.Password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", displayName(user))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", os.Getenv("AUTH_PASSWORD"), "Account password (default $AUTH_PASSWORD)")
	return cmd
}

func registerCmd(g *globals) *cobra.Command {
	var in form.Register

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if in.PasswordConfirmation == "" {
				in.PasswordConfirmation = in.Password
			}
			if err := in.Validate(); err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				user, err := a.Auth.Register(ctx, model.User{
					Fullname: in.Fullname,
					Email:    in.Email,
					Password: in.Password,
				})
				var pending *provider.VerificationError
				if errors.As(err, &pending) {
					fmt.Fprintf(cmd.OutOrStdout(), "verification code sent to %s\nconfirm with: verify-email --session %s --code <code>\n",
						pending.Email, pending.Session)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "registered and logged in as %s\n", displayName(user))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Fullname, "fullname", "", "Full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", os.Getenv("AUTH_PASSWORD"), "Password (default $AUTH_PASSWORD)")
	cmd.Flags().StringVar(&in.PasswordConfirmation, "confirm", "", "Password confirmation (defaults to --password)")
	return cmd
}

func verifyEmailCmd(g *globals) *cobra.Command {
	var in form.VerifyEmail

	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Confirm a sign-up with the emailed code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				userID, err := a.Auth.VerifyEmail(ctx, in.Session, in.Code)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "email verified for user %s, you can log in now\n", userID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Session, "session", "", "Verification session returned by register")
	cmd.Flags().StringVar(&in.Code, "code", "", "Code from the verification email")
	return cmd
}

func forgotPasswordCmd(g *globals) *cobra.Command {
	var in form.ForgotPassword

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset link",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				sent, err := a.Auth.ForgotPassword(ctx, in.Email)
				if err != nil {
					return err
				}
				if sent {
					fmt.Fprintln(cmd.OutOrStdout(), "reset link sent")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "no reset link was sent")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	return cmd
}

func resetPasswordCmd(g *globals) *cobra.Command {
	var in form.ResetPassword

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				ok, err := a.Auth.ResetPassword(ctx, model.ResetPasswordRequest{
					Email:                in.Email,
					Token:                in.Token,
					Password:             in.Password,
					PasswordConfirmation: in.PasswordConfirmation,
				})
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("password was not reset")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "password reset")
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Token, "token", "", "Reset token from the email")
	cmd.Flags().StringVar(&in.Password, "password", "", "New password")
	cmd.Flags().StringVar(&in.PasswordConfirmation, "confirm", "", "New password again")
	return cmd
}

func logoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				a.Auth.Logout(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func whoamiCmd(g *globals) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the stored user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				user := a.Auth.Restore(ctx)
				if user == nil {
					return provider.ErrMissingSession
				}
				return printUser(cmd.OutOrStdout(), *user, output)
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format (json, yaml)")
	return cmd
}

func statusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run the session guard; exits 1 when the session is rejected",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				d := a.Guard.CanActivate(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", d.State, d.Reason)
				if d.State != guard.Authorized {
					return errRejected
				}
				return nil
			})
		},
	}
}

func serveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local session console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, g, func(ctx context.Context, a *app.App) error {
				ctx, cancel := context.WithCancel(ctx)
				defer cancel()

				a.Auth.Restore(ctx)

				if g.cfg.Console.Follow {
					go func() {
						if err := a.Follow(ctx); err != nil {
							g.log.Error("follow session file", slog.String("error", err.Error()))
						}
					}()
				}

				errCh := make(chan error, 1)
				go func() {
					errCh <- a.Console.Run()
				}()

				stop := make(chan os.Signal, 1)
				signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
				defer signal.Stop(stop)

				select {
				case err := <-errCh:
					return err
				case <-stop:
				}

				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				if err := a.Console.Stop(shutdownCtx); err != nil {
					return err
				}
				g.log.Info("Gracefully stopped")
				return nil
			})
		},
	}
}

func printUser(w io.Writer, u model.User, output string) error {
	switch output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(normalize.ToMap(u)); err != nil {
			return err
		}
		return enc.Close()
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(u)
	}
	return fmt.Errorf("unknown output format %q", output)
}

func displayName(u *model.User) string {
	if u.Fullname != "" {
		return fmt.Sprintf("%s <%s>", u.Fullname, u.Email)
	}
	return u.Email
}
