package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripledger/tripledger/internal/callback"
	"github.com/tripledger/tripledger/internal/session"
)

func newLoginCommand(env *Env) *cobra.Command {
	var (
		email  string
		google bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password, or with Google",
		Long: "Sign in with email and password. With --google a browser sign-in is started and " +
			"the redirect is received on a local callback address.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if google {
				return loginWithGoogle(cmd.Context(), env)
			}
			addr, err := ask(env.Prompter, email, "Email")
			if err != nil {
				return err
			}
			password, err := env.Prompter.Secret("Password")
			if err != nil {
				return err
			}
			if err := env.Auth.Login(cmd.Context(), addr, password); err != nil {
				return err
			}
			return printSignedIn(env)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email; prompted for when empty")
	cmd.Flags().BoolVar(&google, "google", false, "sign in with Google in the browser")
	return cmd
}

// loginWithGoogle sends the browser to the backend's Google sign-in and resolves the redirect
// it comes back with.
func loginWithGoogle(ctx context.Context, env *Env) error {
	l, err := callback.Listen(env.Config.CallbackAddr, callback.Options{
		Logger:  env.Logger,
		Metrics: env.Metrics,
	})
	if err != nil {
		return err
	}
	go func() {
		if err := l.Serve(); err != nil {
			env.Logger.Error("callback listener", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.Close(shutdownCtx); err != nil {
			env.Logger.Warn("close callback listener", slog.Any("error", err))
		}
	}()

	if err := env.OpenURL(env.Client.GoogleAuthURL(l.RedirectURI(), l.State())); err != nil {
		return err
	}

	waitCtx := ctx
	if env.Config.OAuthWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, env.Config.OAuthWait)
		defer cancel()
	}
	loc, err := l.Wait(waitCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return errors.New("timed out waiting for the browser sign-in")
		}
		return err
	}

	out := env.Auth.Bootstrap(ctx, loc)
	switch out.Kind {
	case session.OutcomeFailed:
		return out.Err
	case session.OutcomeUnauthenticated:
		return errors.New("the sign-in was not accepted by the backend")
	}
	return printSignedIn(env)
}

func printSignedIn(env *Env) error {
	sess, ok := env.Auth.Session()
	if !ok {
		return errors.New("sign-in did not produce a session")
	}
	_, err := fmt.Fprintf(env.Stdout, "Signed in as %s <%s>\n", sess.User.DisplayName, sess.User.Email)
	return err
}

func newRegisterCommand(env *Env) *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			displayName, err := ask(env.Prompter, name, "Name")
			if err != nil {
				return err
			}
			addr, err := ask(env.Prompter, email, "Email")
			if err != nil {
				return err
			}
			password, err := askNewPassword(env.Prompter, "Password")
			if err != nil {
				return err
			}
			if err := env.Auth.Register(cmd.Context(), displayName, addr, password); err != nil {
				return err
			}
			return printSignedIn(env)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newLogoutCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			env.Auth.Bootstrap(ctx, nil)
			if err := env.Auth.Logout(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintln(env.Stdout, "Signed out")
			return err
		},
	}
}

func newWhoamiCommand(env *Env) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := env.Auth.Bootstrap(ctx, nil)
			sess, err := env.requireSession(ctx)
			if err != nil {
				return err
			}
			if refresh {
				if sess, err = env.Auth.Refresh(ctx); err != nil {
					return err
				}
				out.Cached = false
			}
			w := env.Stdout
			fmt.Fprintf(w, "ID:       %d\n", sess.User.ID)
			fmt.Fprintf(w, "Name:     %s\n", sess.User.DisplayName)
			fmt.Fprintf(w, "Email:    %s\n", sess.User.Email)
			fmt.Fprintf(w, "Provider: %s\n", sess.User.Provider)
			if info := session.InspectToken(sess.Token); !info.ExpiresAt.IsZero() {
				fmt.Fprintf(w, "Expires:  %s\n", info.ExpiresAt.Local().Format(time.RFC1123))
			}
			if out.Cached {
				fmt.Fprintln(w, "(cached profile: the backend could not be reached)")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-read the profile from the backend")
	return cmd
}

func newPasswordCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Recover a forgotten password",
	}
	var email string
	cmd.PersistentFlags().StringVar(&email, "email", "", "account email")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "forgot",
			Short: "Mail a reset code to the account email",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := ask(env.Prompter, email, "Email")
				if err != nil {
					return err
				}
				if err := env.Auth.ForgotPassword(cmd.Context(), addr); err != nil {
					return err
				}
				_, err = fmt.Fprintln(env.Stdout, "If the account exists, a reset code is on its way")
				return err
			},
		},
		&cobra.Command{
			Use:   "verify <code>",
			Short: "Check a reset code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := ask(env.Prompter, email, "Email")
				if err != nil {
					return err
				}
				if err := env.Auth.VerifyResetCode(cmd.Context(), addr, args[0]); err != nil {
					return err
				}
				_, err = fmt.Fprintln(env.Stdout, "Reset code accepted")
				return err
			},
		},
		&cobra.Command{
			Use:   "reset <code>",
			Short: "Set a new password with a reset code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				addr, err := ask(env.Prompter, email, "Email")
				if err != nil {
					return err
				}
				password, err := askNewPassword(env.Prompter, "New password")
				if err != nil {
					return err
				}
				if err := env.Auth.ResetPassword(cmd.Context(), addr, args[0], password); err != nil {
					return err
				}
				_, err = fmt.Fprintln(env.Stdout, "Password changed. Sign in with `tripledger login`.")
				return err
			},
		},
	)
	return cmd
}
