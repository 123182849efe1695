package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tripledger/tripledger/internal/auth"
	"github.com/tripledger/tripledger/internal/credstore"
	"github.com/tripledger/tripledger/internal/platform/httpx"
	"github.com/tripledger/tripledger/internal/platform/validation"
)

// NewRootCommand builds the command tree over env.
func NewRootCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "tripledger",
		Short:         "Plan trips and share their expenses from the terminal.",
		Long:          "tripledger signs you in to the tripledger backend and shows your trips, purchases and balances.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var ephemeral bool
	root.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep credentials in memory for this invocation only")
	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if ephemeral {
			env.Store = credstore.NewMemoryStore()
			env.wireServices()
		}
	}
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	root.AddCommand(
		newLoginCommand(env),
		newRegisterCommand(env),
		newLogoutCommand(env),
		newWhoamiCommand(env),
		newTripsCommand(env),
		newPurchasesCommand(env),
		newPasswordCommand(env),
	)
	return root
}

// Execute runs the command line in args and returns the process exit code.
func Execute(ctx context.Context, env *Env, args []string) int {
	root := NewRootCommand(env)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(env.Stderr, describe(err))
		return 1
	}
	return 0
}

// describe turns an error into the line shown to the user.
func describe(err error) string {
	var inputErr *validation.InputError
	var statusErr *httpx.StatusError
	switch {
	case errors.Is(err, auth.ErrNotSignedIn):
		return "not signed in: run `tripledger login` first"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid email or password"
	case errors.As(err, &inputErr):
		return inputErr.Error()
	case errors.Is(err, httpx.ErrNetwork):
		return "cannot reach the tripledger backend: " + err.Error()
	case errors.As(err, &statusErr) && statusErr.Detail != "":
		return statusErr.Detail
	default:
		return err.Error()
	}
}
