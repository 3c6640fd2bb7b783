package main

import (
	"context"
	"fmt"
	"io"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-workshop"
	"github.com/spf13/cobra"
)

type accountFlags struct {
	email    string
	password string
	name     string
}

// stateView is what the account commands print. Tokens are left out.
type stateView struct {
	Initialized bool               `json:"initialized"`
	Identity    *workshop.Identity `json:"identity"`
	Profile     *workshop.Profile  `json:"profile"`
}

func newSignUpCommand(opts *rootOptions) *cobra.Command {
	flags := &accountFlags{}

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store *workshop.Store) error {
				return store.SignUp(ctx, flags.email, flags.password, flags.name)
			})
		},
	}

	cmd.Flags().StringVar(&flags.email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&flags.password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name, defaults to the email local part")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newSignInCommand(opts *rootOptions) *cobra.Command {
	flags := &accountFlags{}

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in and print the loaded profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store *workshop.Store) error {
				return store.SignIn(ctx, flags.email, flags.password)
			})
		},
	}

	cmd.Flags().StringVar(&flags.email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&flags.password, "password", "", "account password (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newResetPasswordCommand(opts *rootOptions) *cobra.Command {
	flags := &accountFlags{}

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, opts, func(ctx context.Context, store *workshop.Store) error {
				if err := store.ResetPassword(ctx, flags.email); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "reset requested for %s\n", flags.email)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&flags.email, "email", "", "account email (required)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

// withStore runs fn against a freshly initialized store and prints the
// resulting state.
func withStore(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *workshop.Store) error) error {
	ctx := cmd.Context()

	b, err := openBackend(ctx, opts, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer b.Close()

	client, err := b.factory("")
	if err != nil {
		return err
	}

	store := workshop.NewStore(client, client,
		workshop.WithStoreLogger(opts.logger),
		workshop.WithOperationTimeout(opts.cfg.Store.OperationTimeout),
	)

	sub, err := store.Initialize(ctx)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	if err := fn(ctx, store); err != nil {
		return err
	}

	return printState(cmd.OutOrStdout(), store.State())
}

func printState(w io.Writer, st workshop.State) error {
	_, err := fmt.Fprintln(w, print.MaybePrettyJSON(stateView{
		Initialized: st.Initialized,
		Identity:    st.Identity,
		Profile:     st.Profile,
	}))
	return err
}
