package main

import (
	"log/slog"

	"github.com/goliatone/go-workshop"
	"github.com/goliatone/go-workshop/config"
	"github.com/spf13/cobra"
)

// rootOptions is shared by every subcommand once the config is loaded.
type rootOptions struct {
	cfg    *config.Config
	slog   *slog.Logger
	logger workshop.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "workshop",
		Short:         "Workshop session store and portal",
		Long:          "Runs the workshop portal and manages accounts against the configured backend.\n\nSettings are read from WORKSHOP_* environment variables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.slog = cfg.Log.NewLogger(cmd.ErrOrStderr())
			opts.logger = workshop.NewSlogLogger(opts.slog)
			return nil
		},
	}

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSignUpCommand(opts))
	cmd.AddCommand(newSignInCommand(opts))
	cmd.AddCommand(newResetPasswordCommand(opts))

	return cmd
}
