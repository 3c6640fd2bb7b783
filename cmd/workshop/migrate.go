package main

import (
	"fmt"

	"github.com/goliatone/go-workshop/persistence"
	"github.com/spf13/cobra"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			dialect := persistence.DialectFor(opts.cfg.Database.DSN)
			opts.slog.Info("database migrated", "dialect", dialect)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", dialect)
			return err
		},
	}
}
