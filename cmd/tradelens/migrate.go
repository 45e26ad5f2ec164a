package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rhuss/tradelens/pkg/history/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending PostgreSQL history migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.History.Type != "postgres" {
				return errHistoryNotPostgres
			}

			store, err := postgres.New(cmd.Context(), postgres.Config{
				DSN:      cfg.History.Postgres.DSN,
				MaxConns: cfg.History.Postgres.MaxConns,
			})
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}
