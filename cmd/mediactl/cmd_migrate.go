package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abduss/tribute/internal/storage"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded PostgreSQL migrations",
		Long: `Apply every pending migration to the configured PostgreSQL database.
The embedded SQLite store migrates itself on open and needs no command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.sqlitePath != "" {
				return fmt.Errorf("migrate applies to PostgreSQL only; the SQLite store migrates on open")
			}
			version, err := storage.Migrate(a.cfg.Postgres, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}
}
