package main

import (
	"fmt"

	"shipdocs/internal/storage"

	"github.com/spf13/cobra"
)

// migrateCmd applies the embedded SQL migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := storage.NewDB(cmd.Context(), cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}
