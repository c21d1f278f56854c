package main

import (
	"github.com/spf13/cobra"

	"negotiation-backend/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := db.Migrate(cmd.Context(), conn, logger); err != nil {
			return err
		}
		logger.Info("Migration completed")
		return nil
	},
}
