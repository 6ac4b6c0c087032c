package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/deal-finder/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := database.Open(ctx, cfg.DSN())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return err
		}
		defer db.Close()

		if err := database.Migrate(ctx, db); err != nil {
			logger.Error("migration failed", "error", err)
			return err
		}
		logger.Info("migration completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
