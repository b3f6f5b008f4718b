package cmd

import (
	"techcart/internal/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.New(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.RunMigrations(db.DB(), log)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.New(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.RollbackMigration(db.DB(), log)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the status of every migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.New(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		return database.GetMigrationStatus(db.DB())
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
