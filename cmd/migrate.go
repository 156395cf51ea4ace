package cmd

import (
	"github.com/spf13/cobra"

	"github.com/matthew-heyner/family-finance/internal/database"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema and seed default categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(false)
			if err != nil {
				return err
			}
			db, err := database.Init(cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := database.Prepare(db); err != nil {
				return err
			}
			logger.Info("database ready", "path", cfg.Database.Path)
			return nil
		},
	}
}
