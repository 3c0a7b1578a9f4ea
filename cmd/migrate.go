package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Ibino273/raspi-moto-scraper/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the listings table and indexes without scraping.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		store, err := storage.NewSQLStore(cmd.Context(), cfg.StoreDriver, cfg.DSN())
		if err != nil {
			logger.Error("Migration failed: %v", err)
			return err
		}
		defer store.Close()

		logger.Info("Schema ready on %s", cfg.StoreDriver)
		return nil
	},
}
