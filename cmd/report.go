package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Ibino273/raspi-moto-scraper/services"
	"github.com/Ibino273/raspi-moto-scraper/storage"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print market insights over the stored listings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Close()

		store, err := storage.NewSQLStore(cmd.Context(), cfg.StoreDriver, cfg.DSN())
		if err != nil {
			return err
		}
		defer store.Close()

		listings, err := store.FetchAll(cmd.Context())
		if err != nil {
			return err
		}
		insights := services.NewInsightService(logger)
		insights.Print(cmd.OutOrStdout(), insights.Generate(listings))
		return nil
	},
}
