package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ibino273/raspi-moto-scraper/config"
	"github.com/Ibino273/raspi-moto-scraper/scraper/subito"
	"github.com/Ibino273/raspi-moto-scraper/services"
	"github.com/Ibino273/raspi-moto-scraper/storage"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the configured listing pages once and upsert the results.",
	Args:  cobra.NoArgs,
	RunE:  runScrape,
}

type pageSource interface {
	services.PageSource
	Close() error
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Close()

	logger.Info("=== Moto scraper starting ===")
	logger.Info("Config: source %s | store %s | pages %d | per page %d | total %d",
		cfg.PageSource, cfg.StoreDriver, cfg.MaxPages, cfg.MaxListingsPerPage, cfg.MaxTotalListings)

	store, err := storage.NewSQLStore(ctx, cfg.StoreDriver, cfg.DSN())
	if err != nil {
		logger.Error("Failed to open the %s store: %v", cfg.StoreDriver, err)
		return err
	}
	defer store.Close()

	source, err := newPageSource(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to start the %s page source: %v", cfg.PageSource, err)
		return err
	}
	defer source.Close()

	loc := cfg.Location()
	orchestrator := services.NewOrchestrator(source, store, services.Options{
		Limits: services.Limits{
			MaxPages:           cfg.MaxPages,
			MaxListingsPerPage: cfg.MaxListingsPerPage,
			MaxTotalListings:   cfg.MaxTotalListings,
		},
		ListingDelay: utils.NewPacer(cfg.ListingDelayMin, cfg.ListingDelayMax),
		PageDelay:    utils.NewPacer(cfg.PageDelayMin, cfg.PageDelayMax),
		NavRetry:     retryConfig(cfg.NavRetryAttempts, cfg.NavRetryDelay, cfg.BackoffMultiplier, logger),
		StoreRetry:   retryConfig(cfg.StoreRetryAttempts, cfg.StoreRetryDelay, cfg.BackoffMultiplier, logger),
		Now:          func() time.Time { return time.Now().In(loc) },
	}, logger)

	if cfg.RawCSVPath != "" {
		csvWriter, err := storage.NewCSVWriter(cfg.RawCSVPath)
		if err != nil {
			logger.Warn("Raw CSV disabled: %v", err)
		} else {
			defer csvWriter.Close()
			orchestrator.WithRawWriter(csvWriter)
			logger.Info("Raw detail fields will be saved to %s", cfg.RawCSVPath)
		}
	}

	stats, err := orchestrator.Run(ctx)
	services.PrintRunStats(cmd.OutOrStdout(), stats)
	if err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}

	listings, err := store.FetchAll(ctx)
	if err != nil {
		logger.Warn("Failed to fetch listings for insights: %v", err)
		return nil
	}
	insights := services.NewInsightService(logger)
	insights.Print(cmd.OutOrStdout(), insights.Generate(listings))
	return nil
}

func newPageSource(ctx context.Context, cfg *config.Config, logger *utils.Logger) (pageSource, error) {
	if cfg.PageSource == config.SourceColly {
		return subito.NewCollySource(subito.CollyOptions{
			BaseURL:     cfg.BaseURL,
			PageTimeout: cfg.PageTimeout,
		}, logger.With("component", "colly"))
	}
	return subito.NewChromeSource(ctx, subito.ChromeOptions{
		BaseURL:     cfg.BaseURL,
		ChromeBin:   cfg.ChromeBin,
		Headless:    cfg.Headless,
		PageTimeout: cfg.PageTimeout,
		Launch:      retryConfig(3, 2*time.Second, cfg.BackoffMultiplier, logger),
	}, logger.With("component", "chrome"))
}

func retryConfig(attempts int, delay time.Duration, multiplier float64, logger *utils.Logger) *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: delay,
		Multiplier:   multiplier,
		Logger:       logger,
	}
}
