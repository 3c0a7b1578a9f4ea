package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ibino273/raspi-moto-scraper/config"
	"github.com/Ibino273/raspi-moto-scraper/utils"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "moto-scraper",
	Short: "moto-scraper collects motorcycle and scooter ads from subito.it into a SQL store.",
	// Without a subcommand the scraper runs once.
	RunE:          runScrape,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "read settings from this file instead of .env")
	rootCmd.AddCommand(runCmd, migrateCmd, reportCmd)
}

// ExecuteContext runs the CLI and exits with status 1 on error.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *utils.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg := config.Load(files...)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := utils.NewLoggerWithOptions(utils.LogOptions{
		Level:         cfg.LogLevel,
		FilePath:      cfg.LogFilePath,
		FluentEnabled: cfg.FluentEnable,
		FluentHost:    cfg.FluentHost,
		FluentPort:    cfg.FluentPort,
		FluentTag:     "moto-scraper",
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
