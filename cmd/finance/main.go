// Package main implements the finance service and its reporting CLI.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"worklenz/finance/internal/config"
	"worklenz/finance/internal/logging"
)

var version = "dev"

var (
	configPath string
	dbPath     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "finance",
	Short: "Project finance service",
	Long: `finance serves the project finance API: rate cards, task cost rollups
under hourly or man-day costing, grouped finance reports and fixed costs.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to sqlite database file (overrides database.path)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reportCmd)
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *slog.Logger, io.Closer, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}

	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(logger)
	return cfg, logger, closer, nil
}
