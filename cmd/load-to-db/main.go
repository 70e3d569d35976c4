// Command load-to-db loads the raw listings and reviews CSV files into the
// database, dropping and recreating both tables. Safe to re-run.
package main

import (
	"context"
	"os"

	"airbnb-etl/config"
	"airbnb-etl/services"
	"airbnb-etl/storage"
	"airbnb-etl/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLogger(cfg.LogLevel)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("Load failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *utils.Logger) error {
	store, err := storage.OpenSQLStore(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := services.NewLoader(cfg, store, logger).Run(ctx)
	if err != nil {
		return err
	}

	services.PrintLoadReport(os.Stdout, report)
	return nil
}
