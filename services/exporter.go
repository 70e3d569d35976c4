package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"airbnb-etl/config"
	"airbnb-etl/models"
	"airbnb-etl/storage"
	"airbnb-etl/utils"
)

// Exporter runs the summary query against the store and writes the result as CSV.
type Exporter struct {
	cfg    config.Config
	store  storage.Store
	logger *utils.Logger
}

// NewExporter creates an Exporter reading from store.
func NewExporter(cfg config.Config, store storage.Store, logger *utils.Logger) *Exporter {
	return &Exporter{cfg: cfg, store: store, logger: logger}
}

// Run executes the query file once and writes every row, with a header, to
// the configured output path.
func (e *Exporter) Run(ctx context.Context) (*models.ExportReport, error) {
	start := time.Now()

	query, err := os.ReadFile(e.cfg.QuerySQL)
	if err != nil {
		return nil, fmt.Errorf("exporter: read query: %w", err)
	}
	if strings.TrimSpace(string(query)) == "" {
		return nil, fmt.Errorf("exporter: query file %s is empty", e.cfg.QuerySQL)
	}

	e.logger.Info("[exporter] Running %s", e.cfg.QuerySQL)
	rs, err := e.store.Query(ctx, string(query))
	if err != nil {
		return nil, fmt.Errorf("exporter: %w", err)
	}

	if err := storage.WriteCSV(e.cfg.OutputCSV, rs); err != nil {
		return nil, fmt.Errorf("exporter: %w", err)
	}

	e.logger.Timed(start, "[exporter] export complete")
	return &models.ExportReport{Rows: len(rs.Rows), Path: e.cfg.OutputCSV}, nil
}
