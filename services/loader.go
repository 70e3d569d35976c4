package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"airbnb-etl/config"
	"airbnb-etl/models"
	"airbnb-etl/storage"
	"airbnb-etl/utils"
)

// dropOrder lists tables dependents first so a referencing table never
// outlives the table it points at.
var dropOrder = []string{storage.ReviewsTable, storage.ListingsTable}

const (
	countListingsSQL   = `SELECT COUNT(*) FROM listings`
	countNullPricesSQL = `SELECT COUNT(*) FROM listings WHERE price IS NULL`
	countReviewsSQL    = `SELECT COUNT(*) FROM reviews`
)

// Loader rebuilds the listings and reviews tables from the source CSV files.
// Every run drops and recreates both tables, so reruns are safe.
type Loader struct {
	cfg     config.Config
	store   storage.Store
	cleaner *Cleaner
	logger  *utils.Logger
}

// NewLoader creates a Loader writing to store.
func NewLoader(cfg config.Config, store storage.Store, logger *utils.Logger) *Loader {
	return &Loader{
		cfg:     cfg,
		store:   store,
		cleaner: NewCleaner(logger),
		logger:  logger,
	}
}

// Run performs the full load in one transaction and returns the counts read
// back from the committed tables.
func (l *Loader) Run(ctx context.Context) (*models.LoadReport, error) {
	start := time.Now()

	l.logger.Info("[loader] Reading listings from %s", l.cfg.ListingsCSV)
	raw, err := storage.ReadListings(l.cfg.ListingsCSV)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	listings, err := l.cleaner.Clean(raw)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	schema, err := os.ReadFile(l.cfg.SchemaSQL)
	if err != nil {
		return nil, fmt.Errorf("loader: read schema: %w", err)
	}

	reviews, reviewsLoaded, err := l.readReviews()
	if err != nil {
		return nil, err
	}

	tx, err := l.store.BeginLoad(ctx)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	l.logger.Debug("[loader] Dropping tables %v", dropOrder)
	if err := tx.DropTables(ctx, dropOrder...); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	l.logger.Debug("[loader] Creating tables from %s", l.cfg.SchemaSQL)
	if err := tx.ExecScript(ctx, string(schema)); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	if err := checkColumns(ctx, tx, storage.ListingsTable, listings.Columns); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	n, err := tx.InsertListings(ctx, listings)
	if err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	l.logger.Debug("[loader] Inserted %d listings", n)

	if reviewsLoaded {
		n, err := tx.InsertReviews(ctx, reviews)
		if err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
		l.logger.Debug("[loader] Inserted %d reviews", n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}

	report, err := l.report(ctx, reviewsLoaded)
	if err != nil {
		return nil, err
	}
	report.CoercedPrices = listings.CoercedPrices
	report.CoercedDates = listings.CoercedDates

	l.logger.Timed(start, "[loader] load complete")
	return report, nil
}

// readReviews reads the optional reviews source. A missing file is not an
// error; it only means reviews are not loaded.
func (l *Loader) readReviews() ([]models.Review, bool, error) {
	reviews, err := storage.ReadReviews(l.cfg.ReviewsCSV)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("[loader] Reviews source %s not found; loading listings only", l.cfg.ReviewsCSV)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loader: %w", err)
	}
	l.logger.Info("[loader] Read %d reviews from %s", len(reviews), l.cfg.ReviewsCSV)
	return reviews, true, nil
}

func (l *Loader) report(ctx context.Context, reviewsLoaded bool) (*models.LoadReport, error) {
	r := &models.LoadReport{ReviewsLoaded: reviewsLoaded}

	var err error
	if r.Listings, err = l.store.Count(ctx, countListingsSQL); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if r.NullPrices, err = l.store.Count(ctx, countNullPricesSQL); err != nil {
		return nil, fmt.Errorf("loader: %w", err)
	}
	if reviewsLoaded {
		if r.Reviews, err = l.store.Count(ctx, countReviewsSQL); err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
	}
	return r, nil
}

// checkColumns fails when the source carries columns the schema does not
// define, naming every one of them.
func checkColumns(ctx context.Context, tx storage.LoadTx, table string, source []string) error {
	defined, err := tx.Columns(ctx, table)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(defined))
	for _, c := range defined {
		known[c] = struct{}{}
	}

	var unknown []string
	for _, c := range source {
		if _, ok := known[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%s source columns not in schema: %v", table, unknown)
	}
	return nil
}
