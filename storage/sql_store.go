package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"airbnb-etl/config"
	"airbnb-etl/models"
)

const (
	ListingsTable = "listings"
	ReviewsTable  = "reviews"

	// maxParams keeps multi-row inserts under SQLite's historical
	// SQLITE_MAX_VARIABLE_NUMBER.
	maxParams    = 999
	reviewsBatch = maxParams / 2
)

func init() {
	sqlx.BindDriver(config.DriverSQLite, sqlx.QUESTION)
}

// SQLStore implements Store on database/sql through sqlx. It works with the
// SQLite and PostgreSQL drivers.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLStore connects to the store. For SQLite the parent directory of the
// database file is created if needed and the file itself is created on open.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case config.DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("store: create db dir: %w", err)
			}
		}
	case config.DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("store: postgres driver needs DATABASE_URL")
		}
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// NewSQLStore wraps an existing connection.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) BeginLoad(ctx context.Context) (LoadTx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	return &sqlLoadTx{tx: tx}, nil
}

func (s *SQLStore) Count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Query(ctx context.Context, query string) (*models.ResultSet, error) {
	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: columns: %w", err)
	}

	rs := &models.ResultSet{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate rows: %w", err)
	}
	return rs, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlLoadTx struct {
	tx *sqlx.Tx
}

func (t *sqlLoadTx) DropTables(ctx context.Context, tables ...string) error {
	for _, name := range tables {
		if _, err := t.tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return fmt.Errorf("store: drop %s: %w", name, err)
		}
	}
	return nil
}

func (t *sqlLoadTx) ExecScript(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return fmt.Errorf("store: schema script is empty")
	}
	if _, err := t.tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("store: exec schema: %w", err)
	}
	return nil
}

// Columns returns the column names of table as the store reports them.
func (t *sqlLoadTx) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := t.tx.QueryxContext(ctx, "SELECT * FROM "+quoteIdent(table)+" WHERE 1 = 0")
	if err != nil {
		return nil, fmt.Errorf("store: describe %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("store: describe %s: %w", table, err)
	}
	return cols, nil
}

// InsertListings batch-inserts every cleaned listing.
func (t *sqlLoadTx) InsertListings(ctx context.Context, l *models.Listings) (int64, error) {
	if len(l.Rows) == 0 {
		return 0, nil
	}

	batchSize := maxParams / len(l.Columns)
	if batchSize < 1 {
		batchSize = 1
	}

	var inserted int64
	for i := 0; i < len(l.Rows); i += batchSize {
		end := i + batchSize
		if end > len(l.Rows) {
			end = len(l.Rows)
		}
		n, err := t.insertListingBatch(ctx, l.Columns, l.Rows[i:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (t *sqlLoadTx) insertListingBatch(ctx context.Context, cols []string, batch []models.ListingRow) (int64, error) {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",") + ")"

	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(cols))
	for _, row := range batch {
		valueStrings = append(valueStrings, tuple)
		valueArgs = append(valueArgs, row...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quoteIdent(ListingsTable), strings.Join(quoted, ", "), strings.Join(valueStrings, ", "))

	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), valueArgs...)
	if err != nil {
		return 0, fmt.Errorf("store: insert listings: %w", err)
	}
	return rowsAffected(res, len(batch)), nil
}

// InsertReviews batch-inserts the projected review rows.
func (t *sqlLoadTx) InsertReviews(ctx context.Context, reviews []models.Review) (int64, error) {
	const query = `INSERT INTO reviews (listing_id, date) VALUES (:listing_id, :date)`

	var inserted int64
	for i := 0; i < len(reviews); i += reviewsBatch {
		end := i + reviewsBatch
		if end > len(reviews) {
			end = len(reviews)
		}
		batch := make([]map[string]any, 0, end-i)
		for _, rv := range reviews[i:end] {
			batch = append(batch, map[string]any{
				"listing_id": nullable(rv.ListingID),
				"date":       nullable(rv.Date),
			})
		}
		res, err := t.tx.NamedExecContext(ctx, query, batch)
		if err != nil {
			return inserted, fmt.Errorf("store: insert reviews: %w", err)
		}
		inserted += rowsAffected(res, end-i)
	}
	return inserted, nil
}

func (t *sqlLoadTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (t *sqlLoadTx) Rollback() error {
	return t.tx.Rollback()
}

// nullable unwraps p so drivers receive a plain string or NULL.
func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func rowsAffected(res sql.Result, fallback int) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return int64(fallback)
	}
	return n
}
