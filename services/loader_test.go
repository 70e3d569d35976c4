package services

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airbnb-etl/config"
	"airbnb-etl/storage"
)

const testSchema = `
CREATE TABLE listings (
    id                BIGINT PRIMARY KEY,
    name              TEXT,
    neighbourhood     TEXT,
    room_type         TEXT,
    price             REAL,
    number_of_reviews INTEGER,
    last_review       TEXT
);

CREATE TABLE reviews (
    listing_id BIGINT REFERENCES listings (id),
    date       TEXT
);
`

const scenarioListings = `id,name,neighbourhood,room_type,price,number_of_reviews,last_review
1,Harbour loft,Downtown,Entire home/apt,"$1,000",12,2023-07-14
2,Quiet room,Kitsilano,Private room,,0,
3,Garden suite,Downtown,Entire home/apt,500,4,not-a-date
`

// project lays out a throwaway project root and returns its config.
type project struct {
	cfg config.Config
}

func newProject(t *testing.T, listings string) *project {
	t.Helper()

	cfg := config.New(t.TempDir())
	cfg.DBDriver = config.DriverSQLite

	writeFile(t, cfg.SchemaSQL, testSchema)
	if listings != "" {
		writeFile(t, cfg.ListingsCSV, listings)
	}
	return &project{cfg: cfg}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (p *project) openStore(t *testing.T) *storage.SQLStore {
	t.Helper()
	s, err := storage.OpenSQLStore(context.Background(), p.cfg.DBDriver, p.cfg.DSN())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (p *project) load(t *testing.T) (*storage.SQLStore, error) {
	t.Helper()
	s := p.openStore(t)
	_, err := NewLoader(p.cfg, s, newTestLogger()).Run(context.Background())
	return s, err
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLoaderScenarioPrices(t *testing.T) {
	p := newProject(t, scenarioListings)
	s := p.openStore(t)

	report, err := NewLoader(p.cfg, s, newTestLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 3, report.Listings)
	assert.EqualValues(t, 1, report.NullPrices)
	assert.False(t, report.ReviewsLoaded)
	assert.Equal(t, 0, report.CoercedPrices)
	assert.Equal(t, 1, report.CoercedDates)

	db := openRaw(t, p.cfg.DBPath)
	rows, err := db.Query(`SELECT id, price, last_review FROM listings ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	type stored struct {
		id         int64
		price      sql.NullFloat64
		lastReview sql.NullString
	}
	var got []stored
	for rows.Next() {
		var r stored
		require.NoError(t, rows.Scan(&r.id, &r.price, &r.lastReview))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 3)

	assert.Equal(t, sql.NullFloat64{Float64: 1000, Valid: true}, got[0].price)
	assert.Equal(t, sql.NullString{String: "2023-07-14", Valid: true}, got[0].lastReview)
	assert.False(t, got[1].price.Valid)
	assert.False(t, got[1].lastReview.Valid)
	assert.Equal(t, sql.NullFloat64{Float64: 500, Valid: true}, got[2].price)
	assert.False(t, got[2].lastReview.Valid)
}

func TestLoaderMissingReviewsLeavesEmptyTable(t *testing.T) {
	p := newProject(t, scenarioListings)
	s := p.openStore(t)

	report, err := NewLoader(p.cfg, s, newTestLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.ReviewsLoaded)
	assert.EqualValues(t, 0, report.Reviews)

	n, err := s.Count(context.Background(), `SELECT COUNT(*) FROM reviews`)
	require.NoError(t, err, "reviews table should exist")
	assert.EqualValues(t, 0, n)
}

func TestLoaderReviewsProjectedToTwoColumns(t *testing.T) {
	p := newProject(t, scenarioListings)
	writeFile(t, p.cfg.ReviewsCSV, "listing_id,id,date,reviewer_id,reviewer_name,comments\n"+
		"1,100,2023-07-14,9,Ana,Lovely\n"+
		"1,101,2023-06-02,10,Ben,\"Great view, noisy street\"\n"+
		"3,102,2023-01-20,11,Cleo,Ok\n")
	s := p.openStore(t)

	report, err := NewLoader(p.cfg, s, newTestLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.ReviewsLoaded)
	assert.EqualValues(t, 3, report.Reviews)

	rs, err := s.Query(context.Background(), `SELECT * FROM reviews`)
	require.NoError(t, err)
	assert.Equal(t, []string{"listing_id", "date"}, rs.Columns)
	assert.Len(t, rs.Rows, 3)
}

func TestLoaderIsIdempotent(t *testing.T) {
	p := newProject(t, scenarioListings)
	writeFile(t, p.cfg.ReviewsCSV, "listing_id,date\n1,2023-07-14\n3,2023-01-20\n")
	s := p.openStore(t)
	ctx := context.Background()

	snapshot := func() [][]string {
		var out [][]string
		for _, q := range []string{
			`SELECT * FROM listings ORDER BY id`,
			`SELECT * FROM reviews ORDER BY listing_id, date`,
		} {
			rs, err := s.Query(ctx, q)
			require.NoError(t, err)
			for _, row := range rs.Rows {
				cells := make([]string, len(row))
				for i, v := range row {
					cells[i] = storage.FormatValue(v)
				}
				out = append(out, cells)
			}
		}
		return out
	}

	first, err := NewLoader(p.cfg, s, newTestLogger()).Run(ctx)
	require.NoError(t, err)
	before := snapshot()

	second, err := NewLoader(p.cfg, s, newTestLogger()).Run(ctx)
	require.NoError(t, err)
	after := snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, before, after)
	assert.EqualValues(t, 3, second.Listings)
	assert.EqualValues(t, 2, second.Reviews)
}

func TestLoaderMissingListingsIsFatal(t *testing.T) {
	p := newProject(t, "")

	_, err := p.load(t)
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrListingsNotFound))
}

func TestLoaderMissingListingsKeepsExistingTables(t *testing.T) {
	p := newProject(t, scenarioListings)
	s, err := p.load(t)
	require.NoError(t, err)

	require.NoError(t, os.Remove(p.cfg.ListingsCSV))
	_, err = NewLoader(p.cfg, s, newTestLogger()).Run(context.Background())
	require.Error(t, err)

	n, err := s.Count(context.Background(), `SELECT COUNT(*) FROM listings`)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestLoaderUnknownColumnRollsBack(t *testing.T) {
	p := newProject(t, scenarioListings)
	s, err := p.load(t)
	require.NoError(t, err)

	writeFile(t, p.cfg.ListingsCSV, "id,price,last_review,host_since\n9,$10,2023-01-01,2019-01-01\n")
	_, err = NewLoader(p.cfg, s, newTestLogger()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host_since")

	n, err := s.Count(context.Background(), `SELECT COUNT(*) FROM listings`)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n, "failed load must not replace committed tables")
}

func TestLoaderBadSchemaIsFatal(t *testing.T) {
	p := newProject(t, scenarioListings)
	writeFile(t, p.cfg.SchemaSQL, "CREATE TABLE listings (")

	_, err := p.load(t)
	assert.Error(t, err)
}
