package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"airbnb-etl/models"
	"airbnb-etl/utils"
)

const (
	PriceColumn      = "price"
	LastReviewColumn = "last_review"

	isoDate = "2006-01-02"
)

var (
	// numberRegexp matches a plain decimal number once currency symbols and
	// thousands separators are gone
	numberRegexp = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)

	// dateLayouts are tried when dateparse cannot work out the format
	dateLayouts = []string{
		isoDate,
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
		"1/2/2006",
		"Jan 2, 2006",
		"2 January 2006",
	}
)

// Cleaner normalises the price and last_review columns of raw listings.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean converts a raw listings table into insertable rows. Empty cells become
// NULL, price becomes a number and last_review a YYYY-MM-DD string. Values
// that cannot be parsed are stored as NULL and counted; they never fail the run.
func (c *Cleaner) Clean(t *models.Table) (*models.Listings, error) {
	priceIdx := t.Index(PriceColumn)
	if priceIdx < 0 {
		return nil, fmt.Errorf("cleaner: listings source has no %q column", PriceColumn)
	}
	dateIdx := t.Index(LastReviewColumn)
	if dateIdx < 0 {
		return nil, fmt.Errorf("cleaner: listings source has no %q column", LastReviewColumn)
	}

	out := &models.Listings{
		Columns: append([]string(nil), t.Header...),
		Rows:    make([]models.ListingRow, 0, len(t.Rows)),
	}

	for _, raw := range t.Rows {
		row := make(models.ListingRow, len(raw))
		for i, cell := range raw {
			switch i {
			case priceIdx:
				if price, ok := CleanPrice(cell); ok {
					row[i] = price
				} else if strings.TrimSpace(cell) != "" {
					out.CoercedPrices++
				}
			case dateIdx:
				if date, ok := NormalizeDate(cell); ok {
					row[i] = date
				} else if strings.TrimSpace(cell) != "" {
					out.CoercedDates++
				}
			default:
				if cell != "" {
					row[i] = cell
				}
			}
		}
		out.Rows = append(out.Rows, row)
	}

	if out.CoercedPrices > 0 || out.CoercedDates > 0 {
		c.logger.Warn("[cleaner] Coerced to NULL: %d unparsable prices, %d unparsable review dates",
			out.CoercedPrices, out.CoercedDates)
	}
	c.logger.Debug("[cleaner] Cleaned %d listings", len(out.Rows))
	return out, nil
}

// CleanPrice strips currency symbols and thousands separators and parses the
// remainder. Examples:
//
//	"$1,234.56" → 1234.56
//	"$1234"     → 1234
//	"1234"      → 1234
//	"", "free"  → absent
//
// Negative, NaN and infinite values are reported as absent.
func CleanPrice(raw string) (float64, bool) {
	s := strings.ReplaceAll(raw, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if !numberRegexp.MatchString(s) {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// NormalizeDate parses raw as a calendar date in any common layout and
// returns it as YYYY-MM-DD. Slash dates are read month first.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if d, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return d.Format(isoDate), true
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(isoDate), true
		}
	}
	return "", false
}
