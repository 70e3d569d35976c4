package storage

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/jszwec/csvutil"

	"airbnb-etl/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrListingsNotFound is returned when the required listings source is missing.
var ErrListingsNotFound = errors.New("listings source not found")

// ReadTable reads a whole CSV file with a header row.
func ReadTable(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	t, err := DecodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	return t, nil
}

// ReadListings reads the listings source. A missing file is reported as
// ErrListingsNotFound, still matching fs.ErrNotExist.
func ReadListings(path string) (*models.Table, error) {
	t, err := ReadTable(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrListingsNotFound, err)
	}
	return t, err
}

// DecodeTable parses CSV from r. Rows shorter than the header are padded with
// empty cells and longer rows are rejected.
func DecodeTable(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	t := &models.Table{Header: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > len(header) {
			return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), len(header))
		}
		for len(rec) < len(header) {
			rec = append(rec, "")
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

func checkHeader(header []string) error {
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("header column %d is empty", i+1)
		}
		if _, dup := seen[h]; dup {
			return fmt.Errorf("header column %q appears twice", h)
		}
		seen[h] = struct{}{}
	}
	return nil
}

// ReadReviews reads the reviews source keeping only listing_id and date.
// A missing file is returned as an error matching fs.ErrNotExist.
func ReadReviews(path string) ([]models.Review, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	reviews, err := DecodeReviews(f)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	return reviews, nil
}

// DecodeReviews decodes review rows from r. Columns other than listing_id and
// date are ignored; both of those must be present in the header. Short rows
// are padded like DecodeTable does, so their missing cells load as NULL.
func DecodeReviews(r io.Reader) ([]models.Review, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	for _, col := range []string{"listing_id", "date"} {
		if !contains(header, col) {
			return nil, fmt.Errorf("reviews source has no %q column", col)
		}
	}

	dec, err := csvutil.NewDecoder(&paddedReader{r: cr, width: len(header)}, header...)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	var reviews []models.Review
	for {
		var rv models.Review
		err := dec.Decode(&rv)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rv.ListingID = emptyToNil(rv.ListingID)
		rv.Date = emptyToNil(rv.Date)
		reviews = append(reviews, rv)
	}
	return reviews, nil
}

// paddedReader pads records shorter than width with empty cells and rejects
// longer ones.
type paddedReader struct {
	r     *csv.Reader
	width int
}

func (p *paddedReader) Read() ([]string, error) {
	rec, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	if len(rec) > p.width {
		line, _ := p.r.FieldPos(0)
		return nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(rec), p.width)
	}
	for len(rec) < p.width {
		rec = append(rec, "")
	}
	return rec, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

// skipBOM drops a leading UTF-8 byte order mark, which spreadsheet exports
// often prepend to the first header cell.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(3)
	}
	return br
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
