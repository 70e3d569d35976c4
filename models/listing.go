package models

// Table holds raw CSV content: a header row and the data rows beneath it.
// Every row has exactly len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of column name in the header, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// ListingRow is one cleaned listing ready for insertion. Values line up with
// the source header; a nil entry is stored as NULL.
//
// The price cell holds a float64 or nil and the last_review cell holds a
// YYYY-MM-DD string or nil.
type ListingRow []any

// Listings is the cleaned listings dataset plus what the cleaner coerced.
type Listings struct {
	Columns []string
	Rows    []ListingRow

	// CoercedPrices counts non-empty price cells that could not be parsed.
	CoercedPrices int
	// CoercedDates counts non-empty last_review cells that could not be parsed.
	CoercedDates int
}

// Review is one review event. Only these two columns are kept from the source;
// empty cells decode to nil and are stored as NULL.
type Review struct {
	ListingID *string `csv:"listing_id" db:"listing_id"`
	Date      *string `csv:"date" db:"date"`
}

// LoadReport summarises a loader run. Counts are read back from the store.
type LoadReport struct {
	Listings      int64
	NullPrices    int64
	Reviews       int64
	ReviewsLoaded bool

	CoercedPrices int
	CoercedDates  int
}

// ResultSet is a fully buffered query result.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// ExportReport summarises an exporter run.
type ExportReport struct {
	Rows int
	Path string
}
