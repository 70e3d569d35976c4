package services

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"airbnb-etl/models"
)

// PrintLoadReport writes the operator summary of a load.
func PrintLoadReport(w io.Writer, r *models.LoadReport) {
	fmt.Fprintf(w, "Loaded %s rows into listings.\n", humanize.Comma(r.Listings))
	fmt.Fprintf(w, "NULL prices: %s\n", humanize.Comma(r.NullPrices))
	if r.ReviewsLoaded {
		fmt.Fprintf(w, "Loaded %s rows into reviews.\n", humanize.Comma(r.Reviews))
	} else {
		fmt.Fprintln(w, "Reviews: not loaded (file not found).")
	}
}

// PrintExportReport writes the operator summary of an export.
func PrintExportReport(w io.Writer, r *models.ExportReport) {
	fmt.Fprintf(w, "Exported %s rows to %s\n", humanize.Comma(int64(r.Rows)), r.Path)
}
