// Package export writes company summaries as downloadable files.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"surveydash/internal/domain"
)

const CSVFileName = "completed_surveys_by_company.csv"

var csvHeader = []string{"Company", "Completed Count", "Expert Profiles"}

// WriteCSV writes one line per summary with the expert links in their
// markdown form.
func WriteCSV(w io.Writer, rows []domain.CompanySummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Display, strconv.Itoa(r.CompletedCount), r.ExpertLinks}); err != nil {
			return fmt.Errorf("csv row %q: %w", r.Display, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
