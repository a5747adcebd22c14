package nlquery

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"docintel/internal/model"
)

const (
	// NoDocumentsMarker is the tool result for a search with no rows.
	NoDocumentsMarker = "No documents found matching the search criteria."
	// SearchErrorPrefix starts the tool result for a failed search.
	SearchErrorPrefix = "Error searching documents: "

	maxSummaryRows     = 20
	maxDescriptionRune = 160
	summaryDateLayout  = "Jan 2, 2006"
)

// Summarize renders a bounded digest of rows for the model. The output depends only on rows.
func Summarize(rows []model.Document) string {
	if len(rows) == 0 {
		return NoDocumentsMarker
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d document(s):\n", len(rows))
	for i, d := range rows {
		if i == maxSummaryRows {
			fmt.Fprintf(&b, "... and %d more\n", len(rows)-maxSummaryRows)
			break
		}
		b.WriteString("- ")
		b.WriteString(d.Title())
		if d.DocumentType != nil {
			fmt.Fprintf(&b, " [%s]", *d.DocumentType)
		}
		if d.Vendor != nil {
			fmt.Fprintf(&b, " | vendor: %s", *d.Vendor)
		}
		if d.DocumentDate != nil {
			fmt.Fprintf(&b, " | date: %s", d.DocumentDate.Format(summaryDateLayout))
		}
		if d.TotalAmount != nil {
			fmt.Fprintf(&b, " | amount: %s", d.TotalAmount.StringFixed(2))
			if d.Currency != nil {
				b.WriteString(" " + *d.Currency)
			}
		}
		if d.Description != nil {
			fmt.Fprintf(&b, " | description: %s", truncate(*d.Description, maxDescriptionRune))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
