package nlquery

import (
	"fmt"
	"strings"
	"time"

	"docintel/internal/model"
)

func systemPrompt(now time.Time) string {
	var b strings.Builder
	b.WriteString("You answer questions about the user's uploaded financial documents ")
	b.WriteString("(invoices, receipts, bills, statements and similar).\n")
	fmt.Fprintf(&b, "Today is %s (%s).\n", now.Format(time.DateOnly), now.Weekday())
	b.WriteString("Use the search_documents tool to look documents up before answering. ")
	b.WriteString("Resolve relative dates against today: a month name without a year means its most recent occurrence, ")
	b.WriteString("and a month range runs from its first to its last day.\n")
	fmt.Fprintf(&b, "Valid document types: %s.\n", strings.Join(model.DocumentTypes, ", "))
	b.WriteString("Only report documents the tool returned. If the tool reports that no documents were found, ")
	b.WriteString("say so plainly and do not guess or invent vendors, dates or amounts. ")
	b.WriteString("If the tool reports an error, tell the user the search could not be completed.\n")
	b.WriteString("Answer concisely in the user's language.")
	return b.String()
}
