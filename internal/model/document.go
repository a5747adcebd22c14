package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document represents one uploaded file and the fields extracted from it.
// This is a pure domain model with no database-specific dependencies or tags.
// Extracted fields are nil until extraction fills them in.
type Document struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	ContentHash  string    `json:"content_hash"`
	StoragePath  string    `json:"storage_path"`
	OriginalName string    `json:"original_name"`
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"created_at"`

	Vendor       *string          `json:"vendor"`
	DocumentType *string          `json:"document_type"`
	DocumentDate *time.Time       `json:"document_date"`
	DueDate      *time.Time       `json:"due_date"`
	TotalAmount  *decimal.Decimal `json:"total_amount"`
	Currency     *string          `json:"currency"`
	Description  *string          `json:"description"`
	LineItems    []LineItem       `json:"line_items"`
	Discount     *decimal.Decimal `json:"discount"`
	ExtractedAt  *time.Time       `json:"extracted_at"`
}

// LineItem is one row of an itemised document.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// Title is the human label used when a document is listed.
func (d Document) Title() string {
	if d.OriginalName != "" {
		return d.OriginalName
	}
	return d.ID
}
