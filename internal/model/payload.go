package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Column names touched by an ExtractionPayload.
const (
	FieldVendor       = "vendor"
	FieldDocumentType = "document_type"
	FieldDocumentDate = "document_date"
	FieldDueDate      = "due_date"
	FieldTotalAmount  = "total_amount"
	FieldCurrency     = "currency"
	FieldDescription  = "description"
	FieldLineItems    = "line_items"
	FieldDiscount     = "discount"
)

// ExtractionPayload is the validated subset of extracted fields.
// A nil field did not survive validation and must not be written.
type ExtractionPayload struct {
	Vendor       *string
	DocumentType *string
	DocumentDate *time.Time
	DueDate      *time.Time
	TotalAmount  *decimal.Decimal
	Currency     *string
	Description  *string
	LineItems    []LineItem
	Discount     *decimal.Decimal
}

// Fields lists the column names present in the payload, in a stable order.
func (p *ExtractionPayload) Fields() []string {
	if p == nil {
		return nil
	}
	var out []string
	if p.Vendor != nil {
		out = append(out, FieldVendor)
	}
	if p.DocumentType != nil {
		out = append(out, FieldDocumentType)
	}
	if p.DocumentDate != nil {
		out = append(out, FieldDocumentDate)
	}
	if p.DueDate != nil {
		out = append(out, FieldDueDate)
	}
	if p.TotalAmount != nil {
		out = append(out, FieldTotalAmount)
	}
	if p.Currency != nil {
		out = append(out, FieldCurrency)
	}
	if p.Description != nil {
		out = append(out, FieldDescription)
	}
	if p.LineItems != nil {
		out = append(out, FieldLineItems)
	}
	if p.Discount != nil {
		out = append(out, FieldDiscount)
	}
	return out
}

// IsEmpty reports whether no field survived validation.
func (p *ExtractionPayload) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// ApplyTo copies the payload's fields onto doc, leaving absent fields untouched.
func (p *ExtractionPayload) ApplyTo(doc *Document) {
	if p == nil || doc == nil {
		return
	}
	if p.Vendor != nil {
		doc.Vendor = p.Vendor
	}
	if p.DocumentType != nil {
		doc.DocumentType = p.DocumentType
	}
	if p.DocumentDate != nil {
		doc.DocumentDate = p.DocumentDate
	}
	if p.DueDate != nil {
		doc.DueDate = p.DueDate
	}
	if p.TotalAmount != nil {
		doc.TotalAmount = p.TotalAmount
	}
	if p.Currency != nil {
		doc.Currency = p.Currency
	}
	if p.Description != nil {
		doc.Description = p.Description
	}
	if p.LineItems != nil {
		doc.LineItems = p.LineItems
	}
	if p.Discount != nil {
		doc.Discount = p.Discount
	}
}
