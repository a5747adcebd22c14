package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuerySpec is a structured document filter. All fields are optional; nil means no filter.
// An empty QuerySpec matches every document of the requesting owner, up to the result cap.
type QuerySpec struct {
	Vendor       *string          `json:"vendor,omitempty"`
	DocumentType *string          `json:"document_type,omitempty"`
	StartDate    *time.Time       `json:"start_date,omitempty"`
	EndDate      *time.Time       `json:"end_date,omitempty"`
	MinAmount    *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty"`
	Currency     *string          `json:"currency,omitempty"`
	SearchTerms  []string         `json:"search_terms,omitempty"`
}
