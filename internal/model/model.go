// Package model holds the document record, the extraction payload and the query filter shared by
// every layer. It has no persistence or transport concerns.
package model

// Document type labels accepted from extraction. Anything else becomes TypeOther.
const (
	TypeInvoice       = "invoice"
	TypeReceipt       = "receipt"
	TypeBill          = "bill"
	TypeBankStatement = "bank_statement"
	TypeTax           = "tax"
	TypePayslip       = "payslip"
	TypeQuotation     = "quotation"
	TypeContract      = "contract"
	TypeOther         = "other"
)

// DocumentTypes is the closed label set, in prompt order.
var DocumentTypes = []string{
	TypeInvoice,
	TypeReceipt,
	TypeBill,
	TypeBankStatement,
	TypeTax,
	TypePayslip,
	TypeQuotation,
	TypeContract,
	TypeOther,
}

// IsDocumentType reports whether label belongs to the closed label set.
func IsDocumentType(label string) bool {
	for _, t := range DocumentTypes {
		if t == label {
			return true
		}
	}
	return false
}
