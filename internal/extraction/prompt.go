package extraction

import (
	"strings"

	"docintel/internal/model"
)

const systemPrompt = "You read financial documents (invoices, receipts, bills, statements) and report their fields as strict JSON."

// instructions is the fixed output contract sent with every document.
var instructions = `Extract the following fields from the document and respond with exactly one JSON object and nothing else.

Use these keys, all of them, every time:
{
  "vendor": string or null,          // merchant or issuer name
  "type": string or null,            // one of: ` + strings.Join(model.DocumentTypes, ", ") + `
  "date": "YYYY-MM-DD" or null,      // issue or transaction date
  "due_date": "YYYY-MM-DD" or null,  // payment due date
  "amount": number or null,          // grand total, digits only, no currency symbol or thousands separator
  "currency": string or null,        // ISO 4217 code such as USD, EUR, IDR
  "description": string or null,     // one short sentence about what was purchased
  "discount": number or null,        // total discount, digits only
  "line_items": [                    // null when the document has no itemised rows
    {"description": string, "quantity": number, "unit_price": number, "line_total": number}
  ]
}

Rules:
- Use null for any field you cannot read with confidence. Never guess.
- Dates must be calendar dates in ISO format YYYY-MM-DD.
- Amounts are plain numbers with a dot as decimal separator.
- "type" must be one of the listed labels; use "other" when none fits.`
