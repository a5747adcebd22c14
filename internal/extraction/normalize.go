package extraction

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"docintel/internal/model"
)

const (
	dateLayout    = "2006-01-02"
	amountPlaces  = 2
	maxTextLength = 2000
)

var (
	isoDate      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

	currencySymbols = map[string]string{
		"$":   "USD",
		"US$": "USD",
		"€":   "EUR",
		"£":   "GBP",
		"¥":   "JPY",
		"RP":  "IDR",
		"₹":   "INR",
	}
)

// normalize validates each field of obj independently. Keys accept the names the prompt asks
// for and the column names models sometimes echo back.
func normalize(obj map[string]any) *model.ExtractionPayload {
	p := &model.ExtractionPayload{}

	p.Vendor = text(lookup(obj, "vendor"))
	p.Description = text(lookup(obj, "description"))
	if p.Description == nil {
		p.Description = text(lookup(obj, "item"))
	}

	if _, ok := lookupPresent(obj, "type", "document_type"); ok {
		p.DocumentType = firstValid(obj, knownType, "type", "document_type")
		if p.DocumentType == nil {
			other := model.TypeOther
			p.DocumentType = &other
		}
	}

	p.DocumentDate = firstValid(obj, date, "date", "document_date")
	p.DueDate = date(lookup(obj, "due_date"))
	p.TotalAmount = firstValid(obj, amount, "amount", "total_amount", "total")
	p.Discount = amount(lookup(obj, "discount"))
	p.Currency = currency(lookup(obj, "currency"))
	p.LineItems = lineItems(lookup(obj, "line_items"))

	return p
}

// lookup returns the first non-null value among keys.
func lookup(obj map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// firstValid returns the first alias whose value survives parse.
func firstValid[T any](obj map[string]any, parse func(any) *T, keys ...string) *T {
	for _, k := range keys {
		if v := parse(obj[k]); v != nil {
			return v
		}
	}
	return nil
}

func lookupPresent(obj map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func text(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if r := []rune(s); len(r) > maxTextLength {
		s = string(r[:maxTextLength])
	}
	return &s
}

// knownType returns the label only when it belongs to the closed set. A present but
// unknown type degrades to "other" in normalize.
func knownType(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.ToLower(strings.TrimSpace(s))
	if !model.IsDocumentType(s) {
		return nil
	}
	return &s
}

// date accepts YYYY-MM-DD only and rejects days the month does not have.
func date(v any) *time.Time {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if !isoDate.MatchString(s) {
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &t
}

func currency(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	if code, ok := currencySymbols[s]; ok {
		s = code
	}
	if !currencyCode.MatchString(s) {
		return nil
	}
	return &s
}

func amount(v any) *decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case float64:
		d = decimal.NewFromFloat(x)
	case string:
		d, err = ParseAmount(x)
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	d = d.Round(amountPlaces)
	return &d
}

// lineItems keeps the list only when every entry is usable. quantity defaults to 1; a missing
// line_total is quantity*unit_price and a missing unit_price is line_total/quantity.
func lineItems(v any) []model.LineItem {
	raw, ok := v.([]any)
	if !ok || len(raw) == 0 {
		return nil
	}

	items := make([]model.LineItem, 0, len(raw))
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			return nil
		}

		var item model.LineItem
		if d, present := obj["description"]; present && d != nil {
			s, ok := d.(string)
			if !ok {
				return nil
			}
			item.Description = strings.TrimSpace(s)
		}

		qty := decimal.NewFromInt(1)
		if q := obj["quantity"]; q != nil {
			parsed := amount(q)
			if parsed == nil || !parsed.IsPositive() {
				return nil
			}
			qty = *parsed
		}
		item.Quantity = qty

		unit, unitOK := optionalAmount(obj, "unit_price")
		total, totalOK := optionalAmount(obj, "line_total")
		if !unitOK || !totalOK {
			return nil
		}
		switch {
		case unit != nil && total != nil:
			item.UnitPrice, item.LineTotal = *unit, *total
		case unit != nil:
			item.UnitPrice = *unit
			item.LineTotal = unit.Mul(qty).Round(amountPlaces)
		case total != nil:
			item.LineTotal = *total
			item.UnitPrice = total.DivRound(qty, amountPlaces)
		default:
			return nil
		}
		items = append(items, item)
	}
	return items
}

// optionalAmount reports ok=false when the key holds a value that is not an amount.
func optionalAmount(obj map[string]any, key string) (*decimal.Decimal, bool) {
	v := obj[key]
	if v == nil {
		return nil, true
	}
	d := amount(v)
	return d, d != nil
}
