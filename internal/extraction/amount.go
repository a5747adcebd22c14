package extraction

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errNoDigits = errors.New("amount has no digits")

// ParseAmount reads a human-written money string. Everything except digits, '.', ',' and a
// leading '-' is discarded, then separators are resolved:
//   - with both '.' and ',' present, the one appearing last is the decimal separator;
//   - a separator repeated more than once is a thousands separator;
//   - a single separator followed by exactly three digits is a thousands separator,
//     unless the integer part is zero;
//   - otherwise the single separator is the decimal separator.
//
// A trailing ",-" or ".-" (whole-amount marker) is ignored.
//
// So "Rp 1.250.000" is 1250000, "1.250,50" is 1250.5, "$1,000" is 1000 and "12.5" is 12.5.
func ParseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	// "Rp 1.000,-" and "Rp1.000.-" mark a whole amount, not a sign
	for _, suffix := range []string{",-", ".-"} {
		cleaned = strings.TrimSuffix(cleaned, suffix)
	}

	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimPrefix(cleaned, "-")
	if strings.Contains(cleaned, "-") {
		return decimal.Decimal{}, errors.New("misplaced minus sign")
	}
	if strings.Trim(cleaned, ".,") == "" {
		return decimal.Decimal{}, errNoDigits
	}

	lastDot := strings.LastIndexByte(cleaned, '.')
	lastComma := strings.LastIndexByte(cleaned, ',')

	var normalized string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		dec, thousands := ".", ","
		if lastComma > lastDot {
			dec, thousands = ",", "."
		}
		if strings.Count(cleaned, dec) > 1 {
			return decimal.Decimal{}, errors.New("ambiguous decimal separator")
		}
		normalized = strings.ReplaceAll(cleaned, thousands, "")
		normalized = strings.Replace(normalized, dec, ".", 1)
	case lastDot >= 0 || lastComma >= 0:
		sep, idx := ".", lastDot
		if lastComma >= 0 {
			sep, idx = ",", lastComma
		}
		intPart := strings.TrimLeft(cleaned[:strings.Index(cleaned, sep)], "0")
		switch {
		case strings.Count(cleaned, sep) > 1:
			normalized = strings.ReplaceAll(cleaned, sep, "")
		case len(cleaned)-idx-1 == 3 && intPart != "":
			normalized = strings.ReplaceAll(cleaned, sep, "")
		default:
			normalized = strings.Replace(cleaned, sep, ".", 1)
		}
	default:
		normalized = cleaned
	}

	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}
	normalized = strings.TrimSuffix(normalized, ".")

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
