package schema

import "github.com/shopspring/decimal"

const maxFractionDigits = 8

// FormatDecimal renders v with at most 8 fractional digits and no trailing zeros.
func FormatDecimal(v float64) string {
	d := decimal.NewFromFloat(v).Round(maxFractionDigits)
	if d.IsZero() {
		return "0"
	}
	return d.String()
}

// ParseDecimal parses a decimal string into a float64.
func ParseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
