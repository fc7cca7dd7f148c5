// Package money formats minor-unit amounts for display.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencySymbol is "R$" followed by a no-break space.
const currencySymbol = "R$\u00a0"

// FormatBRL renders cents the way pt-BR locales show Brazilian reais:
// "R$ 4,50", "R$ 1.234,56", "-R$ 0,10". As with Intl's pt-BR currency
// format, the gap after "R$" is a no-break space (U+00A0).
func FormatBRL(minor int64) string {
	d := decimal.New(minor, -2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	return sign + currencySymbol + groupThousands(intPart) + "," + frac
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
