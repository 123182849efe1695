package analytics

import (
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Minor is an amount in the smallest unit of its currency (cents for EUR, yen for JPY).
type Minor int64

// unit resolves a currency code, falling back to XXX ("no currency") for unknown codes.
func unit(code string) currency.Unit {
	u, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return currency.XXX
	}
	return u
}

// Scale returns the number of decimals the currency uses.
func Scale(code string) int {
	s, _ := currency.Standard.Rounding(unit(code))
	return s
}

// ToMinor converts a decimal wire amount to minor units, rounding half away from zero.
func ToMinor(amount float64, code string) Minor {
	return Minor(math.Round(amount * math.Pow10(Scale(code))))
}

// Major converts minor units back to a decimal amount.
func (m Minor) Major(code string) float64 {
	return float64(m) / math.Pow10(Scale(code))
}

// FormatAmount renders m with the currency symbol used in tag's locale, e.g. "€ 12.50".
func FormatAmount(m Minor, code string, tag language.Tag) string {
	u := unit(code)
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(u.Amount(m.Major(code))))
}
