// Package money renders integer minor-unit amounts for labels and exports.
package money

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.Indonesian)

// Format renders an IDR amount using Indonesian digit grouping, e.g. "Rp 1.250.000".
// Negative amounts are rendered with a leading minus sign.
func Format(amount int64) string {
	if amount < 0 {
		return printer.Sprintf("-Rp %d", -amount)
	}
	return printer.Sprintf("Rp %d", amount)
}

// Decimal lifts a minor-unit amount into a decimal for rate arithmetic.
func Decimal(amount int64) decimal.Decimal {
	return decimal.NewFromInt(amount)
}

// FromDecimal rounds half-to-even to the nearest minor unit.
func FromDecimal(d decimal.Decimal) int64 {
	return d.RoundBank(0).IntPart()
}

// Min returns the smaller amount.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
