package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a money amount with thousands separators for
// human-readable messages, e.g. 5000 -> "5,000.00".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return amountPrinter.Sprint(number.Decimal(f, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatLitres renders a litre quantity, e.g. 1000 -> "1,000.0".
func FormatLitres(litres float64) string {
	return amountPrinter.Sprint(number.Decimal(litres, number.MinFractionDigits(1), number.MaxFractionDigits(1)))
}
