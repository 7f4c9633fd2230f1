package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var dopPrinter = message.NewPrinter(language.Spanish)

// FormatDOP renders an amount as Dominican pesos with grouped thousands,
// e.g. "RD$1.250,50". Display only; never parse this back.
func FormatDOP(amount decimal.Decimal) string {
	f, _ := amount.Round(2).Float64()
	return dopPrinter.Sprintf("RD$%.2f", f)
}
