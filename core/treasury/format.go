package treasury

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const currency = "FCFA"

var printer = message.NewPrinter(language.French)

// FormatAmount renders an amount the way it is shown to members, e.g. "5 000 FCFA".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return printer.Sprintf("%v %s", number.Decimal(f, number.MaxFractionDigits(2)), currency)
}

// FormatAdjustment is FormatAmount with an explicit sign, e.g. "+5 000 FCFA".
func FormatAdjustment(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + FormatAmount(d)
	}
	return FormatAmount(d)
}
