package treasury

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

// the French printer uses no-break spaces and may use a typographic minus
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f':
			return ' '
		case '\u2212':
			return '-'
		}
		return r
	}, s)
}

func TestFormatAdjustment(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{amount: "5000", want: "+5 000 FCFA"},
		{amount: "-5000", want: "-5 000 FCFA"},
		{amount: "0", want: "0 FCFA"},
		{amount: "1250000", want: "+1 250 000 FCFA"},
		{amount: "12.5", want: "+12,5 FCFA"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := normalize(FormatAdjustment(decimal.RequireFromString(tt.amount)))
			if got != tt.want {
				t.Errorf("FormatAdjustment() = %q, want %q", got, tt.want)
			}
		})
	}
}
