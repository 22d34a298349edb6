package shopee

import (
	"strings"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the factor between platform budget units and rupiah.
const CurrencyScale = 100000

var scale = decimal.NewFromInt(CurrencyScale)

// ToMajor converts a platform-scaled amount to rupiah.
func ToMajor(scaled int64) decimal.Decimal {
	return decimal.NewFromInt(scaled).Div(scale)
}

// FromMajor converts rupiah to the platform-scaled amount, truncating any
// fraction below one scaled unit.
func FromMajor(major decimal.Decimal) int64 {
	return major.Mul(scale).IntPart()
}

// FormatRupiah renders a rupiah amount with id-ID thousands separators,
// e.g. Rp1.250.000.
func FormatRupiah(major decimal.Decimal) string {
	neg := major.IsNegative()
	digits := major.Abs().Truncate(0).String()

	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-Rp" + b.String()
	}
	return "Rp" + b.String()
}

// FormatScaled renders a platform-scaled amount as rupiah.
func FormatScaled(scaled int64) string {
	return FormatRupiah(ToMajor(scaled))
}
