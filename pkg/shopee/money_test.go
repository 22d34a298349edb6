package shopee

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoneyConversion(t *testing.T) {
	assert.True(t, decimal.NewFromInt(10000).Equal(ToMajor(1000000000)))
	assert.Equal(t, int64(1000500000), FromMajor(decimal.NewFromInt(10005)))
	assert.True(t, decimal.RequireFromString("0.5").Equal(ToMajor(50000)))
}

func TestFormatRupiah(t *testing.T) {
	tests := map[string]decimal.Decimal{
		"Rp0":         decimal.Zero,
		"Rp5.000":     decimal.NewFromInt(5000),
		"Rp1.250.000": decimal.NewFromInt(1250000),
		"Rp999":       decimal.RequireFromString("999.9"),
		"-Rp15.000":   decimal.NewFromInt(-15000),
	}
	for want, in := range tests {
		assert.Equal(t, want, FormatRupiah(in))
	}
	assert.Equal(t, "Rp10.005", FormatScaled(1000500000))
}
