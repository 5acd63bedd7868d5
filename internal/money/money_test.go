package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromFloat(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    string
		wantErr error
	}{
		{name: "zero", in: 0, want: "0"},
		{name: "fractional fils", in: 12.345, want: "12.345"},
		{name: "negative", in: -1, wantErr: ErrNegative},
		{name: "nan", in: math.NaN(), wantErr: ErrNotFinite},
		{name: "infinity", in: math.Inf(1), wantErr: ErrNotFinite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromFloat(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestRateFromFloat(t *testing.T) {
	_, err := RateFromFloat(1.5)
	assert.ErrorIs(t, err, ErrRateOutOfRange)

	_, err = RateFromFloat(-0.01)
	assert.ErrorIs(t, err, ErrRateOutOfRange)

	rate, err := RateFromFloat(DefaultVATRate)
	require.NoError(t, err)
	assert.Equal(t, "0.16", rate.String())
}

func TestBreakdownFromGross(t *testing.T) {
	rate := decimal.NewFromFloat(0.16)

	b := BreakdownFromGross(decimal.NewFromInt(116), rate)

	assert.Equal(t, "100.000", Format(b.Net))
	assert.Equal(t, "16.000", Format(b.VAT))
	assert.Equal(t, "116.000", Format(b.Gross))
	assert.True(t, b.VAT.Equal(VATOnNet(b.Net, rate)))
}

func TestBreakdownFromNet(t *testing.T) {
	b := BreakdownFromNet(decimal.NewFromInt(31), decimal.NewFromFloat(0.16))

	assert.Equal(t, "4.960", Format(b.VAT))
	assert.Equal(t, "35.960", Format(b.Gross))
	assert.True(t, b.Net.Add(b.VAT).Equal(b.Gross))
}

func TestNetGrossRoundTrip(t *testing.T) {
	rates := []float64{0, 0.04, 0.08, 0.16, 0.2, 1}
	nets := []float64{0.001, 1, 7.5, 33.333, 100, 1234.567, 99999.999}

	for _, r := range rates {
		rate := decimal.NewFromFloat(r)
		for _, n := range nets {
			net := decimal.NewFromFloat(n)
			back := NetFromGross(GrossFromNet(net, rate), rate)

			diff := back.Sub(net).Abs().InexactFloat64()
			assert.LessOrEqual(t, diff, 1e-9*n, "rate=%v net=%v back=%s", r, n, back)

			gross := GrossFromNet(net, rate)
			vat := gross.Sub(NetFromGross(gross, rate))
			assert.InDelta(t, VATOnNet(net, rate).InexactFloat64(), vat.InexactFloat64(), 1e-9*math.Max(1, n))
		}
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "34.483", Format(decimal.NewFromFloat(34.48275862)))
	assert.Equal(t, "1.000", Format(decimal.NewFromInt(1)))
	assert.Equal(t, "0.000", Format(decimal.Zero))
	assert.Equal(t, "3.33", FormatPercent(1.0/30))
	assert.Equal(t, "100.00", FormatPercent(1))
	assert.Equal(t, "16", RateLabel(decimal.NewFromFloat(0.16)))
	assert.Equal(t, "7.5", RateLabel(decimal.NewFromFloat(0.075)))
}

func TestBreakdownRounded(t *testing.T) {
	b := BreakdownFromNet(decimal.RequireFromString("2.709677"), decimal.RequireFromString("0.16")).Rounded()
	assert.Equal(t, "2.710", Format(b.Net))
	assert.Equal(t, "0.434", Format(b.VAT))
	assert.Equal(t, "3.144", Format(b.Gross))
	assert.True(t, b.Net.Add(b.VAT).Equal(b.Gross))
}
