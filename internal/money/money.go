// Package money holds the currency and VAT arithmetic shared by the calculators.
//
// Amounts are decimal.Decimal values in Jordanian Dinar. The dinar is divided
// into 1000 fils, so every rendered amount carries exactly three fractional digits.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

const (
	// CurrencyCode is the ISO 4217 code of the billing currency.
	CurrencyCode = "JOD"

	// CurrencySymbolAR is the Arabic abbreviation of the dinar.
	CurrencySymbolAR = "د.أ"

	// Places is the number of fractional digits shown for the currency.
	Places = 3

	// DefaultVATRate is the general sales tax rate applied to telecom services.
	DefaultVATRate = 0.16
)

var (
	// ErrNotFinite is returned for NaN or infinite numeric input.
	ErrNotFinite = errors.New("value is not a finite number")

	// ErrNegative is returned for negative amounts.
	ErrNegative = errors.New("value must not be negative")

	// ErrRateOutOfRange is returned for VAT rates outside [0, 1].
	ErrRateOutOfRange = errors.New("rate must be between 0 and 1")
)

var one = decimal.NewFromInt(1)

// FromFloat converts a caller-supplied amount, rejecting NaN, infinities and
// negative values.
func FromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, ErrNotFinite
	}
	if v < 0 {
		return decimal.Zero, ErrNegative
	}
	return decimal.NewFromFloat(v), nil
}

// RateFromFloat converts a VAT rate expressed as a fraction (0.16 for 16%).
func RateFromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, ErrNotFinite
	}
	if v < 0 || v > 1 {
		return decimal.Zero, ErrRateOutOfRange
	}
	return decimal.NewFromFloat(v), nil
}

// VATOnNet returns the tax due on a net amount.
func VATOnNet(net, rate decimal.Decimal) decimal.Decimal {
	return net.Mul(rate)
}

// GrossFromNet adds VAT to a net amount.
func GrossFromNet(net, rate decimal.Decimal) decimal.Decimal {
	return net.Add(VATOnNet(net, rate))
}

// NetFromGross removes VAT from a VAT-inclusive amount.
func NetFromGross(gross, rate decimal.Decimal) decimal.Decimal {
	return gross.Div(one.Add(rate))
}

// Breakdown is a net/VAT/gross triple.
type Breakdown struct {
	Net   decimal.Decimal `json:"net"`
	VAT   decimal.Decimal `json:"vat"`
	Gross decimal.Decimal `json:"gross"`
	Rate  decimal.Decimal `json:"rate"`
}

// BreakdownFromNet computes VAT and gross for a net amount.
func BreakdownFromNet(net, rate decimal.Decimal) Breakdown {
	vat := VATOnNet(net, rate)
	return Breakdown{Net: net, VAT: vat, Gross: net.Add(vat), Rate: rate}
}

// BreakdownFromGross splits a VAT-inclusive amount. VAT is the difference
// gross - net so the three figures always add up.
func BreakdownFromGross(gross, rate decimal.Decimal) Breakdown {
	net := NetFromGross(gross, rate)
	return Breakdown{Net: net, VAT: gross.Sub(net), Gross: gross, Rate: rate}
}

// Rounded returns b with net and VAT rounded to fils and gross as their sum.
// Rendered breakdowns use it so the printed lines add up.
func (b Breakdown) Rounded() Breakdown {
	net := Round(b.Net)
	vat := Round(b.VAT)
	return Breakdown{Net: net, VAT: vat, Gross: net.Add(vat), Rate: b.Rate}
}

// Round rounds an amount half away from zero to the currency's fils.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders an amount with the currency's three fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// FormatPercent renders a ratio in [0,1] as a percentage with two decimals.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.2f", ratio*100)
}

// RateLabel renders a VAT rate as a compact percentage ("16" for 0.16).
func RateLabel(rate decimal.Decimal) string {
	return rate.Mul(decimal.NewFromInt(100)).String()
}
