// Package pricing implements the telecom price formula: list price, discount,
// VAT and contract total.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"telecalc/internal/money"
	"telecalc/internal/proration"
)

// Basis tells whether Input.Amount already includes VAT.
type Basis string

const (
	BasisNet   Basis = "net"
	BasisGross Basis = "gross"
)

var (
	ErrInvalidBasis    = errors.New("invalid price basis")
	ErrInvalidDiscount = errors.New("invalid discount percent")
	ErrInvalidMonths   = errors.New("invalid contract months")
)

// MaxMonths caps contract length at ten years.
const MaxMonths = 120

// Input is a pricing request. A zero VATRate means no VAT; callers wanting the
// default rate set money.DefaultVATRate explicitly.
type Input struct {
	Amount          float64 `json:"amount"`
	Basis           Basis   `json:"basis,omitempty"`
	DiscountPercent float64 `json:"discountPercent,omitempty"`
	VATRate         float64 `json:"vatRate"`
	Months          int     `json:"months,omitempty"`
}

// Quote is a priced Input. All amounts are per month except Total.
type Quote struct {
	Basis    Basis           `json:"basis"`
	Months   int             `json:"months"`
	Rate     decimal.Decimal `json:"vatRate"`
	Percent  decimal.Decimal `json:"discountPercent"`
	ListNet  decimal.Decimal `json:"listNet"`
	Discount decimal.Decimal `json:"discount"`
	Net      decimal.Decimal `json:"net"`
	VAT      decimal.Decimal `json:"vat"`
	Gross    decimal.Decimal `json:"gross"`
	Total    decimal.Decimal `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// Calculate prices in. Validation failures are *proration.ValidationError so
// callers handle both calculators the same way.
func Calculate(in Input) (*Quote, error) {
	amount, err := money.FromFloat(in.Amount)
	if err != nil {
		return nil, proration.NewValidationError("amount", in.Amount, proration.ErrInvalidAmount, err.Error())
	}
	basis, err := ParseBasis(string(in.Basis))
	if err != nil {
		return nil, err
	}
	rate, err := money.RateFromFloat(in.VATRate)
	if err != nil {
		return nil, proration.NewValidationError("vat_rate", in.VATRate, proration.ErrInvalidVATRate, err.Error())
	}
	if math.IsNaN(in.DiscountPercent) || in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return nil, proration.NewValidationError("discount_percent", in.DiscountPercent, ErrInvalidDiscount, "expected 0 to 100")
	}
	months := in.Months
	if months == 0 {
		months = 1
	}
	if months < 1 || months > MaxMonths {
		return nil, proration.NewValidationError("months", in.Months, ErrInvalidMonths, fmt.Sprintf("expected 1 to %d", MaxMonths))
	}

	listNet := amount
	if basis == BasisGross {
		listNet = money.NetFromGross(amount, rate)
	}
	pct := decimal.NewFromFloat(in.DiscountPercent)
	discount := listNet.Mul(pct).Div(hundred)
	b := money.BreakdownFromNet(listNet.Sub(discount), rate)

	return &Quote{
		Basis:    basis,
		Months:   months,
		Rate:     rate,
		Percent:  pct,
		ListNet:  listNet,
		Discount: discount,
		Net:      b.Net,
		VAT:      b.VAT,
		Gross:    b.Gross,
		Total:    b.Gross.Mul(decimal.NewFromInt(int64(months))),
	}, nil
}

// ParseBasis parses a basis name. An empty string selects BasisNet.
func ParseBasis(s string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(s))) {
	case "", BasisNet:
		return BasisNet, nil
	case BasisGross:
		return BasisGross, nil
	default:
		return "", proration.NewValidationError("basis", s, ErrInvalidBasis, "expected net or gross")
	}
}

type quoteLabels struct {
	currency string
	listNet  string
	discount string
	net      string
	vat      string
	gross    string
	total    string
}

var quotePhrases = map[proration.Language]quoteLabels{
	proration.LangEnglish: {
		currency: money.CurrencyCode,
		listNet:  "List price (net): %s %s",
		discount: "Discount (%s%%): %s %s",
		net:      "Net after discount: %s %s",
		vat:      "VAT (%s%%): %s %s",
		gross:    "Monthly total: %s %s",
		total:    "Contract total (%d months): %s %s",
	},
	proration.LangArabic: {
		currency: money.CurrencySymbolAR,
		listNet:  "السعر قبل الضريبة: %s %s",
		discount: "الخصم (%s%%): %s %s",
		net:      "الصافي بعد الخصم: %s %s",
		vat:      "ضريبة المبيعات (%s%%): %s %s",
		gross:    "الإجمالي الشهري: %s %s",
		total:    "إجمالي العقد (%d شهر): %s %s",
	},
}

// Format renders the quote one figure per line. The discount line is omitted
// when there is no discount and the contract line when Months is 1.
func (q *Quote) Format(lang proration.Language) (string, error) {
	l, ok := quotePhrases[lang]
	if !ok {
		return "", proration.NewValidationError("lang", lang, proration.ErrInvalidLanguage, "")
	}

	lines := []string{fmt.Sprintf(l.listNet, money.Format(q.ListNet), l.currency)}
	if !q.Discount.IsZero() {
		lines = append(lines, fmt.Sprintf(l.discount, q.Percent.String(), money.Format(q.Discount), l.currency))
	}
	b := money.Breakdown{Net: q.Net, VAT: q.VAT, Rate: q.Rate}.Rounded()
	lines = append(lines,
		fmt.Sprintf(l.net, money.Format(b.Net), l.currency),
		fmt.Sprintf(l.vat, money.RateLabel(q.Rate), money.Format(b.VAT), l.currency),
		fmt.Sprintf(l.gross, money.Format(b.Gross), l.currency),
	)
	if q.Months > 1 {
		total := b.Gross.Mul(decimal.NewFromInt(int64(q.Months)))
		lines = append(lines, fmt.Sprintf(l.total, q.Months, money.Format(total), l.currency))
	}
	return strings.Join(lines, "\n"), nil
}
