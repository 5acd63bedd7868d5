// Package proration computes anchor-based pro-rata billing.
//
// A subscription is billed on a fixed day of every month (the anchor day). The
// package resolves the billing cycle around a date, measures the days used in
// that cycle and prices them against a monthly amount. Every function is pure:
// dates are always explicit parameters and nothing reads the clock.
package proration

import (
	"strings"

	"github.com/shopspring/decimal"

	"telecalc/internal/money"
)

// Mode selects which side of the pivot date is billed.
type Mode string

const (
	// ModeRemaining bills the days from the pivot (an activation date) to the
	// end of the cycle.
	ModeRemaining Mode = "remaining"

	// ModeElapsed bills the days from the start of the cycle to the pivot
	// (treated as "today").
	ModeElapsed Mode = "elapsed"
)

// ParseMode parses a mode name. An empty string selects ModeRemaining.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRemaining:
		return ModeRemaining, nil
	case ModeElapsed:
		return ModeElapsed, nil
	default:
		return "", NewValidationError("mode", s, ErrInvalidMode, "expected remaining or elapsed")
	}
}

// Result is a computed proration. It is never mutated after being returned.
type Result struct {
	Cycle      Cycle            `json:"-"`
	Pivot      Date             `json:"pivot"`
	Mode       Mode             `json:"mode"`
	Start      Date             `json:"start"`
	End        Date             `json:"end"`
	TotalDays  int              `json:"totalDays"`
	UsedDays   int              `json:"usedDays"`
	Ratio      float64          `json:"ratio"`
	MonthlyNet decimal.Decimal  `json:"monthlyNet"`
	Value      decimal.Decimal  `json:"value"`
	GrossEcho  *decimal.Decimal `json:"grossEcho,omitempty"`
	VATRate    *decimal.Decimal `json:"vatRate,omitempty"`
}

// RemainingDays returns the days of the cycle not covered by UsedDays.
func (r *Result) RemainingDays() int {
	return r.TotalDays - r.UsedDays
}

// Period returns the billed span: pivot to cycle end for ModeRemaining, cycle
// start to pivot for ModeElapsed.
func (r *Result) Period() (Date, Date) {
	if r.Mode == ModeElapsed {
		return r.Start, r.Pivot
	}
	return r.Pivot, r.End
}

// compute is the engine proper; inputs are already validated.
func compute(monthly decimal.Decimal, pivot Date, cycle Cycle, mode Mode) *Result {
	total := cycle.LengthDays

	var used int
	if mode == ModeElapsed {
		used = DaysBetween(cycle.Start, pivot)
	} else {
		used = DaysBetween(pivot, cycle.End)
	}
	used = clamp(used, 0, total)

	// A zero-length cycle cannot come out of a valid anchor; price it at zero
	// rather than divide by zero.
	ratio := 0.0
	value := decimal.Zero
	if total > 0 {
		ratio = float64(used) / float64(total)
		value = monthly.Mul(decimal.NewFromInt(int64(used))).Div(decimal.NewFromInt(int64(total)))
	}

	return &Result{
		Cycle:      cycle,
		Pivot:      pivot,
		Mode:       mode,
		Start:      cycle.Start,
		End:        cycle.End,
		TotalDays:  total,
		UsedDays:   used,
		Ratio:      ratio,
		MonthlyNet: monthly,
		Value:      value,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Prorate prices the part of the cycle containing pivot selected by mode.
func Prorate(monthly float64, pivot string, anchorDay int, mode Mode) (*Result, error) {
	amount, err := amountFromFloat("monthly_amount", monthly)
	if err != nil {
		return nil, err
	}
	if mode, err = ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if err := validateAnchorDay(anchorDay); err != nil {
		return nil, err
	}
	d, err := parsePivot("pivot_date", pivot)
	if err != nil {
		return nil, err
	}
	return compute(amount, d, CycleContaining(d, anchorDay), mode), nil
}

// ProrateActivation prices a newly activated subscription up to its first
// invoice: the cycle is the one ending at the first anchor on or after the
// activation date. Activating on an anchor day yields zero prorated days.
func ProrateActivation(monthly float64, activation string, anchorDay int) (*Result, error) {
	amount, err := amountFromFloat("monthly_amount", monthly)
	if err != nil {
		return nil, err
	}
	if err := validateAnchorDay(anchorDay); err != nil {
		return nil, err
	}
	d, err := parsePivot("activation_date", activation)
	if err != nil {
		return nil, err
	}
	return activationResult(amount, d, anchorDay), nil
}

func activationResult(monthly decimal.Decimal, activation Date, anchorDay int) *Result {
	invoice := FirstAnchorAtOrAfter(activation, anchorDay)
	return compute(monthly, activation, CycleEndingAt(invoice, anchorDay), ModeRemaining)
}

// ProrateFromGross is ProrateActivation for a VAT-inclusive invoice amount.
// The monthly net is gross / (1 + vatRate); the gross figure is echoed back
// for display only.
func ProrateFromGross(gross float64, pivot string, anchorDay int, vatRate float64) (*Result, error) {
	amount, err := amountFromFloat("gross_amount", gross)
	if err != nil {
		return nil, err
	}
	rate, err := rateFromFloat(vatRate)
	if err != nil {
		return nil, err
	}
	if err := validateAnchorDay(anchorDay); err != nil {
		return nil, err
	}
	d, err := parsePivot("pivot_date", pivot)
	if err != nil {
		return nil, err
	}

	res := activationResult(money.NetFromGross(amount, rate), d, anchorDay)
	res.GrossEcho = &amount
	res.VATRate = &rate
	return res, nil
}

// Request bundles the inputs of every calculation entry point.
type Request struct {
	Amount     float64  `json:"amount"`
	Date       string   `json:"date"`
	AnchorDay  int      `json:"anchorDay"`
	Mode       Mode     `json:"mode,omitempty"`
	Gross      bool     `json:"gross,omitempty"`
	Activation bool     `json:"activation,omitempty"`
	VATRate    *float64 `json:"vatRate,omitempty"`
}

// Calculate dispatches a Request: gross input goes through ProrateFromGross,
// activation requests through ProrateActivation, everything else through
// Prorate. A nil VATRate on a gross request selects money.DefaultVATRate.
func Calculate(req Request) (*Result, error) {
	switch {
	case req.Gross:
		rate := money.DefaultVATRate
		if req.VATRate != nil {
			rate = *req.VATRate
		}
		return ProrateFromGross(req.Amount, req.Date, req.AnchorDay, rate)
	case req.Activation:
		return ProrateActivation(req.Amount, req.Date, req.AnchorDay)
	default:
		return Prorate(req.Amount, req.Date, req.AnchorDay, req.Mode)
	}
}

func amountFromFloat(field string, v float64) (decimal.Decimal, error) {
	d, err := money.FromFloat(v)
	if err != nil {
		return decimal.Zero, NewValidationError(field, v, ErrInvalidAmount, err.Error())
	}
	return d, nil
}

func rateFromFloat(v float64) (decimal.Decimal, error) {
	d, err := money.RateFromFloat(v)
	if err != nil {
		return decimal.Zero, NewValidationError("vat_rate", v, ErrInvalidVATRate, err.Error())
	}
	return d, nil
}
