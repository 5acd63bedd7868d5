package proration

import (
	"strings"
	"time"
)

const (
	// MinAnchorDay and MaxAnchorDay bound the configurable anchor day-of-month.
	MinAnchorDay = 1
	MaxAnchorDay = 31
)

// Cycle is one billing period running from an anchor date (inclusive) to the
// next anchor date (exclusive).
type Cycle struct {
	Start      Date `json:"start"`
	End        Date `json:"end"`
	LengthDays int  `json:"lengthDays"`
	AnchorDay  int  `json:"anchorDay"`
}

// Contains reports whether d falls inside [Start, End).
func (c Cycle) Contains(d Date) bool {
	return !d.Before(c.Start) && d.Before(c.End)
}

// Next returns the cycle that starts where c ends.
func (c Cycle) Next() Cycle {
	return newCycle(c.End, anchorDate(c.End.Year(), c.End.Month()+1, c.AnchorDay), c.AnchorDay)
}

// LastDayOfMonth returns the number of days in the month.
func LastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ResolveAnchorDay clamps anchorDay into the days that exist in the month, so a
// day-31 anchor lands on the 30th of a 30-day month and on the 28th or 29th of
// February.
func ResolveAnchorDay(year int, month time.Month, anchorDay int) int {
	last := LastDayOfMonth(year, month)
	switch {
	case anchorDay < MinAnchorDay:
		return MinAnchorDay
	case anchorDay > last:
		return last
	default:
		return anchorDay
	}
}

// anchorDate returns the anchor date in the given month. month may be out of
// range (0 or 13) and rolls over the year boundary.
func anchorDate(year int, month time.Month, anchorDay int) Date {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	y, m := first.Year(), first.Month()
	return NewDate(y, m, ResolveAnchorDay(y, m, anchorDay))
}

func newCycle(start, end Date, anchorDay int) Cycle {
	return Cycle{
		Start:      start,
		End:        end,
		LengthDays: DaysBetween(start, end),
		AnchorDay:  anchorDay,
	}
}

// CycleContaining returns the cycle pivot falls in. A pivot on an anchor date
// belongs to the cycle that starts there.
func CycleContaining(pivot Date, anchorDay int) Cycle {
	current := anchorDate(pivot.Year(), pivot.Month(), anchorDay)
	if pivot.Before(current) {
		prev := anchorDate(pivot.Year(), pivot.Month()-1, anchorDay)
		return newCycle(prev, current, anchorDay)
	}
	next := anchorDate(pivot.Year(), pivot.Month()+1, anchorDay)
	return newCycle(current, next, anchorDay)
}

// FirstAnchorAtOrAfter returns the first anchor date on or after activation:
// the next invoice date of a newly activated subscription.
func FirstAnchorAtOrAfter(activation Date, anchorDay int) Date {
	same := anchorDate(activation.Year(), activation.Month(), anchorDay)
	if !same.Before(activation) {
		return same
	}
	return anchorDate(activation.Year(), activation.Month()+1, anchorDay)
}

// CycleEndingAt returns the cycle whose end is the given anchor date.
func CycleEndingAt(end Date, anchorDay int) Cycle {
	start := anchorDate(end.Year(), end.Month()-1, anchorDay)
	return newCycle(start, end, anchorDay)
}

// ResolveCycle validates caller input and returns the cycle containing pivot.
func ResolveCycle(pivot string, anchorDay int) (Cycle, error) {
	if err := validateAnchorDay(anchorDay); err != nil {
		return Cycle{}, err
	}
	d, err := parsePivot("pivot_date", pivot)
	if err != nil {
		return Cycle{}, err
	}
	return CycleContaining(d, anchorDay), nil
}

func validateAnchorDay(anchorDay int) error {
	if anchorDay < MinAnchorDay || anchorDay > MaxAnchorDay {
		return NewValidationError("anchor_day", anchorDay, ErrInvalidAnchorDay, "")
	}
	return nil
}

func parsePivot(field, s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, NewValidationError(field, s, ErrInvalidDate, "date is required")
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, NewValidationError(field, s, ErrInvalidDate, "expected YYYY-MM-DD")
	}
	return d, nil
}
