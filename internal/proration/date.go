package proration

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ISOLayout is the calendar date layout accepted on input.
const ISOLayout = "2006-01-02"

const hoursPerDay = 24

// Date is a calendar day without time of day, pinned to UTC midnight so that
// day arithmetic never drifts across daylight-saving changes or local offsets.
type Date struct {
	t time.Time
}

// NewDate builds a Date. Out-of-range values normalize like time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf takes the calendar day of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return DateOf(t), nil
}

// Year returns the year.
func (d Date) Year() int { return d.t.Year() }

// Month returns the month.
func (d Date) Month() time.Month { return d.t.Month() }

// Day returns the day of month.
func (d Date) Day() int { return d.t.Day() }

// Time returns the UTC midnight instant of the day.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year(), d.Month(), d.Day()+n)
}

// String returns the ISO form.
func (d Date) String() string { return d.t.Format(ISOLayout) }

// Format renders the date with a time layout.
func (d Date) Format(layout string) string { return d.t.Format(layout) }

// MarshalJSON encodes the date as an ISO string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO date string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DaysBetween returns the whole number of days from a to b (negative when b is
// before a). The hour count is rounded rather than truncated.
func DaysBetween(a, b Date) int {
	return int(math.Round(b.t.Sub(a.t).Hours() / hoursPerDay))
}
