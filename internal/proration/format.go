package proration

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"telecalc/internal/money"
)

// Language selects the output language.
type Language string

const (
	// LangArabic is the default output language.
	LangArabic Language = "ar"
	// LangEnglish renders labels in English with the JOD code.
	LangEnglish Language = "en"
)

// ParseLanguage parses a language code. An empty string selects Arabic.
func ParseLanguage(s string) (Language, error) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case "", LangArabic:
		return LangArabic, nil
	case LangEnglish:
		return LangEnglish, nil
	default:
		return "", NewValidationError("lang", s, ErrInvalidLanguage, "expected ar or en")
	}
}

// View selects the rendered representation.
type View string

const (
	// ViewScript is the narrative paragraph read out to the customer.
	ViewScript View = "script"
	// ViewTotals is the two-line monthly/prorated summary.
	ViewTotals View = "totals"
	// ViewVAT is the net/VAT/gross breakdown of monthly + prorated.
	ViewVAT View = "vat"
)

// ParseView parses a view name. An empty string selects ViewScript.
func ParseView(s string) (View, error) {
	switch View(strings.ToLower(strings.TrimSpace(s))) {
	case "", ViewScript:
		return ViewScript, nil
	case ViewTotals:
		return ViewTotals, nil
	case ViewVAT:
		return ViewVAT, nil
	default:
		return "", NewValidationError("view", s, ErrInvalidView, "expected script, totals or vat")
	}
}

// DateStyle selects how dates are written. A single output never mixes styles.
type DateStyle string

const (
	// DateISO writes 2025-10-15.
	DateISO DateStyle = "iso"
	// DateDMY writes 15-10-2025.
	DateDMY DateStyle = "dmy"
)

func (s DateStyle) layout() string {
	if s == DateDMY {
		return "02-01-2006"
	}
	return ISOLayout
}

// Render writes d in style s.
func (s DateStyle) Render(d Date) string {
	return d.Format(s.layout())
}

const bullet = " • "

// labels is one language's phrasing. Numbers are filled in identically for
// every language.
type labels struct {
	currency  string
	period    string
	days      string
	prorated  string
	monthly   string
	invoice   string
	coverage  string
	gross     string
	totalsMon string
	totalsPro string
	net       string
	vat       string
	vatGross  string
}

var phrasebook = map[Language]labels{
	LangEnglish: {
		currency:  money.CurrencyCode,
		period:    "Prorated period: %s to %s",
		days:      "Days: %d of %d (%s%%)",
		prorated:  "Prorated amount: %s %s",
		monthly:   "Monthly subscription: %s %s",
		invoice:   "Invoice date: %s",
		coverage:  "Covers service until: %s",
		gross:     "Invoice total incl. VAT: %s %s",
		totalsMon: "Monthly: %s %s",
		totalsPro: "Prorated: %s %s",
		net:       "Net: %s %s",
		vat:       "VAT (%s%%): %s %s",
		vatGross:  "Gross: %s %s",
	},
	LangArabic: {
		currency:  money.CurrencySymbolAR,
		period:    "فترة الاحتساب النسبي: من %s إلى %s",
		days:      "عدد الأيام: %d من %d (%s%%)",
		prorated:  "المبلغ النسبي: %s %s",
		monthly:   "الاشتراك الشهري: %s %s",
		invoice:   "تاريخ الفاتورة: %s",
		coverage:  "تغطي الخدمة حتى: %s",
		gross:     "قيمة الفاتورة شاملة الضريبة: %s %s",
		totalsMon: "الشهري: %s %s",
		totalsPro: "النسبي: %s %s",
		net:       "الصافي: %s %s",
		vat:       "ضريبة المبيعات (%s%%): %s %s",
		vatGross:  "الإجمالي: %s %s",
	},
}

// Formatter renders results as text. The zero value is not usable; build one
// with NewFormatter.
type Formatter struct {
	VATRate   decimal.Decimal
	DateStyle DateStyle
}

// NewFormatter returns a Formatter for the given VAT rate and ISO dates.
func NewFormatter(vatRate decimal.Decimal) *Formatter {
	return &Formatter{VATRate: vatRate, DateStyle: DateISO}
}

var defaultFormatter = NewFormatter(decimal.NewFromFloat(money.DefaultVATRate))

// Format renders res with the default formatter (16% VAT, ISO dates).
func Format(res *Result, monthly decimal.Decimal, lang Language, view View) (string, error) {
	return defaultFormatter.Format(res, monthly, lang, view)
}

// Format renders res in the given language and view. monthly is the full
// monthly amount shown next to the prorated value.
func (f *Formatter) Format(res *Result, monthly decimal.Decimal, lang Language, view View) (string, error) {
	l, ok := phrasebook[lang]
	if !ok {
		return "", NewValidationError("lang", lang, ErrInvalidLanguage, "")
	}
	if res == nil {
		return "", NewValidationError("result", nil, ErrInvalidAmount, "no result to format")
	}

	switch view {
	case ViewScript:
		return f.script(res, monthly, l), nil
	case ViewTotals:
		return f.totals(res, monthly, l), nil
	case ViewVAT:
		return f.vat(res, monthly, l), nil
	default:
		return "", NewValidationError("view", view, ErrInvalidView, "")
	}
}

func (f *Formatter) date(d Date) string {
	return f.DateStyle.Render(d)
}

func (f *Formatter) script(res *Result, monthly decimal.Decimal, l labels) string {
	from, to := res.Period()
	parts := []string{
		fmt.Sprintf(l.period, f.date(from), f.date(to)),
		fmt.Sprintf(l.days, res.UsedDays, res.TotalDays, money.FormatPercent(res.Ratio)),
		fmt.Sprintf(l.prorated, money.Format(res.Value), l.currency),
		fmt.Sprintf(l.monthly, money.Format(monthly), l.currency),
		fmt.Sprintf(l.invoice, f.date(res.End)),
		fmt.Sprintf(l.coverage, f.date(res.Cycle.Next().End)),
	}
	if res.GrossEcho != nil {
		parts = append(parts, fmt.Sprintf(l.gross, money.Format(*res.GrossEcho), l.currency))
	}
	return strings.Join(parts, bullet)
}

func (f *Formatter) totals(res *Result, monthly decimal.Decimal, l labels) string {
	return strings.Join([]string{
		fmt.Sprintf(l.totalsMon, money.Format(monthly), l.currency),
		fmt.Sprintf(l.totalsPro, money.Format(res.Value), l.currency),
	}, "\n")
}

func (f *Formatter) vat(res *Result, monthly decimal.Decimal, l labels) string {
	b := money.BreakdownFromNet(monthly.Add(res.Value), f.VATRate).Rounded()
	return strings.Join([]string{
		fmt.Sprintf(l.net, money.Format(b.Net), l.currency),
		fmt.Sprintf(l.vat, money.RateLabel(f.VATRate), money.Format(b.VAT), l.currency),
		fmt.Sprintf(l.vatGross, money.Format(b.Gross), l.currency),
	}, "\n")
}
