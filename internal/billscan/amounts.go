package billscan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"telecalc/internal/money"
	"telecalc/pkg/models"
)

// Tolerance is the largest relative gap between net + VAT and gross that is
// still accepted as a consistent bill.
var Tolerance = decimal.RequireFromString("0.01")

var (
	numberRe   = regexp.MustCompile(`-?\d[\d.,]*\d|\d`)
	currencyRe = regexp.MustCompile(`^[A-Z]{3}$`)
)

var digitReplacer = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"٫", ".", "٬", ",",
)

// ParseAmount reads a printed amount such as "1,234.500 JOD", "د.أ 12.5" or
// "١٢٫٥٠٠". A comma followed by one or two digits at the end is taken as the
// decimal separator; any other comma groups thousands.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := numberRe.FindString(digitReplacer.Replace(s))

	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
				cleaned = strings.ReplaceAll(cleaned, ".", "")
				cleaned = strings.ReplaceAll(cleaned, ",", ".")
			} else {
				cleaned = strings.ReplaceAll(cleaned, ",", "")
			}
		} else if i := strings.LastIndex(cleaned, ","); len(cleaned)-i-1 <= 2 && strings.Count(cleaned, ",") == 1 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("no digits in %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unable to parse amount %q: %w", s, err)
	}
	return d, nil
}

// NormalizeCurrency maps printed currency markers to ISO codes. Unknown
// markers fall back to the billing currency.
func NormalizeCurrency(currency string) string {
	normalized := strings.ToUpper(strings.TrimSpace(currency))

	switch normalized {
	case "", "JD", "JOD", "د.أ", "دينار", "دينار أردني", "DINAR":
		return money.CurrencyCode
	case "$", "US$", "USD", "DOLLAR":
		return "USD"
	case "€", "EUR", "EURO":
		return "EUR"
	default:
		if currencyRe.MatchString(normalized) {
			return normalized
		}
		return money.CurrencyCode
	}
}

// Reconcile completes and cross-checks the amounts of b. When exactly two of
// net, VAT and gross are known the third is derived and recorded in
// b.Derived. When all three are known and net + VAT differs from gross by
// more than Tolerance, a warning is returned and the amounts are kept as
// printed.
func Reconcile(b *models.Bill) []string {
	hasNet := b.NetAmount.IsPositive()
	hasVAT := b.VATAmount.IsPositive()
	hasGross := b.GrossAmount.IsPositive()

	switch {
	case hasNet && hasVAT && hasGross:
		sum := b.NetAmount.Add(b.VATAmount)
		gap := sum.Sub(b.GrossAmount).Abs()
		if gap.GreaterThan(b.GrossAmount.Mul(Tolerance)) {
			return []string{fmt.Sprintf("net %s + VAT %s = %s does not match gross %s",
				money.Format(b.NetAmount), money.Format(b.VATAmount), money.Format(sum), money.Format(b.GrossAmount))}
		}
	case hasNet && hasVAT:
		b.GrossAmount = b.NetAmount.Add(b.VATAmount)
		b.Derived = append(b.Derived, "gross")
	case hasGross && hasVAT:
		if b.VATAmount.GreaterThanOrEqual(b.GrossAmount) {
			return []string{fmt.Sprintf("VAT %s is not below gross %s",
				money.Format(b.VATAmount), money.Format(b.GrossAmount))}
		}
		b.NetAmount = b.GrossAmount.Sub(b.VATAmount)
		b.Derived = append(b.Derived, "net")
	case hasGross && hasNet:
		if b.NetAmount.GreaterThan(b.GrossAmount) {
			return []string{fmt.Sprintf("net %s exceeds gross %s",
				money.Format(b.NetAmount), money.Format(b.GrossAmount))}
		}
		b.VATAmount = b.GrossAmount.Sub(b.NetAmount)
		b.Derived = append(b.Derived, "vat")
	}
	return nil
}
