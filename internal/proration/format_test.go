package proration

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activation(t *testing.T) *Result {
	t.Helper()
	r, err := ProrateActivation(30, "2025-10-14", 15)
	require.NoError(t, err)
	return r
}

func TestFormatScriptEnglish(t *testing.T) {
	out, err := Format(activation(t), decimal.NewFromInt(30), LangEnglish, ViewScript)
	require.NoError(t, err)

	assert.Equal(t, "Prorated period: 2025-10-14 to 2025-10-15"+
		" • Days: 1 of 30 (3.33%)"+
		" • Prorated amount: 1.000 JOD"+
		" • Monthly subscription: 30.000 JOD"+
		" • Invoice date: 2025-10-15"+
		" • Covers service until: 2025-11-15", out)
}

func TestFormatScriptArabic(t *testing.T) {
	out, err := Format(activation(t), decimal.NewFromInt(30), LangArabic, ViewScript)
	require.NoError(t, err)

	assert.Contains(t, out, "فترة الاحتساب النسبي: من 2025-10-14 إلى 2025-10-15")
	assert.Contains(t, out, "1.000 د.أ")
	assert.Contains(t, out, "تغطي الخدمة حتى: 2025-11-15")
	assert.Len(t, strings.Split(out, bullet), 6)
}

func TestFormatTotals(t *testing.T) {
	out, err := Format(activation(t), decimal.NewFromInt(30), LangEnglish, ViewTotals)
	require.NoError(t, err)
	assert.Equal(t, "Monthly: 30.000 JOD\nProrated: 1.000 JOD", out)
}

func TestFormatVAT(t *testing.T) {
	out, err := Format(activation(t), decimal.NewFromInt(30), LangEnglish, ViewVAT)
	require.NoError(t, err)
	assert.Equal(t, "Net: 31.000 JOD\nVAT (16%): 4.960 JOD\nGross: 35.960 JOD", out)

	f := NewFormatter(decimal.NewFromFloat(0.08))
	out, err = f.Format(activation(t), decimal.NewFromInt(30), LangArabic, ViewVAT)
	require.NoError(t, err)
	assert.Equal(t, "الصافي: 31.000 د.أ\nضريبة المبيعات (8%): 2.480 د.أ\nالإجمالي: 33.480 د.أ", out)
}

func TestFormatVATLinesAddUp(t *testing.T) {
	amountRe := regexp.MustCompile(`(\d+\.\d{3}) JOD`)
	for monthly := 1.5; monthly <= 200.5; monthly += 7 {
		for day := 1; day <= 30; day++ {
			pivot := fmt.Sprintf("2025-11-%02d", day)
			res, err := Prorate(monthly, pivot, 15, ModeRemaining)
			require.NoError(t, err)

			out, err := Format(res, res.MonthlyNet, LangEnglish, ViewVAT)
			require.NoError(t, err)

			m := amountRe.FindAllStringSubmatch(out, -1)
			require.Len(t, m, 3, out)
			net := decimal.RequireFromString(m[0][1])
			vat := decimal.RequireFromString(m[1][1])
			gross := decimal.RequireFromString(m[2][1])
			assert.True(t, net.Add(vat).Equal(gross), "monthly %v pivot %s: %s", monthly, pivot, out)
		}
	}

	res, err := Prorate(1.5, "2025-10-21", 15, ModeRemaining)
	require.NoError(t, err)
	out, err := Format(res, res.MonthlyNet, LangEnglish, ViewVAT)
	require.NoError(t, err)
	m := amountRe.FindAllStringSubmatch(out, -1)
	require.Len(t, m, 3)
	assert.True(t, decimal.RequireFromString(m[0][1]).Add(decimal.RequireFromString(m[1][1])).Equal(decimal.RequireFromString(m[2][1])), out)
}

func TestFormatElapsedPeriod(t *testing.T) {
	r, err := Prorate(100, "2024-02-20", 10, ModeElapsed)
	require.NoError(t, err)

	out, err := Format(r, decimal.NewFromInt(100), LangEnglish, ViewScript)
	require.NoError(t, err)
	assert.Contains(t, out, "Prorated period: 2024-02-10 to 2024-02-20")
	assert.Contains(t, out, "Days: 10 of 29 (34.48%)")
	assert.Contains(t, out, "Prorated amount: 34.483 JOD")
	assert.Contains(t, out, "Covers service until: 2024-04-10")
}

func TestFormatGrossEcho(t *testing.T) {
	r, err := ProrateFromGross(116, "2025-10-14", 15, 0.16)
	require.NoError(t, err)

	out, err := Format(r, r.MonthlyNet, LangEnglish, ViewScript)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "Invoice total incl. VAT: 116.000 JOD"), out)
	assert.Contains(t, out, "Monthly subscription: 100.000 JOD")
}

func TestFormatDateStyleIsUniform(t *testing.T) {
	f := NewFormatter(decimal.NewFromFloat(0.16))
	f.DateStyle = DateDMY

	out, err := f.Format(activation(t), decimal.NewFromInt(30), LangEnglish, ViewScript)
	require.NoError(t, err)
	assert.Contains(t, out, "14-10-2025 to 15-10-2025")
	assert.NotRegexp(t, `\d{4}-\d{2}-\d{2}`, out)
}

var numberRe = regexp.MustCompile(`\d+(?:[.-]\d+)*`)

func TestFormatLanguagesShareNumbers(t *testing.T) {
	results := []*Result{activation(t)}
	r, err := ProrateFromGross(57.99, "2024-02-29", 29, 0.16)
	require.NoError(t, err)
	results = append(results, r)

	for _, res := range results {
		for _, view := range []View{ViewScript, ViewTotals, ViewVAT} {
			en, err := Format(res, res.MonthlyNet, LangEnglish, view)
			require.NoError(t, err)
			ar, err := Format(res, res.MonthlyNet, LangArabic, view)
			require.NoError(t, err)

			assert.Equal(t, numberRe.FindAllString(en, -1), numberRe.FindAllString(ar, -1), fmt.Sprintf("view %s", view))
			assert.NotEqual(t, en, ar)
		}
	}
}

func TestFormatRejectsUnknownInput(t *testing.T) {
	_, err := Format(activation(t), decimal.NewFromInt(30), Language("fr"), ViewScript)
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	_, err = Format(activation(t), decimal.NewFromInt(30), LangEnglish, View("pdf"))
	assert.ErrorIs(t, err, ErrInvalidView)

	_, err = Format(nil, decimal.NewFromInt(30), LangEnglish, ViewScript)
	assert.Error(t, err)
}

func TestParseLanguageAndView(t *testing.T) {
	l, err := ParseLanguage("")
	require.NoError(t, err)
	assert.Equal(t, LangArabic, l)

	l, err = ParseLanguage("EN")
	require.NoError(t, err)
	assert.Equal(t, LangEnglish, l)

	v, err := ParseView("VAT")
	require.NoError(t, err)
	assert.Equal(t, ViewVAT, v)

	_, err = ParseView("table")
	assert.ErrorIs(t, err, ErrInvalidView)
}
