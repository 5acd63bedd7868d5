// Package intent pulls a pro-rata question out of free chat text.
//
// Parsing is best effort and purely lexical. It recognises a date, an amount
// and a few keywords in Arabic or English; anything it cannot place is left
// for the language model to answer.
package intent

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"telecalc/internal/proration"
)

// Intent is the structured form of a pro-rata question.
type Intent struct {
	Amount     float64            `json:"amount"`
	Date       string             `json:"date"`
	AnchorDay  int                `json:"anchorDay,omitempty"`
	Mode       proration.Mode     `json:"mode"`
	Gross      bool               `json:"gross,omitempty"`
	Activation bool               `json:"activation,omitempty"`
	Lang       proration.Language `json:"lang"`
}

// Request turns the intent into an engine request. defaultAnchor is used when
// the text names no anchor day; vatRate applies to gross amounts.
func (i Intent) Request(defaultAnchor int, vatRate float64) proration.Request {
	anchor := i.AnchorDay
	if anchor == 0 {
		anchor = defaultAnchor
	}
	req := proration.Request{
		Amount:     i.Amount,
		Date:       i.Date,
		AnchorDay:  anchor,
		Mode:       i.Mode,
		Gross:      i.Gross,
		Activation: i.Activation,
	}
	if i.Gross {
		rate := vatRate
		req.VATRate = &rate
	}
	return req
}

var digits = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٫", ".", "٬", ",", "،", ",",
)

var (
	ymdRe       = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	dmyRe       = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})\b`)
	thousandsRe = regexp.MustCompile(`(\d),(\d{3})\b`)
	anchorRe    = regexp.MustCompile(`(?:anchor(?:\s+day)?|billing\s+day|cycle\s+day|bill\s+day|يوم\s+الفوترة|يوم\s+الفاتورة|يوم\s+الدورة)\s*(?:is|=|:|هو)?\s*(\d{1,2})\b`)
	currencyRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:jod|jd|dinars?|دنانير|دينار|د\.أ)`)
	prefixRe    = regexp.MustCompile(`(?:jod|jd)\s*(\d+(?:\.\d+)?)`)
	keywordRe   = regexp.MustCompile(`(?:amount|price|monthly|subscription|gross|total|fee|المبلغ|مبلغ|الاشتراك|اشتراك|السعر|قيمة|الشهري)[^\d]{0,24}?(\d+(?:\.\d+)?)`)
	numberRe    = regexp.MustCompile(`\d+(?:\.\d+)?`)
	elapsedRe   = regexp.MustCompile(`\b(?:so far|used|consumed|elapsed|until today|to date)\b|مستهلك|استهلك|حتى الآن|حتى الان|حتى اليوم`)
	grossRe     = regexp.MustCompile(`incl\.?\s*vat|including\s+vat|inclusive|with\s+vat|\bgross\b|شاملة?\s+(?:ال)?ضريبة|مع الضريبة|بالضريبة`)
	activateRe  = regexp.MustCompile(`activat|new\s+line|subscribed\s+on|تفعيل|فعّل|اشترك\s|اشتراك جديد`)
)

// Parse extracts an Intent from text. The boolean is false unless both a
// valid date and a positive amount were found; whatever was found is still
// filled in.
func Parse(text string) (Intent, bool) {
	in := Intent{Mode: proration.ModeRemaining, Lang: detectLanguage(text)}

	s := strings.ToLower(digits.Replace(text))
	s = thousandsRe.ReplaceAllString(s, "$1$2")

	dates, s := findDates(s)

	if m := anchorRe.FindStringSubmatchIndex(s); m != nil {
		if day, err := strconv.Atoi(s[m[2]:m[3]]); err == nil && day >= proration.MinAnchorDay && day <= proration.MaxAnchorDay {
			in.AnchorDay = day
		}
		s = s[:m[0]] + " " + s[m[1]:]
	}

	// With several dates an elapsed question is asked about the last one
	// ("today"); otherwise the first is the activation or pivot date.
	if len(dates) > 0 {
		in.Date = dates[0]
	}
	in.Gross = grossRe.MatchString(s)
	if elapsedRe.MatchString(s) {
		in.Mode = proration.ModeElapsed
		if len(dates) > 0 {
			in.Date = dates[len(dates)-1]
		}
	} else if activateRe.MatchString(s) {
		in.Activation = true
	}

	if amount, ok := findAmount(s); ok && amount > 0 {
		in.Amount = amount
	}
	return in, in.Date != "" && in.Amount > 0
}

func detectLanguage(text string) proration.Language {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) && !unicode.IsDigit(r) && !unicode.IsPunct(r) {
			return proration.LangArabic
		}
	}
	return proration.LangEnglish
}

type dateMatch struct {
	pos int
	iso string
}

// findDates returns every valid date as ISO text in order of appearance, and
// s with those dates blanked out.
func findDates(s string) ([]string, string) {
	var found []dateMatch
	for _, try := range []struct {
		re             *regexp.Regexp
		year, mon, day int
	}{
		{re: ymdRe, year: 1, mon: 2, day: 3},
		{re: dmyRe, year: 3, mon: 2, day: 1},
	} {
		for _, m := range try.re.FindAllStringSubmatchIndex(s, -1) {
			group := func(i int) int {
				n, _ := strconv.Atoi(s[m[2*i]:m[2*i+1]])
				return n
			}
			iso := fmt.Sprintf("%04d-%02d-%02d", group(try.year), group(try.mon), group(try.day))
			if _, err := proration.ParseDate(iso); err != nil {
				continue
			}
			found = append(found, dateMatch{pos: m[0], iso: iso})
			// Same-length blanking keeps later match offsets valid.
			s = s[:m[0]] + strings.Repeat(" ", m[1]-m[0]) + s[m[1]:]
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	dates := make([]string, len(found))
	for i, f := range found {
		dates[i] = f.iso
	}
	return dates, s
}

// findAmount prefers a number tagged with a currency, then one following an
// amount keyword, then the only number left in the text.
func findAmount(s string) (float64, bool) {
	for _, re := range []*regexp.Regexp{currencyRe, prefixRe, keywordRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}

	nums := numberRe.FindAllString(s, -1)
	if len(nums) != 1 {
		return 0, false
	}
	v, err := strconv.ParseFloat(nums[0], 64)
	return v, err == nil
}
