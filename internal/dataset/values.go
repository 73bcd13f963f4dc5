package dataset

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numberRe accepts plain decimal and scientific notation only.
var numberRe = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseNumber parses a plain number such as "12", "-3.5" or "1e3".
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !numberRe.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// FormatNumber renders f in the shortest form that parses back exactly.
func FormatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// NumberFormat fixes the separators used when coercing numeric-looking text.
// Zero values mean auto-detect per value.
type NumberFormat struct {
	Decimal   rune
	Thousands rune
}

var currencyMarks = []string{"USD", "EUR", "GBP", "JPY", "INR", "$", "€", "£", "¥", "₹", "₩", "₽", "¢"}

var (
	commaGroupsRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	dotGroupsRe   = regexp.MustCompile(`^\d{1,3}(\.\d{3}){2,}$`)
)

// ParseLooseNumber coerces numeric-looking text such as "$1,200.50",
// "1.234,5 €", "(300)" or "45%" into a number.
func ParseLooseNumber(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")") {
		neg = true
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
	}
	raw = strings.ToUpper(raw)
	for _, m := range currencyMarks {
		raw = strings.ReplaceAll(raw, m, "")
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.NewReplacer("\u00A0", "", "\u202F", "", " ", "").Replace(raw)
	raw = strings.ReplaceAll(raw, "'", "")
	if strings.HasPrefix(raw, "-") {
		neg = !neg
		raw = raw[1:]
	} else {
		raw = strings.TrimPrefix(raw, "+")
	}
	if raw == "" {
		return 0, false
	}

	dec, thou := nf.Decimal, nf.Thousands
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			if commaGroupsRe.MatchString(raw) {
				dec, thou = '.', ','
			} else {
				dec = ','
			}
		case dpos >= 0 && dotGroupsRe.MatchString(raw):
			dec, thou = ',', '.'
		default:
			dec = '.'
		}
	}
	if thou != 0 && thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	if !numberRe.MatchString(raw) {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// ParseBool recognizes true/false, yes/no and their one-letter forms in any
// case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "t", "y":
		return true, true
	case "false", "no", "f", "n":
		return false, true
	}
	return false, false
}

// DateLayouts is the prioritized list tried when parsing date-like text.
// Unambiguous ISO forms come first, then US month-first, then day-first.
var DateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"02/01/2006",
	"2/1/2006",
	"01-02-2006",
	"1-2-2006",
	"02.01.2006",
	"2.1.2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02-Jan-2006",
	"1/2/06",
	"01/02/06",
}

// HasClock reports whether a layout carries a time of day.
func HasClock(layout string) bool { return strings.Contains(layout, "15") }

// ParseDate parses s with the given layout after trimming.
func ParseDate(s, layout string) (time.Time, bool) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// MatchDateLayout picks a layout for values. The first layout that parses
// every value wins; otherwise the layout with the most hits, ties resolved by
// priority. hits is 0 when no layout parses anything.
func MatchDateLayout(values []string, layouts []string) (layout string, hits int) {
	if len(values) == 0 {
		return "", 0
	}
	for _, l := range layouts {
		n := 0
		for _, v := range values {
			if _, ok := ParseDate(v, l); ok {
				n++
			}
		}
		if n == len(values) {
			return l, n
		}
		if n > hits {
			layout, hits = l, n
		}
	}
	return layout, hits
}
