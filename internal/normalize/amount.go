package normalize

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts raw cell text into a monetary amount. It tolerates the
// regional formats the portal exports use: comma decimal separator, dot or
// space thousands separators, and a trailing or leading currency marker.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fmt.Errorf("parse amount: empty value")
	}

	// strip currency markers and spacing (incl. non-breaking space)
	replacer := strings.NewReplacer("€", "", "EUR", "", "eur", "", " ", "", "\u00a0", "")
	s = replacer.Replace(s)

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return decimal.Zero, fmt.Errorf("parse amount: unexpected character %q in %q", r, raw)
		}
	}

	s = normalizeSeparators(s)
	if s == "" || s == "." {
		return decimal.Zero, fmt.Errorf("parse amount: no digits in %q", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators rewrites regional digit grouping into plain decimal
// notation. When both separators appear, the one occurring last is the
// decimal mark. A lone comma is always a decimal mark; a lone dot is a
// decimal mark only when followed by one or two digits ("1.234" groups
// thousands, "450.5" does not).
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParsePercent converts rate text ("25%", "23", "0,23") into a fraction.
// Values above 1 are read as percentage points.
func ParsePercent(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("parse percent: empty value")
	}
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse percent %q: %w", raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("parse percent %q: negative rate", raw)
	}
	one := decimal.NewFromInt(1)
	if d.GreaterThan(one) {
		d = d.Div(decimal.NewFromInt(100))
	}
	if d.GreaterThan(one) {
		return decimal.Zero, fmt.Errorf("parse percent %q: rate above 100%%", raw)
	}
	return d, nil
}
