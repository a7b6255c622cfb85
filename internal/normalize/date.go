package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateLayouts covers the shapes seen across both portal export layouts.
// Day-first layouts come before year-first since the exports are regional.
var dateLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006 15:04:05",
	"2006-01-02 15:04:05",
	"January 2, 2006",
}

// excelEpoch is day zero of the 1900 date system used by xls/xlsx serials.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDate converts raw cell text into a calendar date. Accepts the known
// textual layouts plus Excel serial numbers (cells sometimes survive as the
// underlying serial when the export loses its number format).
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse date: empty value")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}

	// Excel serial date
	if serial, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		if serial < 1 || serial > 200000 {
			return time.Time{}, fmt.Errorf("parse date: serial %v out of range", serial)
		}
		days := int(serial)
		frac := serial - float64(days)
		t := excelEpoch.AddDate(0, 0, days).Add(time.Duration(frac * 24 * float64(time.Hour)))
		return t, nil
	}

	return time.Time{}, fmt.Errorf("parse date: unrecognized value %q", raw)
}

// SameDay reports whether two timestamps fall on the same calendar day (UTC).
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
