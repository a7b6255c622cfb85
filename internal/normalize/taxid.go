package normalize

import (
	"strings"
)

// TaxID is a national tax identifier recovered from a source reference.
// Unreliable marks values that were padded or failed check-digit validation;
// callers must attach a warning to the owning record before using them.
type TaxID struct {
	Value      string
	Unreliable bool
}

// ValidTaxID reports whether s is a well-formed 9-digit identifier with a
// valid check digit (modulus-11 over the first eight digits).
func ValidTaxID(s string) bool {
	if len(s) != 9 {
		return false
	}
	sum := 0
	for i := 0; i < 8; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		sum += int(s[i]-'0') * (9 - i)
	}
	if s[8] < '0' || s[8] > '9' {
		return false
	}
	check := 11 - (sum % 11)
	if check >= 10 {
		check = 0
	}
	return int(s[8]-'0') == check
}

// ExtractTaxID recovers a tax identifier from a free-form source reference.
// References may be a full 9-digit identifier, a legacy property/contract
// reference of the form NNNN-N (not a tax identifier), or an identifier
// embedded in a longer alphanumeric string. The second return is false when
// no identifier can be claimed at all.
func ExtractTaxID(reference string) (TaxID, bool) {
	var b strings.Builder
	for _, r := range reference {
		if (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return TaxID{}, false
	}

	if strings.Contains(s, "-") {
		// Legacy reference. Only claim it if the digits happen to form a
		// valid identifier; otherwise it is a property/contract number.
		digits := strings.ReplaceAll(s, "-", "")
		if ValidTaxID(digits) {
			return TaxID{Value: digits}, true
		}
		return TaxID{}, false
	}

	switch {
	case len(s) == 9:
		return TaxID{Value: s, Unreliable: !ValidTaxID(s)}, true
	case len(s) < 9:
		padded := strings.Repeat("0", 9-len(s)) + s
		return TaxID{Value: padded, Unreliable: true}, true
	default:
		first, last := s[:9], s[len(s)-9:]
		if ValidTaxID(first) {
			return TaxID{Value: first}, true
		}
		if ValidTaxID(last) {
			return TaxID{Value: last}, true
		}
		return TaxID{}, false
	}
}
