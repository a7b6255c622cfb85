package constants

import (
	"strings"
)

// Category is the closed set of income categories a withholding record can
// belong to. Extending the set means adding a variant here plus its
// declaration code and statutory rate entry.
type Category string

const (
	IndependentWork Category = "IndependentWork"
	Rental          Category = "Rental"
	Capital         Category = "Capital"
	Pension         Category = "Pension"
)

var allCategories = []Category{
	IndependentWork,
	Rental,
	Capital,
	Pension,
}

// AsStringSlice returns the category names as plain strings.
func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// DeclarationCode maps a category to its statutory declaration code letter.
func (c Category) DeclarationCode() string {
	switch c {
	case IndependentWork:
		return "B"
	case Rental:
		return "F"
	case Capital:
		return "E"
	case Pension:
		return "H"
	}
	return ""
}

// Canonicalize resolves free-form category text (portal vocabulary, both
// Portuguese and English labels) to a Category. The second return reports
// whether the input was recognized.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return IndependentWork, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"trabalho independente": IndependentWork,
		"recibos verdes":        IndependentWork,
		"prestação de serviços": IndependentWork,
		"categoria b":           IndependentWork,
		"rendas":                Rental,
		"renda":                 Rental,
		"prediais":              Rental,
		"arrendamento":          Rental,
		"categoria f":           Rental,
		"capitais":              Capital,
		"juros":                 Capital,
		"dividendos":            Capital,
		"categoria e":           Capital,
		"pensões":               Pension,
		"pensoes":               Pension,
		"pensão":                Pension,
		"categoria h":           Pension,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return IndependentWork, false
}
