package extract

import (
	"github.com/tmduarte/declara/internal/parser"
)

// ToFieldSet hands a recognition result to the same normalization pipeline
// that spreadsheet rows go through, so ambiguous numerics get the identical
// reconciliation treatment.
func ToFieldSet(f Fields) parser.FieldSet {
	return parser.FieldSet{
		Reference:  f.Reference,
		TaxID:      f.TaxID,
		IssuerName: f.IssuerName,
		PayerName:  f.PayerName,
		Date:       f.Date,
		Gross:      f.Gross,
		Withheld:   f.Withheld,
		Net:        f.Net,
		Rate:       f.Rate,
		Category:   f.Category,
	}
}
