package parser

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/constants"
)

// NormalizedRecord is one reconciled financial withholding event. Created
// once per source row (or extracted document) and immutable afterwards,
// except for warnings appended during reconciliation. SourceFile/SourceRow
// exist for traceability only, never as a business key.
type NormalizedRecord struct {
	SourceFile string
	SourceRow  int

	Reference  string
	TaxID      string // empty when not recoverable
	IssuerName string
	PayerName  string

	PeriodStart time.Time
	PeriodEnd   time.Time

	Gross       decimal.Decimal
	Withheld    decimal.Decimal
	Net         decimal.Decimal
	NominalRate decimal.Decimal

	Category constants.Category

	Warnings []string
}

// AddWarning appends an inference note for downstream human review.
func (r *NormalizedRecord) AddWarning(w string) {
	r.Warnings = append(r.Warnings, w)
}

// CounterpartyKey groups records by tax identifier, falling back to the
// issuer name when no identifier was recoverable.
func (r *NormalizedRecord) CounterpartyKey() string {
	if r.TaxID != "" {
		return r.TaxID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(r.IssuerName))
}

// BestDate returns the most representative date of the record: the period
// end when known, otherwise the period start.
func (r *NormalizedRecord) BestDate() time.Time {
	if !r.PeriodEnd.IsZero() {
		return r.PeriodEnd
	}
	return r.PeriodStart
}

// EffectiveRate is withheld over gross, zero when gross is zero.
func (r *NormalizedRecord) EffectiveRate() decimal.Decimal {
	if r.Gross.IsZero() {
		return decimal.Zero
	}
	return r.Withheld.Div(r.Gross).Round(4)
}
