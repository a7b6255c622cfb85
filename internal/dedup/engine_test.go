package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/parser"
)

type mapLookup struct {
	records []*parser.NormalizedRecord
}

func (l *mapLookup) FindCandidates(_ context.Context, key string, _ time.Time, _ int) ([]*parser.NormalizedRecord, error) {
	var out []*parser.NormalizedRecord
	for _, r := range l.records {
		if r.CounterpartyKey() == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func mkRecord(taxID, ref string, gross string, day time.Time) *parser.NormalizedRecord {
	g, _ := decimal.NewFromString(gross)
	w := g.Mul(decimal.NewFromFloat(0.23)).Round(2)
	return &parser.NormalizedRecord{
		TaxID:       taxID,
		Reference:   ref,
		IssuerName:  "Maria Santos",
		Category:    constants.IndependentWork,
		Gross:       g,
		Withheld:    w,
		Net:         g.Sub(w),
		PeriodStart: day,
		PeriodEnd:   day,
	}
}

func TestFindMatchExact(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := mkRecord("123456789", "FR 2024/123", "450.00", day)
	engine := NewEngine(DefaultConfig(), &mapLookup{records: []*parser.NormalizedRecord{existing}}, nil)

	cand := mkRecord("123456789", "FR 2024/123", "450.00", day)
	m, err := engine.FindMatch(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, VerdictExact, m.Verdict)
	assert.Same(t, existing, m.Existing)
}

func TestFindMatchSemanticDifferentReference(t *testing.T) {
	// An invoice and its receipt: same counterparty, same amount, dates
	// three days apart, different document references.
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := mkRecord("123456789", "FT 2024/55", "450.00", day)
	engine := NewEngine(DefaultConfig(), &mapLookup{records: []*parser.NormalizedRecord{existing}}, nil)

	cand := mkRecord("123456789", "FR 2024/123", "450.00", day.AddDate(0, 0, 3))
	m, err := engine.FindMatch(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, VerdictSemantic, m.Verdict)
	assert.NotEmpty(t, m.Evidence)
}

func TestFindMatchAmountWithinTolerance(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := mkRecord("123456789", "FT 2024/55", "450.00", day)
	engine := NewEngine(DefaultConfig(), &mapLookup{records: []*parser.NormalizedRecord{existing}}, nil)

	cand := mkRecord("123456789", "FR 2024/123", "450.01", day)
	m, err := engine.FindMatch(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, VerdictSemantic, m.Verdict)
}

func TestFindMatchNoMatchOutsideWindow(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := mkRecord("123456789", "FT 2024/55", "450.00", day)
	engine := NewEngine(DefaultConfig(), &mapLookup{records: []*parser.NormalizedRecord{existing}}, nil)

	cand := mkRecord("123456789", "FR 2024/123", "450.00", day.AddDate(0, 0, 30))
	m, err := engine.FindMatch(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, VerdictNone, m.Verdict)

	cand = mkRecord("123456789", "FR 2024/124", "900.00", day)
	m, err = engine.FindMatch(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, VerdictNone, m.Verdict, "amount far off must not match")
}

func TestFindMatchNameFallbackGrouping(t *testing.T) {
	day := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	existing := mkRecord("", "1633-8", "600.00", day)
	engine := NewEngine(DefaultConfig(), &mapLookup{records: []*parser.NormalizedRecord{existing}}, nil)

	cand := mkRecord("", "1633-9", "600.00", day.AddDate(0, 0, 1))
	m, err := engine.FindMatch(context.Background(), cand)
	require.NoError(t, err)
	assert.Equal(t, VerdictSemantic, m.Verdict)
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{"skip", "merge", "overwrite"} {
		p, err := ParsePolicy(name)
		require.NoError(t, err)
		assert.Equal(t, Policy(name), p)
	}

	// typos must be rejected, not silently degrade to skip
	_, err := ParsePolicy("overwite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overwite")
}

func TestApplyPolicies(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	existing := mkRecord("", "FT 2024/55", "450.00", day)
	cand := mkRecord("123456789", "FR 2024/123", "450.00", day)
	m := Match{Verdict: VerdictSemantic, Existing: existing}

	action, rec := Apply(PolicySkip, m, cand)
	assert.Equal(t, ActionSkipped, action)
	assert.Same(t, existing, rec)

	action, rec = Apply(PolicyMerge, m, cand)
	assert.Equal(t, ActionMerged, action)
	assert.Equal(t, "123456789", rec.TaxID, "empty field filled from candidate")
	assert.Equal(t, "FT 2024/55", rec.Reference, "non-empty field untouched")

	action, rec = Apply(PolicyOverwrite, m, cand)
	assert.Equal(t, ActionOverwritten, action)
	assert.Same(t, cand, rec)

	action, rec = Apply(PolicyMerge, Match{Verdict: VerdictNone}, cand)
	assert.Equal(t, ActionInserted, action)
	assert.Same(t, cand, rec)
}
