package summary

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/parser"
)

func rec(taxID, issuer string, cat constants.Category, gross, withheld string) *parser.NormalizedRecord {
	g, _ := decimal.NewFromString(gross)
	w, _ := decimal.NewFromString(withheld)
	return &parser.NormalizedRecord{
		TaxID:      taxID,
		IssuerName: issuer,
		Category:   cat,
		Gross:      g,
		Withheld:   w,
		Net:        g.Sub(w),
	}
}

func TestAggregate(t *testing.T) {
	records := []*parser.NormalizedRecord{
		rec("123456789", "Maria Santos", constants.IndependentWork, "450.00", "103.50"),
		rec("123456789", "Maria Santos", constants.IndependentWork, "200.00", "46.00"),
		rec("", "António Silva", constants.Rental, "600.00", "150.00"),
	}

	s := Aggregate(records)

	assert.Equal(t, 3, s.Totals.Count)
	assert.True(t, s.Totals.Gross.Equal(decimal.NewFromFloat(1250.00)), "gross=%s", s.Totals.Gross)
	assert.True(t, s.Totals.Withheld.Equal(decimal.NewFromFloat(299.50)))

	require.Len(t, s.ByCounterparty, 2)
	first := s.ByCounterparty[0]
	assert.Equal(t, "123456789", first.Key)
	assert.Equal(t, 2, first.Totals.Count)
	assert.True(t, first.Totals.Gross.Equal(decimal.NewFromFloat(650.00)))

	second := s.ByCounterparty[1]
	assert.Equal(t, "name:antónio silva", second.Key)
	assert.Empty(t, second.TaxID)

	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, 2, s.ByCategory[constants.IndependentWork].Count)
	assert.Equal(t, 1, s.ByCategory[constants.Rental].Count)
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	assert.Equal(t, 0, s.Totals.Count)
	assert.Empty(t, s.ByCounterparty)
	assert.Empty(t, s.ByCategory)
}

func TestAggregateRebuildsFromScratch(t *testing.T) {
	records := []*parser.NormalizedRecord{
		rec("123456789", "Maria Santos", constants.IndependentWork, "100.00", "23.00"),
	}
	first := Aggregate(records)
	second := Aggregate(records)
	assert.Equal(t, first.Totals, second.Totals)
}
