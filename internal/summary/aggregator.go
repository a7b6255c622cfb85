package summary

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/parser"
)

// Totals accumulates the monetary triple over a group of records.
type Totals struct {
	Gross    decimal.Decimal
	Withheld decimal.Decimal
	Net      decimal.Decimal
	Count    int
}

func (t Totals) add(r *parser.NormalizedRecord) Totals {
	return Totals{
		Gross:    t.Gross.Add(r.Gross),
		Withheld: t.Withheld.Add(r.Withheld),
		Net:      t.Net.Add(r.Net),
		Count:    t.Count + 1,
	}
}

// CounterpartyGroup is one counterparty's slice of the summary.
type CounterpartyGroup struct {
	Key        string // tax identifier, or name fallback
	TaxID      string
	IssuerName string
	Totals     Totals
}

// Summary aggregates a set of normalized records. Rebuilt fully on every
// Aggregate call; the caller owns the result.
type Summary struct {
	Totals         Totals
	ByCounterparty []CounterpartyGroup
	ByCategory     map[constants.Category]Totals
	WarningCount   int
}

// Aggregate groups records by counterparty key and by category and computes
// per-group and global totals. Counterparty groups come back sorted by key
// for deterministic output.
func Aggregate(records []*parser.NormalizedRecord) *Summary {
	s := &Summary{
		ByCategory: make(map[constants.Category]Totals),
	}
	groups := make(map[string]CounterpartyGroup)

	for _, r := range records {
		s.Totals = s.Totals.add(r)
		s.ByCategory[r.Category] = s.ByCategory[r.Category].add(r)
		s.WarningCount += len(r.Warnings)

		key := r.CounterpartyKey()
		g, ok := groups[key]
		if !ok {
			g = CounterpartyGroup{Key: key, TaxID: r.TaxID, IssuerName: r.IssuerName}
		}
		g.Totals = g.Totals.add(r)
		groups[key] = g
	}

	s.ByCounterparty = make([]CounterpartyGroup, 0, len(groups))
	for _, g := range groups {
		s.ByCounterparty = append(s.ByCounterparty, g)
	}
	sort.Slice(s.ByCounterparty, func(i, j int) bool {
		return s.ByCounterparty[i].Key < s.ByCounterparty[j].Key
	})
	return s
}
