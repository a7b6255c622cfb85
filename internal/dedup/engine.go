package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/internal/parser"
)

// Verdict classifies a candidate record against the persisted store.
type Verdict int

const (
	// VerdictNone: no persisted record resembles the candidate.
	VerdictNone Verdict = iota
	// VerdictExact: same reference, counterparty, amount and date.
	VerdictExact
	// VerdictSemantic: same transaction seen through a different document,
	// an invoice and its receipt say. Counterparty, amount and date all
	// line up even though the reference differs.
	VerdictSemantic
)

func (v Verdict) String() string {
	switch v {
	case VerdictExact:
		return "exact"
	case VerdictSemantic:
		return "semantic"
	}
	return "none"
}

// Policy is the caller-selected action on a semantic match. The engine only
// detects and reports; it never picks the policy itself.
type Policy string

const (
	PolicySkip      Policy = "skip"      // discard the candidate
	PolicyMerge     Policy = "merge"     // fill only fields empty on the existing record
	PolicyOverwrite Policy = "overwrite" // replace the existing record's content
)

// ParsePolicy validates a user-supplied policy name. Unknown names are an
// error, never a silent fallback to skip.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicySkip, PolicyMerge, PolicyOverwrite:
		return p, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want skip, merge or overwrite)", s)
}

// Config holds the duplicate-detection parameters.
type Config struct {
	AmountTolerance decimal.Decimal
	DayWindow       int
}

// DefaultConfig: one cent of amount slack, seven days of date slack.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.NewFromFloat(0.01),
		DayWindow:       7,
	}
}

// Lookup finds persisted records near a counterparty and date. Backed by the
// record repository in production, by a map in tests.
type Lookup interface {
	FindCandidates(ctx context.Context, counterpartyKey string, around time.Time, windowDays int) ([]*parser.NormalizedRecord, error)
}

// Match reports a dedup decision with the evidence the caller needs to pick
// an action.
type Match struct {
	Verdict  Verdict
	Existing *parser.NormalizedRecord
	Evidence []string
}

// Engine decides whether a candidate record duplicates a persisted one.
type Engine struct {
	cfg    Config
	lookup Lookup
	logger *slog.Logger
}

func NewEngine(cfg Config, lookup Lookup, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AmountTolerance.IsZero() {
		cfg = DefaultConfig()
	}
	return &Engine{cfg: cfg, lookup: lookup, logger: logger}
}

// FindMatch checks the candidate against persisted records for the same
// counterparty within the configured day window. Exact matches win over
// semantic ones when both exist.
func (e *Engine) FindMatch(ctx context.Context, cand *parser.NormalizedRecord) (Match, error) {
	existing, err := e.lookup.FindCandidates(ctx, cand.CounterpartyKey(), cand.BestDate(), e.cfg.DayWindow)
	if err != nil {
		return Match{}, fmt.Errorf("dedup lookup: %w", err)
	}

	var semantic *Match
	for _, ex := range existing {
		if !e.amountsClose(cand, ex) || !e.datesClose(cand, ex) {
			continue
		}
		if cand.Reference != "" && cand.Reference == ex.Reference {
			m := Match{
				Verdict:  VerdictExact,
				Existing: ex,
				Evidence: []string{fmt.Sprintf("reference %q already persisted", ex.Reference)},
			}
			e.logger.Info("dedup.match", "verdict", m.Verdict.String(), "counterparty", cand.CounterpartyKey())
			return m, nil
		}
		if semantic == nil {
			m := Match{
				Verdict:  VerdictSemantic,
				Existing: ex,
				Evidence: []string{
					fmt.Sprintf("counterparty %s", cand.CounterpartyKey()),
					fmt.Sprintf("gross %s within %s of persisted %s",
						cand.Gross.StringFixed(2), e.cfg.AmountTolerance.String(), ex.Gross.StringFixed(2)),
					fmt.Sprintf("dates %s and %s within %d days",
						cand.BestDate().Format("2006-01-02"), ex.BestDate().Format("2006-01-02"), e.cfg.DayWindow),
				},
			}
			semantic = &m
		}
	}

	if semantic != nil {
		e.logger.Info("dedup.match", "verdict", semantic.Verdict.String(), "counterparty", cand.CounterpartyKey())
		return *semantic, nil
	}
	return Match{Verdict: VerdictNone}, nil
}

func (e *Engine) amountsClose(a, b *parser.NormalizedRecord) bool {
	return a.Gross.Sub(b.Gross).Abs().LessThanOrEqual(e.cfg.AmountTolerance)
}

func (e *Engine) datesClose(a, b *parser.NormalizedRecord) bool {
	da, db := a.BestDate(), b.BestDate()
	if da.IsZero() || db.IsZero() {
		return false
	}
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(e.cfg.DayWindow)*24*time.Hour
}

// Action is what Apply did with the candidate.
type Action string

const (
	ActionInserted    Action = "inserted"
	ActionSkipped     Action = "skipped"
	ActionMerged      Action = "merged"
	ActionOverwritten Action = "overwritten"
)

// Apply executes the caller-selected policy over a match. For merges, only
// fields empty on the existing record are copied from the candidate; the
// returned record is the one that should be persisted.
func Apply(policy Policy, m Match, cand *parser.NormalizedRecord) (Action, *parser.NormalizedRecord) {
	switch m.Verdict {
	case VerdictNone:
		return ActionInserted, cand
	case VerdictExact:
		return ActionSkipped, m.Existing
	}

	switch policy {
	case PolicyOverwrite:
		return ActionOverwritten, cand
	case PolicyMerge:
		merged := *m.Existing
		if merged.TaxID == "" {
			merged.TaxID = cand.TaxID
		}
		if merged.Reference == "" {
			merged.Reference = cand.Reference
		}
		if merged.IssuerName == "" {
			merged.IssuerName = cand.IssuerName
		}
		if merged.PayerName == "" {
			merged.PayerName = cand.PayerName
		}
		if merged.PeriodStart.IsZero() {
			merged.PeriodStart = cand.PeriodStart
		}
		if merged.PeriodEnd.IsZero() {
			merged.PeriodEnd = cand.PeriodEnd
		}
		return ActionMerged, &merged
	default:
		return ActionSkipped, m.Existing
	}
}
