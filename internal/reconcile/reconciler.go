package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Case identifies which presence pattern resolved a row. Closed enumeration:
// every reconciliation path must map to exactly one of these.
type Case int

const (
	// CaseNetWithheld: net and withheld present, gross derived.
	CaseNetWithheld Case = iota + 1
	// CaseGrossWithheld: two values present whose roles are ambiguous; the
	// rate hypothesis test decides whether the first is gross or net.
	CaseGrossWithheld
	// CaseGrossNet: gross and net present, withheld derived.
	CaseGrossNet
	// CaseNetOnly: only net present, grossed up through the rate.
	CaseNetOnly
	// CaseGrossOnly: only gross present, withheld computed from the rate.
	CaseGrossOnly
	// CaseNetExempt: only net present and the rate is zero.
	CaseNetExempt
)

func (c Case) String() string {
	switch c {
	case CaseNetWithheld:
		return "net+withheld"
	case CaseGrossWithheld:
		return "gross+withheld"
	case CaseGrossNet:
		return "gross+net"
	case CaseNetOnly:
		return "net-only"
	case CaseGrossOnly:
		return "gross-only"
	case CaseNetExempt:
		return "net-exempt"
	}
	return "unknown"
}

// Tolerances are the reconciliation design parameters. Statutory rates shift
// per jurisdiction and year, which changes how tight these should be, so they
// are injected rather than buried in the logic.
type Tolerances struct {
	// RateRelative bounds the relative error of the hypothesis test in the
	// ambiguous gross/withheld case.
	RateRelative decimal.Decimal
	// GrossCheck bounds, as a fraction of gross, how far a derived withheld
	// may sit from gross x rate before a consistency warning fires.
	GrossCheck decimal.Decimal
	// Rounding is the absolute slack allowed on net == gross - withheld.
	Rounding decimal.Decimal
}

// DefaultTolerances returns the observed-heuristic defaults: 5% hypothesis
// tolerance, 2% consistency tolerance, one cent of rounding slack.
func DefaultTolerances() Tolerances {
	return Tolerances{
		RateRelative: decimal.NewFromFloat(0.05),
		GrossCheck:   decimal.NewFromFloat(0.02),
		Rounding:     decimal.NewFromFloat(0.01),
	}
}

// Input carries the raw parsed values of one row. A nil pointer means the
// source had no such column or the cell was empty.
type Input struct {
	Gross    *decimal.Decimal
	Withheld *decimal.Decimal
	Net      *decimal.Decimal
	Rate     decimal.Decimal // nominal withholding rate as a fraction
}

// Result is the reconciled triple. Warnings document every inference taken;
// callers must surface them for human review, never accept them silently.
type Result struct {
	Gross    decimal.Decimal
	Withheld decimal.Decimal
	Net      decimal.Decimal
	Case     Case
	Warnings []string
}

// Reconcile resolves the true gross/withheld/net triple from whichever raw
// values the source carried, even when the source mislabels which column
// holds which quantity. Fails only when no monetary value is present at all.
func Reconcile(in Input, tol Tolerances) (Result, error) {
	var res Result

	hasGross := in.Gross != nil
	hasWithheld := in.Withheld != nil
	hasNet := in.Net != nil

	switch {
	case hasNet && hasWithheld && !hasGross:
		res.Case = CaseNetWithheld
		res.Net = *in.Net
		res.Withheld = *in.Withheld
		res.Gross = res.Net.Add(res.Withheld)
		res.Warnings = append(res.Warnings, "gross amount derived from net + withheld")

	case hasGross && hasWithheld && !hasNet:
		res = reconcileAmbiguousGross(*in.Gross, *in.Withheld, in.Rate, tol)

	case hasGross && hasNet && !hasWithheld:
		res.Case = CaseGrossNet
		res.Gross = *in.Gross
		res.Net = *in.Net
		res.Withheld = res.Gross.Sub(res.Net)
		res.Warnings = append(res.Warnings, "withheld amount derived from gross - net")
		expected := res.Gross.Mul(in.Rate)
		slack := res.Gross.Mul(tol.GrossCheck)
		if res.Withheld.Sub(expected).Abs().GreaterThan(slack) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"derived withheld %s deviates from nominal rate expectation %s by more than %s%% of gross",
				res.Withheld.StringFixed(2), expected.StringFixed(2),
				tol.GrossCheck.Mul(decimal.NewFromInt(100)).String()))
		}

	case hasNet && !hasGross && !hasWithheld:
		res.Net = *in.Net
		if in.Rate.IsZero() {
			res.Case = CaseNetExempt
			res.Gross = res.Net
			res.Withheld = decimal.Zero
		} else {
			res.Case = CaseNetOnly
			one := decimal.NewFromInt(1)
			keep := one.Sub(in.Rate)
			// a rate of 100% (or more) leaves nothing to gross up from; a
			// net-only row claiming it is incoherent, not a divide-by-zero
			if keep.LessThanOrEqual(decimal.Zero) {
				return Result{}, fmt.Errorf("reconcile: cannot gross up net at rate %s", in.Rate.String())
			}
			res.Gross = res.Net.Div(keep).Round(2)
			res.Withheld = res.Gross.Sub(res.Net)
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("gross amount grossed up from net at rate %s", in.Rate.String()))
		}

	case hasGross && !hasWithheld && !hasNet:
		res.Case = CaseGrossOnly
		res.Gross = *in.Gross
		res.Withheld = res.Gross.Mul(in.Rate).Round(2)
		res.Net = res.Gross.Sub(res.Withheld)

	case hasGross && hasWithheld && hasNet:
		// Fully specified row: keep the values, but verify the identity.
		res.Case = CaseGrossNet
		res.Gross = *in.Gross
		res.Withheld = *in.Withheld
		res.Net = *in.Net
		if res.Gross.Sub(res.Withheld).Sub(res.Net).Abs().GreaterThan(tol.Rounding) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"source triple inconsistent: gross %s - withheld %s != net %s",
				res.Gross.StringFixed(2), res.Withheld.StringFixed(2), res.Net.StringFixed(2)))
		}

	default:
		return Result{}, fmt.Errorf("reconcile: no monetary value present")
	}

	return res, nil
}

// reconcileAmbiguousGross handles the case where the source carries a value
// column and a withheld column but no net. The value may actually be a net
// amount mislabeled as gross; each hypothesis predicts a withheld amount
// from the nominal rate, and the one within tolerance of the observed
// withheld wins. On a tie (or no qualifier) the value is treated as net:
// under-reporting gross is the worse failure mode.
func reconcileAmbiguousGross(value, withheld decimal.Decimal, rate decimal.Decimal, tol Tolerances) Result {
	res := Result{Case: CaseGrossWithheld, Withheld: withheld}

	// hypothesis (a): the value is gross; (b): the value is net
	grossHyp := value.Mul(rate)
	netHyp := value.Add(withheld).Mul(rate)
	grossOK := withinRelative(grossHyp, withheld, tol.RateRelative)
	netOK := withinRelative(netHyp, withheld, tol.RateRelative)

	switch {
	case grossOK && !netOK:
		res.Gross = value
		res.Net = value.Sub(withheld)
		res.Warnings = append(res.Warnings, "net amount derived from gross - withheld")
	case netOK && !grossOK:
		res.Net = value
		res.Gross = value.Add(withheld)
		res.Warnings = append(res.Warnings, "value column read as net; gross derived from net + withheld")
	default:
		res.Net = value
		res.Gross = value.Add(withheld)
		res.Warnings = append(res.Warnings,
			"ambiguous value column: rate test inconclusive, forced net interpretation")
	}
	return res
}

// withinRelative reports whether expected sits within rel of actual, in
// relative terms. A zero actual only matches a zero expectation.
func withinRelative(expected, actual, rel decimal.Decimal) bool {
	if actual.IsZero() {
		return expected.IsZero()
	}
	return expected.Sub(actual).Abs().LessThanOrEqual(actual.Abs().Mul(rel))
}
