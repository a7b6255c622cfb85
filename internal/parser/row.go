package parser

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/colmap"
	"github.com/tmduarte/declara/internal/normalize"
	"github.com/tmduarte/declara/internal/reconcile"
)

// RowParser turns one spreadsheet row into one normalized record, composing
// the field normalizers, the column map and the value reconciler. All
// inference taken on the way is recorded as warnings on the record.
type RowParser struct {
	tol    reconcile.Tolerances
	logger *slog.Logger
}

func NewRowParser(tol reconcile.Tolerances, logger *slog.Logger) *RowParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &RowParser{tol: tol, logger: logger}
}

// FieldSet is a pre-mapped row: logical field to raw text, free of physical
// column concerns. Spreadsheet rows arrive here through the column map;
// extraction results arrive here directly.
type FieldSet struct {
	Reference  string
	TaxID      string
	IssuerName string
	PayerName  string

	PeriodStart string
	PeriodEnd   string
	Date        string

	Gross    string
	Withheld string
	Net      string
	Rate     string

	Category string
}

// ParseRow normalizes one data row. rowNum is the 1-based spreadsheet row for
// traceability. Returns a row-level error when the cells cannot produce any
// coherent record; such an error never aborts the file.
func (p *RowParser) ParseRow(sourceFile string, rowNum int, cm *colmap.ColumnMap, cells []string, layout Layout, year int) (*NormalizedRecord, error) {
	cell := func(f colmap.Field) string {
		idx, ok := cm.Column(f)
		if !ok || idx >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[idx])
	}

	return p.ParseFields(sourceFile, rowNum, FieldSet{
		Reference:   cell(colmap.FieldReference),
		TaxID:       cell(colmap.FieldTaxID),
		IssuerName:  cell(colmap.FieldIssuerName),
		PayerName:   cell(colmap.FieldPayerName),
		PeriodStart: cell(colmap.FieldPeriodStart),
		PeriodEnd:   cell(colmap.FieldPeriodEnd),
		Date:        cell(colmap.FieldDate),
		Gross:       cell(colmap.FieldGrossAmount),
		Withheld:    cell(colmap.FieldWithheld),
		Net:         cell(colmap.FieldNetAmount),
		Rate:        cell(colmap.FieldRate),
		Category:    cell(colmap.FieldCategory),
	}, layout, year)
}

// ParseFields normalizes one pre-mapped field set into a record.
func (p *RowParser) ParseFields(sourceFile string, rowNum int, fs FieldSet, layout Layout, year int) (*NormalizedRecord, error) {
	rec := &NormalizedRecord{
		SourceFile: sourceFile,
		SourceRow:  rowNum,
		Reference:  strings.TrimSpace(fs.Reference),
		IssuerName: strings.TrimSpace(fs.IssuerName),
		PayerName:  strings.TrimSpace(fs.PayerName),
	}

	p.resolveTaxID(rec, strings.TrimSpace(fs.TaxID))
	rec.Category = p.resolveCategory(rec, strings.TrimSpace(fs.Category), layout)
	rec.NominalRate = p.resolveRate(rec, strings.TrimSpace(fs.Rate), year)
	p.resolveDates(rec, strings.TrimSpace(fs.PeriodStart), strings.TrimSpace(fs.PeriodEnd), strings.TrimSpace(fs.Date))

	in := reconcile.Input{Rate: rec.NominalRate}
	in.Gross = p.parseMoney(rec, strings.TrimSpace(fs.Gross), "gross")
	in.Withheld = p.parseMoney(rec, strings.TrimSpace(fs.Withheld), "withheld")
	in.Net = p.parseMoney(rec, strings.TrimSpace(fs.Net), "net")

	res, err := reconcile.Reconcile(in, p.tol)
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", rowNum, err)
	}
	rec.Gross = res.Gross
	rec.Withheld = res.Withheld
	rec.Net = res.Net
	rec.Warnings = append(rec.Warnings, res.Warnings...)

	p.logger.Debug("row.parse.ok",
		"file", sourceFile, "row", rowNum,
		"case", res.Case.String(), "warnings", len(rec.Warnings),
	)
	return rec, nil
}

func (p *RowParser) resolveTaxID(rec *NormalizedRecord, taxCell string) {
	// A dedicated identifier column wins; otherwise mine the reference.
	source := taxCell
	if source == "" {
		source = rec.Reference
	}
	if source == "" {
		return
	}
	id, ok := normalize.ExtractTaxID(source)
	if !ok {
		if taxCell == "" {
			// legacy property/contract reference, grouping falls back to name
			rec.AddWarning(fmt.Sprintf("no tax identifier recoverable from reference %q", source))
		} else {
			rec.AddWarning(fmt.Sprintf("tax identifier column value %q not usable", source))
		}
		return
	}
	rec.TaxID = id.Value
	if id.Unreliable {
		rec.AddWarning(fmt.Sprintf("tax identifier %s failed validation, flagged unreliable", id.Value))
	}
}

func (p *RowParser) resolveCategory(rec *NormalizedRecord, catCell string, layout Layout) constants.Category {
	if catCell != "" {
		if cat, ok := constants.Canonicalize(catCell); ok {
			return cat
		}
		rec.AddWarning(fmt.Sprintf("unrecognized category %q, using layout default", catCell))
	}
	return layout.DefaultCategory()
}

// resolveRate picks the nominal withholding rate. The statutory table for the
// record's category and year is authoritative; the export's own rate column
// is only consulted when the table carries no rate (exempt categories may
// still opt into withholding).
func (p *RowParser) resolveRate(rec *NormalizedRecord, rateCell string, year int) decimal.Decimal {
	table := constants.StatutoryRate(rec.Category, year)
	if !table.IsZero() {
		return table
	}
	if rateCell != "" {
		if r, err := normalize.ParsePercent(rateCell); err == nil {
			return r
		}
		rec.AddWarning(fmt.Sprintf("unparseable rate %q, treating category as exempt", rateCell))
	}
	return decimal.Zero
}

func (p *RowParser) resolveDates(rec *NormalizedRecord, startCell, endCell, dateCell string) {
	parse := func(s, label string) (time.Time, bool) {
		if s == "" {
			return time.Time{}, false
		}
		d, err := normalize.ParseDate(s)
		if err != nil {
			rec.AddWarning(fmt.Sprintf("unparseable %s date %q", label, s))
			return time.Time{}, false
		}
		return d, true
	}

	start, hasStart := parse(startCell, "period start")
	end, hasEnd := parse(endCell, "period end")
	single, hasSingle := parse(dateCell, "emission")

	switch {
	case hasStart && hasEnd:
		rec.PeriodStart, rec.PeriodEnd = start, end
	case hasStart:
		rec.PeriodStart, rec.PeriodEnd = start, start
	case hasEnd:
		rec.PeriodStart, rec.PeriodEnd = end, end
	case hasSingle:
		// best-available single date stands in for the whole period
		rec.PeriodStart, rec.PeriodEnd = single, single
	default:
		rec.AddWarning("no usable date on row")
	}
}

func (p *RowParser) parseMoney(rec *NormalizedRecord, s, label string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := normalize.ParseAmount(s)
	if err != nil {
		rec.AddWarning(fmt.Sprintf("unparseable %s amount %q", label, s))
		return nil
	}
	return &d
}
