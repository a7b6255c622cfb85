package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/tmduarte/declara/internal/parser"
)

// DeclarationRow is one line of the annual withholding declaration, in the
// shape the filing expects: income category as its letter code, amounts with
// two decimals, beneficiary identified by tax number.
type DeclarationRow struct {
	BeneficiaryNIF  string
	BeneficiaryName string
	CategoryCode    string
	Gross           decimal.Decimal
	Withheld        decimal.Decimal
	EffectiveRate   decimal.Decimal
	RegionCode      string
	PaymentDate     string
}

// FromRecord maps a normalized record onto a declaration line. Mainland is
// the default region; island regimes are a manual correction on the filing
// side.
func FromRecord(rec *parser.NormalizedRecord) DeclarationRow {
	row := DeclarationRow{
		BeneficiaryNIF:  rec.TaxID,
		BeneficiaryName: rec.IssuerName,
		CategoryCode:    rec.Category.DeclarationCode(),
		Gross:           rec.Gross.Round(2),
		Withheld:        rec.Withheld.Round(2),
		EffectiveRate:   rec.EffectiveRate(),
		RegionCode:      "C",
	}
	if d := rec.BestDate(); !d.IsZero() {
		row.PaymentDate = d.Format("2006-01-02")
	}
	return row
}

// RecordSource yields the persisted records to declare. Backed by the record
// repository in production.
type RecordSource interface {
	All(ctx context.Context) ([]*parser.NormalizedRecord, error)
}

// Service produces XLSX bytes for the annual declaration.
type Service struct {
	records RecordSource
	logger  *slog.Logger
}

func NewService(records RecordSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// DeclarationXLSX returns a workbook with one line per persisted record of
// the given year, plus a totals line. Records without a usable date are
// included with the date column blank rather than silently dropped.
func (s *Service) DeclarationXLSX(ctx context.Context, year int) ([]byte, error) {
	start := time.Now()

	recs, err := s.records.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Declaration"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{
		"Beneficiary NIF",
		"Beneficiary Name",
		"Category",
		"Gross",
		"Withheld",
		"Effective Rate",
		"Region",
		"Payment Date",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	totalGross, totalWithheld := decimal.Zero, decimal.Zero
	rowNum := 2
	for _, rec := range recs {
		if d := rec.BestDate(); !d.IsZero() && d.Year() != year {
			continue
		}
		row := FromRecord(rec)
		write(1, rowNum, row.BeneficiaryNIF)
		write(2, rowNum, row.BeneficiaryName)
		write(3, rowNum, row.CategoryCode)
		write(4, rowNum, row.Gross.StringFixed(2))
		write(5, rowNum, row.Withheld.StringFixed(2))
		write(6, rowNum, row.EffectiveRate.String())
		write(7, rowNum, row.RegionCode)
		write(8, rowNum, row.PaymentDate)
		totalGross = totalGross.Add(row.Gross)
		totalWithheld = totalWithheld.Add(row.Withheld)
		rowNum++
	}

	write(1, rowNum, "TOTAL")
	write(4, rowNum, totalGross.StringFixed(2))
	write(5, rowNum, totalWithheld.StringFixed(2))

	_ = f.SetColWidth(sheet, "A", "A", 14)
	_ = f.SetColWidth(sheet, "B", "B", 28)
	_ = f.SetColWidth(sheet, "D", "F", 12)
	_ = f.SetColWidth(sheet, "H", "H", 14)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "year", year, "rows", rowNum-2, "duration", time.Since(start))
	return buf.Bytes(), nil
}
