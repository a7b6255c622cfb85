package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/parser"
)

type sliceSource []*parser.NormalizedRecord

func (s sliceSource) All(_ context.Context) ([]*parser.NormalizedRecord, error) {
	return s, nil
}

func record(taxID, name string, cat constants.Category, gross, withheld string, date time.Time) *parser.NormalizedRecord {
	g := decimal.RequireFromString(gross)
	w := decimal.RequireFromString(withheld)
	return &parser.NormalizedRecord{
		TaxID:       taxID,
		IssuerName:  name,
		Category:    cat,
		Gross:       g,
		Withheld:    w,
		Net:         g.Sub(w),
		PeriodStart: date,
		PeriodEnd:   date,
	}
}

func TestFromRecord(t *testing.T) {
	rec := record("123456789", "Maria Santos", constants.IndependentWork,
		"450.00", "103.50", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))

	row := FromRecord(rec)
	assert.Equal(t, "123456789", row.BeneficiaryNIF)
	assert.Equal(t, "B", row.CategoryCode)
	assert.Equal(t, "450.00", row.Gross.StringFixed(2))
	assert.Equal(t, "103.50", row.Withheld.StringFixed(2))
	assert.Equal(t, "0.23", row.EffectiveRate.String())
	assert.Equal(t, "C", row.RegionCode)
	assert.Equal(t, "2024-03-15", row.PaymentDate)
}

func TestFromRecordRentalCode(t *testing.T) {
	rec := record("508721903", "António Silva", constants.Rental,
		"600.00", "150.00", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "F", FromRecord(rec).CategoryCode)
}

func TestDeclarationXLSX(t *testing.T) {
	src := sliceSource{
		record("123456789", "Maria Santos", constants.IndependentWork,
			"450.00", "103.50", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		record("508721903", "António Silva", constants.Rental,
			"600.00", "150.00", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)),
		// previous year, must be excluded
		record("215639847", "Old Issuer", constants.IndependentWork,
			"100.00", "23.00", time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)),
	}

	svc := NewService(src, nil)
	xlsx, err := svc.DeclarationXLSX(context.Background(), 2024)
	require.NoError(t, err)
	require.NotEmpty(t, xlsx)

	f, err := excelize.OpenReader(bytes.NewReader(xlsx))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Declaration")
	require.NoError(t, err)
	// header, two declared lines, totals
	require.Len(t, rows, 4)

	assert.Equal(t, "Beneficiary NIF", rows[0][0])
	assert.Equal(t, []string{"123456789", "Maria Santos", "B", "450.00", "103.50", "0.23", "C", "2024-03-15"}, rows[1])
	assert.Equal(t, "508721903", rows[2][0])
	assert.Equal(t, "F", rows[2][2])

	assert.Equal(t, "TOTAL", rows[3][0])
	assert.Equal(t, "1050.00", rows[3][3])
	assert.Equal(t, "253.50", rows[3][4])
}

func TestDeclarationXLSXKeepsUndatedRecords(t *testing.T) {
	undated := record("123456789", "Maria Santos", constants.IndependentWork,
		"450.00", "103.50", time.Time{})

	svc := NewService(sliceSource{undated}, nil)
	xlsx, err := svc.DeclarationXLSX(context.Background(), 2024)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(xlsx))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Declaration")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "123456789", rows[1][0])
	// payment date stays blank
	assert.Less(t, len(rows[1]), 8)
}
