package parser

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/colmap"
	"github.com/tmduarte/declara/internal/common"
	"github.com/tmduarte/declara/internal/reconcile"
)

// Layout is one of the two known portal export shapes, detected heuristically
// from filename hints and header vocabulary.
type Layout string

const (
	LayoutUnknown         Layout = "unknown"
	LayoutIndependentWork Layout = "independent_work"
	LayoutRental          Layout = "rental"
)

// DefaultCategory is the income category a layout implies when the row
// carries no usable category column.
func (l Layout) DefaultCategory() constants.Category {
	if l == LayoutRental {
		return constants.Rental
	}
	return constants.IndependentWork
}

// DetectLayout classifies an export from its filename and header vocabulary.
func DetectLayout(filename string, headers []string) Layout {
	name := colmap.Fold(filename)
	if strings.Contains(name, "renda") || strings.Contains(name, "arrendamento") {
		return LayoutRental
	}
	if strings.Contains(name, "recibo") || strings.Contains(name, "verde") {
		return LayoutIndependentWork
	}

	for _, h := range headers {
		folded := colmap.Fold(h)
		switch {
		case strings.Contains(folded, "arrendatario"),
			strings.Contains(folded, "locatario"),
			strings.Contains(folded, "renda"):
			return LayoutRental
		case strings.Contains(folded, "importancia recebida"),
			strings.Contains(folded, "adquirente"),
			strings.Contains(folded, "prestacao de servicos"):
			return LayoutIndependentWork
		}
	}
	return LayoutUnknown
}

// RowError records a skipped data row: one bad row never aborts the file.
type RowError struct {
	Row    int
	Reason string
}

// ParseResult is the outcome of parsing one export file. Success means at
// least one row produced a record, not zero errors; callers always get the
// processed/skipped/warned counts, never just a boolean.
type ParseResult struct {
	SourceFile string
	Layout     Layout
	Records    []*NormalizedRecord
	RowErrors  []RowError
	Processed  int
	Skipped    int
	Warned     int
}

// OK reports whether the file yielded at least one record.
func (r *ParseResult) OK() bool { return len(r.Records) > 0 }

// FileParser parses whole portal export files. Parsing is synchronous and
// single-threaded per file; rows have no cross-row dependency.
type FileParser struct {
	synonyms colmap.SynonymTable
	rows     *RowParser
	logger   *slog.Logger
}

func NewFileParser(synonyms colmap.SynonymTable, tol reconcile.Tolerances, logger *slog.Logger) *FileParser {
	if logger == nil {
		logger = slog.Default()
	}
	if synonyms == nil {
		synonyms = colmap.DefaultSynonyms()
	}
	return &FileParser{
		synonyms: synonyms,
		rows:     NewRowParser(tol, logger),
		logger:   logger,
	}
}

// ParseFile reads one spreadsheet export and normalizes its rows. year is the
// declaration year used for statutory rate lookups. Structural problems
// (unreadable file, no header row, no data rows) fail the whole file; row
// problems are collected in the result.
func (p *FileParser) ParseFile(path string, year int) (*ParseResult, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	return p.ParseRows(filepath.Base(path), rows, year)
}

// ParseRows runs the same pipeline over already-loaded rows. The first row
// with at least two non-empty cells is the header row.
func (p *FileParser) ParseRows(sourceFile string, rows [][]string, year int) (*ParseResult, error) {
	headerIdx := -1
	for i, r := range rows {
		if countNonEmpty(r) >= 2 {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return nil, common.NewStructuralError(fmt.Sprintf("%s: no header row", sourceFile), nil)
	}
	hasData := false
	for i := headerIdx + 1; i < len(rows); i++ {
		if countNonEmpty(rows[i]) > 0 {
			hasData = true
			break
		}
	}
	if !hasData {
		return nil, common.NewStructuralError(fmt.Sprintf("%s: no data rows", sourceFile), nil)
	}

	headers := rows[headerIdx]
	cm := colmap.Map(headers, p.synonyms)
	layout := DetectLayout(sourceFile, headers)

	result := &ParseResult{SourceFile: sourceFile, Layout: layout}
	for i := headerIdx + 1; i < len(rows); i++ {
		if countNonEmpty(rows[i]) == 0 {
			continue
		}
		rowNum := i + 1 // 1-based, as spreadsheets number them
		rec, err := p.rows.ParseRow(result.SourceFile, rowNum, cm, rows[i], layout, year)
		if err != nil {
			result.RowErrors = append(result.RowErrors, RowError{Row: rowNum, Reason: err.Error()})
			result.Skipped++
			p.logger.Warn("sheet.row.skipped", "file", result.SourceFile, "row", rowNum, "reason", err.Error())
			continue
		}
		result.Records = append(result.Records, rec)
		result.Processed++
		if len(rec.Warnings) > 0 {
			result.Warned++
		}
	}

	if len(result.Records) == 0 && len(result.RowErrors) > 0 {
		p.logger.Error("sheet.parse.empty", "file", result.SourceFile, "skipped", result.Skipped)
	} else {
		p.logger.Info("sheet.parse.ok",
			"file", result.SourceFile, "layout", string(layout),
			"processed", result.Processed, "skipped", result.Skipped, "warned", result.Warned,
		)
	}
	return result, nil
}

func countNonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// readRows loads the tabular content of a portal export. xlsx goes through
// excelize, legacy xls through the BIFF reader.
func readRows(path string) ([][]string, error) {
	switch constants.NormalizeExt(filepath.Ext(path)) {
	case "xlsx":
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, common.NewStructuralError(fmt.Sprintf("open %s", path), err)
		}
		defer func() { _ = f.Close() }()
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, common.NewStructuralError(fmt.Sprintf("%s: workbook has no sheets", path), nil)
		}
		rows, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, common.NewStructuralError(fmt.Sprintf("read %s", path), err)
		}
		return rows, nil

	case "xls":
		wb, err := xls.Open(path, "utf-8")
		if err != nil {
			return nil, common.NewStructuralError(fmt.Sprintf("open %s", path), err)
		}
		sheet := wb.GetSheet(0)
		if sheet == nil {
			return nil, common.NewStructuralError(fmt.Sprintf("%s: workbook has no sheets", path), nil)
		}
		rows := make([][]string, 0, int(sheet.MaxRow)+1)
		for i := 0; i <= int(sheet.MaxRow); i++ {
			row := sheet.Row(i)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := 0; c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			rows = append(rows, cells)
		}
		return rows, nil
	}
	return nil, common.NewStructuralError(fmt.Sprintf("%s: unsupported spreadsheet format", path), nil)
}
