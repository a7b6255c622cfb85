package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/common"
	"github.com/tmduarte/declara/internal/parser"
)

// RecordRepository persists normalized income records. It doubles as the
// dedup lookup and the queue's record sink.
type RecordRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) *RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordRepository{db: db, logger: logger}
}

// SaveRecord inserts the record, or replaces the stored row when one already
// exists for the same reference and counterparty (the merge/overwrite path).
func (r *RecordRepository) SaveRecord(ctx context.Context, rec *parser.NormalizedRecord) error {
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}

	if rec.Reference != "" {
		res, err := r.db.SQL.ExecContext(ctx, r.db.rebind(`
			UPDATE record SET
				source_file = ?, source_row = ?, tax_id = ?, issuer_name = ?,
				payer_name = ?, counterparty_key = ?, period_start = ?, period_end = ?,
				gross = ?, withheld = ?, net = ?, nominal_rate = ?, category = ?, warnings = ?
			WHERE reference = ? AND counterparty_key = ?`),
			rec.SourceFile, rec.SourceRow, rec.TaxID, rec.IssuerName,
			rec.PayerName, rec.CounterpartyKey(), fmtTime(rec.PeriodStart), fmtTime(rec.PeriodEnd),
			rec.Gross.String(), rec.Withheld.String(), rec.Net.String(),
			rec.NominalRate.String(), string(rec.Category), string(warnings),
			rec.Reference, rec.CounterpartyKey(),
		)
		if err != nil {
			return common.WrapError(err, "update record")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			r.logger.Debug("record.save.replaced", "reference", rec.Reference)
			return nil
		}
	}

	_, err = r.db.SQL.ExecContext(ctx, r.db.rebind(`
		INSERT INTO record (
			id, source_file, source_row, reference, tax_id, issuer_name, payer_name,
			counterparty_key, period_start, period_end, gross, withheld, net,
			nominal_rate, category, warnings, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), rec.SourceFile, rec.SourceRow, rec.Reference, rec.TaxID,
		rec.IssuerName, rec.PayerName, rec.CounterpartyKey(),
		fmtTime(rec.PeriodStart), fmtTime(rec.PeriodEnd),
		rec.Gross.String(), rec.Withheld.String(), rec.Net.String(),
		rec.NominalRate.String(), string(rec.Category), string(warnings),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return common.WrapError(err, "insert record")
	}
	r.logger.Debug("record.save.inserted", "counterparty", rec.CounterpartyKey())
	return nil
}

// FindCandidates returns persisted records for the counterparty whose period
// end falls within the day window around the given date.
func (r *RecordRepository) FindCandidates(ctx context.Context, counterpartyKey string, around time.Time, windowDays int) ([]*parser.NormalizedRecord, error) {
	query := `SELECT source_file, source_row, reference, tax_id, issuer_name, payer_name,
		period_start, period_end, gross, withheld, net, nominal_rate, category, warnings
		FROM record WHERE counterparty_key = ?`
	args := []any{counterpartyKey}
	if !around.IsZero() {
		// RFC 3339 strings order lexically, so BETWEEN works on TEXT
		window := time.Duration(windowDays) * 24 * time.Hour
		query += ` AND period_end >= ? AND period_end <= ?`
		args = append(args,
			around.Add(-window).UTC().Format(time.RFC3339),
			around.Add(window).UTC().Format(time.RFC3339),
		)
	}

	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, common.WrapError(err, "query candidates")
	}
	defer rows.Close()

	var out []*parser.NormalizedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// All returns every persisted record, for summary rebuilds and exports.
func (r *RecordRepository) All(ctx context.Context) ([]*parser.NormalizedRecord, error) {
	rows, err := r.db.SQL.QueryContext(ctx, `SELECT source_file, source_row, reference, tax_id,
		issuer_name, payer_name, period_start, period_end, gross, withheld, net,
		nominal_rate, category, warnings FROM record ORDER BY counterparty_key, period_end`)
	if err != nil {
		return nil, common.WrapError(err, "query records")
	}
	defer rows.Close()

	var out []*parser.NormalizedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (*parser.NormalizedRecord, error) {
	var (
		rec                   parser.NormalizedRecord
		start, end            string
		gross, withheld, net  string
		rate, category, warns string
	)
	if err := rows.Scan(&rec.SourceFile, &rec.SourceRow, &rec.Reference, &rec.TaxID,
		&rec.IssuerName, &rec.PayerName, &start, &end,
		&gross, &withheld, &net, &rate, &category, &warns); err != nil {
		return nil, common.WrapError(err, "scan record")
	}

	var err error
	if rec.PeriodStart, err = parseTime(start); err != nil {
		return nil, err
	}
	if rec.PeriodEnd, err = parseTime(end); err != nil {
		return nil, err
	}
	if rec.Gross, err = decimal.NewFromString(gross); err != nil {
		return nil, fmt.Errorf("stored gross %q: %w", gross, err)
	}
	if rec.Withheld, err = decimal.NewFromString(withheld); err != nil {
		return nil, fmt.Errorf("stored withheld %q: %w", withheld, err)
	}
	if rec.Net, err = decimal.NewFromString(net); err != nil {
		return nil, fmt.Errorf("stored net %q: %w", net, err)
	}
	if rec.NominalRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("stored rate %q: %w", rate, err)
	}
	rec.Category = constants.Category(category)
	if err := json.Unmarshal([]byte(warns), &rec.Warnings); err != nil {
		return nil, fmt.Errorf("stored warnings: %w", err)
	}
	return &rec, nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
