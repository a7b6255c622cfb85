package repository

import (
	"context"
	"fmt"
	"log/slog"
)

// Schema is written in the portable subset both backends accept: TEXT ids
// (uuid strings), amounts as exact decimal strings, timestamps as RFC 3339
// TEXT, booleans as 0/1 integers.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS batch (
		id         TEXT PRIMARY KEY,
		year       INTEGER NOT NULL,
		canceled   INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS queue_item (
		id             TEXT PRIMARY KEY,
		batch_id       TEXT NOT NULL REFERENCES batch(id),
		payload_ref    TEXT NOT NULL,
		payload_sha    TEXT NOT NULL DEFAULT '',
		year           INTEGER NOT NULL,
		status         TEXT NOT NULL,
		attempts       INTEGER NOT NULL DEFAULT 0,
		max_attempts   INTEGER NOT NULL,
		confidence     REAL,
		extracted_json TEXT,
		needs_review   INTEGER NOT NULL DEFAULT 0,
		warnings       TEXT NOT NULL DEFAULT '[]',
		last_error     TEXT NOT NULL DEFAULT '',
		enqueued_at    TEXT NOT NULL,
		updated_at     TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_item_claim ON queue_item (batch_id, status, enqueued_at)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_item_sha ON queue_item (batch_id, payload_sha)`,
	`CREATE TABLE IF NOT EXISTS record (
		id               TEXT PRIMARY KEY,
		source_file      TEXT NOT NULL,
		source_row       INTEGER NOT NULL DEFAULT 0,
		reference        TEXT NOT NULL DEFAULT '',
		tax_id           TEXT NOT NULL DEFAULT '',
		issuer_name      TEXT NOT NULL DEFAULT '',
		payer_name       TEXT NOT NULL DEFAULT '',
		counterparty_key TEXT NOT NULL,
		period_start     TEXT NOT NULL DEFAULT '',
		period_end       TEXT NOT NULL DEFAULT '',
		gross            TEXT NOT NULL,
		withheld         TEXT NOT NULL,
		net              TEXT NOT NULL,
		nominal_rate     TEXT NOT NULL,
		category         TEXT NOT NULL,
		warnings         TEXT NOT NULL DEFAULT '[]',
		created_at       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_record_counterparty ON record (counterparty_key, period_end)`,
}

// Migrate applies the schema. Statements are idempotent, so running on every
// startup is safe.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range migrations {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("db.migrate.ok", "statements", len(migrations))
	return nil
}
