package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/common"
	"github.com/tmduarte/declara/internal/queue"
)

// QueueStore is the SQL-backed work-item table. Claims go through a
// conditional update so concurrent workers never hand out the same item.
type QueueStore struct {
	db     *DB
	logger *slog.Logger
}

func NewQueueStore(db *DB, logger *slog.Logger) *QueueStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueStore{db: db, logger: logger}
}

var _ queue.Store = (*QueueStore)(nil)

func (s *QueueStore) CreateBatch(ctx context.Context, batchID uuid.UUID, year int) error {
	_, err := s.db.SQL.ExecContext(ctx,
		s.db.rebind(`INSERT INTO batch (id, year, canceled, created_at) VALUES (?, ?, 0, ?)`),
		batchID.String(), year, time.Now().UTC().Format(time.RFC3339),
	)
	return common.WrapError(err, "create batch")
}

func (s *QueueStore) Enqueue(ctx context.Context, items []*queue.Item) error {
	tx, err := s.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin enqueue")
	}
	defer tx.Rollback()

	stmt := s.db.rebind(`INSERT INTO queue_item (
		id, batch_id, payload_ref, payload_sha, year, status, attempts, max_attempts,
		needs_review, warnings, last_error, enqueued_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, 0, ?, 0, '[]', '', ?, ?)`)
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, stmt,
			it.ID.String(), it.BatchID.String(), it.PayloadRef, it.PayloadSHA,
			it.Year, string(it.Status), it.MaxAttempts,
			it.EnqueuedAt.UTC().Format(time.RFC3339), it.UpdatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return common.WrapError(err, "insert queue item")
		}
	}
	return common.WrapError(tx.Commit(), "commit enqueue")
}

func (s *QueueStore) HasPayload(ctx context.Context, batchID uuid.UUID, sha string) (bool, error) {
	if sha == "" {
		return false, nil
	}
	var n int
	err := s.db.SQL.QueryRowContext(ctx,
		s.db.rebind(`SELECT COUNT(*) FROM queue_item WHERE batch_id = ? AND payload_sha = ?`),
		batchID.String(), sha,
	).Scan(&n)
	if err != nil {
		return false, common.WrapError(err, "payload lookup")
	}
	return n > 0, nil
}

// ClaimNext picks the oldest pending item of a live batch and flips it to
// processing with a conditional update. Losing the race to another worker
// just means trying the next candidate.
func (s *QueueStore) ClaimNext(ctx context.Context, batchID uuid.UUID) (*queue.Item, error) {
	for {
		var id string
		err := s.db.SQL.QueryRowContext(ctx, s.db.rebind(`
			SELECT qi.id FROM queue_item qi
			JOIN batch b ON b.id = qi.batch_id
			WHERE qi.batch_id = ? AND qi.status = ? AND b.canceled = 0
			ORDER BY qi.enqueued_at, qi.id LIMIT 1`),
			batchID.String(), string(constants.ItemStatusPending),
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, common.WrapError(err, "select claimable")
		}

		res, err := s.db.SQL.ExecContext(ctx, s.db.rebind(`
			UPDATE queue_item SET status = ?, attempts = attempts + 1, updated_at = ?
			WHERE id = ? AND status = ?`),
			string(constants.ItemStatusProcessing), time.Now().UTC().Format(time.RFC3339),
			id, string(constants.ItemStatusPending),
		)
		if err != nil {
			return nil, common.WrapError(err, "claim item")
		}
		if n, err := res.RowsAffected(); err != nil {
			return nil, common.WrapError(err, "claim item")
		} else if n == 0 {
			// another worker won this one
			continue
		}
		return s.get(ctx, id)
	}
}

func (s *QueueStore) MarkCompleted(ctx context.Context, item *queue.Item) error {
	warnings, err := json.Marshal(item.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	var confidence any
	if item.Confidence != nil {
		confidence = float64(*item.Confidence)
	}
	res, err := s.db.SQL.ExecContext(ctx, s.db.rebind(`
		UPDATE queue_item SET status = ?, confidence = ?, extracted_json = ?,
			needs_review = ?, warnings = ?, last_error = '', updated_at = ?
		WHERE id = ? AND status = ?`),
		string(constants.ItemStatusCompleted), confidence, string(item.ExtractedJSON),
		boolToInt(item.NeedsReview), string(warnings), time.Now().UTC().Format(time.RFC3339),
		item.ID.String(), string(constants.ItemStatusProcessing),
	)
	if err != nil {
		return common.WrapError(err, "complete item")
	}
	return requireOneRow(res, "complete", item.ID)
}

func (s *QueueStore) MarkFailed(ctx context.Context, itemID uuid.UUID, reason string) error {
	res, err := s.db.SQL.ExecContext(ctx, s.db.rebind(`
		UPDATE queue_item SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND status = ?`),
		string(constants.ItemStatusFailed), reason, time.Now().UTC().Format(time.RFC3339),
		itemID.String(), string(constants.ItemStatusProcessing),
	)
	if err != nil {
		return common.WrapError(err, "fail item")
	}
	return requireOneRow(res, "fail", itemID)
}

func (s *QueueStore) Retry(ctx context.Context, itemID uuid.UUID) error {
	res, err := s.db.SQL.ExecContext(ctx, s.db.rebind(`
		UPDATE queue_item SET status = ?, last_error = '', updated_at = ?
		WHERE id = ? AND status = ? AND attempts < max_attempts`),
		string(constants.ItemStatusPending), time.Now().UTC().Format(time.RFC3339),
		itemID.String(), string(constants.ItemStatusFailed),
	)
	if err != nil {
		return common.WrapError(err, "retry item")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, "retry item")
	}
	if n == 0 {
		return common.NewAppError("RETRY_REFUSED",
			fmt.Sprintf("item %s is not failed or has exhausted its attempts", itemID),
			common.ErrInvalidInput)
	}
	s.logger.Info("queue.item.retried", "item", itemID)
	return nil
}

func (s *QueueStore) CancelBatch(ctx context.Context, batchID uuid.UUID) error {
	_, err := s.db.SQL.ExecContext(ctx,
		s.db.rebind(`UPDATE batch SET canceled = 1 WHERE id = ?`), batchID.String())
	return common.WrapError(err, "cancel batch")
}

func (s *QueueStore) Progress(ctx context.Context, batchID uuid.UUID) (queue.Progress, error) {
	var p queue.Progress
	rows, err := s.db.SQL.QueryContext(ctx, s.db.rebind(`
		SELECT status, COUNT(*),
			SUM(CASE WHEN extracted_json IS NOT NULL AND extracted_json != '' THEN 1 ELSE 0 END)
		FROM queue_item WHERE batch_id = ? GROUP BY status`),
		batchID.String(),
	)
	if err != nil {
		return p, common.WrapError(err, "batch progress")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count, extracted int
		if err := rows.Scan(&status, &count, &extracted); err != nil {
			return p, common.WrapError(err, "scan progress")
		}
		switch constants.ItemStatus(status) {
		case constants.ItemStatusPending:
			p.Pending = count
		case constants.ItemStatusProcessing:
			p.Processing = count
		case constants.ItemStatusCompleted:
			p.Completed = count
			p.ExtractedRecords = extracted
		case constants.ItemStatusFailed:
			p.Failed = count
		}
	}
	return p, rows.Err()
}

func (s *QueueStore) Get(ctx context.Context, itemID uuid.UUID) (*queue.Item, error) {
	return s.get(ctx, itemID.String())
}

func (s *QueueStore) get(ctx context.Context, id string) (*queue.Item, error) {
	var (
		it                  queue.Item
		idStr, batchStr     string
		status, warns       string
		confidence          sql.NullFloat64
		extracted           sql.NullString
		needsReview         int
		enqueuedAt, updated string
	)
	err := s.db.SQL.QueryRowContext(ctx, s.db.rebind(`
		SELECT id, batch_id, payload_ref, payload_sha, year, status, attempts,
			max_attempts, confidence, extracted_json, needs_review, warnings,
			last_error, enqueued_at, updated_at
		FROM queue_item WHERE id = ?`), id,
	).Scan(&idStr, &batchStr, &it.PayloadRef, &it.PayloadSHA, &it.Year, &status,
		&it.Attempts, &it.MaxAttempts, &confidence, &extracted, &needsReview,
		&warns, &it.LastError, &enqueuedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("NOT_FOUND", fmt.Sprintf("queue item %s", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, common.WrapError(err, "get queue item")
	}

	if it.ID, err = uuid.Parse(idStr); err != nil {
		return nil, fmt.Errorf("stored item id %q: %w", idStr, err)
	}
	if it.BatchID, err = uuid.Parse(batchStr); err != nil {
		return nil, fmt.Errorf("stored batch id %q: %w", batchStr, err)
	}
	it.Status = constants.ItemStatus(status)
	if confidence.Valid {
		c := float32(confidence.Float64)
		it.Confidence = &c
	}
	if extracted.Valid && extracted.String != "" {
		it.ExtractedJSON = []byte(extracted.String)
	}
	it.NeedsReview = needsReview != 0
	if err := json.Unmarshal([]byte(warns), &it.Warnings); err != nil {
		return nil, fmt.Errorf("stored warnings: %w", err)
	}
	if it.EnqueuedAt, err = parseTime(enqueuedAt); err != nil {
		return nil, err
	}
	if it.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &it, nil
}

func requireOneRow(res sql.Result, op string, itemID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.WrapError(err, op)
	}
	if n == 0 {
		return common.NewAppError("INVALID_TRANSITION",
			fmt.Sprintf("cannot %s item %s, not in processing state", op, itemID),
			common.ErrInvalidInput)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
