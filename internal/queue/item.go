package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tmduarte/declara/constants"
)

// Item is one unit of asynchronous document-processing work. The binary
// content stays behind PayloadRef; the queue only ever moves metadata.
type Item struct {
	ID          uuid.UUID
	BatchID     uuid.UUID
	PayloadRef  string
	PayloadSHA  string
	Year        int
	Status      constants.ItemStatus
	Attempts    int
	MaxAttempts int

	// populated on completion
	Confidence    *float32
	ExtractedJSON []byte
	NeedsReview   bool
	Warnings      []string

	LastError  string
	EnqueuedAt time.Time
	UpdatedAt  time.Time
}

// Progress is the per-batch aggregate view callers poll while a batch runs.
type Progress struct {
	Pending          int
	Processing       int
	Completed        int
	Failed           int
	ExtractedRecords int
}

// Done reports whether no further work remains in the batch.
func (p Progress) Done() bool { return p.Pending == 0 && p.Processing == 0 }

// Store is the persisted work-item table. Claiming must be atomic with
// respect to other workers (conditional update, not an in-process map), so
// the pool can later scale past one process without redesign.
type Store interface {
	CreateBatch(ctx context.Context, batchID uuid.UUID, year int) error
	Enqueue(ctx context.Context, items []*Item) error
	// HasPayload reports whether a byte-identical payload is already queued
	// in the batch.
	HasPayload(ctx context.Context, batchID uuid.UUID, sha string) (bool, error)
	// ClaimNext atomically moves one pending item of the batch to
	// processing and increments its attempts. Returns nil when the batch
	// has no claimable item (none pending, or batch canceled).
	ClaimNext(ctx context.Context, batchID uuid.UUID) (*Item, error)
	MarkCompleted(ctx context.Context, item *Item) error
	MarkFailed(ctx context.Context, itemID uuid.UUID, reason string) error
	// Retry moves a failed item back to pending, only while attempts are
	// below the item's bound. Exhausted items stay failed.
	Retry(ctx context.Context, itemID uuid.UUID) error
	CancelBatch(ctx context.Context, batchID uuid.UUID) error
	Progress(ctx context.Context, batchID uuid.UUID) (Progress, error)
	Get(ctx context.Context, itemID uuid.UUID) (*Item, error)
}
