package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/dedup"
	"github.com/tmduarte/declara/internal/extract"
	"github.com/tmduarte/declara/internal/parser"
)

// RecordSink receives records extracted with high confidence. Backed by the
// record repository in production.
type RecordSink interface {
	SaveRecord(ctx context.Context, rec *parser.NormalizedRecord) error
}

// Processor drains a batch of queued uploads through the recognition
// collaborator with a bounded worker pool. Item failures are isolated: one
// bad scan never stalls the batch.
type Processor struct {
	store     Store
	extractor extract.FieldExtractor
	rows      *parser.RowParser
	dedup     *dedup.Engine
	sink      RecordSink
	logger    *slog.Logger

	workers        int
	timeout        time.Duration
	maxAttempts    int
	highConfidence float32
	policy         dedup.Policy
}

// Option configures a Processor.
type Option func(*Processor)

func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func WithHighConfidenceThreshold(v float32) Option {
	return func(p *Processor) { p.highConfidence = v }
}

// WithRecordSink enables persistence of high-confidence extractions, routed
// through the duplicate engine first.
func WithRecordSink(sink RecordSink, engine *dedup.Engine, policy dedup.Policy) Option {
	return func(p *Processor) {
		p.sink = sink
		p.dedup = engine
		p.policy = policy
	}
}

func NewProcessor(store Store, extractor extract.FieldExtractor, rows *parser.RowParser, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		store:          store,
		extractor:      extractor,
		rows:           rows,
		logger:         logger,
		workers:        5,
		timeout:        3 * time.Minute,
		maxAttempts:    3,
		highConfidence: 0.85,
		policy:         dedup.PolicySkip,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EnqueueResult summarizes what Enqueue did with the given payload refs.
type EnqueueResult struct {
	BatchID    uuid.UUID
	Enqueued   int
	Duplicates int
}

// Enqueue registers a batch of uploaded documents for a declaration year.
// Payloads are content-hashed on the way in; a byte-identical payload already
// queued in the batch is flagged and not queued again.
func (p *Processor) Enqueue(ctx context.Context, payloadRefs []string, year int) (EnqueueResult, error) {
	res := EnqueueResult{BatchID: uuid.New()}
	if err := p.store.CreateBatch(ctx, res.BatchID, year); err != nil {
		return res, fmt.Errorf("create batch: %w", err)
	}

	var items []*Item
	for _, ref := range payloadRefs {
		sha, err := hashPayload(ref)
		if err != nil {
			p.logger.Warn("queue.enqueue.hash_failed", "payload", ref, "error", err)
		}
		if sha != "" {
			dup, err := p.store.HasPayload(ctx, res.BatchID, sha)
			if err != nil {
				return res, fmt.Errorf("payload lookup: %w", err)
			}
			if dup || containsSHA(items, sha) {
				p.logger.Info("queue.enqueue.duplicate_payload", "payload", ref, "sha256", sha)
				res.Duplicates++
				continue
			}
		}
		now := time.Now().UTC()
		items = append(items, &Item{
			ID:          uuid.New(),
			BatchID:     res.BatchID,
			PayloadRef:  ref,
			PayloadSHA:  sha,
			Year:        year,
			Status:      constants.ItemStatusPending,
			MaxAttempts: p.maxAttempts,
			EnqueuedAt:  now,
			UpdatedAt:   now,
		})
	}
	if len(items) > 0 {
		if err := p.store.Enqueue(ctx, items); err != nil {
			return res, fmt.Errorf("enqueue items: %w", err)
		}
	}
	res.Enqueued = len(items)
	p.logger.Info("queue.enqueue.ok", "batch", res.BatchID, "enqueued", res.Enqueued, "duplicates", res.Duplicates)
	return res, nil
}

// ProcessBatch runs the worker pool until the batch has no claimable items
// or ctx is canceled. Canceling stops workers from claiming further items;
// items already in flight run to completion on their own timeout.
func (p *Processor) ProcessBatch(ctx context.Context, batchID uuid.UUID) (Progress, error) {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.drain(ctx, batchID, worker)
		}(i)
	}
	wg.Wait()

	// progress read happens off the batch ctx, which may be canceled by now
	reportCtx, cancel := storeContext()
	defer cancel()
	return p.store.Progress(reportCtx, batchID)
}

// Cancel marks the batch canceled so no further items are claimed. In-flight
// items finish normally.
func (p *Processor) Cancel(ctx context.Context, batchID uuid.UUID) error {
	if err := p.store.CancelBatch(ctx, batchID); err != nil {
		return fmt.Errorf("cancel batch: %w", err)
	}
	p.logger.Info("queue.batch.canceled", "batch", batchID)
	return nil
}

// Retry re-queues a failed item while it still has attempts left.
func (p *Processor) Retry(ctx context.Context, itemID uuid.UUID) error {
	return p.store.Retry(ctx, itemID)
}

// Progress reports the batch counters.
func (p *Processor) Progress(ctx context.Context, batchID uuid.UUID) (Progress, error) {
	return p.store.Progress(ctx, batchID)
}

func (p *Processor) drain(ctx context.Context, batchID uuid.UUID, worker int) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("queue.worker.stopped", "worker", worker, "reason", ctx.Err())
			return
		}
		item, err := p.store.ClaimNext(ctx, batchID)
		if err != nil {
			p.logger.Error("queue.claim.failed", "worker", worker, "error", err)
			return
		}
		if item == nil {
			return
		}
		p.processItem(item, worker)
	}
}

// processItem runs one item end to end on a detached timeout context, so a
// batch cancel never aborts work already claimed.
func (p *Processor) processItem(item *Item, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	started := time.Now()
	res, err := p.extractor.ExtractFields(ctx, extract.Document{PayloadRef: item.PayloadRef, Year: item.Year})
	if err != nil {
		p.fail(item, fmt.Sprintf("extraction: %v", err))
		return
	}

	raw := res.Raw
	if len(raw) == 0 {
		raw, err = json.Marshal(res.Fields)
		if err != nil {
			p.fail(item, fmt.Sprintf("encode fields: %v", err))
			return
		}
	} else if err := extract.ValidatePayload(raw); err != nil {
		p.fail(item, fmt.Sprintf("payload rejected: %v", err))
		return
	}

	rec, err := p.rows.ParseFields(item.PayloadRef, 0, extract.ToFieldSet(res.Fields), parser.LayoutUnknown, item.Year)
	if err != nil {
		p.fail(item, fmt.Sprintf("unusable extraction: %v", err))
		return
	}

	confidence := res.Confidence
	item.Confidence = &confidence
	item.ExtractedJSON = raw
	item.Warnings = append(item.Warnings, rec.Warnings...)
	if confidence < p.highConfidence {
		item.NeedsReview = true
		item.Warnings = append(item.Warnings,
			fmt.Sprintf("confidence %.2f below threshold %.2f, flagged for review", confidence, p.highConfidence))
	} else if p.sink != nil {
		if err := p.persist(ctx, item, rec); err != nil {
			p.fail(item, fmt.Sprintf("persist record: %v", err))
			return
		}
	}

	// store writes get their own context: the item ctx may already be
	// expired when extraction timed out
	sctx, scancel := storeContext()
	defer scancel()
	if err := p.store.MarkCompleted(sctx, item); err != nil {
		p.logger.Error("queue.item.complete_failed", "item", item.ID, "error", err)
		return
	}
	p.logger.Info("queue.item.ok",
		"worker", worker, "item", item.ID,
		"confidence", confidence, "needs_review", item.NeedsReview,
		"duration", time.Since(started),
	)
}

func (p *Processor) persist(ctx context.Context, item *Item, rec *parser.NormalizedRecord) error {
	action := dedup.ActionInserted
	out := rec
	if p.dedup != nil {
		m, err := p.dedup.FindMatch(ctx, rec)
		if err != nil {
			return err
		}
		action, out = dedup.Apply(p.policy, m, rec)
		if action != dedup.ActionInserted {
			item.Warnings = append(item.Warnings, fmt.Sprintf("duplicate of persisted record, %s", action))
		}
	}
	if action == dedup.ActionSkipped {
		return nil
	}
	return p.sink.SaveRecord(ctx, out)
}

func (p *Processor) fail(item *Item, reason string) {
	ctx, cancel := storeContext()
	defer cancel()
	if err := p.store.MarkFailed(ctx, item.ID, reason); err != nil {
		p.logger.Error("queue.item.fail_failed", "item", item.ID, "error", err)
		return
	}
	p.logger.Warn("queue.item.failed", "item", item.ID, "attempt", item.Attempts, "reason", reason)
}

// storeContext is the bounded context for queue table writes, independent of
// batch and item lifetimes.
func storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func hashPayload(ref string) (string, error) {
	f, err := os.Open(ref)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func containsSHA(items []*Item, sha string) bool {
	for _, it := range items {
		if it.PayloadSHA == sha {
			return true
		}
	}
	return false
}
