package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmduarte/declara/constants"
	"github.com/tmduarte/declara/internal/common"
	"github.com/tmduarte/declara/internal/parser"
	"github.com/tmduarte/declara/internal/queue"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	cfg := common.DatabaseConfig{DSN: filepath.Join(t.TempDir(), "declara_test.db")}
	db, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, Migrate(context.Background(), db, nil))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second))
	return db
}

func testRecord(reference string, day int, gross string) *parser.NormalizedRecord {
	g := decimal.RequireFromString(gross)
	w := g.Mul(decimal.NewFromFloat(0.23)).Round(2)
	date := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
	return &parser.NormalizedRecord{
		SourceFile:  "recibos.xlsx",
		SourceRow:   2,
		Reference:   reference,
		TaxID:       "123456789",
		IssuerName:  "Maria Santos",
		PeriodStart: date,
		PeriodEnd:   date,
		Gross:       g,
		Withheld:    w,
		Net:         g.Sub(w),
		NominalRate: decimal.NewFromFloat(0.23),
		Category:    constants.IndependentWork,
		Warnings:    []string{"tax identifier column missing"},
	}
}

func TestSaveAndFindCandidates(t *testing.T) {
	db := openTestDB(t)
	repo := NewRecordRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveRecord(ctx, testRecord("FT 2024/101", 15, "450.00")))

	got, err := repo.FindCandidates(ctx, "123456789", time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FT 2024/101", got[0].Reference)
	assert.True(t, got[0].Gross.Equal(decimal.RequireFromString("450.00")))
	assert.Equal(t, constants.IndependentWork, got[0].Category)
	assert.Equal(t, []string{"tax identifier column missing"}, got[0].Warnings)

	// a month away falls outside the window
	got, err = repo.FindCandidates(ctx, "123456789", time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)
	assert.Empty(t, got)

	// different counterparty never matches
	got, err = repo.FindCandidates(ctx, "508721903", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), 7)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveRecordReplacesByReference(t *testing.T) {
	db := openTestDB(t)
	repo := NewRecordRepository(db, nil)
	ctx := context.Background()

	require.NoError(t, repo.SaveRecord(ctx, testRecord("FT 2024/101", 15, "450.00")))
	require.NoError(t, repo.SaveRecord(ctx, testRecord("FT 2024/101", 15, "500.00")))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Gross.Equal(decimal.RequireFromString("500.00")))
}

func TestSaveRecordWithoutReferenceAlwaysInserts(t *testing.T) {
	db := openTestDB(t)
	repo := NewRecordRepository(db, nil)
	ctx := context.Background()

	rec := testRecord("", 15, "450.00")
	require.NoError(t, repo.SaveRecord(ctx, rec))
	require.NoError(t, repo.SaveRecord(ctx, rec))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func enqueueTestItems(t *testing.T, store *QueueStore, batchID uuid.UUID, refs ...string) []*queue.Item {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateBatch(ctx, batchID, 2024))
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	items := make([]*queue.Item, 0, len(refs))
	for i, ref := range refs {
		items = append(items, &queue.Item{
			ID:          uuid.New(),
			BatchID:     batchID,
			PayloadRef:  ref,
			PayloadSHA:  "sha-" + ref,
			Year:        2024,
			Status:      constants.ItemStatusPending,
			MaxAttempts: 2,
			EnqueuedAt:  base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:   base,
		})
	}
	require.NoError(t, store.Enqueue(ctx, items))
	return items
}

func TestQueueClaimLifecycle(t *testing.T) {
	db := openTestDB(t)
	store := NewQueueStore(db, nil)
	ctx := context.Background()
	batchID := uuid.New()
	enqueueTestItems(t, store, batchID, "a.pdf", "b.pdf")

	// oldest first
	claimed, err := store.ClaimNext(ctx, batchID)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "a.pdf", claimed.PayloadRef)
	assert.Equal(t, constants.ItemStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)

	conf := float32(0.93)
	claimed.Confidence = &conf
	claimed.ExtractedJSON = []byte(`{"gross_amount":"450,00"}`)
	claimed.Warnings = []string{"no usable date on row"}
	require.NoError(t, store.MarkCompleted(ctx, claimed))

	got, err := store.Get(ctx, claimed.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ItemStatusCompleted, got.Status)
	require.NotNil(t, got.Confidence)
	assert.InDelta(t, 0.93, float64(*got.Confidence), 0.001)
	assert.JSONEq(t, `{"gross_amount":"450,00"}`, string(got.ExtractedJSON))
	assert.Equal(t, []string{"no usable date on row"}, got.Warnings)

	second, err := store.ClaimNext(ctx, batchID)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "b.pdf", second.PayloadRef)
	require.NoError(t, store.MarkFailed(ctx, second.ID, "extraction: timeout"))

	prog, err := store.Progress(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, queue.Progress{Completed: 1, Failed: 1, ExtractedRecords: 1}, prog)
	assert.True(t, prog.Done())

	// nothing left to claim
	none, err := store.ClaimNext(ctx, batchID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestQueueRetryBoundedByAttempts(t *testing.T) {
	db := openTestDB(t)
	store := NewQueueStore(db, nil)
	ctx := context.Background()
	batchID := uuid.New()
	items := enqueueTestItems(t, store, batchID, "flaky.pdf")

	failOnce := func() {
		claimed, err := store.ClaimNext(ctx, batchID)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		require.NoError(t, store.MarkFailed(ctx, claimed.ID, "boom"))
	}

	failOnce()
	require.NoError(t, store.Retry(ctx, items[0].ID))
	failOnce()

	// two attempts used, bound is two
	err := store.Retry(ctx, items[0].ID)
	require.Error(t, err)
	got, err := store.Get(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, constants.ItemStatusFailed, got.Status)
	assert.Equal(t, 2, got.Attempts)
}

func TestQueueRetryRefusedWhilePending(t *testing.T) {
	db := openTestDB(t)
	store := NewQueueStore(db, nil)
	batchID := uuid.New()
	items := enqueueTestItems(t, store, batchID, "a.pdf")

	err := store.Retry(context.Background(), items[0].ID)
	require.Error(t, err)
}

func TestQueueCancelBlocksClaims(t *testing.T) {
	db := openTestDB(t)
	store := NewQueueStore(db, nil)
	ctx := context.Background()
	batchID := uuid.New()
	enqueueTestItems(t, store, batchID, "a.pdf", "b.pdf")

	require.NoError(t, store.CancelBatch(ctx, batchID))
	claimed, err := store.ClaimNext(ctx, batchID)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	prog, err := store.Progress(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, 2, prog.Pending)
}

func TestQueueHasPayload(t *testing.T) {
	db := openTestDB(t)
	store := NewQueueStore(db, nil)
	ctx := context.Background()
	batchID := uuid.New()
	enqueueTestItems(t, store, batchID, "a.pdf")

	found, err := store.HasPayload(ctx, batchID, "sha-a.pdf")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = store.HasPayload(ctx, batchID, "sha-other")
	require.NoError(t, err)
	assert.False(t, found)

	// hashing failures leave the sha empty; empty never matches
	found, err = store.HasPayload(ctx, batchID, "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQueueCompleteRequiresProcessing(t *testing.T) {
	db := openTestDB(t)
	store := NewQueueStore(db, nil)
	batchID := uuid.New()
	items := enqueueTestItems(t, store, batchID, "a.pdf")

	// still pending, completing must be refused
	err := store.MarkCompleted(context.Background(), items[0])
	require.Error(t, err)
}
