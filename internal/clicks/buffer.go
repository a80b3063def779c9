package clicks

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vadimbarashkov/redirector/internal/models"
)

// ClickStore is the durable write contract the buffer flushes into.
type ClickStore interface {
	// InsertBatch persists all records in a single multi-row write.
	InsertBatch(ctx context.Context, records []models.ClickRecord) error
	// IncrementClickCount adds delta to the stored counter of one link.
	IncrementClickCount(ctx context.Context, linkID, delta int64) error
}

// Buffer accumulates click records and per-link counter deltas between
// flushes. Adding a click is a short synchronous append and never blocks
// on a concurrent flush longer than the swap's critical section; the
// durable write path is driven separately by the Flusher.
//
// Delivery is at-least-once with bounded loss: a failed batch insert is
// logged and the records are dropped.
type Buffer struct {
	maxSize int
	logger  *slog.Logger

	recordsMu sync.Mutex
	records   []models.ClickRecord

	deltasMu sync.Mutex
	deltas   map[int64]int64
}

func NewBuffer(maxSize int, logger *slog.Logger) *Buffer {
	return &Buffer{
		maxSize: maxSize,
		logger:  logger,
		records: make([]models.ClickRecord, 0, maxSize),
		deltas:  make(map[int64]int64),
	}
}

// Add appends a click record and increments the pending counter delta
// for its link. It always succeeds locally.
func (b *Buffer) Add(rec models.ClickRecord) {
	b.recordsMu.Lock()
	b.records = append(b.records, rec)
	b.recordsMu.Unlock()

	b.deltasMu.Lock()
	b.deltas[rec.LinkID]++
	b.deltasMu.Unlock()
}

// ShouldFlush reports whether the buffer has reached its size trigger.
func (b *Buffer) ShouldFlush() bool {
	b.recordsMu.Lock()
	defer b.recordsMu.Unlock()
	return len(b.records) >= b.maxSize
}

// Len returns the number of buffered records.
func (b *Buffer) Len() int {
	b.recordsMu.Lock()
	defer b.recordsMu.Unlock()
	return len(b.records)
}

// Flush swaps out the current records and deltas for empty ones, then
// performs exactly two kinds of writes: one batched insert of all
// records and one increment-by-delta per touched link. Clicks added
// after the swap accumulate into the next batch. Write failures are
// logged and not retried.
func (b *Buffer) Flush(ctx context.Context, store ClickStore) {
	records, deltas := b.swap()
	if len(records) == 0 && len(deltas) == 0 {
		return
	}

	if len(records) > 0 {
		if err := store.InsertBatch(ctx, records); err != nil {
			b.logger.Error("click batch insert failed, dropping records",
				slog.Int("records", len(records)), slog.Any("err", err))
		}
	}

	for linkID, delta := range deltas {
		if err := store.IncrementClickCount(ctx, linkID, delta); err != nil {
			b.logger.Error("click counter update failed",
				slog.Int64("link_id", linkID), slog.Int64("delta", delta), slog.Any("err", err))
		}
	}
}

// swap takes both locks so the record list and delta map move to the
// next batch atomically with respect to each other.
func (b *Buffer) swap() ([]models.ClickRecord, map[int64]int64) {
	b.recordsMu.Lock()
	b.deltasMu.Lock()

	records := b.records
	deltas := b.deltas
	b.records = make([]models.ClickRecord, 0, b.maxSize)
	b.deltas = make(map[int64]int64)

	b.deltasMu.Unlock()
	b.recordsMu.Unlock()

	return records, deltas
}
