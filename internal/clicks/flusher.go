package clicks

import (
	"context"
	"log/slog"
	"time"
)

const shutdownFlushTimeout = 5 * time.Second

// Flusher drives a buffer's flush cycle: a fixed interval bounds the
// analytics latency under low traffic, and Kick lets callers request an
// early flush when the buffer reaches its size trigger.
type Flusher struct {
	buffer   *Buffer
	store    ClickStore
	interval time.Duration
	logger   *slog.Logger
	kick     chan struct{}
}

func NewFlusher(buffer *Buffer, store ClickStore, interval time.Duration, logger *slog.Logger) *Flusher {
	return &Flusher{
		buffer:   buffer,
		store:    store,
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an early flush. It never blocks; a pending request is
// enough.
func (f *Flusher) Kick() {
	select {
	case f.kick <- struct{}{}:
	default:
	}
}

// Run flushes on the interval and on Kick until the context is canceled,
// then performs one final flush within a bounded grace period.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownFlushTimeout)
			defer cancel()

			f.buffer.Flush(flushCtx, f.store)
			f.logger.Info("final click flush completed")
			return nil
		case <-ticker.C:
			f.buffer.Flush(ctx, f.store)
		case <-f.kick:
			f.buffer.Flush(ctx, f.store)
		}
	}
}
