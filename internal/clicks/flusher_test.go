package clicks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/redirector/internal/models"
)

func runFlusher(t *testing.T, f *Flusher) (cancel context.CancelFunc, done chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan error, 1)

	go func() {
		done <- f.Run(ctx)
	}()

	return cancel, done
}

func waitForStop(t *testing.T, done chan error) {
	t.Helper()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("flusher did not stop")
	}
}

func TestFlusher_Run(t *testing.T) {
	t.Run("flushes on the interval", func(t *testing.T) {
		buffer := NewBuffer(100, discardLogger())
		buffer.Add(models.ClickRecord{LinkID: 7})

		flushed := make(chan struct{}, 1)

		store := new(MockClickStore)
		store.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
			select {
			case flushed <- struct{}{}:
			default:
			}
		})
		store.On("IncrementClickCount", mock.Anything, int64(7), int64(1)).Return(nil)

		cancel, done := runFlusher(t, NewFlusher(buffer, store, 20*time.Millisecond, discardLogger()))
		defer cancel()

		select {
		case <-flushed:
		case <-time.After(2 * time.Second):
			t.Fatal("interval flush did not happen")
		}

		cancel()
		waitForStop(t, done)

		assert.Equal(t, 0, buffer.Len())
		store.AssertExpectations(t)
	})

	t.Run("kick flushes without waiting for the ticker", func(t *testing.T) {
		buffer := NewBuffer(100, discardLogger())
		buffer.Add(models.ClickRecord{LinkID: 7})

		flushed := make(chan struct{}, 1)

		store := new(MockClickStore)
		store.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
			select {
			case flushed <- struct{}{}:
			default:
			}
		})
		store.On("IncrementClickCount", mock.Anything, int64(7), int64(1)).Return(nil)

		// The interval is far longer than the test; only Kick can flush
		// in time.
		flusher := NewFlusher(buffer, store, time.Hour, discardLogger())
		cancel, done := runFlusher(t, flusher)
		defer cancel()

		flusher.Kick()

		select {
		case <-flushed:
		case <-time.After(2 * time.Second):
			t.Fatal("kick did not trigger a flush")
		}

		cancel()
		waitForStop(t, done)

		assert.Equal(t, 0, buffer.Len())
	})

	t.Run("flushes remaining clicks on shutdown", func(t *testing.T) {
		buffer := NewBuffer(100, discardLogger())
		buffer.Add(models.ClickRecord{LinkID: 7})
		buffer.Add(models.ClickRecord{LinkID: 7})

		store := new(MockClickStore)
		store.On("InsertBatch", mock.Anything, mock.MatchedBy(func(records []models.ClickRecord) bool {
			return len(records) == 2
		})).Return(nil)
		store.On("IncrementClickCount", mock.Anything, int64(7), int64(2)).Return(nil)

		cancel, done := runFlusher(t, NewFlusher(buffer, store, time.Hour, discardLogger()))

		cancel()
		waitForStop(t, done)

		assert.Equal(t, 0, buffer.Len())
		store.AssertExpectations(t)
	})

	t.Run("final flush uses a live context despite cancellation", func(t *testing.T) {
		buffer := NewBuffer(100, discardLogger())
		buffer.Add(models.ClickRecord{LinkID: 7})

		store := new(MockClickStore)
		store.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			assert.NoError(t, ctx.Err())
		})
		store.On("IncrementClickCount", mock.Anything, int64(7), int64(1)).Return(nil)

		cancel, done := runFlusher(t, NewFlusher(buffer, store, time.Hour, discardLogger()))

		cancel()
		waitForStop(t, done)

		store.AssertExpectations(t)
	})
}
