package quota_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/logger"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func testEvent() quota.Event {
	return quota.Event{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Resource: quota.Tracking,
		Period:   quota.Daily,
		Tier:     quota.NearlyFull,
		Count:    9,
		Limit:    10,
	}
}

func TestAsyncDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("delivers events in background", func(t *testing.T) {
		t.Parallel()
		var (
			mu   sync.Mutex
			seen []uuid.UUID
		)
		pub := quota.PublisherFunc(func(_ context.Context, e quota.Event) error {
			mu.Lock()
			seen = append(seen, e.ID)
			mu.Unlock()
			return nil
		})
		d := quota.NewAsyncDispatcher(pub)

		e1, e2 := testEvent(), testEvent()
		require.NoError(t, d.Dispatch(context.Background(), e1))
		require.NoError(t, d.Dispatch(context.Background(), e2))
		require.NoError(t, d.Close(context.Background()))

		mu.Lock()
		defer mu.Unlock()
		assert.ElementsMatch(t, []uuid.UUID{e1.ID, e2.ID}, seen)
	})

	t.Run("retries failed publishes", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		pub := quota.PublisherFunc(func(context.Context, quota.Event) error {
			if calls.Add(1) < 3 {
				return errors.New("broker down")
			}
			return nil
		})
		d := quota.NewAsyncDispatcher(pub, quota.WithDispatchRetry(5, quota.ConstantBackoff(time.Millisecond)))

		require.NoError(t, d.Dispatch(context.Background(), testEvent()))
		require.NoError(t, d.Close(context.Background()))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("drops after max attempts", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		buf := &bytes.Buffer{}
		var bufMu sync.Mutex
		pub := quota.PublisherFunc(func(context.Context, quota.Event) error {
			calls.Add(1)
			return errors.New("broker down")
		})
		d := quota.NewAsyncDispatcher(pub,
			quota.WithDispatchRetry(2, quota.ConstantBackoff(time.Millisecond)),
			quota.WithDispatchLogger(logger.New(logger.WithOutput(&lockedWriter{mu: &bufMu, w: buf}))),
		)

		require.NoError(t, d.Dispatch(context.Background(), testEvent()))
		require.NoError(t, d.Close(context.Background()))
		assert.Equal(t, int32(2), calls.Load())

		bufMu.Lock()
		defer bufMu.Unlock()
		assert.Contains(t, buf.String(), "notification dropped after retries")
	})

	t.Run("dispatch never blocks on a slow publisher", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		pub := quota.PublisherFunc(func(ctx context.Context, _ quota.Event) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		})
		d := quota.NewAsyncDispatcher(pub, quota.WithDispatchBuffer(1), quota.WithDispatchWorkers(1))

		var errs []error
		start := time.Now()
		for range 5 {
			errs = append(errs, d.Dispatch(context.Background(), testEvent()))
		}
		assert.Less(t, time.Since(start), time.Second)
		assert.Contains(t, errs, quota.ErrDispatchBufferFull)

		close(release)
		require.NoError(t, d.Close(context.Background()))
		assert.Zero(t, d.Pending())
	})

	t.Run("rejects events after close", func(t *testing.T) {
		t.Parallel()
		d := quota.NewAsyncDispatcher(quota.NewLogPublisher(nil))
		require.NoError(t, d.Close(context.Background()))
		assert.ErrorIs(t, d.Dispatch(context.Background(), testEvent()), quota.ErrDispatcherClosed)
		assert.NoError(t, d.Close(context.Background()))
	})

	t.Run("close honours deadline", func(t *testing.T) {
		t.Parallel()
		pub := quota.PublisherFunc(func(ctx context.Context, _ quota.Event) error {
			<-ctx.Done()
			return ctx.Err()
		})
		d := quota.NewAsyncDispatcher(pub, quota.WithPublishTimeout(time.Hour))
		require.NoError(t, d.Dispatch(context.Background(), testEvent()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	})
}

type lockedWriter struct {
	mu *sync.Mutex
	w  *bytes.Buffer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
