package quota

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	errQueueClosed = errors.New("queue closed")
	errQueueFull   = errors.New("queue full")
)

// retryQueue is a bounded in-memory buffer drained by worker goroutines that
// retry each item with backoff. Items that exhaust their attempts, or are
// still pending when Close gives up, are passed to drop.
type retryQueue[T any] struct {
	handle   func(ctx context.Context, item T) error
	drop     func(item T, err error)
	backoff  Backoff
	attempts int // zero retries until shutdown
	timeout  time.Duration

	items   chan T
	pending atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	stop   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type retryQueueConfig struct {
	size     int
	workers  int
	attempts int
	timeout  time.Duration
	backoff  Backoff
}

func newRetryQueue[T any](cfg retryQueueConfig, handle func(context.Context, T) error, drop func(T, error)) *retryQueue[T] {
	stop, cancel := context.WithCancel(context.Background())
	q := &retryQueue[T]{
		handle:   handle,
		drop:     drop,
		backoff:  cfg.backoff,
		attempts: cfg.attempts,
		timeout:  cfg.timeout,
		items:    make(chan T, cfg.size),
		done:     make(chan struct{}),
		stop:     stop,
		cancel:   cancel,
	}
	for range cfg.workers {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// push enqueues item without blocking.
func (q *retryQueue[T]) push(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return errQueueClosed
	}
	select {
	case q.items <- item:
		q.pending.Add(1)
		return nil
	default:
		return errQueueFull
	}
}

func (q *retryQueue[T]) len() int {
	return int(q.pending.Load())
}

func (q *retryQueue[T]) worker() {
	defer q.wg.Done()
	for {
		select {
		case item := <-q.items:
			q.process(item)
		case <-q.done:
			// no pushes happen after done is closed, so an empty channel means drained
			for {
				select {
				case item := <-q.items:
					q.process(item)
				default:
					return
				}
			}
		}
	}
}

func (q *retryQueue[T]) process(item T) {
	defer q.pending.Add(-1)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(q.stop, q.timeout)
		err := q.handle(ctx, item)
		cancel()
		if err == nil {
			return
		}
		if q.attempts > 0 && attempt >= q.attempts {
			q.drop(item, err)
			return
		}
		if sleep(q.stop, q.backoff.NextInterval(attempt)) != nil {
			q.drop(item, err)
			return
		}
	}
}

// close stops accepting items and waits for the buffer to drain. When ctx
// expires first, in-flight retries are aborted and their items dropped.
func (q *retryQueue[T]) close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-finished
		return ctx.Err()
	}
}
