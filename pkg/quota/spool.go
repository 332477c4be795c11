package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

type pendingIncrement struct {
	key         CounterKey
	by          int64
	periodStart time.Time
}

// Spool keeps consumption records whose increment failed and retries them in
// the background until they are written or the process shuts down. Records
// still pending at shutdown are logged with full detail so they can be replayed.
type Spool struct {
	store     CounterStore
	logger    *slog.Logger
	metrics   *Metrics
	queue     *retryQueue[pendingIncrement]
	onWritten func(ctx context.Context, c Counter)
}

// SpoolOption configures a Spool.
type SpoolOption func(*spoolOptions)

type spoolOptions struct {
	retryQueueConfig
	logger  *slog.Logger
	metrics *Metrics
}

// WithSpoolSize sets how many failed increments may be held in memory.
func WithSpoolSize(n int) SpoolOption {
	return func(o *spoolOptions) {
		if n > 0 {
			o.size = n
		}
	}
}

// WithSpoolBackoff sets the delay between redelivery attempts.
func WithSpoolBackoff(b Backoff) SpoolOption {
	return func(o *spoolOptions) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithSpoolLogger sets the logger for dropped and redelivered increments.
func WithSpoolLogger(l *slog.Logger) SpoolOption {
	return func(o *spoolOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithSpoolMetrics reports spool depth and drops.
func WithSpoolMetrics(m *Metrics) SpoolOption {
	return func(o *spoolOptions) { o.metrics = m }
}

// NewSpool creates a Spool that redelivers increments to store in the
// background until Close.
func NewSpool(store CounterStore, opts ...SpoolOption) *Spool {
	if store == nil {
		panic("quota: spool requires a counter store")
	}
	o := spoolOptions{
		retryQueueConfig: retryQueueConfig{
			size:    10000,
			workers: 1,
			timeout: 5 * time.Second,
			backoff: ExponentialBackoff{InitialInterval: 500 * time.Millisecond, MaxInterval: 30 * time.Second, JitterFactor: 0.1},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Spool{
		store:   store,
		logger:  o.logger.With(logger.Component("quota.spool")),
		metrics: o.metrics,
	}
	s.queue = newRetryQueue(o.retryQueueConfig, s.write, s.lost)
	return s
}

// Add queues an increment for background retry.
func (s *Spool) Add(key CounterKey, by int64, periodStart time.Time) error {
	err := s.queue.push(pendingIncrement{key: key, by: by, periodStart: periodStart})
	switch {
	case errors.Is(err, errQueueClosed):
		return ErrSpoolClosed
	case errors.Is(err, errQueueFull):
		return errors.Join(ErrStoreUnavailable, errors.New("consumption spool is full"))
	}
	s.metrics.spoolSize(s.queue.len())
	return nil
}

// Len returns the number of increments still waiting to be written.
func (s *Spool) Len() int {
	return s.queue.len()
}

// Close stops accepting records and flushes pending ones until ctx expires.
func (s *Spool) Close(ctx context.Context) error {
	return s.queue.close(ctx)
}

func (s *Spool) write(ctx context.Context, p pendingIncrement) error {
	c, err := s.store.Increment(ctx, p.key, p.by, p.periodStart)
	if err != nil {
		s.metrics.storeError("spool_increment")
		return err
	}
	s.metrics.spoolSize(s.queue.len() - 1)
	s.logger.LogAttrs(ctx, slog.LevelInfo, "spooled consumption written",
		logger.TenantID(p.key.TenantID),
		logger.Resource(p.key.Resource),
		logger.Period(p.key.Period),
		slog.Int64("quantity", p.by),
	)
	if s.onWritten != nil {
		s.onWritten(ctx, c)
	}
	return nil
}

func (s *Spool) lost(p pendingIncrement, err error) {
	s.logger.LogAttrs(context.Background(), slog.LevelError, "consumption lost, replay required",
		logger.TenantID(p.key.TenantID),
		logger.Resource(p.key.Resource),
		logger.Period(p.key.Period),
		slog.Int64("quantity", p.by),
		slog.Time("period_start", p.periodStart),
		logger.Error(err),
	)
}
