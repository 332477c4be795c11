package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Resetter rolls counters over at UTC day and month boundaries and clears the
// notification records of finished cycles. Resets are silent and idempotent,
// so several instances or a restarted one may run against the same store.
type Resetter struct {
	counters CounterStore
	records  NotificationStore
	clock    Clock
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

// ResetterOption configures a Resetter.
type ResetterOption func(*Resetter)

// WithCheckInterval sets how often the resetter sweeps for stale counters in
// addition to the exact boundary wake-ups.
func WithCheckInterval(d time.Duration) ResetterOption {
	return func(r *Resetter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithResetterClock replaces the wall clock used to find period boundaries.
func WithResetterClock(c Clock) ResetterOption {
	return func(r *Resetter) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithResetterLogger sets the logger for sweep results and failures.
func WithResetterLogger(l *slog.Logger) ResetterOption {
	return func(r *Resetter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithResetterMetrics records sweep duration and reset counts.
func WithResetterMetrics(m *Metrics) ResetterOption {
	return func(r *Resetter) { r.metrics = m }
}

// NewResetter creates a Resetter that zeroes stale counters and clears the
// notification records of finished cycles. Call Run to start sweeping.
// It panics if either store is nil.
func NewResetter(counters CounterStore, records NotificationStore, opts ...ResetterOption) *Resetter {
	if counters == nil || records == nil {
		panic("quota: resetter requires counter and notification stores")
	}
	r := &Resetter{
		counters: counters,
		records:  records,
		clock:    SystemClock{},
		interval: time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("quota.resetter"))
	return r
}

// ResetPeriod resets every counter of period whose cycle started before
// boundary and clears the notification records of those cycles. It returns
// the number of counters actually reset.
func (r *Resetter) ResetPeriod(ctx context.Context, period Period, boundary time.Time) (int, error) {
	keys, err := r.counters.ListStale(ctx, period, boundary)
	if err != nil {
		r.metrics.storeError("list_stale")
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	var (
		reset int
		errs  []error
	)
	for _, key := range keys {
		changed, err := r.counters.Reset(ctx, key, boundary)
		if err != nil {
			r.metrics.storeError("reset")
			errs = append(errs, err)
			continue
		}
		if changed {
			reset++
		}
	}
	r.metrics.reset(period, reset)

	cleared, err := r.records.Clear(ctx, period, boundary)
	if err != nil {
		r.metrics.storeError("clear")
		errs = append(errs, err)
	}

	if reset > 0 || cleared > 0 {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "period reset",
			logger.Period(period),
			slog.Time("boundary", boundary),
			slog.Int("counters", reset),
			slog.Int("notifications_cleared", cleared),
		)
	}
	if len(errs) > 0 {
		return reset, errors.Join(append([]error{ErrStoreUnavailable}, errs...)...)
	}
	return reset, nil
}

// RunOnce resets every period up to the current boundary.
func (r *Resetter) RunOnce(ctx context.Context) error {
	now := r.clock.Now()
	var errs []error
	for _, period := range Periods() {
		if _, err := r.ResetPeriod(ctx, period, period.Start(now)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start runs the reset loop until ctx is cancelled. It sweeps immediately,
// then on every check interval and right after each boundary.
func (r *Resetter) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	boundary := time.NewTimer(r.untilNextBoundary())
	defer boundary.Stop()

	r.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("resetter shutting down")
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		case <-boundary.C:
			r.sweep(ctx)
			boundary.Reset(r.untilNextBoundary())
		}
	}
}

// Run returns a function suitable for errgroup. Cancellation is a clean exit.
func (r *Resetter) Run(ctx context.Context) func() error {
	return func() error {
		if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func (r *Resetter) sweep(ctx context.Context) {
	if err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
		r.logger.LogAttrs(ctx, slog.LevelError, "reset sweep failed", logger.Error(err))
	}
}

func (r *Resetter) untilNextBoundary() time.Duration {
	now := r.clock.Now()
	// small grace so the sweep lands after the boundary even with clock skew
	return nextBoundary(now).Sub(now) + time.Second
}
