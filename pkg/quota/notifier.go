package quota

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Notifier turns counter updates into threshold notifications. Each tier
// fires at most once per (tenant, resource, period) and reset cycle, and a
// jump across several tiers emits only the highest one.
type Notifier struct {
	store      NotificationStore
	dispatcher Dispatcher
	clock      Clock
	logger     *slog.Logger
	metrics    *Metrics
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithNotifierClock replaces the clock that stamps SentAt.
func WithNotifierClock(c Clock) NotifierOption {
	return func(n *Notifier) {
		if c != nil {
			n.clock = c
		}
	}
}

// WithNotifierLogger sets the logger for claim and dispatch failures.
func WithNotifierLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithNotifierMetrics counts emitted notifications per tier.
func WithNotifierMetrics(m *Metrics) NotifierOption {
	return func(n *Notifier) { n.metrics = m }
}

// NewNotifier creates a Notifier that claims tiers in store before
// handing events to dispatcher. It panics if either is nil.
func NewNotifier(store NotificationStore, dispatcher Dispatcher, opts ...NotifierOption) *Notifier {
	if store == nil || dispatcher == nil {
		panic("quota: notifier requires a store and a dispatcher")
	}
	n := &Notifier{
		store:      store,
		dispatcher: dispatcher,
		clock:      SystemClock{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With(logger.Component("quota.notifier"))
	return n
}

// Observe evaluates counter against limit and emits a notification when a
// tier without a record in the counter's cycle has been reached. It returns
// the emitted event, or nil when nothing was due.
//
// Records are written before the event is dispatched, so a dispatch failure
// never causes a second notification for the same tier.
func (n *Notifier) Observe(ctx context.Context, counter Counter, limit int64) (*Event, error) {
	pct, status := Evaluate(counter.Count, limit)
	if status == Normal {
		return nil, nil
	}

	tiers := make([]Status, 0, 3)
	for _, t := range NotifiableTiers() {
		if t <= status {
			tiers = append(tiers, t)
		}
	}

	now := n.clock.Now().UTC()
	claimed, err := n.store.Claim(ctx, counter.Key, counter.PeriodStart, tiers, now)
	if err != nil {
		n.metrics.storeError("claim")
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if len(claimed) == 0 {
		return nil, nil
	}

	event := &Event{
		ID:          uuid.New(),
		TenantID:    counter.Key.TenantID,
		Resource:    counter.Key.Resource,
		Period:      counter.Key.Period,
		Tier:        claimed[len(claimed)-1],
		Count:       counter.Count,
		Limit:       limit,
		Percentage:  pct,
		PeriodStart: counter.PeriodStart,
		OccurredAt:  now,
	}
	n.metrics.notified(*event)

	if err := n.dispatcher.Dispatch(ctx, *event); err != nil {
		// delivery belongs to the dispatcher; the request path only logs
		n.logger.LogAttrs(ctx, slog.LevelWarn, "dispatch notification failed",
			append(eventAttrs(*event), logger.Error(err))...)
	}
	return event, nil
}
