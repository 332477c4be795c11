package quota

import (
	"context"
	"time"
)

// CounterStore holds usage counters. It has no notion of limits: Increment
// never fails because a quota is exhausted.
//
// Implementations must make Increment atomic per key and make Reset
// idempotent by comparing the stored period start with the target boundary.
// Failures of the backing system are reported wrapped in ErrStoreUnavailable.
type CounterStore interface {
	// Increment adds by (> 0) to the counter, creating it at zero first when
	// absent. A counter whose stored period start predates periodStart belongs
	// to a finished cycle and is rolled over to by in the same atomic step.
	Increment(ctx context.Context, key CounterKey, by int64, periodStart time.Time) (Counter, error)

	// Get returns a snapshot of the counter. An absent counter has zero Count
	// and zero PeriodStart.
	Get(ctx context.Context, key CounterKey) (Counter, error)

	// Reset sets the counter to zero and its period start to newPeriodStart
	// when the stored period start is earlier. It reports whether anything changed.
	Reset(ctx context.Context, key CounterKey, newPeriodStart time.Time) (bool, error)

	// ListStale returns keys of counters for period whose period start is
	// earlier than before.
	ListStale(ctx context.Context, period Period, before time.Time) ([]CounterKey, error)
}

// NotificationRecord marks that a tier was notified during one reset cycle.
type NotificationRecord struct {
	Key         CounterKey `json:"key"`
	Tier        Status     `json:"tier"`
	PeriodStart time.Time  `json:"period_start"`
	SentAt      time.Time  `json:"sent_at"`
}

// NotificationStore persists notification records, the de-duplication state
// of the Notifier.
type NotificationStore interface {
	// Claim atomically records every tier in tiers that has no record for
	// (key, periodStart) yet and returns the newly recorded tiers in ascending
	// order. Concurrent claims of the same tier succeed exactly once.
	Claim(ctx context.Context, key CounterKey, periodStart time.Time, tiers []Status, sentAt time.Time) ([]Status, error)

	// Sent returns the records of the cycle starting at periodStart.
	Sent(ctx context.Context, key CounterKey, periodStart time.Time) ([]NotificationRecord, error)

	// Clear removes every record of period whose cycle started before the
	// given boundary and returns how many were removed.
	Clear(ctx context.Context, period Period, before time.Time) (int, error)
}

// Store is a backend that persists both counters and notification records.
type Store interface {
	CounterStore
	NotificationStore
}
