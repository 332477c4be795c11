package quota

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. State is lost on restart, so it suits
// tests and single-process development setups only.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[CounterKey]Counter
	records  map[CounterKey][]NotificationRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters: make(map[CounterKey]Counter),
		records:  make(map[CounterKey][]NotificationRecord),
	}
}

// Increment adds by under the store lock, rolling the counter over when
// periodStart is newer than the stored start.
func (s *MemoryStore) Increment(ctx context.Context, key CounterKey, by int64, periodStart time.Time) (Counter, error) {
	if by <= 0 {
		return Counter{}, ErrInvalidQuantity
	}
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}
	periodStart = periodStart.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || c.PeriodStart.Before(periodStart) {
		c = Counter{Key: key, PeriodStart: periodStart}
	}
	c.Count += by
	s.counters[key] = c
	return c, nil
}

// Get returns a copy of the counter, or a zero counter when absent.
func (s *MemoryStore) Get(ctx context.Context, key CounterKey) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return Counter{Key: key}, nil
	}
	return c, nil
}

// Reset zeroes the counter if its stored start is before newPeriodStart.
func (s *MemoryStore) Reset(ctx context.Context, key CounterKey, newPeriodStart time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	newPeriodStart = newPeriodStart.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !c.PeriodStart.Before(newPeriodStart) {
		return false, nil
	}
	s.counters[key] = Counter{Key: key, PeriodStart: newPeriodStart}
	return true, nil
}

// ListStale returns the keys of period whose start is before before,
// sorted for stable sweeps.
func (s *MemoryStore) ListStale(ctx context.Context, period Period, before time.Time) ([]CounterKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []CounterKey
	for k, c := range s.counters {
		if k.Period == period && c.PeriodStart.Before(before) {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareKeys)
	return keys, nil
}

// Claim records the tiers not yet sent in the cycle and returns them.
func (s *MemoryStore) Claim(ctx context.Context, key CounterKey, periodStart time.Time, tiers []Status, sentAt time.Time) ([]Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	periodStart = periodStart.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.records[key]
	var claimed []Status
	for _, tier := range sortedTiers(tiers) {
		if slices.ContainsFunc(existing, func(r NotificationRecord) bool {
			return r.Tier == tier && r.PeriodStart.Equal(periodStart)
		}) {
			continue
		}
		existing = append(existing, NotificationRecord{
			Key:         key,
			Tier:        tier,
			PeriodStart: periodStart,
			SentAt:      sentAt.UTC(),
		})
		claimed = append(claimed, tier)
	}
	s.records[key] = existing
	return claimed, nil
}

// Sent returns the cycle's records ordered by tier.
func (s *MemoryStore) Sent(ctx context.Context, key CounterKey, periodStart time.Time) ([]NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []NotificationRecord
	for _, r := range s.records[key] {
		if r.PeriodStart.Equal(periodStart) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b NotificationRecord) int { return cmp.Compare(a.Tier, b.Tier) })
	return out, nil
}

// Clear drops records of period from cycles that started before before.
func (s *MemoryStore) Clear(ctx context.Context, period Period, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, records := range s.records {
		if key.Period != period {
			continue
		}
		kept := slices.DeleteFunc(records, func(r NotificationRecord) bool {
			return r.PeriodStart.Before(before)
		})
		removed += len(records) - len(kept)
		if len(kept) == 0 {
			delete(s.records, key)
		} else {
			s.records[key] = kept
		}
	}
	return removed, nil
}

// sortedTiers returns the distinct notifiable tiers of tiers in ascending order.
func sortedTiers(tiers []Status) []Status {
	out := make([]Status, 0, len(tiers))
	for _, t := range tiers {
		if t > Normal && t <= LimitReached && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

func compareKeys(a, b CounterKey) int {
	if c := cmp.Compare(a.TenantID.String(), b.TenantID.String()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Resource, b.Resource); c != 0 {
		return c
	}
	return cmp.Compare(a.Period, b.Period)
}
