package redisstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Store implements quota.Store on Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ quota.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPrefix sets the key prefix. Default is "quota".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// New creates a Store on client. Keys are namespaced by the prefix, see
// WithPrefix.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: "quota"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment runs the increment script, which rolls the hash over and
// updates the period index atomically.
func (s *Store) Increment(ctx context.Context, key quota.CounterKey, by int64, periodStart time.Time) (quota.Counter, error) {
	if by <= 0 {
		return quota.Counter{}, quota.ErrInvalidQuantity
	}

	res, err := incrementScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.counterIndex(key.Period)},
		by, periodStart.UnixMilli(), member(key),
	).Int64Slice()
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	if len(res) != 2 {
		return quota.Counter{}, unavailable(fmt.Errorf("unexpected increment reply %v", res))
	}
	return quota.Counter{Key: key, Count: res[0], PeriodStart: fromMillis(res[1])}, nil
}

// Get reads the counter hash; a missing hash is a zero counter.
func (s *Store) Get(ctx context.Context, key quota.CounterKey) (quota.Counter, error) {
	vals, err := s.client.HMGet(ctx, s.counterKey(key), "count", "start").Result()
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	c := quota.Counter{Key: key}
	if vals[0] == nil || vals[1] == nil {
		return c, nil
	}

	count, err := parseInt(vals[0])
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	start, err := parseInt(vals[1])
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	c.Count = count
	c.PeriodStart = fromMillis(start)
	return c, nil
}

// Reset runs the reset script, a compare on the stored start followed by
// the write.
func (s *Store) Reset(ctx context.Context, key quota.CounterKey, newPeriodStart time.Time) (bool, error) {
	changed, err := resetScript.Run(ctx, s.client,
		[]string{s.counterKey(key), s.counterIndex(key.Period)},
		newPeriodStart.UnixMilli(), member(key),
	).Int()
	if err != nil {
		return false, unavailable(err)
	}
	return changed == 1, nil
}

// ListStale reads the period index by score, the period start in
// milliseconds.
func (s *Store) ListStale(ctx context.Context, period quota.Period, before time.Time) ([]quota.CounterKey, error) {
	members, err := s.client.ZRangeByScore(ctx, s.counterIndex(period), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	keys := make([]quota.CounterKey, 0, len(members))
	for _, m := range members {
		key, err := parseMember(m, period)
		if err != nil {
			return nil, unavailable(err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Claim sets one hash field per tier with HSETNX in a transaction and
// returns the tiers whose field was new.
func (s *Store) Claim(ctx context.Context, key quota.CounterKey, periodStart time.Time, tiers []quota.Status, sentAt time.Time) ([]quota.Status, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	tiers = slices.Clone(tiers)
	slices.Sort(tiers)
	tiers = slices.Compact(tiers)

	recordsKey := s.recordsKey(key, periodStart)
	cmds := make([]*redis.BoolCmd, len(tiers))
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, tier := range tiers {
			cmds[i] = p.HSetNX(ctx, recordsKey, tier.String(), sentAt.UnixMilli())
		}
		p.ZAdd(ctx, s.recordsIndex(key.Period), redis.Z{
			Score:  float64(periodStart.UnixMilli()),
			Member: recordsKey,
		})
		return nil
	})
	if err != nil {
		return nil, unavailable(err)
	}

	var claimed []quota.Status
	for i, cmd := range cmds {
		if cmd.Val() {
			claimed = append(claimed, tiers[i])
		}
	}
	return claimed, nil
}

// Sent reads the record hash of one cycle.
func (s *Store) Sent(ctx context.Context, key quota.CounterKey, periodStart time.Time) ([]quota.NotificationRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.recordsKey(key, periodStart)).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	records := make([]quota.NotificationRecord, 0, len(fields))
	for name, sent := range fields {
		tier, err := quota.ParseStatus(name)
		if err != nil {
			return nil, unavailable(err)
		}
		ms, err := strconv.ParseInt(sent, 10, 64)
		if err != nil {
			return nil, unavailable(err)
		}
		records = append(records, quota.NotificationRecord{
			Key:         key,
			Tier:        tier,
			PeriodStart: periodStart.UTC(),
			SentAt:      fromMillis(ms),
		})
	}
	slices.SortFunc(records, func(a, b quota.NotificationRecord) int { return int(a.Tier) - int(b.Tier) })
	return records, nil
}

// Clear deletes the notification records of period whose start is before
// the given time, in one script so a concurrent Claim never sees a record
// hash whose index entry is already gone.
func (s *Store) Clear(ctx context.Context, period quota.Period, before time.Time) (int, error) {
	removed, err := clearScript.Run(ctx, s.client,
		[]string{s.recordsIndex(period)},
		before.UnixMilli(),
	).Int()
	if err != nil {
		return 0, unavailable(err)
	}
	return removed, nil
}

func (s *Store) counterKey(key quota.CounterKey) string {
	return fmt.Sprintf("%s:counter:%s:%s:%s", s.prefix, key.TenantID, key.Resource, key.Period)
}

func (s *Store) counterIndex(period quota.Period) string {
	return fmt.Sprintf("%s:counters:%s", s.prefix, period)
}

func (s *Store) recordsKey(key quota.CounterKey, periodStart time.Time) string {
	return fmt.Sprintf("%s:notified:%s:%s:%s:%d", s.prefix, key.TenantID, key.Resource, key.Period, periodStart.UnixMilli())
}

func (s *Store) recordsIndex(period quota.Period) string {
	return fmt.Sprintf("%s:notified:%s", s.prefix, period)
}

// member is the counter index entry of key; the period is implied by the index.
func member(key quota.CounterKey) string {
	return key.TenantID.String() + "|" + string(key.Resource)
}

func parseMember(m string, period quota.Period) (quota.CounterKey, error) {
	id, res, ok := strings.Cut(m, "|")
	if !ok {
		return quota.CounterKey{}, fmt.Errorf("malformed index member %q", m)
	}
	tenantID, err := uuid.Parse(id)
	if err != nil {
		return quota.CounterKey{}, err
	}
	resource, err := quota.ParseResource(res)
	if err != nil {
		return quota.CounterKey{}, err
	}
	return quota.CounterKey{TenantID: tenantID, Resource: resource, Period: period}, nil
}

func parseInt(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("unexpected value type %T", v)
	}
	return strconv.ParseInt(s, 10, 64)
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func unavailable(err error) error {
	return errors.Join(quota.ErrStoreUnavailable, err)
}
