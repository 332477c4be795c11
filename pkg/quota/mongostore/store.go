package mongostore

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/dmitrymomot/quotakit/pkg/mongo"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

const (
	countersCollection      = "usage_counters"
	notificationsCollection = "quota_notifications"
)

// Store implements quota.Store on MongoDB.
type Store struct {
	counters      *mongo.Collection
	notifications *mongo.Collection
}

var _ quota.Store = (*Store)(nil)

// New creates a Store on the quota_counters and quota_notifications
// collections of db. Call EnsureIndexes once before use.
func New(db *mongo.Database) *Store {
	return &Store{
		counters:      db.Collection(countersCollection),
		notifications: db.Collection(notificationsCollection),
	}
}

type counterDoc struct {
	TenantID    string    `bson:"tenant_id"`
	Resource    string    `bson:"resource"`
	Period      string    `bson:"period"`
	Count       int64     `bson:"count"`
	PeriodStart time.Time `bson:"period_start"`
}

type notificationDoc struct {
	TenantID    string    `bson:"tenant_id"`
	Resource    string    `bson:"resource"`
	Period      string    `bson:"period"`
	PeriodStart time.Time `bson:"period_start"`
	Tier        string    `bson:"tier"`
	SentAt      time.Time `bson:"sent_at"`
}

// EnsureIndexes creates the unique and lookup indexes both collections rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.counters.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "resource", Value: 1}, {Key: "period", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "period", Value: 1}, {Key: "period_start", Value: 1}}},
	})
	if err != nil {
		return unavailable(err)
	}

	_, err = s.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "resource", Value: 1},
				{Key: "period", Value: 1},
				{Key: "period_start", Value: 1},
				{Key: "tier", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "period", Value: 1}, {Key: "period_start", Value: 1}}},
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Increment is a pipeline upsert that restarts the count when the stored
// period start is older than periodStart. A lost upsert race is retried
// once as a plain update.
func (s *Store) Increment(ctx context.Context, key quota.CounterKey, by int64, periodStart time.Time) (quota.Counter, error) {
	if by <= 0 {
		return quota.Counter{}, quota.ErrInvalidQuantity
	}
	periodStart = periodStart.UTC()

	stale := bson.D{{Key: "$lt", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$period_start", nil}}},
		periodStart,
	}}}
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "count", Value: bson.D{{Key: "$cond", Value: bson.A{
				stale,
				by,
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$count", 0}}}, by}}},
			}}}},
			{Key: "period_start", Value: bson.D{{Key: "$cond", Value: bson.A{stale, periodStart, "$period_start"}}}},
		}}},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc counterDoc
	err := s.counters.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc)
	if mongox.IsDuplicateKeyError(err) {
		// Two upserts raced to create the document; the loser now updates it.
		err = s.counters.FindOneAndUpdate(ctx, keyFilter(key), update, opts).Decode(&doc)
	}
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	return quota.Counter{Key: key, Count: doc.Count, PeriodStart: doc.PeriodStart.UTC()}, nil
}

// Get finds one counter document; none means a zero counter.
func (s *Store) Get(ctx context.Context, key quota.CounterKey) (quota.Counter, error) {
	var doc counterDoc
	err := s.counters.FindOne(ctx, keyFilter(key)).Decode(&doc)
	if mongox.IsNotFoundError(err) {
		return quota.Counter{Key: key}, nil
	}
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	return quota.Counter{Key: key, Count: doc.Count, PeriodStart: doc.PeriodStart.UTC()}, nil
}

// Reset updates the document only when its period start is earlier.
func (s *Store) Reset(ctx context.Context, key quota.CounterKey, newPeriodStart time.Time) (bool, error) {
	filter := append(keyFilter(key), bson.E{Key: "period_start", Value: bson.D{{Key: "$lt", Value: newPeriodStart.UTC()}}})
	res, err := s.counters.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
		{Key: "count", Value: int64(0)},
		{Key: "period_start", Value: newPeriodStart.UTC()},
	}}})
	if err != nil {
		return false, unavailable(err)
	}
	return res.ModifiedCount > 0, nil
}

// ListStale finds the counters of period that started before before.
func (s *Store) ListStale(ctx context.Context, period quota.Period, before time.Time) ([]quota.CounterKey, error) {
	cur, err := s.counters.Find(ctx,
		bson.D{
			{Key: "period", Value: string(period)},
			{Key: "period_start", Value: bson.D{{Key: "$lt", Value: before.UTC()}}},
		},
		options.Find().SetSort(bson.D{{Key: "tenant_id", Value: 1}, {Key: "resource", Value: 1}}),
	)
	if err != nil {
		return nil, unavailable(err)
	}

	var docs []counterDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable(err)
	}

	keys := make([]quota.CounterKey, 0, len(docs))
	for _, d := range docs {
		key, err := d.key()
		if err != nil {
			return nil, unavailable(err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Claim upserts one document per tier. The unique index makes a
// concurrent claim of the same tier a no-op for the loser.
func (s *Store) Claim(ctx context.Context, key quota.CounterKey, periodStart time.Time, tiers []quota.Status, sentAt time.Time) ([]quota.Status, error) {
	tiers = slices.Clone(tiers)
	slices.Sort(tiers)
	tiers = slices.Compact(tiers)

	var claimed []quota.Status
	for _, tier := range tiers {
		filter := append(cycleFilter(key, periodStart), bson.E{Key: "tier", Value: tier.String()})
		res, err := s.notifications.UpdateOne(ctx, filter,
			bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "sent_at", Value: sentAt.UTC()}}}},
			options.UpdateOne().SetUpsert(true),
		)
		if mongox.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return claimed, unavailable(err)
		}
		if res.UpsertedCount > 0 {
			claimed = append(claimed, tier)
		}
	}
	return claimed, nil
}

// Sent returns the records of one cycle ordered by tier.
func (s *Store) Sent(ctx context.Context, key quota.CounterKey, periodStart time.Time) ([]quota.NotificationRecord, error) {
	cur, err := s.notifications.Find(ctx, cycleFilter(key, periodStart))
	if err != nil {
		return nil, unavailable(err)
	}

	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, unavailable(err)
	}

	records := make([]quota.NotificationRecord, 0, len(docs))
	for _, d := range docs {
		tier, err := quota.ParseStatus(d.Tier)
		if err != nil {
			return nil, unavailable(err)
		}
		records = append(records, quota.NotificationRecord{
			Key:         key,
			Tier:        tier,
			PeriodStart: d.PeriodStart.UTC(),
			SentAt:      d.SentAt.UTC(),
		})
	}
	slices.SortFunc(records, func(a, b quota.NotificationRecord) int { return int(a.Tier) - int(b.Tier) })
	return records, nil
}

// Clear deletes the records of period whose cycle started before before.
func (s *Store) Clear(ctx context.Context, period quota.Period, before time.Time) (int, error) {
	res, err := s.notifications.DeleteMany(ctx, bson.D{
		{Key: "period", Value: string(period)},
		{Key: "period_start", Value: bson.D{{Key: "$lt", Value: before.UTC()}}},
	})
	if err != nil {
		return 0, unavailable(err)
	}
	return int(res.DeletedCount), nil
}

func (d counterDoc) key() (quota.CounterKey, error) {
	tenantID, err := uuid.Parse(d.TenantID)
	if err != nil {
		return quota.CounterKey{}, err
	}
	resource, err := quota.ParseResource(d.Resource)
	if err != nil {
		return quota.CounterKey{}, err
	}
	period, err := quota.ParsePeriod(d.Period)
	if err != nil {
		return quota.CounterKey{}, err
	}
	return quota.CounterKey{TenantID: tenantID, Resource: resource, Period: period}, nil
}

func keyFilter(key quota.CounterKey) bson.D {
	return bson.D{
		{Key: "tenant_id", Value: key.TenantID.String()},
		{Key: "resource", Value: string(key.Resource)},
		{Key: "period", Value: string(key.Period)},
	}
}

func cycleFilter(key quota.CounterKey, periodStart time.Time) bson.D {
	return append(keyFilter(key), bson.E{Key: "period_start", Value: periodStart.UTC()})
}

func unavailable(err error) error {
	return errors.Join(quota.ErrStoreUnavailable, err)
}
