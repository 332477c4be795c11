package pgstore

import (
	"context"
	"embed"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/quotakit/pkg/pg"
	"github.com/dmitrymomot/quotakit/pkg/quota"
)

// Migrations holds the goose migrations for the tables used by this package.
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations is rooted at the migration files, ready for pg.Migrate.
var Migrations = mustSub(migrationFiles, "migrations")

// DB is the subset of *pgxpool.Pool used by the store. A pgx.Tx satisfies it too.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements quota.Store on PostgreSQL.
type Store struct {
	db DB
}

var _ quota.Store = (*Store)(nil)

// New creates a Store on db, usually a *pgxpool.Pool. The tables come from
// the embedded migrations, see Migrate.
func New(db DB) *Store {
	return &Store{db: db}
}

const incrementSQL = `
INSERT INTO usage_counters (tenant_id, resource, period, count, period_start)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (tenant_id, resource, period) DO UPDATE SET
    count = CASE
        WHEN usage_counters.period_start < EXCLUDED.period_start THEN EXCLUDED.count
        ELSE usage_counters.count + EXCLUDED.count
    END,
    period_start = GREATEST(usage_counters.period_start, EXCLUDED.period_start),
    updated_at = now()
RETURNING count, period_start`

// Increment upserts the counter in one statement. The row keeps the newer
// period start and restarts its count when the cycle moved on.
func (s *Store) Increment(ctx context.Context, key quota.CounterKey, by int64, periodStart time.Time) (quota.Counter, error) {
	if by <= 0 {
		return quota.Counter{}, quota.ErrInvalidQuantity
	}
	c := quota.Counter{Key: key}
	err := s.db.QueryRow(ctx, incrementSQL,
		key.TenantID, string(key.Resource), string(key.Period), by, periodStart.UTC(),
	).Scan(&c.Count, &c.PeriodStart)
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	c.PeriodStart = c.PeriodStart.UTC()
	return c, nil
}

// Get reads one counter row; a missing row is a zero counter.
func (s *Store) Get(ctx context.Context, key quota.CounterKey) (quota.Counter, error) {
	c := quota.Counter{Key: key}
	err := s.db.QueryRow(ctx,
		`SELECT count, period_start FROM usage_counters WHERE tenant_id = $1 AND resource = $2 AND period = $3`,
		key.TenantID, string(key.Resource), string(key.Period),
	).Scan(&c.Count, &c.PeriodStart)
	if pg.IsNotFoundError(err) {
		return quota.Counter{Key: key}, nil
	}
	if err != nil {
		return quota.Counter{}, unavailable(err)
	}
	c.PeriodStart = c.PeriodStart.UTC()
	return c, nil
}

// Reset is a conditional UPDATE, so a second sweep for the same boundary
// changes nothing.
func (s *Store) Reset(ctx context.Context, key quota.CounterKey, newPeriodStart time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE usage_counters SET count = 0, period_start = $4, updated_at = now()
		 WHERE tenant_id = $1 AND resource = $2 AND period = $3 AND period_start < $4`,
		key.TenantID, string(key.Resource), string(key.Period), newPeriodStart.UTC(),
	)
	if err != nil {
		return false, unavailable(err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListStale selects the counters of period that started before before.
func (s *Store) ListStale(ctx context.Context, period quota.Period, before time.Time) ([]quota.CounterKey, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tenant_id, resource FROM usage_counters
		 WHERE period = $1 AND period_start < $2
		 ORDER BY tenant_id, resource`,
		string(period), before.UTC(),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	keys, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quota.CounterKey, error) {
		var (
			tenantID uuid.UUID
			resource string
		)
		if err := row.Scan(&tenantID, &resource); err != nil {
			return quota.CounterKey{}, err
		}
		return quota.CounterKey{TenantID: tenantID, Resource: quota.Resource(resource), Period: period}, nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return keys, nil
}

const claimSQL = `
INSERT INTO quota_notifications (tenant_id, resource, period, tier, period_start, sent_at)
SELECT $1::uuid, $2::text, $3::text, tier, $4::timestamptz, $5::timestamptz
FROM unnest($6::text[]) AS tier
ON CONFLICT DO NOTHING
RETURNING tier`

// Claim inserts one row per tier and relies on the unique cycle key; only
// the rows actually inserted are returned.
func (s *Store) Claim(ctx context.Context, key quota.CounterKey, periodStart time.Time, tiers []quota.Status, sentAt time.Time) ([]quota.Status, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		names = append(names, t.String())
	}

	rows, err := s.db.Query(ctx, claimSQL,
		key.TenantID, string(key.Resource), string(key.Period), periodStart.UTC(), sentAt.UTC(), names,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	claimed, err := pgx.CollectRows(rows, scanTier)
	if err != nil {
		return nil, unavailable(err)
	}
	slices.Sort(claimed)
	return claimed, nil
}

// Sent returns the records of one cycle ordered by tier.
func (s *Store) Sent(ctx context.Context, key quota.CounterKey, periodStart time.Time) ([]quota.NotificationRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT tier, sent_at FROM quota_notifications
		 WHERE tenant_id = $1 AND resource = $2 AND period = $3 AND period_start = $4`,
		key.TenantID, string(key.Resource), string(key.Period), periodStart.UTC(),
	)
	if err != nil {
		return nil, unavailable(err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (quota.NotificationRecord, error) {
		var (
			tier   string
			sentAt time.Time
		)
		if err := row.Scan(&tier, &sentAt); err != nil {
			return quota.NotificationRecord{}, err
		}
		status, err := quota.ParseStatus(tier)
		if err != nil {
			return quota.NotificationRecord{}, err
		}
		return quota.NotificationRecord{Key: key, Tier: status, PeriodStart: periodStart.UTC(), SentAt: sentAt.UTC()}, nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	slices.SortFunc(records, func(a, b quota.NotificationRecord) int { return int(a.Tier) - int(b.Tier) })
	return records, nil
}

// Clear deletes the records of period whose cycle started before before.
func (s *Store) Clear(ctx context.Context, period quota.Period, before time.Time) (int, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM quota_notifications WHERE period = $1 AND period_start < $2`,
		string(period), before.UTC(),
	)
	if err != nil {
		return 0, unavailable(err)
	}
	return int(tag.RowsAffected()), nil
}

func scanTier(row pgx.CollectableRow) (quota.Status, error) {
	var tier string
	if err := row.Scan(&tier); err != nil {
		return 0, err
	}
	return quota.ParseStatus(tier)
}

func unavailable(err error) error {
	return errors.Join(quota.ErrStoreUnavailable, err)
}
