package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Service is the enforcement gate. It answers whether a tenant may consume
// one more unit of a resource, records consumption and reports usage.
type Service struct {
	plans    PlanResolver
	tenants  TenantResolver
	store    CounterStore
	notifier *Notifier
	spool    *Spool
	clock    Clock
	logger   *slog.Logger
	metrics  *Metrics

	retryAttempts int
	retryBackoff  Backoff
}

// NewService creates the gate. Plans and tenants are resolved again on every
// call, so plan changes apply to the next check.
func NewService(plans PlanResolver, tenants TenantResolver, store CounterStore, opts ...Option) *Service {
	if plans == nil || tenants == nil || store == nil {
		panic("quota: service requires plans, tenants and a counter store")
	}
	s := &Service{
		plans:         plans,
		tenants:       tenants,
		store:         store,
		clock:         SystemClock{},
		logger:        slog.Default(),
		retryAttempts: 3,
		retryBackoff:  ExponentialBackoff{InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("quota.service"))
	if s.spool != nil {
		s.spool.onWritten = func(ctx context.Context, c Counter) { s.observe(ctx, c) }
	}
	return s
}

// Authorize decides whether tenantID may consume one more unit of res. It
// never mutates counters.
//
// The returned error is non-nil only for configuration faults the caller must
// know about (unknown plan or tenant); the decision is a deny in that case.
// Store faults yield a deny with ReasonUnavailable and a nil error.
func (s *Service) Authorize(ctx context.Context, tenantID uuid.UUID, res Resource) (Decision, error) {
	if !res.Valid() {
		return Decision{}, ErrInvalidResource
	}
	d, err := s.authorize(ctx, tenantID, res)
	s.metrics.decision(res, d)
	return d, err
}

func (s *Service) authorize(ctx context.Context, tenantID uuid.UUID, res Resource) (Decision, error) {
	deny := func(reason Reason) Decision {
		return Decision{Resource: res, Reason: reason}
	}

	tenant, plan, err := s.resolve(ctx, tenantID)
	switch {
	case errors.Is(err, ErrPlanNotFound), errors.Is(err, ErrTenantNotFound):
		s.logger.LogAttrs(ctx, slog.LevelError, "cannot resolve plan limits",
			logger.TenantID(tenantID), logger.Resource(res), logger.Error(err))
		return deny(ReasonPlanNotFound), err
	case err != nil:
		s.logger.LogAttrs(ctx, slog.LevelError, "tenant lookup failed, denying",
			logger.TenantID(tenantID), logger.Resource(res), logger.Error(err))
		return deny(ReasonUnavailable), nil
	case tenant.BillingStatus == BillingInactive:
		return deny(ReasonBillingInactive), nil
	}

	now := s.clock.Now()
	var (
		allowed  Decision
		exceeded []Decision
	)
	for _, period := range Periods() {
		start := period.Start(now)
		c, err := s.store.Get(ctx, CounterKey{TenantID: tenantID, Resource: res, Period: period})
		if err != nil {
			s.metrics.storeError("get")
			s.logger.LogAttrs(ctx, slog.LevelError, "counter store unavailable, denying",
				logger.TenantID(tenantID), logger.Resource(res), logger.Period(period), logger.Error(err))
			return deny(ReasonUnavailable), nil
		}

		count := c.EffectiveCount(start)
		limit := plan.Limits.For(res, period)
		pct, status := Evaluate(count, limit)
		d := Decision{
			Allowed:    true,
			Resource:   res,
			Period:     period,
			Count:      count,
			Limit:      limit,
			Percentage: pct,
			ResetAt:    period.Next(now),
		}
		if status == LimitReached {
			d.Allowed, d.Reason = false, ReasonLimitReached
			exceeded = append(exceeded, d)
			continue
		}
		// report the tighter period on allow; Daily wins ties
		if allowed.Resource == "" || pct > allowed.Percentage {
			allowed = d
		}
	}

	if len(exceeded) > 0 {
		// Periods are ordered shortest first, so the last entry resets latest.
		return exceeded[len(exceeded)-1], nil
	}
	return allowed, nil
}

// RecordConsumption records one unit of res for tenantID on both the daily
// and the monthly counter.
func (s *Service) RecordConsumption(ctx context.Context, tenantID uuid.UUID, res Resource) error {
	return s.RecordConsumptionN(ctx, tenantID, res, 1)
}

// RecordConsumptionN records n units of res on both the daily and the
// monthly counter. It is called after an allowed action has been performed
// and never re-checks limits, so in-flight work is always recorded even if it
// pushes a counter past its limit.
//
// Failed increments are retried inline, then spooled when a spool is
// configured. A period that can be neither written nor spooled makes the call
// fail with an error wrapping ErrStoreUnavailable. When some periods were
// recorded and others were not, the error is a *PartialWriteError and the
// caller must retry only its Failed periods with RecordConsumptionIn.
// Notification problems are logged and never returned.
func (s *Service) RecordConsumptionN(ctx context.Context, tenantID uuid.UUID, res Resource, n int64) error {
	return s.RecordConsumptionIn(ctx, tenantID, res, n, Periods()...)
}

// RecordConsumptionIn records n units of res on the given periods only. It
// exists so a partially failed RecordConsumptionN can be completed without
// counting the already written periods twice. No periods means all of them.
func (s *Service) RecordConsumptionIn(ctx context.Context, tenantID uuid.UUID, res Resource, n int64, periods ...Period) error {
	if !res.Valid() {
		return ErrInvalidResource
	}
	if n <= 0 {
		return ErrInvalidQuantity
	}
	periods, err := normalizePeriods(periods)
	if err != nil {
		return err
	}
	// the metered action already happened; a cancelled request must still be counted
	ctx = context.WithoutCancel(ctx)

	now := s.clock.Now()
	var (
		written  []Counter
		recorded []Period
		failed   []Period
		errs     []error
	)
	for _, period := range periods {
		key := CounterKey{TenantID: tenantID, Resource: res, Period: period}
		start := period.Start(now)

		c, err := s.increment(ctx, key, n, start)
		if err == nil {
			written = append(written, c)
			recorded = append(recorded, period)
			continue
		}
		s.metrics.storeError("increment")

		if s.spool != nil {
			serr := s.spool.Add(key, n, start)
			if serr == nil {
				s.logger.LogAttrs(ctx, slog.LevelWarn, "increment failed, consumption spooled",
					logger.TenantID(tenantID), logger.Resource(res), logger.Period(period), logger.Error(err))
				recorded = append(recorded, period)
				continue
			}
			err = errors.Join(err, serr)
		}
		s.logger.LogAttrs(ctx, slog.LevelError, "increment failed, consumption not recorded",
			logger.TenantID(tenantID), logger.Resource(res), logger.Period(period),
			slog.Int64("quantity", n), logger.Error(err))
		failed = append(failed, period)
		errs = append(errs, err)
	}

	if len(written) > 0 {
		s.observe(ctx, written...)
	}
	if len(failed) == 0 {
		s.metrics.consumed(res, n)
		return nil
	}
	cause := errors.Join(errs...)
	if len(recorded) == 0 {
		return errors.Join(ErrStoreUnavailable, cause)
	}
	return &PartialWriteError{Resource: res, Written: recorded, Failed: failed, Err: cause}
}

// normalizePeriods validates periods and drops duplicates, keeping order.
func normalizePeriods(periods []Period) ([]Period, error) {
	if len(periods) == 0 {
		return Periods(), nil
	}
	out := make([]Period, 0, len(periods))
	for _, p := range periods {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) increment(ctx context.Context, key CounterKey, n int64, start time.Time) (Counter, error) {
	var err error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		var c Counter
		if c, err = s.store.Increment(ctx, key, n, start); err == nil {
			return c, nil
		}
		if errors.Is(err, ErrInvalidQuantity) || attempt == s.retryAttempts {
			break
		}
		if serr := sleep(ctx, s.retryBackoff.NextInterval(attempt)); serr != nil {
			break
		}
	}
	return Counter{}, err
}

// observe runs the notifier for freshly written counters of one tenant.
func (s *Service) observe(ctx context.Context, counters ...Counter) {
	if s.notifier == nil || len(counters) == 0 {
		return
	}
	tenantID := counters[0].Key.TenantID

	_, plan, err := s.resolve(ctx, tenantID)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "skip notifications, plan unresolved",
			logger.TenantID(tenantID), logger.Error(err))
		return
	}
	for _, c := range counters {
		limit := plan.Limits.For(c.Key.Resource, c.Key.Period)
		if _, err := s.notifier.Observe(ctx, c, limit); err != nil {
			s.logger.LogAttrs(ctx, slog.LevelWarn, "notification check failed",
				logger.TenantID(tenantID), logger.Resource(c.Key.Resource),
				logger.Period(c.Key.Period), logger.Error(err))
		}
	}
}

// Run authorizes res, calls fn when allowed and records one unit of
// consumption when fn succeeds. A deny is returned as *DeniedError.
func (s *Service) Run(ctx context.Context, tenantID uuid.UUID, res Resource, fn func(ctx context.Context) error) error {
	d, err := s.Authorize(ctx, tenantID, res)
	if !d.Allowed {
		if d.Reason == ReasonNone {
			return err
		}
		return errors.Join(&DeniedError{Decision: d}, err)
	}
	if err := fn(ctx); err != nil {
		return err
	}
	return s.RecordConsumption(ctx, tenantID, res)
}

// GetUsageSnapshot returns count, limit, percentage and tier for every
// resource and period of the tenant.
func (s *Service) GetUsageSnapshot(ctx context.Context, tenantID uuid.UUID) (Snapshot, error) {
	tenant, plan, err := s.resolve(ctx, tenantID)
	if err != nil {
		return Snapshot{}, err
	}

	now := s.clock.Now()
	snap := Snapshot{
		TenantID:    tenantID,
		PlanID:      tenant.PlanID,
		GeneratedAt: now.UTC(),
		Usage:       make([]Usage, 0, len(Resources())*len(Periods())),
	}
	if v, ok := s.plans.(interface{ Version() string }); ok {
		snap.CatalogVersion = v.Version()
	}

	for _, res := range Resources() {
		for _, period := range Periods() {
			c, err := s.store.Get(ctx, CounterKey{TenantID: tenantID, Resource: res, Period: period})
			if err != nil {
				s.metrics.storeError("get")
				return Snapshot{}, errors.Join(ErrStoreUnavailable, err)
			}
			start := period.Start(now)
			count := c.EffectiveCount(start)
			limit := plan.Limits.For(res, period)
			pct, status := Evaluate(count, limit)
			snap.Usage = append(snap.Usage, Usage{
				Resource:    res,
				Period:      period,
				Count:       count,
				Limit:       limit,
				Unlimited:   limit == 0,
				Percentage:  pct,
				Status:      status,
				PeriodStart: start,
				ResetAt:     period.Next(now),
			})
		}
	}
	return snap, nil
}

func (s *Service) resolve(ctx context.Context, tenantID uuid.UUID) (Tenant, Plan, error) {
	tenant, err := s.tenants.ResolveTenant(ctx, tenantID)
	if err != nil {
		return Tenant{}, Plan{}, err
	}
	plan, err := s.plans.Resolve(ctx, tenant.PlanID)
	if err != nil {
		return tenant, Plan{}, err
	}
	return tenant, plan, nil
}
