package quota

import (
	"context"
	"fmt"
)

// PlanLimits holds the four allowances of a plan. Zero means unlimited.
type PlanLimits struct {
	TrackingDaily   int64 `yaml:"tracking_daily" json:"tracking_daily"`
	TrackingMonthly int64 `yaml:"tracking_monthly" json:"tracking_monthly"`
	AIDaily         int64 `yaml:"ai_daily" json:"ai_daily"`
	AIMonthly       int64 `yaml:"ai_monthly" json:"ai_monthly"`
}

// For returns the limit for a resource and period.
func (l PlanLimits) For(res Resource, period Period) int64 {
	switch {
	case res == Tracking && period == Daily:
		return l.TrackingDaily
	case res == Tracking && period == Monthly:
		return l.TrackingMonthly
	case res == AIGeneration && period == Daily:
		return l.AIDaily
	case res == AIGeneration && period == Monthly:
		return l.AIMonthly
	}
	return 0
}

func (l PlanLimits) validate() error {
	for _, res := range Resources() {
		for _, p := range Periods() {
			if l.For(res, p) < 0 {
				return fmt.Errorf("%s %s limit is negative", res, p)
			}
		}
	}
	// a finite monthly allowance below a finite daily one makes the daily limit unreachable
	if l.TrackingMonthly > 0 && l.TrackingDaily > l.TrackingMonthly {
		return fmt.Errorf("tracking daily limit %d exceeds monthly limit %d", l.TrackingDaily, l.TrackingMonthly)
	}
	if l.AIMonthly > 0 && l.AIDaily > l.AIMonthly {
		return fmt.Errorf("ai daily limit %d exceeds monthly limit %d", l.AIDaily, l.AIMonthly)
	}
	return nil
}

// Price is a display price in minor currency units. The engine never uses it
// for decisions.
type Price struct {
	Amount   int64  `yaml:"amount" json:"amount"`
	Currency string `yaml:"currency" json:"currency"`
	Interval string `yaml:"interval,omitempty" json:"interval,omitempty"`
}

// Plan describes a subscription plan and its metered allowances.
type Plan struct {
	ID     string     `yaml:"id" json:"id"`
	Name   string     `yaml:"name" json:"name"`
	Price  Price      `yaml:"price" json:"price"`
	Limits PlanLimits `yaml:"limits" json:"limits"`
}

// PlanResolver resolves a plan identifier to its plan. It sits on the hot path
// of every Authorize call and must be cheap. Unknown identifiers yield an error
// wrapping ErrPlanNotFound.
type PlanResolver interface {
	Resolve(ctx context.Context, planID string) (Plan, error)
}

// PlanResolverFunc adapts a function to the PlanResolver interface.
type PlanResolverFunc func(ctx context.Context, planID string) (Plan, error)

// Resolve calls f.
func (f PlanResolverFunc) Resolve(ctx context.Context, planID string) (Plan, error) {
	return f(ctx, planID)
}
