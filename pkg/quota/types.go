package quota

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Resource is a metered upstream capability.
type Resource string

// Metered resources. Adding one requires a matching field in PlanLimits.
const (
	Tracking     Resource = "tracking"
	AIGeneration Resource = "ai_generation"
)

// Resources returns every metered resource in a stable order.
func Resources() []Resource {
	return []Resource{Tracking, AIGeneration}
}

// Valid reports whether r is a known resource.
func (r Resource) Valid() bool {
	return r == Tracking || r == AIGeneration
}

// ParseResource converts a string into a Resource.
func ParseResource(s string) (Resource, error) {
	r := Resource(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidResource, s)
	}
	return r, nil
}

// Period is the horizon a counter accumulates over before it resets.
type Period string

const (
	Daily   Period = "daily"
	Monthly Period = "monthly"
)

// Periods returns every period in a stable order, shortest first.
func Periods() []Period {
	return []Period{Daily, Monthly}
}

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == Daily || p == Monthly
}

// ParsePeriod converts a string into a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// Status is the usage tier derived from a counter and its limit.
type Status int

// Tiers in ascending order.
const (
	Normal Status = iota
	HighUsage
	NearlyFull
	LimitReached
)

// NotifiableTiers are the tiers that produce notifications, lowest first.
func NotifiableTiers() []Status {
	return []Status{HighUsage, NearlyFull, LimitReached}
}

// String returns the lowercase status name used on the wire.
func (s Status) String() string {
	switch s {
	case Normal:
		return "normal"
	case HighUsage:
		return "high_usage"
	case NearlyFull:
		return "nearly_full"
	case LimitReached:
		return "limit_reached"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "normal":
		return Normal, nil
	case "high_usage":
		return HighUsage, nil
	case "nearly_full":
		return NearlyFull, nil
	case "limit_reached":
		return LimitReached, nil
	}
	return Normal, fmt.Errorf("quota: unknown status %q", s)
}

// MarshalText encodes the status by name, so JSON and YAML carry
// "nearly_full" rather than a number.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// CounterKey identifies one usage counter.
type CounterKey struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Resource Resource  `json:"resource"`
	Period   Period    `json:"period"`
}

// String formats the key as tenant/resource/period for logs.
func (k CounterKey) String() string {
	return k.TenantID.String() + ":" + string(k.Resource) + ":" + string(k.Period)
}

// Counter is a point-in-time snapshot of a usage counter.
// A zero PeriodStart means the counter has never been incremented.
type Counter struct {
	Key         CounterKey `json:"key"`
	Count       int64      `json:"count"`
	PeriodStart time.Time  `json:"period_start"`
}

// EffectiveCount returns the count attributable to the cycle that starts at
// periodStart. A counter left over from an earlier cycle counts as zero.
func (c Counter) EffectiveCount(periodStart time.Time) int64 {
	if c.PeriodStart.Before(periodStart) {
		return 0
	}
	return c.Count
}

// Reason explains why the gate denied an action.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonLimitReached    Reason = "limit_reached"
	ReasonPlanNotFound    Reason = "plan_not_found"
	ReasonUnavailable     Reason = "unavailable"
	ReasonBillingInactive Reason = "billing_inactive"
)

// Decision is the answer of the enforcement gate.
type Decision struct {
	Allowed    bool      `json:"allowed"`
	Reason     Reason    `json:"reason,omitempty"`
	Resource   Resource  `json:"resource"`
	Period     Period    `json:"period,omitempty"`
	Count      int64     `json:"count"`
	Limit      int64     `json:"limit"`
	Percentage int       `json:"percentage"`
	ResetAt    time.Time `json:"reset_at,omitzero"`
}

// Usage describes one resource and period for dashboards.
type Usage struct {
	Resource    Resource  `json:"resource"`
	Period      Period    `json:"period"`
	Count       int64     `json:"count"`
	Limit       int64     `json:"limit"`
	Unlimited   bool      `json:"unlimited"`
	Percentage  int       `json:"percentage"`
	Status      Status    `json:"status"`
	PeriodStart time.Time `json:"period_start"`
	ResetAt     time.Time `json:"reset_at"`
}

// Snapshot is the full usage picture of a tenant.
type Snapshot struct {
	TenantID       uuid.UUID `json:"tenant_id"`
	PlanID         string    `json:"plan_id"`
	CatalogVersion string    `json:"catalog_version,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
	Usage          []Usage   `json:"usage"`
}

// Get returns the usage entry for a resource and period.
func (s Snapshot) Get(res Resource, period Period) (Usage, bool) {
	for _, u := range s.Usage {
		if u.Resource == res && u.Period == period {
			return u, true
		}
	}
	return Usage{}, false
}

// Event is a threshold notification handed to the dispatcher.
type Event struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Resource    Resource  `json:"resource"`
	Period      Period    `json:"period"`
	Tier        Status    `json:"tier"`
	Count       int64     `json:"count"`
	Limit       int64     `json:"limit"`
	Percentage  int       `json:"percentage"`
	PeriodStart time.Time `json:"period_start"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Key returns the counter key the event refers to.
func (e Event) Key() CounterKey {
	return CounterKey{TenantID: e.TenantID, Resource: e.Resource, Period: e.Period}
}
