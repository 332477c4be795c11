package quota

import (
	"errors"
	"fmt"
)

// Domain errors for quota operations
var (
	// Decision errors
	ErrLimitReached    = errors.New("quota.errors.limit_reached")
	ErrBillingInactive = errors.New("quota.errors.billing_inactive")

	// Configuration errors
	ErrPlanNotFound     = errors.New("quota.errors.plan_not_found")
	ErrTenantNotFound   = errors.New("quota.errors.tenant_not_found")
	ErrTenantNotInCtx   = errors.New("quota.errors.tenant_not_in_context")
	ErrInvalidCatalog   = errors.New("quota.errors.invalid_catalog")
	ErrInvalidResource  = errors.New("quota.errors.invalid_resource")
	ErrInvalidPeriod    = errors.New("quota.errors.invalid_period")
	ErrInvalidQuantity  = errors.New("quota.errors.invalid_quantity")
	ErrInvalidTenantID  = errors.New("quota.errors.invalid_tenant_id")
	ErrFailedToLoadPlan = errors.New("quota.errors.failed_to_load_plans")

	// Infrastructure errors
	ErrStoreUnavailable   = errors.New("quota.errors.store_unavailable")
	ErrDispatcherClosed   = errors.New("quota.errors.dispatcher_closed")
	ErrDispatchBufferFull = errors.New("quota.errors.dispatch_buffer_full")
	ErrPublishFailed      = errors.New("quota.errors.publish_failed")
	ErrSpoolClosed        = errors.New("quota.errors.spool_closed")
)

// DeniedError is returned by Service.Run when the gate refuses an action.
// It unwraps to the sentinel matching the decision reason.
type DeniedError struct {
	Decision Decision
}

// Error names the denial reason.
func (e *DeniedError) Error() string {
	return "quota: " + string(e.Decision.Resource) + " denied: " + string(e.Decision.Reason)
}

// Unwrap exposes the reason sentinel for errors.Is.
func (e *DeniedError) Unwrap() error {
	switch e.Decision.Reason {
	case ReasonLimitReached:
		return ErrLimitReached
	case ReasonPlanNotFound:
		return ErrPlanNotFound
	case ReasonBillingInactive:
		return ErrBillingInactive
	case ReasonUnavailable:
		return ErrStoreUnavailable
	}
	return nil
}

// PartialWriteError reports a consumption that reached some periods but not
// others. Written periods are already counted (or spooled); retrying them
// would count the consumption twice. It matches ErrStoreUnavailable.
type PartialWriteError struct {
	Resource Resource
	Written  []Period
	Failed   []Period
	Err      error
}

// Error lists the written and failed periods.
func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("quota: %s recorded for %v, failed for %v: %v", e.Resource, e.Written, e.Failed, e.Err)
}

// Unwrap matches ErrStoreUnavailable and the store failure.
func (e *PartialWriteError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}
