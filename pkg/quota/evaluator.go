package quota

// Tier cut points, in percent of the limit. They are policy constants shared by
// every plan.
const (
	HighUsageThreshold  = 75
	NearlyFullThreshold = 90
	LimitThreshold      = 100
)

// Evaluate computes the usage percentage and tier of count against limit.
//
// A zero limit means unlimited and always yields (0, Normal). Otherwise the
// percentage is round(100*count/limit), rounded half up and capped at 100, and
// the tier is read off that percentage: 0-74 Normal, 75-89 HighUsage, 90-99
// NearlyFull, 100 LimitReached.
//
// Negative arguments violate the contract and panic.
func Evaluate(count, limit int64) (int, Status) {
	if count < 0 || limit < 0 {
		panic("quota: Evaluate called with negative count or limit")
	}
	if limit == 0 {
		return 0, Normal
	}
	pct := percentage(count, limit)
	return pct, statusFor(pct)
}

func percentage(count, limit int64) int {
	if count >= limit {
		return 100
	}
	// count < limit, so the result is at most 100
	return int((200*count + limit) / (2 * limit))
}

func statusFor(pct int) Status {
	switch {
	case pct >= LimitThreshold:
		return LimitReached
	case pct >= NearlyFullThreshold:
		return NearlyFull
	case pct >= HighUsageThreshold:
		return HighUsage
	}
	return Normal
}
