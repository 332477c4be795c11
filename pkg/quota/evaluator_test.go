package quota_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		count  int64
		limit  int64
		pct    int
		status quota.Status
	}{
		{"empty", 0, 10, 0, quota.Normal},
		{"just below high usage", 74, 100, 74, quota.Normal},
		{"high usage boundary", 75, 100, 75, quota.HighUsage},
		{"just below nearly full", 89, 100, 89, quota.HighUsage},
		{"nearly full boundary", 90, 100, 90, quota.NearlyFull},
		{"just below limit", 99, 100, 99, quota.NearlyFull},
		{"limit boundary", 100, 100, 100, quota.LimitReached},
		{"over limit is capped", 250, 100, 100, quota.LimitReached},
		{"rounds half up", 1, 8, 13, quota.Normal},
		{"rounds down", 1, 3, 33, quota.Normal},
		{"rounds into high usage", 149, 200, 75, quota.HighUsage},
		{"rounds into limit", 199, 200, 100, quota.LimitReached},
		{"small limit", 9, 10, 90, quota.NearlyFull},
		{"unlimited", 1_000_000, 0, 0, quota.Normal},
		{"unlimited empty", 0, 0, 0, quota.Normal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pct, status := quota.Evaluate(tt.count, tt.limit)
			assert.Equal(t, tt.pct, pct)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestEvaluateMatchesFormula(t *testing.T) {
	t.Parallel()

	for limit := int64(1); limit <= 40; limit++ {
		for count := int64(0); count <= 2*limit; count++ {
			pct, status := quota.Evaluate(count, limit)

			// round half up with exact rationals: floor((200c + l) / 2l)
			want := min(100, int((200*count+limit)/(2*limit)))
			assert.Equal(t, want, pct, "count=%d limit=%d", count, limit)

			switch {
			case pct >= 100:
				assert.Equal(t, quota.LimitReached, status)
			case pct >= 90:
				assert.Equal(t, quota.NearlyFull, status)
			case pct >= 75:
				assert.Equal(t, quota.HighUsage, status)
			default:
				assert.Equal(t, quota.Normal, status)
			}
		}
	}
}

func TestEvaluatePanicsOnNegativeInput(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { quota.Evaluate(-1, 10) })
	assert.Panics(t, func() { quota.Evaluate(1, -10) })
}
