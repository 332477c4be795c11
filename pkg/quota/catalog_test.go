package quota_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

const catalogYAML = `
version: "2025-03"
plans:
  - id: starter
    name: Starter
    price: {amount: 1900, currency: USD, interval: month}
    limits:
      tracking_daily: 100
      tracking_monthly: 2000
      ai_daily: 20
      ai_monthly: 300
  - id: enterprise
    name: Enterprise
    limits:
      tracking_daily: 0
      tracking_monthly: 0
      ai_daily: 1000
      ai_monthly: 0
`

func TestLoadCatalog(t *testing.T) {
	t.Parallel()

	t.Run("parses plans", func(t *testing.T) {
		t.Parallel()
		c, err := quota.LoadCatalog(strings.NewReader(catalogYAML))
		require.NoError(t, err)
		assert.Equal(t, "2025-03", c.Version())

		p, err := c.Resolve(context.Background(), "starter")
		require.NoError(t, err)
		assert.Equal(t, "Starter", p.Name)
		assert.Equal(t, int64(1900), p.Price.Amount)
		assert.Equal(t, int64(100), p.Limits.For(quota.Tracking, quota.Daily))
		assert.Equal(t, int64(2000), p.Limits.For(quota.Tracking, quota.Monthly))
		assert.Equal(t, int64(20), p.Limits.For(quota.AIGeneration, quota.Daily))
		assert.Equal(t, int64(300), p.Limits.For(quota.AIGeneration, quota.Monthly))

		plans := c.Plans()
		require.Len(t, plans, 2)
		assert.Equal(t, "enterprise", plans[0].ID)
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()
		c, err := quota.LoadCatalog(strings.NewReader(catalogYAML))
		require.NoError(t, err)
		_, err = c.Resolve(context.Background(), "gold")
		assert.ErrorIs(t, err, quota.ErrPlanNotFound)
	})

	t.Run("rejects unknown limit names", func(t *testing.T) {
		t.Parallel()
		doc := "version: v1\nplans:\n  - id: x\n    limits:\n      tracking_dialy: 5\n"
		_, err := quota.LoadCatalog(strings.NewReader(doc))
		assert.ErrorIs(t, err, quota.ErrFailedToLoadPlan)
	})

	t.Run("requires version", func(t *testing.T) {
		t.Parallel()
		_, err := quota.LoadCatalog(strings.NewReader("plans: []\n"))
		assert.ErrorIs(t, err, quota.ErrInvalidCatalog)
	})

	t.Run("round trips through yaml", func(t *testing.T) {
		t.Parallel()
		c, err := quota.LoadCatalog(strings.NewReader(catalogYAML))
		require.NoError(t, err)

		out, err := yaml.Marshal(c)
		require.NoError(t, err)

		again, err := quota.LoadCatalog(strings.NewReader(string(out)))
		require.NoError(t, err)
		assert.Equal(t, c.Plans(), again.Plans())
	})

	t.Run("from file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yaml")
		require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

		c, err := quota.LoadCatalogFile(path)
		require.NoError(t, err)
		assert.Len(t, c.Plans(), 2)

		_, err = quota.LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorIs(t, err, quota.ErrFailedToLoadPlan)
	})
}

func TestNewCatalogValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		plans []quota.Plan
	}{
		{"empty id", []quota.Plan{{ID: " "}}},
		{"duplicate id", []quota.Plan{{ID: "a"}, {ID: "a"}}},
		{"negative limit", []quota.Plan{{ID: "a", Limits: quota.PlanLimits{AIDaily: -1}}}},
		{"daily above monthly", []quota.Plan{{ID: "a", Limits: quota.PlanLimits{TrackingDaily: 50, TrackingMonthly: 10}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := quota.NewCatalog("v1", tt.plans...)
			assert.ErrorIs(t, err, quota.ErrInvalidCatalog)
		})
	}

	t.Run("daily limit with unlimited monthly is fine", func(t *testing.T) {
		t.Parallel()
		_, err := quota.NewCatalog("v1", quota.Plan{ID: "a", Limits: quota.PlanLimits{TrackingDaily: 50}})
		assert.NoError(t, err)
	})
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	res, err := quota.ParseResource("ai_generation")
	require.NoError(t, err)
	assert.Equal(t, quota.AIGeneration, res)
	_, err = quota.ParseResource("sms")
	assert.ErrorIs(t, err, quota.ErrInvalidResource)

	p, err := quota.ParsePeriod("monthly")
	require.NoError(t, err)
	assert.Equal(t, quota.Monthly, p)
	_, err = quota.ParsePeriod("weekly")
	assert.ErrorIs(t, err, quota.ErrInvalidPeriod)

	for _, s := range []quota.Status{quota.Normal, quota.HighUsage, quota.NearlyFull, quota.LimitReached} {
		got, err := quota.ParseStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}
