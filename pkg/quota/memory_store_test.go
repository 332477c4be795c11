package quota_test

import (
	"testing"

	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/quota/quotatest"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	quotatest.RunStoreSuite(t, func(t *testing.T) quota.Store {
		return quota.NewMemoryStore()
	})
}
