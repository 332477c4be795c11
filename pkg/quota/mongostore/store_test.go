package mongostore_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/quotakit/pkg/mongo"
	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/quota/mongostore"
	"github.com/dmitrymomot/quotakit/pkg/quota/quotatest"
)

func TestStore(t *testing.T) {
	url := os.Getenv("QUOTA_TEST_MONGO_URL")
	if url == "" {
		t.Skip("QUOTA_TEST_MONGO_URL not set")
	}

	ctx := context.Background()
	cfg := mongo.Config{
		ConnectionURL:  url,
		Database:       "quotatest_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		ConnectTimeout: 5 * time.Second,
		MaxPoolSize:    20,
		RetryAttempts:  1,
		RetryInterval:  time.Second,
	}
	db, err := mongo.NewWithDatabase(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = db.Client().Disconnect(context.Background())
	})
	require.NoError(t, mongo.Healthcheck(db.Client(), time.Second)(ctx))

	store := mongostore.New(db)
	require.NoError(t, store.EnsureIndexes(ctx))

	quotatest.RunStoreSuite(t, func(t *testing.T) quota.Store {
		return store
	})
}
