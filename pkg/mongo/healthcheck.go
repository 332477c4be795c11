package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Healthcheck returns a probe that pings the primary. A positive timeout
// bounds each probe.
func Healthcheck(client *mongo.Client, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}
