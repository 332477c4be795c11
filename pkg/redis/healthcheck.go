package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Healthcheck returns a probe that PINGs the server. A positive timeout
// bounds each probe independently of the caller's deadline.
func Healthcheck(client redis.UniversalClient, timeout time.Duration) func(context.Context) error {
	return func(ctx context.Context) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		return nil
	}
}
