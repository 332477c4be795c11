// Package redis connects to Redis through go-redis with retries and exposes a
// health probe. Configuration is read from the environment via Config.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := redisstore.New(client, redisstore.WithPrefix(cfg.KeyPrefix))
package redis
