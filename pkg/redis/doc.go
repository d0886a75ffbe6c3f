// Package redis opens go-redis clients for the cache, session, lock and
// rate-limit stores.
//
//	client, err := redis.Open(ctx, redis.Config{URL: "redis://localhost:6379/0"})
//	app := keel.New(keel.WithShutdownHook(redis.Shutdown(client)))
//
// Open retries the initial ping with a linear backoff so the application can
// start before Redis is reachable.
package redis
