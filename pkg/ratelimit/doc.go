// Package ratelimit counts attempts per key over fixed windows backed by a
// cache.Counter, so limits are shared across instances when the counter is
// Redis.
//
//	limiter := ratelimit.New(cache.NewRedisCounter(client))
//	limiter.For("login", func(r *http.Request) []ratelimit.Limit {
//		return []ratelimit.Limit{ratelimit.PerMinute(5).By(r.FormValue("email"))}
//	})
//
//	if ok, _ := limiter.TooManyAttempts(ctx, key, 5); ok {
//		wait, _ := limiter.AvailableIn(ctx, key)
//	}
package ratelimit
