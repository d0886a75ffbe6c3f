// Package cache provides the framework's key-value stores.
//
// [Cache] is a generic store with in-memory ([NewMemory]) and Redis
// ([NewRedis]) implementations. Besides get/set it offers [Cache.Add]
// (store only when absent), [Pull] and [Remember], which deduplicates
// concurrent misses with singleflight:
//
//	user, err := cache.Remember(ctx, users, "user:42", func(ctx context.Context) (User, time.Duration, error) {
//		u, err := repo.Find(ctx, 42)
//		return u, 10 * time.Minute, err
//	})
//
// [Counter] holds fixed-window counters used by the rate limiter, and
// [Locker] holds owner-checked locks. [Lock] wraps a Locker for a single key
// and is what the scheduler uses to keep tasks from overlapping:
//
//	lock := cache.NewLock(locker, "reports:daily", time.Hour)
//	ran, err := lock.Run(ctx, buildReport)
//
// Memory implementations are process-local; use the Redis ones when several
// servers share state.
package cache
