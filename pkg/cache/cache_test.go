package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/cache"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string]()
		defer c.Close()

		_, err := c.Get(ctx, "missing")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("ttl semantics", func(t *testing.T) {
		t.Parallel()
		clk := newClock()
		c := cache.NewMemory[string](cache.WithClock(clk.Now), cache.WithDefaultTTL(time.Minute), cache.WithCleanupInterval(0))
		defer c.Close()

		require.NoError(t, c.Set(ctx, "short", "a", time.Second))
		require.NoError(t, c.Set(ctx, "default", "b", 0))
		require.NoError(t, c.Set(ctx, "forever", "c", -1))

		clk.Advance(2 * time.Second)
		_, err := c.Get(ctx, "short")
		require.ErrorIs(t, err, cache.ErrNotFound)
		v, err := c.Get(ctx, "default")
		require.NoError(t, err)
		require.Equal(t, "b", v)

		clk.Advance(time.Hour)
		ok, err := c.Has(ctx, "default")
		require.NoError(t, err)
		require.False(t, ok)
		v, err = c.Get(ctx, "forever")
		require.NoError(t, err)
		require.Equal(t, "c", v)
	})

	t.Run("add only when absent", func(t *testing.T) {
		t.Parallel()
		clk := newClock()
		c := cache.NewMemory[int](cache.WithClock(clk.Now), cache.WithCleanupInterval(0))
		defer c.Close()

		added, err := c.Add(ctx, "k", 1, time.Second)
		require.NoError(t, err)
		require.True(t, added)

		added, err = c.Add(ctx, "k", 2, time.Second)
		require.NoError(t, err)
		require.False(t, added)

		clk.Advance(time.Second)
		added, err = c.Add(ctx, "k", 3, time.Second)
		require.NoError(t, err)
		require.True(t, added)

		v, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, 3, v)
	})

	t.Run("lru eviction", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string](cache.WithMaxEntries(2))
		defer c.Close()

		var evicted []string
		c.OnEvict(func(key, _ string) { evicted = append(evicted, key) })

		require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, c.Set(ctx, "b", "2", time.Minute))
		_, err := c.Get(ctx, "a")
		require.NoError(t, err)
		require.NoError(t, c.Set(ctx, "c", "3", time.Minute))

		require.Equal(t, []string{"b"}, evicted)
		require.Equal(t, 2, c.Len())
	})

	t.Run("delete and clear", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string]()
		defer c.Close()

		require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
		require.NoError(t, c.Set(ctx, "b", "2", time.Minute))
		require.NoError(t, c.Delete(ctx, "a"))
		require.NoError(t, c.Delete(ctx, "missing"))
		require.Equal(t, 1, c.Len())
		require.NoError(t, c.Clear(ctx))
		require.Equal(t, 0, c.Len())
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string]()
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())

		require.ErrorIs(t, c.Set(ctx, "k", "v", 0), cache.ErrClosed)
		_, err := c.Add(ctx, "k", "v", 0)
		require.ErrorIs(t, err, cache.ErrClosed)
	})

	t.Run("janitor sweeps expired entries", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string](cache.WithCleanupInterval(5 * time.Millisecond))
		defer c.Close()

		require.NoError(t, c.Set(ctx, "k", "v", time.Millisecond))
		require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	})
}

func TestPull(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := cache.NewMemory[string]()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := cache.Pull[string](ctx, c, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	_, err = cache.Pull[string](ctx, c, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
}

func TestRemember(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("hit skips fn", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string]()
		defer c.Close()
		require.NoError(t, c.Set(ctx, "remember-hit", "cached", time.Minute))

		v, err := cache.Remember[string](ctx, c, "remember-hit", func(context.Context) (string, time.Duration, error) {
			t.Fatal("fn must not be called")
			return "", 0, nil
		})
		require.NoError(t, err)
		require.Equal(t, "cached", v)
	})

	t.Run("error is not cached", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[string]()
		defer c.Close()
		boom := errors.New("boom")

		_, err := cache.Remember[string](ctx, c, "remember-err", func(context.Context) (string, time.Duration, error) {
			return "", 0, boom
		})
		require.ErrorIs(t, err, boom)
		ok, err := c.Has(ctx, "remember-err")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("concurrent misses call fn once", func(t *testing.T) {
		t.Parallel()
		c := cache.NewMemory[int]()
		defer c.Close()

		var calls atomic.Int32
		release := make(chan struct{})
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				v, err := cache.Remember[int](ctx, c, "remember-once", func(context.Context) (int, time.Duration, error) {
					calls.Add(1)
					<-release
					return 7, time.Minute, nil
				})
				require.NoError(t, err)
				require.Equal(t, 7, v)
			})
		}
		time.Sleep(20 * time.Millisecond)
		close(release)
		wg.Wait()
		require.Equal(t, int32(1), calls.Load())
	})
}

func TestMemoryCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := newClock()
	c := cache.NewMemoryCounter(cache.WithClock(clk.Now))

	n, err := c.Increment(ctx, "hits", 1, time.Minute)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	clk.Advance(30 * time.Second)
	n, err = c.Increment(ctx, "hits", 2, time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	ttl, err := c.TTL(ctx, "hits")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, ttl, "ttl is fixed by the first increment")

	clk.Advance(30 * time.Second)
	n, err = c.Count(ctx, "hits")
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = c.Increment(ctx, "hits", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Reset(ctx, "hits"))
	n, err = c.Count(ctx, "hits")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMemoryLocker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("owner checked release", func(t *testing.T) {
		t.Parallel()
		l := cache.NewMemoryLocker()

		ok, err := l.Acquire(ctx, "job", "a", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = l.Acquire(ctx, "job", "b", time.Minute)
		require.NoError(t, err)
		require.False(t, ok)

		require.ErrorIs(t, l.Release(ctx, "job", "b"), cache.ErrLockNotHeld)
		owner, err := l.Owner(ctx, "job")
		require.NoError(t, err)
		require.Equal(t, "a", owner)

		require.NoError(t, l.Release(ctx, "job", "a"))
		owner, err = l.Owner(ctx, "job")
		require.NoError(t, err)
		require.Empty(t, owner)
	})

	t.Run("expires", func(t *testing.T) {
		t.Parallel()
		clk := newClock()
		l := cache.NewMemoryLocker(cache.WithClock(clk.Now))

		ok, err := l.Acquire(ctx, "job", "a", time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		clk.Advance(time.Second)
		ok, err = l.Acquire(ctx, "job", "b", time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		require.ErrorIs(t, l.Release(ctx, "job", "a"), cache.ErrLockNotHeld)
	})

	t.Run("force release", func(t *testing.T) {
		t.Parallel()
		l := cache.NewMemoryLocker()
		_, err := l.Acquire(ctx, "job", "a", 0)
		require.NoError(t, err)
		require.NoError(t, l.ForceRelease(ctx, "job"))
		ok, err := l.Acquire(ctx, "job", "b", 0)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("run skips when held", func(t *testing.T) {
		t.Parallel()
		locker := cache.NewMemoryLocker()
		first := cache.NewLock(locker, "report", time.Minute)
		second := cache.NewLock(locker, "report", time.Minute)
		require.NotEqual(t, first.Owner(), second.Owner())

		ran, err := first.Run(ctx, func(ctx context.Context) error {
			ran, err := second.Run(ctx, func(context.Context) error {
				t.Fatal("overlapping run")
				return nil
			})
			require.NoError(t, err)
			require.False(t, ran)
			return nil
		})
		require.NoError(t, err)
		require.True(t, ran)

		ok, err := second.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok, "lock released after run")
	})

	t.Run("block times out", func(t *testing.T) {
		t.Parallel()
		locker := cache.NewMemoryLocker()
		holder := cache.NewLock(locker, "k", time.Minute)
		ok, err := holder.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		err = cache.NewLock(locker, "k", time.Minute).Block(ctx, 10*time.Millisecond)
		require.ErrorIs(t, err, cache.ErrLockTimeout)
	})

	t.Run("restored handle releases", func(t *testing.T) {
		t.Parallel()
		locker := cache.NewMemoryLocker()
		l := cache.NewLock(locker, "k", time.Minute)
		_, err := l.Get(ctx)
		require.NoError(t, err)

		require.NoError(t, cache.RestoreLock(locker, "k", l.Owner(), time.Minute).Release(ctx))
	})
}
