package maintenance_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/cache"
	"github.com/dmitrymomot/keel/pkg/maintenance"
)

func TestDownUp(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemory[maintenance.State](cache.WithDefaultTTL(time.Minute))
	t.Cleanup(func() { _ = store.Close() })

	m := maintenance.New(store, maintenance.WithClock(func() time.Time { return now }))

	active, err := m.Active(ctx)
	require.NoError(t, err)
	require.False(t, active)

	require.NoError(t, m.Down(ctx, maintenance.State{Secret: "let-me-in", Retry: 60}))

	s, ok, err := m.State(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, now, s.Time)
	require.Equal(t, "let-me-in", s.Secret)
	require.Equal(t, http.StatusServiceUnavailable, s.StatusCode())

	require.NoError(t, m.Up(ctx))
	active, err = m.Active(ctx)
	require.NoError(t, err)
	require.False(t, active)
}

func TestExcepts(t *testing.T) {
	t.Parallel()

	s := maintenance.State{Except: []string{"/up", "api/webhooks/*", "/status/*/ping"}}

	tests := []struct {
		path string
		want bool
	}{
		{"/up", true},
		{"/up/", true},
		{"/api/webhooks/stripe", true},
		{"/status/db/ping", true},
		{"/status/db/pong", false},
		{"/", false},
		{"/upgrade", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, s.Excepts(tt.path))
		})
	}
}

func TestCustomStatus(t *testing.T) {
	t.Parallel()

	require.Equal(t, http.StatusTeapot, maintenance.State{Status: http.StatusTeapot}.StatusCode())
}
