package internal_test

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
)

func TestAppRun(t *testing.T) {
	t.Parallel()

	t.Run("serves until the context is cancelled", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		var order []string
		app := internal.New(
			internal.WithRoutes(func(r internal.Router) {
				r.GET("/ping", func(c internal.Context) error { return c.String(http.StatusOK, "pong") })
			}),
			internal.WithStartupHook(func(context.Context) error { order = append(order, "app-start"); return nil }),
			internal.WithShutdownHook(func(context.Context) error { order = append(order, "app-stop"); return nil }),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- app.Run("", internal.WithListener(ln), internal.WithContext(ctx),
				internal.StartupHook(func(context.Context) error { order = append(order, "run-start"); return nil }),
				internal.ShutdownHook(func(context.Context) error { order = append(order, "run-stop"); return nil }),
			)
		}()

		var resp *http.Response
		require.Eventually(t, func() bool {
			resp, err = http.Get("http://" + ln.Addr().String() + "/ping")
			return err == nil
		}, 2*time.Second, 10*time.Millisecond)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		require.Equal(t, "pong", string(body))

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		require.Equal(t, []string{"app-start", "run-start", "run-stop", "app-stop"}, order)
	})

	t.Run("failing startup hook aborts", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		app := internal.New()
		err := app.Run("127.0.0.1:0", internal.StartupHook(func(context.Context) error { return boom }))
		require.ErrorIs(t, err, boom)
	})

	t.Run("shutdown hook errors are returned", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		boom := errors.New("close failed")
		err = internal.New().Run("", internal.WithListener(ln), internal.WithContext(ctx),
			internal.ShutdownTimeout(time.Second),
			internal.ShutdownHook(func(context.Context) error { return boom }),
		)
		require.ErrorIs(t, err, boom)
	})
}
