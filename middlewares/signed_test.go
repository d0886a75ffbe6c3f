package middlewares_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/middlewares"
	"github.com/dmitrymomot/keel/pkg/routing"
)

func signedApp(t *testing.T, signingKey string) *internal.App {
	t.Helper()

	opts := []internal.Option{
		internal.WithRootURL("http://example.com"),
		internal.WithMiddlewareAlias("signed", middlewares.SignedFactory),
		internal.WithRoutes(func(r internal.Router) {
			r.GET("/unsubscribe/{user}", okHandler).SetName("unsubscribe").Middleware("signed")
			r.GET("/download/{file}", okHandler).SetName("download").Middleware("signed:relative")
		}),
	}
	if signingKey != "" {
		opts = append(opts, internal.WithSigningKey(signingKey))
	}
	return internal.New(opts...)
}

func TestValidateSignature(t *testing.T) {
	t.Parallel()

	app := signedApp(t, appKey)

	t.Run("valid absolute signature", func(t *testing.T) {
		t.Parallel()

		u, err := app.URLs().SignedRoute("unsubscribe", map[string]string{"user": "7"}, time.Time{})
		require.NoError(t, err)

		w := serve(app, httptest.NewRequest(http.MethodGet, u, nil))
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tampered parameter", func(t *testing.T) {
		t.Parallel()

		u, err := app.URLs().SignedRoute("unsubscribe", map[string]string{"user": "7"}, time.Time{})
		require.NoError(t, err)

		w := serve(app, jsonRequest(http.MethodGet, strings.Replace(u, "/7?", "/8?", 1)))
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()

		w := serve(app, jsonRequest(http.MethodGet, "/unsubscribe/7"))
		require.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("expired signature", func(t *testing.T) {
		t.Parallel()

		var reported error
		app := internal.New(
			internal.WithRootURL("http://example.com"),
			internal.WithSigningKey(appKey),
			internal.WithRoutes(func(r internal.Router) {
				r.GET("/unsubscribe/{user}", okHandler, middlewares.ValidateSignature(true)).SetName("unsubscribe")
			}),
			internal.WithErrorHandler(func(c internal.Context, err error) error {
				reported = err
				return c.NoContent(http.StatusForbidden)
			}),
		)
		u, err := app.URLs().SignedRoute("unsubscribe", map[string]string{"user": "7"}, time.Now().Add(-time.Minute))
		require.NoError(t, err)

		w := serve(app, httptest.NewRequest(http.MethodGet, u, nil))
		require.Equal(t, http.StatusForbidden, w.Code)

		var sigErr *internal.InvalidSignatureError
		require.True(t, errors.As(reported, &sigErr))
		require.ErrorIs(t, reported, routing.ErrSignatureExpired)
	})

	t.Run("relative signature ignores the host", func(t *testing.T) {
		t.Parallel()

		u, err := app.URLs().SignedRelativeRoute("download", map[string]string{"file": "report.pdf"}, time.Now().Add(time.Hour))
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(u, "/download/"))

		req := httptest.NewRequest(http.MethodGet, u, nil)
		req.Host = "cdn.example.net"
		require.Equal(t, http.StatusOK, serve(app, req).Code)
	})

	t.Run("absolute signature checks the host", func(t *testing.T) {
		t.Parallel()

		u, err := app.URLs().SignedRoute("unsubscribe", map[string]string{"user": "7"}, time.Time{})
		require.NoError(t, err)

		req := jsonRequest(http.MethodGet, u)
		req.Host = "evil.example.net"
		require.Equal(t, http.StatusForbidden, serve(app, req).Code)
	})

	t.Run("no signing key rejects everything", func(t *testing.T) {
		t.Parallel()

		app := signedApp(t, "")
		w := serve(app, jsonRequest(http.MethodGet, "/unsubscribe/7?signature=abc"))
		require.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestSignedFactory(t *testing.T) {
	t.Parallel()

	for _, params := range [][]string{{}, {"relative"}, {"absolute"}} {
		mw, err := middlewares.SignedFactory(params...)
		require.NoError(t, err)
		require.NotNil(t, mw)
	}

	_, err := middlewares.SignedFactory("sometimes")
	require.Error(t, err)
}
