package keel_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel"
	"github.com/dmitrymomot/keel/pkg/session"
)

func serve(app *keel.App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func ok(c keel.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestNewRegistersDefaultThrottle(t *testing.T) {
	t.Parallel()

	app := keel.New(keel.WithRoutes(func(r keel.Router) {
		r.GET("/limited", ok).Middleware("throttle:2,1")
	}))

	for range 2 {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/limited", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
}

func TestNewUserAliasOverridesDefault(t *testing.T) {
	t.Parallel()

	called := false
	app := keel.New(
		keel.WithMiddlewareAlias("throttle", func(params ...string) (keel.Middleware, error) {
			return func(next keel.HandlerFunc) keel.HandlerFunc {
				return func(c keel.Context) error {
					called = true
					return next(c)
				}
			}, nil
		}),
		keel.WithRoutes(func(r keel.Router) {
			r.GET("/limited", ok).Middleware("throttle:1,1")
		}),
	)

	for range 3 {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/limited", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.True(t, called)
}

func TestNewWebGroupVerifiesCSRF(t *testing.T) {
	t.Parallel()

	app := keel.New(
		keel.WithSession(session.NewMemoryStore()),
		keel.WithRoutes(func(r keel.Router) {
			r.Group(keel.GroupAttributes{Middleware: []string{"web"}}, func(r keel.Router) {
				r.GET("/form", func(c keel.Context) error {
					return c.String(http.StatusOK, c.CSRFToken())
				})
				r.POST("/form", ok)
			})
		}),
	)

	rec := serve(app, httptest.NewRequest(http.MethodPost, "/form", nil))
	require.Equal(t, keel.StatusPageExpired, rec.Code)

	rec = serve(app, httptest.NewRequest(http.MethodGet, "/form", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	token := rec.Body.String()
	require.Len(t, token, 40)

	form := url.Values{"_token": {token}}
	req := httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}

	rec = serve(app, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestWithCSRFExcept(t *testing.T) {
	t.Parallel()

	app := keel.New(
		keel.WithSession(session.NewMemoryStore()),
		keel.WithCSRFExcept("webhooks/*"),
		keel.WithRoutes(func(r keel.Router) {
			r.POST("/webhooks/stripe", ok).Middleware("web")
			r.POST("/account", ok).Middleware("web")
		}),
	)

	rec := serve(app, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(app, httptest.NewRequest(http.MethodPost, "/account", nil))
	require.Equal(t, keel.StatusPageExpired, rec.Code)
}

func TestNewAuthAlias(t *testing.T) {
	t.Parallel()

	app := keel.New(
		keel.WithGuard("api", keel.GuardFunc(func(c keel.Context) (*keel.Identity, error) {
			if c.Header("X-User") == "" {
				return nil, nil
			}
			return &keel.Identity{ID: c.Header("X-User")}, nil
		})),
		keel.WithRoutes(func(r keel.Router) {
			r.GET("/me", func(c keel.Context) error {
				return c.String(http.StatusOK, c.UserID())
			}).Middleware("auth:api")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Accept", "application/json")
	rec := serve(app, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User", "42")
	rec = serve(app, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "42", rec.Body.String())
}

func TestNewSignedAlias(t *testing.T) {
	t.Parallel()

	app := keel.New(
		keel.WithRootURL("http://example.com"),
		keel.WithSigningKey("keel-test-signing-key-0123456789"),
		keel.WithRoutes(func(r keel.Router) {
			r.GET("/unsubscribe/{user}", ok).SetName("unsubscribe").Middleware("signed")
		}),
	)

	rec := serve(app, httptest.NewRequest(http.MethodGet, "http://example.com/unsubscribe/7", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	signed, err := app.URLs().TemporarySignedRoute("unsubscribe", map[string]string{"user": "7"}, time.Hour)
	require.NoError(t, err)

	rec = serve(app, httptest.NewRequest(http.MethodGet, signed, nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestNewUnknownMiddlewarePanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		keel.New(keel.WithRoutes(func(r keel.Router) {
			r.GET("/", ok).Middleware("missing")
		}))
	})
}

func TestParamHelper(t *testing.T) {
	t.Parallel()

	app := keel.New(keel.WithRoutes(func(r keel.Router) {
		r.GET("/items/{id}", func(c keel.Context) error {
			id := keel.Param[int64](c, "id")
			page := keel.QueryDefault(c, "page", 1)
			return c.JSON(http.StatusOK, map[string]int64{"id": id, "page": int64(page)})
		})
	}))

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/items/15?page=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":15,"page":3}`, rec.Body.String())
}

func TestSessionValueOr(t *testing.T) {
	t.Parallel()

	app := keel.New(
		keel.WithSession(session.NewMemoryStore()),
		keel.WithRoutes(func(r keel.Router) {
			r.GET("/theme", func(c keel.Context) error {
				sess, err := c.Session()
				if err != nil {
					return err
				}
				return c.String(http.StatusOK, keel.SessionValueOr(sess, "theme", "light"))
			})
		}),
	)

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/theme", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "light", rec.Body.String())
}

func TestAppHandlerServesOverHTTP(t *testing.T) {
	t.Parallel()

	app := keel.New(keel.WithRoutes(func(r keel.Router) {
		r.GET("/ping", ok)
	}))
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
