package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmitrymomot/keel/internal"
)

// appKey is a signing key long enough for signed and encrypted cookies.
const appKey = "middlewares-test-key-0123456789abcdef"

// serve sends req to app and returns the recorded response.
func serve(app *internal.App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

// appWith builds an app whose catch-all route runs h behind mw.
// Routes registered by extra options are matched first.
func appWith(t *testing.T, mw internal.Middleware, h internal.HandlerFunc, opts ...internal.Option) *internal.App {
	t.Helper()

	var inline []internal.Middleware
	if mw != nil {
		inline = append(inline, mw)
	}
	opts = append(opts, internal.WithRoutes(func(r internal.Router) {
		r.Any("/{path?}", h, inline...).Where("path", ".*")
	}))
	return internal.New(opts...)
}

// run is appWith plus a single request.
func run(t *testing.T, mw internal.Middleware, h internal.HandlerFunc, req *http.Request, opts ...internal.Option) *httptest.ResponseRecorder {
	t.Helper()
	return serve(appWith(t, mw, h, opts...), req)
}

func okHandler(c internal.Context) error {
	return c.String(http.StatusOK, "ok")
}

func jsonRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Accept", "application/json")
	return req
}
