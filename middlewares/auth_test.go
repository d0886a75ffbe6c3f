package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/middlewares"
)

// headerGuard identifies users by the X-User header.
var headerGuard = internal.GuardFunc(func(c internal.Context) (*internal.Identity, error) {
	if id := c.Header("X-User"); id != "" {
		return &internal.Identity{ID: id}, nil
	}
	return nil, nil
})

var tokenGuard = internal.GuardFunc(func(c internal.Context) (*internal.Identity, error) {
	if c.Header("Authorization") == "Bearer secret" {
		return &internal.Identity{ID: "api-client"}, nil
	}
	return nil, nil
})

type post struct {
	ID     string
	Author string
}

func authApp(routes func(r internal.Router)) *internal.App {
	return internal.New(
		internal.WithGuard("header", headerGuard),
		internal.WithGuard("token", tokenGuard),
		internal.WithMiddlewareAlias("auth", middlewares.AuthenticateFactory),
		internal.WithMiddlewareAlias("guest", middlewares.GuestFactory("/home")),
		internal.WithMiddlewareAlias("can", middlewares.AuthorizeFactory),
		internal.WithAbility("update-post", func(c internal.Context, id *internal.Identity, args ...any) bool {
			p, ok := args[0].(*post)
			return ok && p.Author == id.ID
		}),
		internal.WithAbility("view-report", func(c internal.Context, id *internal.Identity, args ...any) bool {
			return len(args) == 1 && args[0] == "2024" && id.ID == "alice"
		}),
		internal.WithAbility("admin", func(c internal.Context, id *internal.Identity, args ...any) bool {
			return id.ID == "root"
		}),
		internal.WithBinding("post", func(c internal.Context, value, field string) (any, error) {
			if value == "1" {
				return &post{ID: "1", Author: "alice"}, nil
			}
			return nil, internal.ErrModelNotFound
		}),
		internal.WithRoutes(func(r internal.Router) {
			r.GET("/login", okHandler).SetName("login")
			routes(r)
		}),
	)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	app := authApp(func(r internal.Router) {
		r.GET("/me", func(c internal.Context) error {
			return c.String(http.StatusOK, c.UserID())
		}).Middleware("auth")
		r.GET("/api/me", func(c internal.Context) error {
			return c.String(http.StatusOK, c.Identity().ID+"@"+c.Identity().Guard)
		}).Middleware("auth:token,header")
	})

	t.Run("identified user passes", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("X-User", "alice")
		w := serve(app, req)
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "alice", w.Body.String())
	})

	t.Run("json guest gets 401", func(t *testing.T) {
		t.Parallel()

		w := serve(app, jsonRequest(http.MethodGet, "/me"))
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("html guest is redirected to login", func(t *testing.T) {
		t.Parallel()

		w := serve(app, httptest.NewRequest(http.MethodGet, "/me", nil))
		require.Equal(t, http.StatusFound, w.Code)
		require.Equal(t, "/login", w.Header().Get("Location"))
	})

	t.Run("guards are tried in order", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer secret")
		req.Header.Set("X-User", "alice")
		w := serve(app, req)
		require.Equal(t, "api-client@token", w.Body.String())

		req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("X-User", "alice")
		w = serve(app, req)
		require.Equal(t, "alice@header", w.Body.String())
	})

	t.Run("unknown guard is a server error", func(t *testing.T) {
		t.Parallel()

		app := authApp(func(r internal.Router) {
			r.GET("/x", okHandler).Middleware("auth:missing")
		})
		w := serve(app, jsonRequest(http.MethodGet, "/x"))
		require.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestRedirectIfAuthenticated(t *testing.T) {
	t.Parallel()

	app := authApp(func(r internal.Router) {
		r.GET("/register", okHandler).Middleware("guest")
		r.GET("/api/register", okHandler).Middleware("guest:token")
	})

	w := serve(app, httptest.NewRequest(http.MethodGet, "/register", nil))
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/register", nil)
	req.Header.Set("X-User", "alice")
	w = serve(app, req)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "/home", w.Header().Get("Location"))

	// Only the named guard counts.
	req = httptest.NewRequest(http.MethodGet, "/api/register", nil)
	req.Header.Set("X-User", "alice")
	w = serve(app, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/register", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = serve(app, req)
	require.Equal(t, http.StatusFound, w.Code)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	app := authApp(func(r internal.Router) {
		r.PUT("/posts/{post}", okHandler).Middleware("bindings", "can:update-post,post")
		r.GET("/reports/{year}", okHandler).Middleware("can:view-report,year")
		r.GET("/admin", okHandler).Middleware("can:admin")
	})

	tests := []struct {
		name   string
		method string
		target string
		user   string
		want   int
	}{
		{"bound model owner", http.MethodPut, "/posts/1", "alice", http.StatusOK},
		{"bound model stranger", http.MethodPut, "/posts/1", "bob", http.StatusForbidden},
		{"missing model", http.MethodPut, "/posts/2", "alice", http.StatusNotFound},
		{"raw parameter", http.MethodGet, "/reports/2024", "alice", http.StatusOK},
		{"raw parameter denied", http.MethodGet, "/reports/2023", "alice", http.StatusForbidden},
		{"no arguments", http.MethodGet, "/admin", "root", http.StatusOK},
		{"guest is denied", http.MethodGet, "/admin", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := jsonRequest(tt.method, tt.target)
			if tt.user != "" {
				req.Header.Set("X-User", tt.user)
			}
			w := serve(app, req)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthorizeFactory(t *testing.T) {
	t.Parallel()

	_, err := middlewares.AuthorizeFactory()
	require.Error(t, err)

	mw, err := middlewares.AuthorizeFactory("edit", "post")
	require.NoError(t, err)
	require.NotNil(t, mw)

	require.Panics(t, func() {
		authApp(func(r internal.Router) {
			r.GET("/x", okHandler).Middleware("can")
		})
	})
}
