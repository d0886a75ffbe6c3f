package internal_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/session"
)

const testSessionCookie = "keel_session"

// requestVia creates an App with the given options, registers a handler at GET /,
// executes fn inside that handler, and sends a request. This lets tests exercise
// the real requestContext without accessing unexported symbols.
func requestVia(t *testing.T, req *http.Request, opts []internal.Option, fn func(c internal.Context)) *httptest.ResponseRecorder {
	t.Helper()

	h := &captureHandler{fn: fn}
	opts = append(opts, internal.WithHandlers(h))
	app := internal.New(opts...)

	w := httptest.NewRecorder()
	app.ServeHTTP(w, req)
	return w
}

type captureHandler struct {
	fn func(c internal.Context)
}

func (h *captureHandler) Routes(r internal.Router) {
	r.Match([]string{http.MethodGet, http.MethodPost}, "/", func(c internal.Context) error {
		h.fn(c)
		return nil
	})
}

// seedSession stores a session with the given values and returns the store
// and the cookie that points at it.
func seedSession(t *testing.T, userID string, values map[string]any) (*session.MemoryStore, *http.Cookie) {
	t.Helper()

	store := session.NewMemoryStore()
	s := session.New("sess-"+t.Name(), "tok-"+strings.ReplaceAll(t.Name(), "/", "-"), time.Now().Add(time.Hour))
	if userID != "" {
		s.SetUserID(userID)
	}
	for k, v := range values {
		s.Set(k, v)
	}
	require.NoError(t, store.Create(context.Background(), s))
	return store, &http.Cookie{Name: testSessionCookie, Value: s.Token}
}

func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- context.Context interface tests ---

func TestContextImplementsContextInterface(t *testing.T) {
	t.Parallel()

	t.Run("usable as context.Context", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			var ctx context.Context = c
			require.NoError(t, ctx.Err())
			_, ok := ctx.Deadline()
			require.False(t, ok)
		})
	})

	t.Run("Value delegates to request context", func(t *testing.T) {
		t.Parallel()

		type key struct{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), key{}, "v"))
		requestVia(t, req, nil, func(c internal.Context) {
			require.Equal(t, "v", c.Value(key{}))
		})
	})

	t.Run("Set and Get", func(t *testing.T) {
		t.Parallel()

		type key struct{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.Nil(t, c.Get(key{}))
			c.Set(key{}, 42)
			require.Equal(t, 42, c.Get(key{}))
			require.Equal(t, 42, c.Context().Value(key{}))
			require.Equal(t, 42, internal.ContextValue[int](c, key{}))
		})
	})
}

func TestContextRequestHelpers(t *testing.T) {
	t.Parallel()

	t.Run("domain strips port", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "http://Example.COM:8080/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.Equal(t, "example.com", c.Domain())
		})
	})

	t.Run("ip from remote addr", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.9:5123"
		requestVia(t, req, nil, func(c internal.Context) {
			require.Equal(t, "203.0.113.9", c.IP())
		})
	})

	t.Run("wants json", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "application/json")
		requestVia(t, req, nil, func(c internal.Context) {
			require.True(t, c.WantsJSON())
		})

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		requestVia(t, req, nil, func(c internal.Context) {
			require.True(t, c.WantsJSON())
		})

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "text/html")
		requestVia(t, req, nil, func(c internal.Context) {
			require.False(t, c.WantsJSON())
		})
	})

	t.Run("query default", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/?page=2", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.Equal(t, "2", c.QueryDefault("page", "1"))
			require.Equal(t, "10", c.QueryDefault("limit", "10"))
		})
	})

	t.Run("route info", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.NotNil(t, c.Route())
			require.Equal(t, "/", c.Route().URI())
			require.Empty(t, c.RouteName())
			require.False(t, c.RouteIs("*"))
		})
	})
}

func TestContextResponses(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := requestVia(t, req, nil, func(c internal.Context) {
			require.NoError(t, c.JSON(http.StatusCreated, map[string]string{"ok": "yes"}))
			require.True(t, c.Written())
		})
		require.Equal(t, http.StatusCreated, w.Code)
		require.Contains(t, w.Header().Get("Content-Type"), "application/json")
		require.JSONEq(t, `{"ok":"yes"}`, w.Body.String())
	})

	t.Run("handler writing nothing answers 200", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := requestVia(t, req, nil, func(c internal.Context) {})
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("after response callbacks run after the handler", func(t *testing.T) {
		t.Parallel()

		var ran atomic.Bool
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			c.AfterResponse(func() { ran.Store(true) })
			require.False(t, ran.Load())
			_ = c.String(http.StatusOK, "done")
		})
		require.True(t, ran.Load())
	})
}

// --- Session tests ---

func TestContextSession(t *testing.T) {
	t.Parallel()

	t.Run("not configured", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			_, err := c.Session()
			require.ErrorIs(t, err, session.ErrNotConfigured)
			require.Empty(t, c.CSRFToken())
			require.Nil(t, c.Old("email"))
		})
	})

	t.Run("new session sets cookie and persists", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
			require.NoError(t, c.SetSessionValue("theme", "dark"))
			_ = c.NoContent(http.StatusNoContent)
		})

		ck := responseCookie(w, testSessionCookie)
		require.NotNil(t, ck)
		require.True(t, ck.HttpOnly)

		sess, err := store.Get(context.Background(), ck.Value)
		require.NoError(t, err)
		v, ok := sess.Get("theme")
		require.True(t, ok)
		require.Equal(t, "dark", v)
	})

	t.Run("existing session is loaded", func(t *testing.T) {
		t.Parallel()

		store, ck := seedSession(t, "", map[string]any{"cart": "3 items"})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
			v, err := c.SessionValue("cart")
			require.NoError(t, err)
			require.Equal(t, "3 items", v)
		})
	})

	t.Run("flash survives exactly one request", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		opts := []internal.Option{internal.WithSession(store)}

		w := requestVia(t, httptest.NewRequest(http.MethodGet, "/", nil), opts, func(c internal.Context) {
			require.NoError(t, c.Flash("status", "saved"))
		})
		ck := responseCookie(w, testSessionCookie)
		require.NotNil(t, ck)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		requestVia(t, req, opts, func(c internal.Context) {
			v, _ := c.SessionValue("status")
			require.Equal(t, "saved", v)
		})

		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		requestVia(t, req, opts, func(c internal.Context) {
			v, _ := c.SessionValue("status")
			require.Nil(t, v)
		})
	})

	t.Run("destroy clears cookie and store", func(t *testing.T) {
		t.Parallel()

		store, ck := seedSession(t, "user-1", nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		w := requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
			require.NoError(t, c.DestroySession())
			require.False(t, c.IsAuthenticated())
		})

		out := responseCookie(w, testSessionCookie)
		require.NotNil(t, out)
		require.Empty(t, out.Value)
		_, err := store.Get(context.Background(), ck.Value)
		require.Error(t, err)
	})
}

// --- Identity tests ---

func TestIdentityMethods(t *testing.T) {
	t.Parallel()

	t.Run("no session configured", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, nil, func(c internal.Context) {
			require.Empty(t, c.UserID())
			require.False(t, c.IsAuthenticated())
			require.False(t, c.IsCurrentUser("x"))
			require.Nil(t, c.Identity())
		})
	})

	t.Run("authenticated session", func(t *testing.T) {
		t.Parallel()

		store, ck := seedSession(t, "user-42", nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
			require.Equal(t, "user-42", c.UserID())
			require.True(t, c.IsAuthenticated())
			require.True(t, c.IsCurrentUser("user-42"))
			require.False(t, c.IsCurrentUser("user-7"))
			require.Equal(t, "web", c.Identity().Guard)
		})
	})

	t.Run("guest session", func(t *testing.T) {
		t.Parallel()

		store, ck := seedSession(t, "", nil)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(ck)
		requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
			require.False(t, c.IsAuthenticated())
			_, err := c.Authenticate()
			var authErr *internal.AuthenticationError
			require.ErrorAs(t, err, &authErr)
			require.Equal(t, []string{"web"}, authErr.Guards)
		})
	})

	t.Run("unknown guard", func(t *testing.T) {
		t.Parallel()

		store := session.NewMemoryStore()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
			_, err := c.Authenticate("api")
			require.ErrorIs(t, err, internal.ErrUnknownGuard)
		})
	})

	t.Run("custom guard", func(t *testing.T) {
		t.Parallel()

		guard := internal.GuardFunc(func(c internal.Context) (*internal.Identity, error) {
			if c.Header("X-Key") == "secret" {
				return &internal.Identity{ID: "svc"}, nil
			}
			return nil, nil
		})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Key", "secret")
		requestVia(t, req, []internal.Option{internal.WithGuard("key", guard)}, func(c internal.Context) {
			id := c.Identity()
			require.NotNil(t, id)
			require.Equal(t, "svc", id.ID)
			require.Equal(t, "key", id.Guard)
		})
	})
}

func TestLoginRotatesSession(t *testing.T) {
	t.Parallel()

	store, ck := seedSession(t, "", nil)
	var csrfBefore, csrfAfter string

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(ck)
	w := requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
		csrfBefore = c.CSRFToken()
		require.NoError(t, c.Login("user-9"))
		csrfAfter = c.CSRFToken()
		require.Equal(t, "user-9", c.UserID())
	})

	require.NotEqual(t, csrfBefore, csrfAfter)

	out := responseCookie(w, testSessionCookie)
	require.NotNil(t, out)
	require.NotEqual(t, ck.Value, out.Value, "token must rotate on login")

	_, err := store.Get(context.Background(), ck.Value)
	require.Error(t, err, "old token must stop working")

	sess, err := store.Get(context.Background(), out.Value)
	require.NoError(t, err)
	require.True(t, sess.IsAuthenticated())
	require.Equal(t, "user-9", *sess.UserID)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	store, ck := seedSession(t, "user-1", nil)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(ck)
	w := requestVia(t, req, []internal.Option{internal.WithSession(store)}, func(c internal.Context) {
		require.True(t, c.IsAuthenticated())
		require.NoError(t, c.Logout())
		require.False(t, c.IsAuthenticated())
	})

	out := responseCookie(w, testSessionCookie)
	require.NotNil(t, out)
	sess, err := store.Get(context.Background(), out.Value)
	require.NoError(t, err)
	require.False(t, sess.IsAuthenticated())
}

// --- Gate tests ---

type roleKey struct{}

func TestGate(t *testing.T) {
	t.Parallel()

	identify := internal.WithGuard("header", internal.GuardFunc(func(c internal.Context) (*internal.Identity, error) {
		if id := c.Header("X-User"); id != "" {
			return &internal.Identity{ID: id}, nil
		}
		return nil, nil
	}))

	t.Run("guest is denied", func(t *testing.T) {
		t.Parallel()

		opts := []internal.Option{
			identify,
			internal.WithAbility("view", func(internal.Context, *internal.Identity, ...any) bool { return true }),
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		requestVia(t, req, opts, func(c internal.Context) {
			require.False(t, c.Can("view"))
			var authzErr *internal.AuthorizationError
			require.ErrorAs(t, c.Authorize("view"), &authzErr)
			require.Equal(t, "view", authzErr.Ability)
		})
	})

	t.Run("ability receives arguments", func(t *testing.T) {
		t.Parallel()

		type post struct{ authorID string }
		opts := []internal.Option{
			identify,
			internal.WithAbility("update-post", func(_ internal.Context, id *internal.Identity, args ...any) bool {
				p, ok := args[0].(post)
				return ok && p.authorID == id.ID
			}),
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", "u1")
		requestVia(t, req, opts, func(c internal.Context) {
			require.True(t, c.Can("update-post", post{authorID: "u1"}))
			require.False(t, c.Can("update-post", post{authorID: "u2"}))
			require.NoError(t, c.Authorize("update-post", post{authorID: "u1"}))
		})
	})

	t.Run("undefined ability is denied", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", "u1")
		requestVia(t, req, []internal.Option{identify}, func(c internal.Context) {
			require.False(t, c.Can("anything"))
		})
	})

	t.Run("before hook decides", func(t *testing.T) {
		t.Parallel()

		opts := []internal.Option{
			identify,
			internal.WithGateBefore(func(_ internal.Context, id *internal.Identity, _ string, _ ...any) (bool, bool) {
				if id.ID == "root" {
					return true, true
				}
				return false, false
			}),
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", "root")
		requestVia(t, req, opts, func(c internal.Context) {
			require.True(t, c.Can("delete-everything"))
		})
	})

	t.Run("roles grant permissions", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		opts := []internal.Option{
			identify,
			internal.WithRoles(
				internal.RolePermissions{
					"admin":  {"users.read", "users.write"},
					"member": {"users.read"},
				},
				func(c internal.Context) string {
					calls.Add(1)
					return c.Header("X-Role")
				},
			),
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User", "u1")
		req.Header.Set("X-Role", "member")
		requestVia(t, req, opts, func(c internal.Context) {
			require.True(t, c.Can("users.read"))
			require.False(t, c.Can("users.write"))
			require.False(t, c.Can("billing.manage"))
		})
		require.Equal(t, int32(1), calls.Load(), "role extractor runs once per request")
	})
}
