package cookie_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/cookie"
)

const (
	secret    = "0123456789abcdef0123456789abcdef"
	oldSecret = "fedcba9876543210fedcba9876543210"
)

// roundTrip copies the cookies written to rec onto a new request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestPlain(t *testing.T) {
	t.Parallel()
	jar := cookie.New(cookie.Config{})

	_, err := jar.Get(httptest.NewRequest(http.MethodGet, "/", nil), "missing")
	require.ErrorIs(t, err, cookie.ErrNotFound)

	rec := httptest.NewRecorder()
	jar.Set(rec, "theme", "dark", cookie.MaxAge(60))
	got, err := jar.Get(roundTrip(rec), "theme")
	require.NoError(t, err)
	require.Equal(t, "dark", got)
}

func TestAttributes(t *testing.T) {
	t.Parallel()
	jar := cookie.New(cookie.Config{Domain: "example.com", Secure: true})

	c := jar.Make("a", "b")
	require.Equal(t, "/", c.Path)
	require.Equal(t, "example.com", c.Domain)
	require.True(t, c.Secure)
	require.True(t, c.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, c.SameSite)

	c = jar.Make("a", "b", cookie.HTTPOnly(false), cookie.Path("/admin"), cookie.SameSite(http.SameSiteStrictMode))
	require.False(t, c.HttpOnly)
	require.Equal(t, "/admin", c.Path)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)

	rec := httptest.NewRecorder()
	jar.Forever(rec, "f", "v")
	jar.Forget(rec, "gone")
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	require.Equal(t, 5*365*24*3600, cookies[0].MaxAge)
	require.Equal(t, -1, cookies[1].MaxAge)
}

func TestSigned(t *testing.T) {
	t.Parallel()

	t.Run("requires secret", func(t *testing.T) {
		t.Parallel()
		jar := cookie.New(cookie.Config{}, "too-short")
		require.False(t, jar.HasSecret())
		require.ErrorIs(t, jar.SetSigned(httptest.NewRecorder(), "a", "b"), cookie.ErrNoSecret)
		require.ErrorIs(t, cookie.CheckSecret("too-short"), cookie.ErrBadSecret)
		require.NoError(t, cookie.CheckSecret(secret))
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		jar := cookie.New(cookie.Config{}, secret)
		rec := httptest.NewRecorder()
		require.NoError(t, jar.SetSigned(rec, "uid", "42"))

		got, err := jar.GetSigned(roundTrip(rec), "uid")
		require.NoError(t, err)
		require.Equal(t, "42", got)
	})

	t.Run("tampered", func(t *testing.T) {
		t.Parallel()
		jar := cookie.New(cookie.Config{}, secret)
		rec := httptest.NewRecorder()
		require.NoError(t, jar.SetSigned(rec, "uid", "42"))

		c := rec.Result().Cookies()[0]
		_, sig, _ := strings.Cut(c.Value, ".")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "uid", Value: "NDM." + sig})
		_, err := jar.GetSigned(req, "uid")
		require.ErrorIs(t, err, cookie.ErrBadSig)
	})

	t.Run("bound to name", func(t *testing.T) {
		t.Parallel()
		jar := cookie.New(cookie.Config{}, secret)
		rec := httptest.NewRecorder()
		require.NoError(t, jar.SetSigned(rec, "uid", "42"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "admin", Value: rec.Result().Cookies()[0].Value})
		_, err := jar.GetSigned(req, "admin")
		require.ErrorIs(t, err, cookie.ErrBadSig)
	})
}

func TestEncrypted(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		jar := cookie.New(cookie.Config{}, secret)
		rec := httptest.NewRecorder()
		require.NoError(t, jar.SetEncrypted(rec, "remember", "token-value"))
		require.NotContains(t, rec.Result().Cookies()[0].Value, "token-value")

		got, err := jar.GetEncrypted(roundTrip(rec), "remember")
		require.NoError(t, err)
		require.Equal(t, "token-value", got)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		jar := cookie.New(cookie.Config{}, secret)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "remember", Value: "abc"})
		_, err := jar.GetEncrypted(req, "remember")
		require.ErrorIs(t, err, cookie.ErrDecrypt)
	})

	t.Run("key rotation", func(t *testing.T) {
		t.Parallel()
		old := cookie.New(cookie.Config{}, oldSecret)
		rec := httptest.NewRecorder()
		require.NoError(t, old.SetEncrypted(rec, "remember", "v"))

		rotated := cookie.New(cookie.Config{}, secret, oldSecret)
		got, err := rotated.GetEncrypted(roundTrip(rec), "remember")
		require.NoError(t, err)
		require.Equal(t, "v", got)

		fresh := cookie.New(cookie.Config{}, secret)
		_, err = fresh.GetEncrypted(roundTrip(rec), "remember")
		require.ErrorIs(t, err, cookie.ErrDecrypt)
	})
}
