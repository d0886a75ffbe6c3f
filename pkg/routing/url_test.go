package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/routing"
)

func newGenerator(t *testing.T, now time.Time) (*routing.Collection, *routing.URLGenerator) {
	t.Helper()

	c := routing.NewCollection()
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/users/{user}", nil)).SetName("users.show")
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/archive/{year?}/{month?}", nil)).SetName("archive")
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/docs/{path}", nil)).Where("path", ".*").SetName("docs")
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/dashboard", nil)).SetDomain("{account}.example.com").SetName("tenant.dashboard")
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/billing", nil)).HTTPSOnly().SetName("billing")
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/lang/{locale?}", nil)).Default("locale", "en").SetName("lang")
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/unsubscribe/{user}", nil)).SetName("unsubscribe")
	require.NoError(t, c.Compile())

	gen := routing.NewURLGenerator(c,
		routing.WithRootURL("http://app.test"),
		routing.WithSigningKey([]byte("secret")),
		routing.WithClock(func() time.Time { return now }),
	)
	return c, gen
}

func TestURLGeneratorRoute(t *testing.T) {
	t.Parallel()

	_, gen := newGenerator(t, time.Now())

	tests := []struct {
		name   string
		route  string
		params map[string]string
		want   string
	}{
		{name: "required param", route: "users.show", params: map[string]string{"user": "42"}, want: "/users/42"},
		{name: "extra params become query", route: "users.show", params: map[string]string{"user": "42", "tab": "posts", "a": "1"}, want: "/users/42?a=1&tab=posts"},
		{name: "escaped value", route: "users.show", params: map[string]string{"user": "john doe"}, want: "/users/john%20doe"},
		{name: "optional omitted", route: "archive", want: "/archive"},
		{name: "optional partial", route: "archive", params: map[string]string{"year": "2024"}, want: "/archive/2024"},
		{name: "optional full", route: "archive", params: map[string]string{"year": "2024", "month": "05"}, want: "/archive/2024/05"},
		{name: "slash escaped in plain param", route: "users.show", params: map[string]string{"user": "a/b"}, want: "/users/a%2Fb"},
		{name: "slashes kept", route: "docs", params: map[string]string{"path": "guide/routing"}, want: "/docs/guide/routing"},
		{name: "domain route", route: "tenant.dashboard", params: map[string]string{"account": "acme"}, want: "http://acme.example.com/dashboard"},
		{name: "default fills optional", route: "lang", want: "/lang/en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := gen.Route(tt.route, tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestURLGeneratorRoundTrip(t *testing.T) {
	t.Parallel()

	c, gen := newGenerator(t, time.Now())

	for route, params := range map[string]map[string]string{
		"users.show": {"user": "a/b"},
		"docs":       {"path": "guide/routing"},
	} {
		target, err := gen.Route(route, params)
		require.NoError(t, err)

		m, err := c.Match(httptest.NewRequest(http.MethodGet, target, nil))
		require.NoError(t, err, target)
		require.Equal(t, route, m.Route.Name())
		require.Equal(t, params, m.Params)
	}
}

func TestURLGeneratorErrors(t *testing.T) {
	t.Parallel()

	_, gen := newGenerator(t, time.Now())

	_, err := gen.Route("missing", nil)
	require.ErrorIs(t, err, routing.ErrRouteNameNotFound)

	_, err = gen.Route("users.show", nil)
	var mpe *routing.MissingParametersError
	require.ErrorAs(t, err, &mpe)
	require.Equal(t, []string{"user"}, mpe.Missing)
	require.Equal(t, "users.show", mpe.Route)
}

func TestURLGeneratorAbsolute(t *testing.T) {
	t.Parallel()

	_, gen := newGenerator(t, time.Now())

	got, err := gen.AbsoluteRoute("users.show", map[string]string{"user": "1"})
	require.NoError(t, err)
	require.Equal(t, "http://app.test/users/1", got)

	got, err = gen.AbsoluteRoute("billing", nil)
	require.NoError(t, err)
	require.Equal(t, "https://app.test/billing", got)

	require.Equal(t, "http://app.test/login?next=%2Fhome", gen.To("login", map[string][]string{"next": {"/home"}}))

	require.Equal(t, "http://app.test/posts?page=2", gen.Absolute("/posts?page=2"))
	require.Equal(t, "https://cdn.test/a.css", gen.Absolute("https://cdn.test/a.css"))
}

func TestSignedURLs(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	_, gen := newGenerator(t, now)

	t.Run("valid signature", func(t *testing.T) {
		t.Parallel()

		link, err := gen.SignedRoute("unsubscribe", map[string]string{"user": "42"}, time.Time{})
		require.NoError(t, err)
		require.Contains(t, link, "http://app.test/unsubscribe/42?signature=")

		req := httptest.NewRequest(http.MethodGet, link, nil)
		require.NoError(t, gen.VerifySignature(req, true))
	})

	t.Run("tampered url", func(t *testing.T) {
		t.Parallel()

		link, err := gen.SignedRoute("unsubscribe", map[string]string{"user": "42"}, time.Time{})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, link+"&user=43", nil)
		require.ErrorIs(t, gen.VerifySignature(req, true), routing.ErrInvalidSignature)
	})

	t.Run("expiry", func(t *testing.T) {
		t.Parallel()

		link, err := gen.TemporarySignedRoute("unsubscribe", map[string]string{"user": "42"}, time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, link, nil)
		require.NoError(t, gen.VerifySignature(req, true))

		expired, err := gen.SignedRoute("unsubscribe", map[string]string{"user": "42"}, now.Add(-time.Second))
		require.NoError(t, err)
		req = httptest.NewRequest(http.MethodGet, expired, nil)
		require.ErrorIs(t, gen.VerifySignature(req, true), routing.ErrSignatureExpired)
	})

	t.Run("relative signature ignores host", func(t *testing.T) {
		t.Parallel()

		link, err := gen.SignedRelativeRoute("users.show", map[string]string{"user": "7"}, time.Time{})
		require.NoError(t, err)
		require.Contains(t, link, "/users/7?signature=")

		req := httptest.NewRequest(http.MethodGet, "http://elsewhere.test"+link, nil)
		require.NoError(t, gen.VerifySignature(req, false))
		require.ErrorIs(t, gen.VerifySignature(req, true), routing.ErrInvalidSignature)
	})

	t.Run("missing signature", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/unsubscribe/42", nil)
		require.ErrorIs(t, gen.VerifySignature(req, true), routing.ErrInvalidSignature)
	})

	t.Run("no key", func(t *testing.T) {
		t.Parallel()
		bare := routing.NewURLGenerator(routing.NewCollection())
		_, err := bare.SignedRoute("x", nil, time.Time{})
		require.ErrorIs(t, err, routing.ErrNoSigningKey)
	})
}
