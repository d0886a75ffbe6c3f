package routing_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/routing"
)

func mustAdd(t *testing.T, c *routing.Collection, r *routing.Route) *routing.Route {
	t.Helper()
	_, err := c.Add(r)
	require.NoError(t, err)
	return r
}

func TestCollectionMatch(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	index := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/users", "index"))
	show := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/users/{id}", "show").WhereNumber("id"))
	store := mustAdd(t, c, routing.NewRoute([]string{"POST"}, "/users", "store"))
	archive := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/archive/{year?}", "archive").Default("year", "2024"))

	tests := []struct {
		name   string
		method string
		target string
		want   *routing.Route
		params map[string]string
	}{
		{name: "static", method: "GET", target: "/users", want: index, params: map[string]string{}},
		{name: "trailing slash", method: "GET", target: "/users/", want: index, params: map[string]string{}},
		{name: "head on get route", method: "HEAD", target: "/users", want: index, params: map[string]string{}},
		{name: "param", method: "GET", target: "/users/42", want: show, params: map[string]string{"id": "42"}},
		{name: "post", method: "POST", target: "/users", want: store, params: map[string]string{}},
		{name: "optional present", method: "GET", target: "/archive/2020", want: archive, params: map[string]string{"year": "2020"}},
		{name: "optional default", method: "GET", target: "/archive", want: archive, params: map[string]string{"year": "2024"}},
		{name: "decoded path", method: "GET", target: "/archive/a%20b", want: archive, params: map[string]string{"year": "a b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.target, nil)
			m, err := c.Match(req)
			require.NoError(t, err)
			require.Same(t, tt.want, m.Route)
			require.Equal(t, tt.params, m.Params)
		})
	}
}

func TestCollectionNotFound(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/users/{id}", nil).WhereNumber("id"))

	_, err := c.Match(httptest.NewRequest(http.MethodGet, "/users/abc", nil))
	require.ErrorIs(t, err, routing.ErrNotFound)

	_, err = c.Match(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.ErrorIs(t, err, routing.ErrNotFound)
}

func TestCollectionMethodNotAllowed(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/posts", nil))
	mustAdd(t, c, routing.NewRoute([]string{"POST"}, "/posts", nil))

	_, err := c.Match(httptest.NewRequest(http.MethodDelete, "/posts", nil))
	mna, ok := routing.AsMethodNotAllowed(err)
	require.True(t, ok)
	require.Equal(t, []string{"GET", "HEAD", "POST"}, mna.Allowed)
	require.Equal(t, "DELETE", mna.Method)
	require.Contains(t, mna.Error(), "Supported methods: GET, HEAD, POST")
}

func TestCollectionAutomaticOptions(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	mustAdd(t, c, routing.NewRoute([]string{"PUT", "PATCH"}, "/posts/{post}", nil))

	_, err := c.Match(httptest.NewRequest(http.MethodOptions, "/posts/1", nil))
	opts, ok := routing.AsOptionsResult(err)
	require.True(t, ok)
	require.Equal(t, []string{"PUT", "PATCH"}, opts.Allowed)
}

func TestCollectionFallback(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	fallback := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/{fallbackPlaceholder}", "fallback").
		Where("fallbackPlaceholder", ".*").
		MarkFallback())
	home := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/", "home"))
	page := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/{page}", "page").WhereIn("page", "about"))

	m, err := c.Match(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.Same(t, home, m.Route)

	m, err = c.Match(httptest.NewRequest(http.MethodGet, "/about", nil))
	require.NoError(t, err)
	require.Same(t, page, m.Route)

	m, err = c.Match(httptest.NewRequest(http.MethodGet, "/deep/missing/page", nil))
	require.NoError(t, err)
	require.Same(t, fallback, m.Route)
	require.Equal(t, "deep/missing/page", m.Param("fallbackPlaceholder"))

	t.Run("other verbs stay 404", func(t *testing.T) {
		t.Parallel()
		_, err := c.Match(httptest.NewRequest(http.MethodPost, "/deep/missing/page", nil))
		require.ErrorIs(t, err, routing.ErrNotFound)
	})
}

func TestCollectionDomainRoutes(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	tenant := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/users/{id}", "tenant").SetDomain("{account}.example.com"))
	plain := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/users/{id}", "plain"))

	req := httptest.NewRequest(http.MethodGet, "http://Acme.example.com:8080/users/7", nil)
	m, err := c.Match(req)
	require.NoError(t, err)
	require.Same(t, tenant, m.Route)
	require.Equal(t, map[string]string{"account": "Acme", "id": "7"}, m.Params)

	req = httptest.NewRequest(http.MethodGet, "http://other.test/users/7", nil)
	m, err = c.Match(req)
	require.NoError(t, err)
	require.Same(t, plain, m.Route)
}

func TestCollectionSchemeRoutes(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/secure", nil).HTTPSOnly())
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/plain", nil).HTTPOnly())

	_, err := c.Match(httptest.NewRequest(http.MethodGet, "/secure", nil))
	require.ErrorIs(t, err, routing.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	req.TLS = &tls.ConnectionState{}
	_, err = c.Match(req)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/plain", nil)
	req.URL.Scheme = "https"
	_, err = c.Match(req)
	require.ErrorIs(t, err, routing.ErrNotFound)
}

func TestCollectionReplacesSameRoute(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/dup", "first"))
	second := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/dup", "second"))

	m, err := c.Match(httptest.NewRequest(http.MethodGet, "/dup", nil))
	require.NoError(t, err)
	require.Same(t, second, m.Route)
	require.Equal(t, 1, c.Len())
}

func TestCollectionKeysDomainSetAfterAdd(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	a := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/dashboard", "a"))
	a.SetDomain("a.example.com")
	b := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/dashboard", "b"))
	b.SetDomain("b.example.com")
	require.NoError(t, c.Compile())
	require.Equal(t, 2, c.Len())

	m, err := c.Match(httptest.NewRequest(http.MethodGet, "http://a.example.com/dashboard", nil))
	require.NoError(t, err)
	require.Same(t, a, m.Route)

	m, err = c.Match(httptest.NewRequest(http.MethodGet, "http://b.example.com/dashboard", nil))
	require.NoError(t, err)
	require.Same(t, b, m.Route)
}

func TestCollectionByName(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	first := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/a", nil)).SetName("home")
	_, ok := c.ByName("home")
	require.True(t, ok)

	second := mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/b", nil)).SetName("home")
	require.NoError(t, c.Compile())

	r, ok := c.ByName("home")
	require.True(t, ok)
	require.Same(t, second, r)
	require.NotSame(t, first, r)
	require.True(t, c.HasName("home"))
	require.False(t, c.HasName("home", "missing"))
}

type alwaysFalse struct{}

func (alwaysFalse) Matches(*routing.Route, *http.Request) bool { return false }

func TestCollectionCustomValidators(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection(routing.WithValidators(routing.MethodValidator{}, alwaysFalse{}))
	mustAdd(t, c, routing.NewRoute([]string{"GET"}, "/", nil))

	_, err := c.Match(httptest.NewRequest(http.MethodGet, "/", nil))
	require.ErrorIs(t, err, routing.ErrNotFound)
}
