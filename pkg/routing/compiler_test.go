package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/keel/pkg/routing"
)

func TestCompile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		uri       string
		wheres    map[string]string
		wantRegex string
		wantVars  []string
		prefix    string
	}{
		{
			name:      "static",
			uri:       "/about",
			wantRegex: `(?s)^/about$`,
			prefix:    "/about",
		},
		{
			name:      "root",
			uri:       "/",
			wantRegex: `(?s)^/$`,
			prefix:    "/",
		},
		{
			name:      "single parameter",
			uri:       "/users/{id}",
			wantRegex: `(?s)^/users/(?P<id>[^/]+)$`,
			wantVars:  []string{"id"},
			prefix:    "/users",
		},
		{
			name:      "constrained parameter",
			uri:       "/users/{id}",
			wheres:    map[string]string{"id": "^[0-9]+$"},
			wantRegex: `(?s)^/users/(?P<id>[0-9]+)$`,
			wantVars:  []string{"id"},
			prefix:    "/users",
		},
		{
			name:      "optional trailing parameter",
			uri:       "/users/{id?}",
			wantRegex: `(?s)^/users(?:/(?P<id>[^/]+))?$`,
			wantVars:  []string{"id"},
			prefix:    "/users",
		},
		{
			name:      "two optional parameters",
			uri:       "/archive/{year?}/{month?}",
			wantRegex: `(?s)^/archive(?:/(?P<year>[^/]+)(?:/(?P<month>[^/]+))?)?$`,
			wantVars:  []string{"year", "month"},
			prefix:    "/archive",
		},
		{
			name:      "lone optional parameter keeps slash",
			uri:       "/{slug?}",
			wantRegex: `(?s)^/(?:(?P<slug>[^/]+))?$`,
			wantVars:  []string{"slug"},
			prefix:    "",
		},
		{
			name:      "leading optional parameters nest",
			uri:       "/{a?}/{b?}",
			wantRegex: `(?s)^/(?:(?P<a>[^/]+)(?:/(?P<b>[^/]+))?)?$`,
			wantVars:  []string{"a", "b"},
			prefix:    "",
		},
		{
			name:      "separator after parameter",
			uri:       "/files/{name}.{ext}",
			wantRegex: `(?s)^/files/(?P<name>[^/\.]+)\.(?P<ext>[^/]+)$`,
			wantVars:  []string{"name", "ext"},
			prefix:    "/files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := routing.NewRoute([]string{http.MethodGet}, tt.uri, nil).WhereMap(tt.wheres)
			cr, err := r.Compiled()
			require.NoError(t, err)
			require.Equal(t, tt.wantRegex, cr.PathRegex.String())
			require.Equal(t, tt.wantVars, cr.PathVariables)
			require.Equal(t, tt.prefix, cr.StaticPrefix)
		})
	}
}

func TestLeadingOptionalParameters(t *testing.T) {
	t.Parallel()

	c := routing.NewCollection()
	route := mustAdd(t, c, routing.NewRoute([]string{http.MethodGet}, "/{a?}/{b?}", nil))

	for path, want := range map[string]map[string]string{
		"/":    {},
		"/x":   {"a": "x"},
		"/x/y": {"a": "x", "b": "y"},
	} {
		m, err := c.Match(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err, path)
		require.Same(t, route, m.Route)
		require.Equal(t, want, m.Params, path)
	}

	_, err := c.Match(httptest.NewRequest(http.MethodGet, "//x", nil))
	require.ErrorIs(t, err, routing.ErrNotFound)
}

func TestCompileHost(t *testing.T) {
	t.Parallel()

	r := routing.NewRoute([]string{http.MethodGet}, "/dashboard", nil).SetDomain("{account}.example.com")
	cr, err := r.Compiled()
	require.NoError(t, err)
	require.Equal(t, `(?i)^(?P<account>[^\.]+)\.example\.com$`, cr.HostRegex.String())
	require.Equal(t, []string{"account"}, cr.HostVariables)
	require.Equal(t, []string{"account"}, r.ParameterNames())
}

func TestCompileBindingField(t *testing.T) {
	t.Parallel()

	r := routing.NewRoute([]string{http.MethodGet}, "/posts/{post:slug}", nil)
	cr, err := r.Compiled()
	require.NoError(t, err)
	require.Equal(t, []string{"post"}, cr.PathVariables)
	require.Equal(t, "slug", cr.BindingFields["post"])
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		uri    string
		domain string
		want   error
	}{
		{name: "optional before required", uri: "/{a?}/{b}", want: routing.ErrOptionalParameter},
		{name: "optional before text", uri: "/{a?}/edit", want: routing.ErrOptionalParameter},
		{name: "duplicate in path", uri: "/{id}/{id}", want: routing.ErrDuplicateParameter},
		{name: "duplicate across host and path", uri: "/{id}", domain: "{id}.example.com", want: routing.ErrDuplicateParameter},
		{name: "numeric name", uri: "/{1st}", want: routing.ErrInvalidParameterName},
		{name: "unclosed brace", uri: "/users/{id", want: routing.ErrMalformedPattern},
		{name: "optional host parameter", uri: "/", domain: "{sub?}.example.com", want: routing.ErrOptionalParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := routing.NewRoute([]string{http.MethodGet}, tt.uri, nil)
			if tt.domain != "" {
				r.SetDomain(tt.domain)
			}
			_, err := r.Compiled()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompileInvalidWhere(t *testing.T) {
	t.Parallel()

	r := routing.NewRoute([]string{http.MethodGet}, "/{id}", nil).Where("id", "[0-9")
	_, err := r.Compiled()
	require.Error(t, err)
}

func TestRouteMethods(t *testing.T) {
	t.Parallel()

	t.Run("GET implies HEAD", func(t *testing.T) {
		t.Parallel()
		r := routing.NewRoute([]string{"get"}, "/", nil)
		require.Equal(t, []string{http.MethodGet, http.MethodHead}, r.Methods())
	})

	t.Run("duplicates are removed", func(t *testing.T) {
		t.Parallel()
		r := routing.NewRoute([]string{"PUT", "put", "PATCH"}, "/", nil)
		require.Equal(t, []string{http.MethodPut, http.MethodPatch}, r.Methods())
	})

	t.Run("uri is normalised", func(t *testing.T) {
		t.Parallel()
		r := routing.NewRoute([]string{"GET"}, "users/", nil)
		require.Equal(t, "/users", r.URI())
	})
}

func TestRouteName(t *testing.T) {
	t.Parallel()

	r := routing.NewRoute([]string{http.MethodGet}, "/users", nil).SetNamePrefix("admin.")
	require.Empty(t, r.Name())

	r.SetName("users.")
	r.SetName("index")
	require.Equal(t, "admin.users.index", r.Name())
}

func TestWhereHelpers(t *testing.T) {
	t.Parallel()

	r := routing.NewRoute([]string{http.MethodGet}, "/{id}/{slug}/{state}", nil).
		WhereNumber("id").
		WhereAlpha("slug").
		WhereIn("state", "draft", "live.now")

	w := r.Wheres()
	require.Equal(t, routing.PatternNumber, w["id"])
	require.Equal(t, routing.PatternAlpha, w["slug"])
	require.Equal(t, `(?:draft|live\.now)`, w["state"])
}
