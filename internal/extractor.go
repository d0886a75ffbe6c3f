package internal

import (
	"strings"

	"github.com/spf13/cast"
)

// ExtractorSource reads a raw value, such as a token, from the request.
// It reports false when the value is absent or empty.
type ExtractorSource = func(Context) (string, bool)

// Extractor tries its sources in order; the first non-empty value wins.
// TokenGuard uses one to find the bearer token.
type Extractor struct {
	sources []ExtractorSource
}

func NewExtractor(sources ...ExtractorSource) Extractor {
	return Extractor{sources: sources}
}

func (e Extractor) Extract(c Context) (string, bool) {
	for _, src := range e.sources {
		if v, ok := src(c); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func present(v string) (string, bool) {
	return v, v != ""
}

func FromHeader(name string) ExtractorSource {
	return func(c Context) (string, bool) { return present(c.Header(name)) }
}

func FromQuery(name string) ExtractorSource {
	return func(c Context) (string, bool) { return present(c.Query(name)) }
}

// FromParam reads a route parameter.
func FromParam(name string) ExtractorSource {
	return func(c Context) (string, bool) { return present(c.Param(name)) }
}

func FromForm(name string) ExtractorSource {
	return func(c Context) (string, bool) { return present(c.Form(name)) }
}

func FromCookie(name string) ExtractorSource {
	return cookieSource(Context.Cookie, name)
}

// FromCookieSigned reads a cookie written with SetCookieSigned. Tampered
// cookies count as missing.
func FromCookieSigned(name string) ExtractorSource {
	return cookieSource(Context.CookieSigned, name)
}

func FromCookieEncrypted(name string) ExtractorSource {
	return cookieSource(Context.CookieEncrypted, name)
}

func cookieSource(read func(Context, string) (string, error), name string) ExtractorSource {
	return func(c Context) (string, bool) {
		v, err := read(c, name)
		if err != nil {
			return "", false
		}
		return present(v)
	}
}

// FromSession reads a session value. Numbers and booleans are formatted;
// values that cannot be represented as a string are skipped.
func FromSession(key string) ExtractorSource {
	return func(c Context) (string, bool) {
		val, err := c.SessionValue(key)
		if err != nil || val == nil {
			return "", false
		}
		s, err := cast.ToStringE(val)
		if err != nil {
			return "", false
		}
		return present(s)
	}
}

// FromBearerToken reads "Authorization: Bearer <token>". The scheme is
// case-insensitive.
func FromBearerToken() ExtractorSource {
	return func(c Context) (string, bool) {
		scheme, token, ok := strings.Cut(c.Header("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return "", false
		}
		return present(strings.TrimSpace(token))
	}
}
