package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/cookie"
	"github.com/dmitrymomot/keel/pkg/session"
)

const (
	// CSRFField is the form field holding the token.
	CSRFField = session.KeyCSRFToken
	// CSRFHeader carries the plain token, usually from a meta tag.
	CSRFHeader = "X-CSRF-TOKEN"
	// XSRFHeader carries the XSRF-TOKEN cookie value as JavaScript clients
	// read it.
	XSRFHeader = "X-XSRF-TOKEN"
	// XSRFCookie is the cookie JavaScript clients echo back in XSRFHeader.
	XSRFCookie = "XSRF-TOKEN"
)

type csrfConfig struct {
	except    []string
	addCookie bool
}

// CSRFOption configures VerifyCSRF.
type CSRFOption func(*csrfConfig)

// WithCSRFExcept skips verification for matching paths ("webhooks/*").
func WithCSRFExcept(patterns ...string) CSRFOption {
	return func(cfg *csrfConfig) {
		cfg.except = append(cfg.except, patterns...)
	}
}

// WithoutXSRFCookie stops writing the XSRF-TOKEN cookie.
func WithoutXSRFCookie() CSRFOption {
	return func(cfg *csrfConfig) {
		cfg.addCookie = false
	}
}

// VerifyCSRF rejects state-changing requests whose token does not match the
// session's. The token is read from the "_token" form field, the
// X-CSRF-TOKEN header, or the encrypted X-XSRF-TOKEN header. Reading
// methods always pass. Mismatches return *internal.TokenMismatchError (419).
//
// Requires sessions. As a route middleware it is referenced as "csrf" and is
// part of the "web" group.
func VerifyCSRF(opts ...CSRFOption) internal.Middleware {
	cfg := &csrfConfig{addCookie: true}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			if !isReading(c.Request().Method) && !matchPath(cfg.except, c.Request().URL.Path) {
				if !tokensMatch(c) {
					return &internal.TokenMismatchError{}
				}
			}

			if cfg.addCookie {
				if err := setXSRFCookie(c); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

func isReading(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func tokensMatch(c internal.Context) bool {
	expected := c.CSRFToken()
	if expected == "" {
		return false
	}
	given := requestToken(c)
	return given != "" && subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

func requestToken(c internal.Context) string {
	if tok := c.Form(CSRFField); tok != "" {
		return tok
	}
	if tok := c.Header(CSRFHeader); tok != "" {
		return tok
	}
	header := c.Header(XSRFHeader)
	if header == "" {
		return ""
	}
	if !c.Cookies().HasSecret() {
		return header
	}
	tok, err := c.Cookies().Decrypt(XSRFCookie, header)
	if err != nil {
		return ""
	}
	return tok
}

// setXSRFCookie writes the token where JavaScript can read it.
func setXSRFCookie(c internal.Context) error {
	tok := c.CSRFToken()
	if tok == "" {
		return nil
	}
	if !c.Cookies().HasSecret() {
		c.SetCookie(XSRFCookie, tok, cookie.HTTPOnly(false))
		return nil
	}
	return c.SetCookieEncrypted(XSRFCookie, tok, cookie.HTTPOnly(false))
}
