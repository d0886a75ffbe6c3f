package middlewares

import (
	"net/http"
	"slices"
	"strings"

	"github.com/dmitrymomot/keel/internal"
)

// MethodOverrideField is the form field HTML forms use to spoof a method.
const MethodOverrideField = "_method"

// MethodOverrideHeader is the header clients use to spoof a method.
const MethodOverrideHeader = "X-HTTP-Method-Override"

// MethodOverride lets POST requests stand in for PUT, PATCH and DELETE,
// which HTML forms cannot send. It must be global: routing reads the
// rewritten method.
func MethodOverride(allowed ...string) internal.Middleware {
	if len(allowed) == 0 {
		allowed = []string{http.MethodPut, http.MethodPatch, http.MethodDelete}
	}
	allowed = slices.Clone(allowed)
	for i, m := range allowed {
		allowed[i] = strings.ToUpper(m)
	}

	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			r := c.Request()
			if r.Method != http.MethodPost {
				return next(c)
			}

			method := r.Header.Get(MethodOverrideHeader)
			if method == "" {
				method = c.Form(MethodOverrideField)
			}
			method = strings.ToUpper(strings.TrimSpace(method))
			if method != "" && slices.Contains(allowed, method) {
				r.Method = method
			}
			return next(c)
		}
	}
}
