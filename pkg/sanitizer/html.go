// Package sanitizer cleans untrusted strings before they reach an HTML page.
package sanitizer

import (
	"html"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy *bluemonday.Policy
	safePolicy   *bluemonday.Policy
	initOnce     sync.Once
)

func initPolicies() {
	initOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()

		safePolicy = bluemonday.NewPolicy()
		safePolicy.AllowStandardURLs()
		safePolicy.AllowElements(
			"p", "br",
			"strong", "b", "em", "i",
			"ul", "ol", "li",
			"code", "pre", "blockquote",
		)
		safePolicy.AllowAttrs("href").OnElements("a")
		safePolicy.RequireNoFollowOnLinks(true)
	})
}

// Text strips all markup and returns plain text.
// Entities produced by the policy are decoded so the result can be escaped
// once by the template that prints it.
func Text(s string) string {
	initPolicies()
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

// HTML keeps basic formatting tags (p, a, strong, em, lists, code) and drops
// everything else, including scripts, event handlers and javascript: URLs.
// The result is safe to write unescaped.
func HTML(s string) string {
	initPolicies()
	return safePolicy.Sanitize(s)
}

// Custom applies a caller-supplied policy.
// Returns input unchanged if policy is nil.
func Custom(s string, policy *bluemonday.Policy) string {
	if policy == nil {
		return s
	}
	return policy.Sanitize(s)
}
