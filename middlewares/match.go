package middlewares

import "strings"

// matchPath reports whether the request path matches one of patterns.
// Patterns are compared without leading and trailing slashes, and "*"
// matches any run of characters, slashes included: "api/*" matches
// "/api/users/1".
func matchPath(patterns []string, p string) bool {
	p = strings.Trim(p, "/")
	for _, pattern := range patterns {
		pattern = strings.Trim(pattern, "/")
		if pattern == "*" || wildcard(pattern, p) {
			return true
		}
	}
	return false
}

func wildcard(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}
