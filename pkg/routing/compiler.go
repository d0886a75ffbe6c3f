package routing

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// separators are the characters that may precede a parameter and are
// swallowed into the parameter's (optional) group.
const separators = "/,;.:-_~+*=@|"

var (
	paramPattern = regexp.MustCompile(`\{(\w+)(?::(\w+))?(\?)?\}`)
	validName    = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// CompiledRoute holds the matching regexes and parameter layout of a route.
type CompiledRoute struct {
	PathRegex *regexp.Regexp
	HostRegex *regexp.Regexp

	// StaticPrefix is the literal path before the first parameter.
	StaticPrefix string

	PathVariables []string
	HostVariables []string

	// OptionalVariables lists the path parameters declared with "?".
	OptionalVariables []string

	// BindingFields maps parameters declared as "{post:slug}" to their field.
	BindingFields map[string]string

	pathTokens []token
	hostTokens []token
}

// Variables returns host variables followed by path variables.
func (c *CompiledRoute) Variables() []string {
	return append(slices.Clone(c.HostVariables), c.PathVariables...)
}

// IsOptional reports whether the path parameter was declared with "?".
func (c *CompiledRoute) IsOptional(name string) bool {
	return slices.Contains(c.OptionalVariables, name)
}

// token is either a literal text chunk or a parameter with its separator.
type token struct {
	text     string
	name     string
	sep      string
	pattern  string
	value    *regexp.Regexp // whole-value match of pattern, for URL generation
	optional bool
}

func (t token) isVariable() bool { return t.name != "" }

// compile turns a URI pattern and optional host pattern into a CompiledRoute.
func compile(uri, host string, wheres map[string]string) (*CompiledRoute, error) {
	cr := &CompiledRoute{BindingFields: make(map[string]string)}
	seen := make(map[string]struct{})

	if host != "" {
		tokens, err := tokenize(host, wheres, true, seen, cr.BindingFields)
		if err != nil {
			return nil, fmt.Errorf("compile domain %q: %w", host, err)
		}
		for _, t := range tokens {
			if t.optional {
				return nil, fmt.Errorf("compile domain %q: %w: %s", host, ErrOptionalParameter, t.name)
			}
		}
		re, err := regexp.Compile("(?i)^" + buildRegex(tokens, len(tokens)) + "$")
		if err != nil {
			return nil, fmt.Errorf("compile domain %q: %w", host, err)
		}
		cr.HostRegex = re
		cr.hostTokens = tokens
		cr.HostVariables = variableNames(tokens)
	}

	tokens, err := tokenize(uri, wheres, false, seen, cr.BindingFields)
	if err != nil {
		return nil, fmt.Errorf("compile uri %q: %w", uri, err)
	}

	firstOptional := len(tokens)
	for i := len(tokens) - 1; i >= 0; i-- {
		if !tokens[i].isVariable() || !tokens[i].optional {
			break
		}
		firstOptional = i
	}
	for i, t := range tokens {
		if t.optional && i < firstOptional {
			return nil, fmt.Errorf("compile uri %q: %w: %s", uri, ErrOptionalParameter, t.name)
		}
		if t.optional {
			cr.OptionalVariables = append(cr.OptionalVariables, t.name)
		}
	}

	re, err := regexp.Compile("(?s)^" + buildRegex(tokens, firstOptional) + "$")
	if err != nil {
		return nil, fmt.Errorf("compile uri %q: %w", uri, err)
	}
	cr.PathRegex = re
	cr.pathTokens = tokens
	cr.PathVariables = variableNames(tokens)

	for _, t := range tokens {
		if t.isVariable() {
			break
		}
		cr.StaticPrefix += t.text
	}
	return cr, nil
}

// tokenize splits a pattern into literal and parameter tokens.
func tokenize(pattern string, wheres map[string]string, isHost bool, seen map[string]struct{}, fields map[string]string) ([]token, error) {
	var tokens []token
	pos := 0

	defaultSep := "/"
	if isHost {
		defaultSep = "."
	}

	matches := paramPattern.FindAllStringSubmatchIndex(pattern, -1)
	for i, m := range matches {
		text := pattern[pos:m[0]]
		pos = m[1]
		name := pattern[m[2]:m[3]]
		optional := m[6] != -1
		if m[4] != -1 {
			fields[name] = pattern[m[4]:m[5]]
		}

		if !validName.MatchString(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidParameterName, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParameter, name)
		}
		seen[name] = struct{}{}

		var sep string
		if n := len(text); n > 0 && strings.ContainsRune(separators, rune(text[n-1])) {
			sep = text[n-1:]
			text = text[:n-1]
		}
		if text != "" {
			if strings.ContainsAny(text, "{}") {
				return nil, fmt.Errorf("%w: %q", ErrMalformedPattern, pattern)
			}
			tokens = append(tokens, token{text: text})
		}

		req, ok := wheres[name]
		if !ok {
			// Exclude the default separator and whatever separator follows the parameter.
			end := len(pattern)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			excluded := regexp.QuoteMeta(defaultSep)
			if following := pattern[pos:end]; following != "" {
				next := following[:1]
				if next != defaultSep && strings.Contains(separators, next) {
					excluded += regexp.QuoteMeta(next)
				}
			}
			req = "[^" + excluded + "]+"
		}

		value, _ := regexp.Compile("(?s)^(?:" + req + ")$")
		tokens = append(tokens, token{name: name, sep: sep, pattern: req, value: value, optional: optional})
	}

	if rest := pattern[pos:]; rest != "" {
		if strings.ContainsAny(rest, "{}") {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPattern, pattern)
		}
		tokens = append(tokens, token{text: rest})
	}
	return tokens, nil
}

// buildRegex renders tokens into a regex body. Tokens from firstOptional on
// are wrapped in nested optional groups.
func buildRegex(tokens []token, firstOptional int) string {
	var b strings.Builder
	n := len(tokens)
	for i, t := range tokens {
		if !t.isVariable() {
			b.WriteString(regexp.QuoteMeta(t.text))
			continue
		}
		group := "(?P<" + t.name + ">" + t.pattern + ")"
		sep := regexp.QuoteMeta(t.sep)
		switch {
		case i < firstOptional:
			b.WriteString(sep + group)
			continue
		case i == 0:
			// An optional first parameter keeps its separator mandatory so
			// the route still matches "/".
			b.WriteString(sep + "(?:" + group)
		default:
			b.WriteString("(?:" + sep + group)
		}
		if i == n-1 {
			b.WriteString(strings.Repeat(")?", n-firstOptional))
		}
	}
	return b.String()
}

func variableNames(tokens []token) []string {
	var names []string
	for _, t := range tokens {
		if t.isVariable() {
			names = append(names, t.name)
		}
	}
	return names
}
