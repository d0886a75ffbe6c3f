package routing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound             = errors.New("routing: route not found")
	ErrRouteNameNotFound    = errors.New("routing: route name not defined")
	ErrInvalidParameterName = errors.New("routing: invalid parameter name")
	ErrDuplicateParameter   = errors.New("routing: duplicate parameter name")
	ErrOptionalParameter    = errors.New("routing: optional parameter must be trailing")
	ErrMalformedPattern     = errors.New("routing: malformed pattern")
	ErrInvalidSignature     = errors.New("routing: invalid signature")
	ErrSignatureExpired     = errors.New("routing: signature expired")
	ErrNoSigningKey         = errors.New("routing: signing key not configured")
)

// MethodNotAllowedError is returned when the path matches routes registered
// for other verbs only.
type MethodNotAllowedError struct {
	Method  string
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("routing: the %s method is not supported for route %s. Supported methods: %s",
		e.Method, e.Path, strings.Join(e.Allowed, ", "))
}

// OptionsResult is returned for OPTIONS requests on paths that have no
// explicit OPTIONS route. Callers answer with 200 and an Allow header.
type OptionsResult struct {
	Allowed []string
}

func (e *OptionsResult) Error() string {
	return "routing: automatic options response"
}

// MissingParametersError is returned by the URL generator when required
// parameters were not supplied.
type MissingParametersError struct {
	Route   string
	Missing []string
}

func (e *MissingParametersError) Error() string {
	return fmt.Sprintf("routing: missing required parameters for [Route: %s] [Missing parameters: %s]",
		e.Route, strings.Join(e.Missing, ", "))
}

// IsMethodNotAllowed reports whether err is a MethodNotAllowedError.
func IsMethodNotAllowed(err error) bool {
	var e *MethodNotAllowedError
	return errors.As(err, &e)
}

// AsMethodNotAllowed extracts the MethodNotAllowedError from err.
func AsMethodNotAllowed(err error) (*MethodNotAllowedError, bool) {
	var e *MethodNotAllowedError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// AsOptionsResult extracts the OptionsResult from err.
func AsOptionsResult(err error) (*OptionsResult, bool) {
	var e *OptionsResult
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
