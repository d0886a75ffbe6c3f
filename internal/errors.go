package internal

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrymomot/keel/pkg/validator"
)

// HTTPError represents an HTTP error with all data needed for rendering.
// It implements the error interface and provides structured data for
// the exception handler to render error pages or JSON bodies.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to users).
	Err error

	// Errors holds field errors, rendered under "errors" in JSON bodies.
	Errors map[string][]string

	// Headers are copied onto the response before rendering.
	Headers http.Header

	// Message is the user-facing error message.
	Message string

	// Title is an optional title for the error (defaults derived from Code).
	Title string

	// Detail is an optional extended description.
	Detail string

	// ErrorCode is an application-specific error code.
	ErrorCode string

	// RequestID is the request tracking ID.
	RequestID string

	// Code is the HTTP status code (e.g., 404, 500).
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

func (e *HTTPError) StatusText() string {
	return http.StatusText(e.Code)
}

// ToHTTPError returns e itself.
func (e *HTTPError) ToHTTPError() *HTTPError {
	return e
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates a new HTTPError with the given status code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

func WithTitle(title string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Title = title
	}
}

func WithDetail(detail string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Detail = detail
	}
}

func WithErrorCode(code string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.ErrorCode = code
	}
}

func WithRequestID(id string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.RequestID = id
	}
}

func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// WithHeader adds a response header to the error.
func WithHeader(name, value string) HTTPErrorOption {
	return func(e *HTTPError) {
		if e.Headers == nil {
			e.Headers = make(http.Header)
		}
		e.Headers.Set(name, value)
	}
}

// WithFieldErrors attaches field errors rendered under "errors".
func WithFieldErrors(errs map[string][]string) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Errors = errs
	}
}

func newError(code int, message string, opts []HTTPErrorOption) *HTTPError {
	e := NewHTTPError(code, message)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Convenience constructors for common HTTP errors.

func ErrBadRequest(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusBadRequest, message, opts)
}

func ErrUnauthorized(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusUnauthorized, message, opts)
}

func ErrForbidden(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusForbidden, message, opts)
}

func ErrNotFound(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusNotFound, message, opts)
}

func ErrConflict(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusConflict, message, opts)
}

func ErrUnprocessable(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusUnprocessableEntity, message, opts)
}

func ErrTooManyRequests(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusTooManyRequests, message, opts)
}

func ErrInternal(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusInternalServerError, message, opts)
}

func ErrServiceUnavailable(message string, opts ...HTTPErrorOption) *HTTPError {
	return newError(http.StatusServiceUnavailable, message, opts)
}

// StatusPageExpired is the non-standard status used for CSRF failures.
const StatusPageExpired = 419

// ErrModelNotFound is returned by binding resolvers when no record matches.
var ErrModelNotFound = errors.New("model not found")

// NotFoundError is returned when no route matches the request.
type NotFoundError struct {
	Method string
	Path   string
}

func (e *NotFoundError) Error() string {
	return "no route for " + e.Method + " " + e.Path
}

func (e *NotFoundError) ToHTTPError() *HTTPError {
	return &HTTPError{Code: http.StatusNotFound, Message: "Not Found", Err: e}
}

// MethodNotAllowedError is returned when the path exists for other verbs.
type MethodNotAllowedError struct {
	Method  string
	Path    string
	Allowed []string
}

func (e *MethodNotAllowedError) Error() string {
	return "the " + e.Method + " method is not supported for route " + e.Path +
		". Supported methods: " + strings.Join(e.Allowed, ", ") + "."
}

func (e *MethodNotAllowedError) ToHTTPError() *HTTPError {
	he := &HTTPError{Code: http.StatusMethodNotAllowed, Message: e.Error(), Err: e}
	WithHeader("Allow", strings.Join(e.Allowed, ", "))(he)
	return he
}

// AuthenticationError is returned when no guard could identify the user.
type AuthenticationError struct {
	// RedirectTo overrides the login URL for HTML clients.
	RedirectTo string
	Guards     []string
}

func (e *AuthenticationError) Error() string { return "Unauthenticated." }

func (e *AuthenticationError) ToHTTPError() *HTTPError {
	return &HTTPError{Code: http.StatusUnauthorized, Message: e.Error(), Err: e}
}

// AuthorizationError is returned when the gate denies an ability.
type AuthorizationError struct {
	Ability string
	Message string
	// Status overrides the default 403, e.g. 404 to hide a resource.
	Status int
}

func (e *AuthorizationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "This action is unauthorized."
}

func (e *AuthorizationError) ToHTTPError() *HTTPError {
	code := e.Status
	if code == 0 {
		code = http.StatusForbidden
	}
	return &HTTPError{Code: code, Message: e.Error(), Err: e}
}

// ValidationError carries field errors for a rejected input.
type ValidationError struct {
	Errors validator.Errors
	// Input is flashed back to the session for HTML clients.
	Input map[string]any
	// RedirectTo overrides the "back" URL for HTML clients.
	RedirectTo string
}

// NewValidationError builds a ValidationError from field errors.
func NewValidationError(errs validator.Errors) *ValidationError {
	return &ValidationError{Errors: errs}
}

// Error follows the summary form "first message (and N more errors)".
func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "The given data was invalid."
	}
	return e.Errors.Error()
}

func (e *ValidationError) ToHTTPError() *HTTPError {
	return &HTTPError{
		Code:    http.StatusUnprocessableEntity,
		Message: e.Error(),
		Errors:  e.Errors,
		Err:     e,
	}
}

// TokenMismatchError is returned when the CSRF token is missing or wrong.
type TokenMismatchError struct{}

func (e *TokenMismatchError) Error() string { return "CSRF token mismatch." }

func (e *TokenMismatchError) ToHTTPError() *HTTPError {
	return &HTTPError{Code: StatusPageExpired, Message: e.Error(), Title: "Page Expired", Err: e}
}

// ModelNotFoundError is returned when a bound route parameter resolves to
// no record.
type ModelNotFoundError struct {
	Model string
	IDs   []string
}

func (e *ModelNotFoundError) Error() string {
	msg := "No query results for model [" + e.Model + "]"
	if len(e.IDs) > 0 {
		msg += " " + strings.Join(e.IDs, ", ")
	}
	return msg
}

func (e *ModelNotFoundError) Is(target error) bool {
	return target == ErrModelNotFound
}

func (e *ModelNotFoundError) ToHTTPError() *HTTPError {
	return &HTTPError{Code: http.StatusNotFound, Message: "Not Found", Err: e}
}

// ThrottleError is returned when a rate limit was exceeded.
type ThrottleError struct {
	RetryAfter  time.Duration
	MaxAttempts int
	// ResetAt is the moment the window frees up.
	ResetAt time.Time
}

func (e *ThrottleError) Error() string { return "Too Many Attempts." }

func (e *ThrottleError) ToHTTPError() *HTTPError {
	he := &HTTPError{Code: http.StatusTooManyRequests, Message: e.Error(), Err: e}
	seconds := int((e.RetryAfter + time.Second - 1) / time.Second)
	WithHeader("Retry-After", strconv.Itoa(seconds))(he)
	if e.MaxAttempts > 0 {
		WithHeader("X-RateLimit-Limit", strconv.Itoa(e.MaxAttempts))(he)
		WithHeader("X-RateLimit-Remaining", "0")(he)
	}
	if !e.ResetAt.IsZero() {
		WithHeader("X-RateLimit-Reset", strconv.FormatInt(e.ResetAt.Unix(), 10))(he)
	}
	return he
}

// InvalidSignatureError is returned for tampered or expired signed URLs.
type InvalidSignatureError struct {
	Err error
}

func (e *InvalidSignatureError) Error() string { return "Invalid signature." }

func (e *InvalidSignatureError) Unwrap() error { return e.Err }

func (e *InvalidSignatureError) ToHTTPError() *HTTPError {
	return &HTTPError{Code: http.StatusForbidden, Message: e.Error(), Err: e}
}

// MaintenanceError is returned while the application is down.
type MaintenanceError struct {
	Retry   int
	Refresh int
	Status  int
}

func (e *MaintenanceError) Error() string { return "Service Unavailable" }

func (e *MaintenanceError) ToHTTPError() *HTTPError {
	code := e.Status
	if code == 0 {
		code = http.StatusServiceUnavailable
	}
	he := &HTTPError{Code: code, Message: e.Error(), Err: e}
	if e.Retry > 0 {
		WithHeader("Retry-After", strconv.Itoa(e.Retry))(he)
	}
	if e.Refresh > 0 {
		WithHeader("Refresh", strconv.Itoa(e.Refresh))(he)
	}
	return he
}

// HTTPErrorConverter is implemented by errors that know their HTTP form.
type HTTPErrorConverter interface {
	ToHTTPError() *HTTPError
}

// Helper functions for error inspection.

func IsHTTPError(err error) bool {
	var he *HTTPError
	return errors.As(err, &he)
}

// AsHTTPError extracts the HTTPError from an error if present.
// Returns nil if the error is not an HTTPError.
func AsHTTPError(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return nil
}

// ToHTTPError classifies err. Errors implementing HTTPErrorConverter convert
// themselves, errors exposing StatusCode() keep their status, anything else
// is a 500.
func ToHTTPError(err error) *HTTPError {
	var conv HTTPErrorConverter
	if errors.As(err, &conv) {
		return conv.ToHTTPError()
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) && sc.StatusCode() >= 400 {
		return &HTTPError{Code: sc.StatusCode(), Message: http.StatusText(sc.StatusCode()), Err: err}
	}
	return &HTTPError{Code: http.StatusInternalServerError, Message: "Server Error", Err: err}
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidationError extracts the ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
