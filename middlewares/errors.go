package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/keel/internal"
)

// PanicError represents a recovered panic.
type PanicError struct {
	Value any    // The panic value
	Stack []byte // Stack trace (nil if disabled)
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// ToHTTPError renders panics as a generic 500. The exception handler reports it.
func (e *PanicError) ToHTTPError() *internal.HTTPError {
	return &internal.HTTPError{Code: http.StatusInternalServerError, Message: "Server Error", Err: e}
}

// TimeoutError represents a request timeout.
type TimeoutError struct {
	Duration time.Duration // The timeout that was exceeded
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout after %s", e.Duration)
}

func (e *TimeoutError) ToHTTPError() *internal.HTTPError {
	he := &internal.HTTPError{Code: http.StatusServiceUnavailable, Message: "Service Unavailable", Err: e}
	internal.WithHeader("Retry-After", strconv.Itoa(int(e.Duration.Seconds())+1))(he)
	return he
}

func IsPanicError(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}

func IsTimeoutError(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// AsPanicError extracts the PanicError from an error if present.
func AsPanicError(err error) (*PanicError, bool) {
	var pe *PanicError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// AsTimeoutError extracts the TimeoutError from an error if present.
func AsTimeoutError(err error) (*TimeoutError, bool) {
	var te *TimeoutError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
