package middlewares

import (
	"fmt"

	"github.com/dmitrymomot/keel/internal"
)

// ValidateSignature rejects requests to signed routes whose signature is
// missing, tampered with, or expired. With absolute false only the path and
// query are verified, so the URL survives proxies that rewrite the host.
//
// As a route middleware it is referenced as "signed" or "signed:relative".
func ValidateSignature(absolute bool) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			if err := c.HasValidSignature(absolute); err != nil {
				return &internal.InvalidSignatureError{Err: err}
			}
			return next(c)
		}
	}
}

// SignedFactory builds ValidateSignature from "signed[:relative]".
func SignedFactory(params ...string) (internal.Middleware, error) {
	if len(params) == 0 || params[0] == "" || params[0] == "absolute" {
		return ValidateSignature(true), nil
	}
	if params[0] == "relative" {
		return ValidateSignature(false), nil
	}
	return nil, fmt.Errorf("middlewares: signed: unknown mode %q", params[0])
}
