package session

import "errors"

var (
	// ErrNotConfigured is returned when sessions are used without a store.
	ErrNotConfigured = errors.New("session: not configured")

	ErrNotFound     = errors.New("session: not found")
	ErrExpired      = errors.New("session: expired")
	ErrInvalidToken = errors.New("session: invalid token")
	ErrTypeMismatch = errors.New("session: type mismatch")
)
