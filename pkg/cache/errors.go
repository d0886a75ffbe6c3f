package cache

import "errors"

var (
	// ErrNotFound is returned when a key is missing or expired.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("cache: closed")

	ErrMarshal   = errors.New("cache: failed to marshal value")
	ErrUnmarshal = errors.New("cache: failed to unmarshal value")

	// ErrLockNotHeld is returned when releasing a lock owned by someone else.
	ErrLockNotHeld = errors.New("cache: lock not held by owner")

	// ErrLockTimeout is returned by Lock.Block when the wait elapses.
	ErrLockTimeout = errors.New("cache: timed out waiting for lock")
)
