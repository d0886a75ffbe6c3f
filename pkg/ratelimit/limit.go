package ratelimit

import "time"

// Limit allows MaxAttempts per Decay for Key. An empty Key lets the
// caller pick one, usually the user id or client IP.
type Limit struct {
	Key         string
	MaxAttempts int
	Decay       time.Duration
}

func PerSecond(n int) Limit { return Limit{MaxAttempts: n, Decay: time.Second} }
func PerMinute(n int) Limit { return Limit{MaxAttempts: n, Decay: time.Minute} }
func PerHour(n int) Limit   { return Limit{MaxAttempts: n, Decay: time.Hour} }
func PerDay(n int) Limit    { return Limit{MaxAttempts: n, Decay: 24 * time.Hour} }

// PerMinutes allows n attempts every m minutes.
func PerMinutes(m, n int) Limit {
	return Limit{MaxAttempts: n, Decay: time.Duration(m) * time.Minute}
}

// None returns an empty set of limits.
func None() []Limit { return nil }

// By sets the limit key.
func (l Limit) By(key string) Limit {
	l.Key = key
	return l
}
