package middlewares

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrymomot/keel/internal"
	"github.com/dmitrymomot/keel/pkg/ratelimit"
)

// Throttle returns the factory behind the "throttle" alias.
//
//	"throttle:60,1"     60 attempts per minute
//	"throttle:5,10,otp" 5 attempts per 10 minutes, counted under "otp"
//	"throttle:uploads"  limits built by limiter.For("uploads", ...)
//
// Requests are counted per user when authenticated, otherwise per domain and
// client IP. Limited requests get *internal.ThrottleError (429). Named
// limiters are looked up when the middleware is built, so they must be
// registered with limiter.For before the app is created.
func Throttle(limiter *ratelimit.Limiter) internal.MiddlewareFactory {
	return func(params ...string) (internal.Middleware, error) {
		if len(params) == 0 {
			return throttleFixed(limiter, 60, time.Minute, ""), nil
		}
		maxAttempts, err := strconv.Atoi(params[0])
		if err != nil {
			if len(params) > 1 {
				return nil, fmt.Errorf("middlewares: throttle: invalid max attempts %q", params[0])
			}
			fn, err := limiter.Limiter(params[0])
			if err != nil {
				return nil, fmt.Errorf("middlewares: throttle %q: %w", params[0], err)
			}
			return throttleNamed(limiter, params[0], fn), nil
		}
		if maxAttempts <= 0 {
			return nil, fmt.Errorf("middlewares: throttle: max attempts must be positive, got %d", maxAttempts)
		}

		decay := time.Minute
		if len(params) > 1 {
			minutes, err := strconv.ParseFloat(params[1], 64)
			if err != nil || minutes <= 0 {
				return nil, fmt.Errorf("middlewares: throttle: invalid decay minutes %q", params[1])
			}
			decay = time.Duration(minutes * float64(time.Minute))
		}

		var prefix string
		if len(params) > 2 {
			prefix = params[2]
		}
		return throttleFixed(limiter, maxAttempts, decay, prefix), nil
	}
}

func throttleFixed(limiter *ratelimit.Limiter, maxAttempts int, decay time.Duration, prefix string) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			limit := ratelimit.Limit{Key: prefix + requestSignature(c), MaxAttempts: maxAttempts, Decay: decay}
			if err := enforce(c, limiter, limit); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func throttleNamed(limiter *ratelimit.Limiter, name string, fn ratelimit.LimitFunc) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			for _, limit := range fn(c.Request()) {
				if limit.MaxAttempts <= 0 {
					continue
				}
				key := limit.Key
				if key == "" {
					key = requestSignature(c)
				}
				limit.Key = name + ":" + key
				if err := enforce(c, limiter, limit); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}

func enforce(c internal.Context, limiter *ratelimit.Limiter, limit ratelimit.Limit) error {
	ctx := c.Context()

	tooMany, err := limiter.TooManyAttempts(ctx, limit.Key, limit.MaxAttempts)
	if err != nil {
		return err
	}
	if tooMany {
		retryAfter, err := limiter.AvailableIn(ctx, limit.Key)
		if err != nil {
			return err
		}
		c.LogWarn("rate limit exceeded", "max_attempts", limit.MaxAttempts, "retry_after", retryAfter.String())
		return &internal.ThrottleError{
			RetryAfter:  retryAfter,
			MaxAttempts: limit.MaxAttempts,
			ResetAt:     time.Now().Add(retryAfter),
		}
	}

	n, err := limiter.Hit(ctx, limit.Key, limit.Decay)
	if err != nil {
		return err
	}
	c.SetHeader("X-RateLimit-Limit", strconv.Itoa(limit.MaxAttempts))
	c.SetHeader("X-RateLimit-Remaining", strconv.Itoa(max(limit.MaxAttempts-int(n), 0)))
	return nil
}

// requestSignature identifies the client a limit counts against.
func requestSignature(c internal.Context) string {
	if id := c.UserID(); id != "" {
		return "user:" + id
	}
	return c.Domain() + "|" + c.IP()
}

// IsThrottled reports whether err is a rate limit rejection.
func IsThrottled(err error) bool {
	var te *internal.ThrottleError
	return errors.As(err, &te)
}
