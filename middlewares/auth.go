package middlewares

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/keel/internal"
)

// Authenticate requires an identity from one of guards, tried in order.
// Without guards the default guard is used. Failure returns
// *internal.AuthenticationError, which redirects HTML clients to the
// "login" route and answers 401 to JSON clients.
//
// As a route middleware it is referenced as "auth" or "auth:web,api".
func Authenticate(guards ...string) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			if _, err := c.Authenticate(guards...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// AuthenticateFactory builds Authenticate from "auth:guard,...".
func AuthenticateFactory(params ...string) (internal.Middleware, error) {
	return Authenticate(params...), nil
}

// RedirectIfAuthenticated sends identified users to `to`. It guards pages
// like login and registration that only guests should see.
func RedirectIfAuthenticated(to string, guards ...string) internal.Middleware {
	if to == "" {
		to = "/"
	}
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			authenticated, err := identified(c, guards)
			if err != nil {
				return err
			}
			if authenticated {
				return c.Redirect(http.StatusFound, to)
			}
			return next(c)
		}
	}
}

// GuestFactory returns the factory for "guest" and "guest:guard,...".
func GuestFactory(to string) internal.MiddlewareFactory {
	return func(params ...string) (internal.Middleware, error) {
		return RedirectIfAuthenticated(to, params...), nil
	}
}

func identified(c internal.Context, guards []string) (bool, error) {
	if len(guards) == 0 {
		return c.IsAuthenticated(), nil
	}
	_, err := c.Authenticate(guards...)
	var authErr *internal.AuthenticationError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &authErr):
		return false, nil
	default:
		return false, err
	}
}

// Authorize checks ability on the gate before the handler runs. Each
// param names an argument: a bound model when the route binds one, the raw
// route parameter when present, otherwise the param itself as a literal.
//
// As a route middleware it is referenced as "can:update,post".
func Authorize(ability string, params ...string) internal.Middleware {
	return func(next internal.HandlerFunc) internal.HandlerFunc {
		return func(c internal.Context) error {
			args := make([]any, 0, len(params))
			for _, p := range params {
				args = append(args, gateArgument(c, p))
			}
			if err := c.Authorize(ability, args...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// AuthorizeFactory builds Authorize from "can:ability,param,...".
func AuthorizeFactory(params ...string) (internal.Middleware, error) {
	if len(params) == 0 || params[0] == "" {
		return nil, errors.New("middlewares: can requires an ability")
	}
	return Authorize(params[0], params[1:]...), nil
}

func gateArgument(c internal.Context, name string) any {
	if v := c.Bound(name); v != nil {
		return v
	}
	if v := c.Param(name); v != "" {
		return v
	}
	return name
}
