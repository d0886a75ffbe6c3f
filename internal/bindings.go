package internal

import (
	"errors"
	"sync"
)

// BindingResolver loads the value behind a route parameter.
// field is the key from "{post:slug}" or "" for plain "{post}".
// Return ErrModelNotFound (or a *ModelNotFoundError) when nothing matches.
type BindingResolver func(c Context, value, field string) (any, error)

// bindingRegistry maps route parameter names to resolvers.
type bindingRegistry struct {
	mu        sync.RWMutex
	resolvers map[string]BindingResolver
}

func newBindingRegistry() *bindingRegistry {
	return &bindingRegistry{resolvers: make(map[string]BindingResolver)}
}

func (b *bindingRegistry) set(param string, fn BindingResolver) {
	b.mu.Lock()
	b.resolvers[param] = fn
	b.mu.Unlock()
}

func (b *bindingRegistry) get(param string) (BindingResolver, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn, ok := b.resolvers[param]
	return fn, ok
}

// substituteBindings is the "bindings" middleware. It resolves every matched
// parameter that has a registered resolver and stores the result for
// c.Bound and Model.
func (a *App) substituteBindings(next HandlerFunc) HandlerFunc {
	return func(c Context) error {
		rc, ok := c.(*requestContext)
		if !ok || rc.match == nil {
			return next(c)
		}

		var fields map[string]string
		if compiled, err := rc.match.Route.Compiled(); err == nil {
			fields = compiled.BindingFields
		}

		for _, name := range rc.match.Route.ParameterNames() {
			value := rc.match.Param(name)
			if value == "" {
				continue
			}
			resolve, ok := a.bindings.get(name)
			if !ok {
				continue
			}
			v, err := resolve(c, value, fields[name])
			if err != nil {
				var mnf *ModelNotFoundError
				if errors.As(err, &mnf) {
					return mnf
				}
				if errors.Is(err, ErrModelNotFound) {
					return &ModelNotFoundError{Model: name, IDs: []string{value}}
				}
				return err
			}
			if v == nil {
				return &ModelNotFoundError{Model: name, IDs: []string{value}}
			}
			rc.setBound(name, v)
		}
		return next(c)
	}
}
