package internal

import "sync"

// AbilityFunc decides whether the identity may perform an ability.
// args are whatever the caller passed to Can, e.g. a bound model.
type AbilityFunc func(c Context, id *Identity, args ...any) bool

// BeforeFunc runs ahead of ability checks. When decided is true its
// verdict is final.
type BeforeFunc func(c Context, id *Identity, ability string, args ...any) (allowed, decided bool)

// Gate holds ability definitions.
// Guests are always denied and before hooks only see identified users.
type Gate struct {
	mu        sync.RWMutex
	abilities map[string]AbilityFunc
	before    []BeforeFunc
}

// NewGate creates an empty Gate.
func NewGate() *Gate {
	return &Gate{abilities: make(map[string]AbilityFunc)}
}

// Define registers an ability. Redefining replaces the previous check.
func (g *Gate) Define(ability string, fn AbilityFunc) *Gate {
	g.mu.Lock()
	g.abilities[ability] = fn
	g.mu.Unlock()
	return g
}

// Before registers a hook consulted before any ability.
func (g *Gate) Before(fn BeforeFunc) *Gate {
	g.mu.Lock()
	g.before = append(g.before, fn)
	g.mu.Unlock()
	return g
}

// Has reports whether the ability is defined.
func (g *Gate) Has(ability string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.abilities[ability]
	return ok
}

// Allows reports whether the current identity may perform ability.
// Undefined abilities are denied unless a before hook allows them.
func (g *Gate) Allows(c Context, ability string, args ...any) bool {
	id := c.Identity()
	if id == nil {
		return false
	}

	g.mu.RLock()
	before := g.before
	fn, ok := g.abilities[ability]
	g.mu.RUnlock()

	for _, hook := range before {
		if allowed, decided := hook(c, id, ability, args...); decided {
			return allowed
		}
	}
	if !ok {
		return false
	}
	return fn(c, id, args...)
}

// Denies is the inverse of Allows.
func (g *Gate) Denies(c Context, ability string, args ...any) bool {
	return !g.Allows(c, ability, args...)
}

// Authorize returns *AuthorizationError when the ability is denied.
func (g *Gate) Authorize(c Context, ability string, args ...any) error {
	if g.Allows(c, ability, args...) {
		return nil
	}
	return &AuthorizationError{Ability: ability}
}

// roleHook grants abilities listed for the user's role. It never denies, so
// abilities defined on the gate still apply to roles without the permission.
func roleHook(perms RolePermissions, extract RoleExtractorFunc) BeforeFunc {
	return func(c Context, _ *Identity, ability string, _ ...any) (bool, bool) {
		role := extractRole(c, extract)
		if role == "" {
			return false, false
		}
		for _, p := range perms[role] {
			if string(p) == ability || p == "*" {
				return true, true
			}
		}
		return false, false
	}
}

func extractRole(c Context, extract RoleExtractorFunc) string {
	if rc, ok := c.(*requestContext); ok {
		return rc.role(extract)
	}
	return extract(c)
}
