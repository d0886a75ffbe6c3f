package internal

import (
	"errors"

	"github.com/dmitrymomot/keel/pkg/jwt"
)

// ErrUnknownGuard is returned when a guard name was never registered.
var ErrUnknownGuard = errors.New("keel: unknown auth guard")

// Identity is the authenticated principal of a request.
type Identity struct {
	// Claims carries guard-specific data, e.g. JWT custom claims.
	Claims map[string]any
	ID     string
	// Guard is the name of the guard that produced the identity.
	Guard string
}

// Guard resolves the identity of a request.
// Returning nil, nil means the request is not authenticated by this guard.
type Guard interface {
	Authenticate(c Context) (*Identity, error)
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(c Context) (*Identity, error)

func (f GuardFunc) Authenticate(c Context) (*Identity, error) {
	return f(c)
}

// SessionGuard identifies users by the user ID stored in the session.
type SessionGuard struct{}

func (SessionGuard) Authenticate(c Context) (*Identity, error) {
	sess, err := c.Session()
	if err != nil {
		return nil, err
	}
	if !sess.IsAuthenticated() {
		return nil, nil
	}
	return &Identity{ID: *sess.UserID}, nil
}

// TokenGuard identifies users by a signed JWT.
// Invalid and expired tokens count as unauthenticated.
type TokenGuard struct {
	service   *jwt.Service
	extractor Extractor
}

// NewTokenGuard creates a TokenGuard. The token is read from the
// Authorization bearer header unless sources are given.
func NewTokenGuard(svc *jwt.Service, sources ...ExtractorSource) *TokenGuard {
	if len(sources) == 0 {
		sources = []ExtractorSource{FromBearerToken()}
	}
	return &TokenGuard{service: svc, extractor: NewExtractor(sources...)}
}

func (g *TokenGuard) Authenticate(c Context) (*Identity, error) {
	token, ok := g.extractor.Extract(c)
	if !ok {
		return nil, nil
	}
	claims, err := g.service.Parse(token)
	if err != nil {
		c.LogDebug("rejected bearer token", "error", err)
		return nil, nil
	}
	if claims.Subject == "" {
		return nil, nil
	}
	return &Identity{ID: claims.Subject, Claims: claims.Data}, nil
}

// sessionGuardName returns the name of the first session guard, used to tag
// identities created by Login.
func sessionGuardName(app *App) string {
	for _, name := range app.guardOrder {
		if _, ok := app.guards[name].(SessionGuard); ok {
			return name
		}
	}
	return app.defaultGuard
}
