// Package jwt issues and verifies HS256 bearer tokens for the token guard.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/keel/pkg/id"
)

var (
	ErrShortSecret      = errors.New("jwt: secret must be at least 32 bytes")
	ErrInvalidToken     = errors.New("jwt: invalid token")
	ErrExpiredToken     = errors.New("jwt: token expired")
	ErrInvalidSignature = errors.New("jwt: invalid signature")
)

// Claims are the registered claims plus free-form data.
type Claims struct {
	Data map[string]any `json:"data,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and parses tokens with one shared secret.
type Service struct {
	now    func() time.Time
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the iss claim and requires it when parsing.
func WithIssuer(iss string) Option { return func(s *Service) { s.issuer = iss } }

// WithTTL sets the token lifetime. Default: 1 hour.
func WithTTL(d time.Duration) Option { return func(s *Service) { s.ttl = d } }

// WithLeeway tolerates clock skew when validating time-based claims.
func WithLeeway(d time.Duration) Option { return func(s *Service) { s.leeway = d } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a Service.
func New(secret string, opts ...Option) (*Service, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	s := &Service{secret: []byte(secret), ttl: time.Hour, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token for subject.
func (s *Service) Issue(subject string, data map[string]any) (string, error) {
	now := s.now()
	claims := Claims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.NewULID(),
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse verifies token and returns its claims.
func (s *Service) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errors.Join(ErrExpiredToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, errors.Join(ErrInvalidSignature, err)
	default:
		return nil, errors.Join(ErrInvalidToken, err)
	}
}
