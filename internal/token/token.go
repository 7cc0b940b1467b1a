// Package token issues and verifies the signed session tokens that
// authenticate requests after a completed login. Tokens are signed, not
// encrypted: verification is local and needs no store lookup, at the
// cost of pre-expiry revocation.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lazyauth.org/internal/identity"
)

// ErrInvalidToken indicates the credential failed validation.
var ErrInvalidToken = errors.New("token: invalid token")

// Token is the encoded session credential handed to the client.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Claims carries the denormalized identity fields inside the signed
// payload so verification needs no external lookup.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Service signs and verifies session tokens with a process-wide secret.
// The secret and algorithm are fixed at construction and never mutated,
// so the Service is safe for concurrent use.
type Service struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// New constructs a Service. An empty secret or an unsupported signing
// algorithm is a configuration error and is rejected here so it
// surfaces at startup rather than on the first login.
func New(secret, algorithm string, ttl time.Duration, opts ...Option) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("token: ttl must be greater than zero")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("token: unknown signing algorithm %q", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("token: unsupported signing algorithm %q", algorithm)
	}
	s := &Service{
		secret: []byte(secret),
		method: method,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL reports the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Issue signs a session token for the given identity. The expiry is
// always issued-at plus the configured TTL.
func (s *Service) Issue(id identity.Identity) (Token, error) {
	if strings.TrimSpace(id.Subject) == "" {
		return Token{}, errors.New("token: identity subject is required")
	}
	now := s.now().UTC()
	claims := Claims{
		Email:    id.Email,
		Name:     id.Name,
		Provider: id.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("token: sign: %w", err)
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
	}, nil
}

// Verify checks signature integrity and expiry, and reconstructs the
// identity from the claims. Any failure collapses into ErrInvalidToken;
// callers never learn whether a credential was forged, malformed or
// merely stale.
func (s *Service) Verify(encoded string) (identity.Identity, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return identity.Identity{}, ErrInvalidToken
	}
	parser := jwt.NewParser(jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }))
	parsed, err := parser.ParseWithClaims(encoded, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != s.method.Alg() {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return identity.Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return identity.Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return identity.Identity{}, ErrInvalidToken
	}
	provider := claims.Provider
	if provider == "" {
		// Tokens minted before the provider claim existed are still
		// accepted; they report an unknown source.
		provider = "unknown"
	}
	return identity.Identity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: provider,
	}, nil
}
