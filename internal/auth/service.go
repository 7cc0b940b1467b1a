// Package auth orchestrates the authorization-code login flow: it
// initiates login attempts, validates callbacks, drives the provider
// exchange, mints session tokens and verifies credentials on protected
// requests.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"lazyauth.org/internal/identity"
	"lazyauth.org/internal/state"
	"lazyauth.org/internal/token"
)

// ErrUnauthenticated indicates no valid credential was presented.
var ErrUnauthenticated = errors.New("auth: not authenticated")

// Exchanger performs the provider-side calls of the login flow.
// Satisfied by *oauth.Client; stubbed in tests.
type Exchanger interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (identity.Identity, error)
}

// Service is the authentication state machine. Each login attempt moves
// from pending (nonce created) through the exchange to a minted session
// token; any failure is terminal for that attempt and the caller must
// restart from a fresh login.
type Service struct {
	states   state.Store
	provider Exchanger
	tokens   *token.Service
}

// NewService wires the orchestrator.
func NewService(states state.Store, provider Exchanger, tokens *token.Service) *Service {
	return &Service{
		states:   states,
		provider: provider,
		tokens:   tokens,
	}
}

// LoginStart is the handoff returned to a caller initiating login.
type LoginStart struct {
	AuthorizationURL string
	State            string
}

// StartLogin records a fresh anti-CSRF nonce and builds the provider
// authorization URL. No external calls are made.
func (s *Service) StartLogin(ctx context.Context) (LoginStart, error) {
	nonce, err := s.states.Create(ctx)
	if err != nil {
		return LoginStart{}, fmt.Errorf("start login: %w", err)
	}
	return LoginStart{
		AuthorizationURL: s.provider.AuthCodeURL(nonce),
		State:            nonce,
	}, nil
}

// HandleCallback validates the returned state, exchanges the code,
// fetches the profile and mints a session token. The nonce is consumed
// before the exchange starts and is never restored on downstream
// failure; restoring it would reopen the CSRF window.
func (s *Service) HandleCallback(ctx context.Context, code, stateParam string) (identity.Identity, token.Token, error) {
	if err := s.states.Consume(ctx, stateParam); err != nil {
		return identity.Identity{}, token.Token{}, err
	}
	providerToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return identity.Identity{}, token.Token{}, err
	}
	id, err := s.provider.FetchProfile(ctx, providerToken)
	if err != nil {
		return identity.Identity{}, token.Token{}, err
	}
	sessionToken, err := s.tokens.Issue(id)
	if err != nil {
		return identity.Identity{}, token.Token{}, fmt.Errorf("issue session token: %w", err)
	}
	return id, sessionToken, nil
}

// Authenticate verifies a bearer-style credential from any transport.
// An absent or invalid credential yields ErrUnauthenticated; callers
// learn nothing more specific.
func (s *Service) Authenticate(credential string) (identity.Identity, error) {
	if credential == "" {
		return identity.Identity{}, ErrUnauthenticated
	}
	id, err := s.tokens.Verify(credential)
	if err != nil {
		return identity.Identity{}, ErrUnauthenticated
	}
	return id, nil
}
