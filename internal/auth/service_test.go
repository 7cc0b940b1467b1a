package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"lazyauth.org/internal/identity"
	"lazyauth.org/internal/oauth"
	"lazyauth.org/internal/state"
	"lazyauth.org/internal/token"
)

type stubExchanger struct {
	exchangeCalls int
	profileCalls  int
	exchangeErr   error
	profileErr    error
	profile       identity.Identity
}

func (s *stubExchanger) AuthCodeURL(st string) string {
	return "https://provider.example/authorize?state=" + st
}

func (s *stubExchanger) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	s.exchangeCalls++
	if s.exchangeErr != nil {
		return nil, s.exchangeErr
	}
	return &oauth2.Token{AccessToken: "tok", TokenType: "bearer"}, nil
}

func (s *stubExchanger) FetchProfile(ctx context.Context, tok *oauth2.Token) (identity.Identity, error) {
	s.profileCalls++
	if s.profileErr != nil {
		return identity.Identity{}, s.profileErr
	}
	return s.profile, nil
}

func newTestService(t *testing.T, stub *stubExchanger) *Service {
	t.Helper()
	tokens, err := token.New("test-secret", "HS256", 30*time.Minute)
	if err != nil {
		t.Fatalf("token.New: %v", err)
	}
	return NewService(state.NewMemoryStore(), stub, tokens)
}

func TestLoginFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	stub := &stubExchanger{
		profile: identity.Identity{
			Subject:  "u1",
			Email:    "a@b.com",
			Provider: oauth.ProviderName,
		},
	}
	svc := newTestService(t, stub)

	start, err := svc.StartLogin(ctx)
	if err != nil {
		t.Fatalf("StartLogin: %v", err)
	}
	if len(start.State) < 43 {
		t.Fatalf("state too short: %q", start.State)
	}
	if !strings.Contains(start.AuthorizationURL, start.State) {
		t.Fatalf("authorization url should carry the state: %q", start.AuthorizationURL)
	}

	id, sessionToken, err := svc.HandleCallback(ctx, "goodcode", start.State)
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if id.Subject != "u1" || id.Email != "a@b.com" || id.Provider != "oauth2" {
		t.Fatalf("unexpected identity: %+v", id)
	}
	if sessionToken.AccessToken == "" {
		t.Fatal("expected a session token")
	}

	verified, err := svc.Authenticate(sessionToken.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if verified.Subject != id.Subject {
		t.Fatalf("verified subject mismatch: %q", verified.Subject)
	}
}

func TestHandleCallbackUnknownState(t *testing.T) {
	stub := &stubExchanger{}
	svc := newTestService(t, stub)

	_, _, err := svc.HandleCallback(context.Background(), "goodcode", "unknown")
	if !errors.Is(err, state.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if stub.exchangeCalls != 0 {
		t.Fatalf("no exchange should be attempted for invalid state, got %d calls", stub.exchangeCalls)
	}
}

func TestHandleCallbackExchangeFailure(t *testing.T) {
	ctx := context.Background()
	stub := &stubExchanger{exchangeErr: oauth.ErrExchangeFailed}
	svc := newTestService(t, stub)

	start, err := svc.StartLogin(ctx)
	if err != nil {
		t.Fatalf("StartLogin: %v", err)
	}

	_, tok, err := svc.HandleCallback(ctx, "goodcode", start.State)
	if !errors.Is(err, oauth.ErrExchangeFailed) {
		t.Fatalf("expected ErrExchangeFailed, got %v", err)
	}
	if tok.AccessToken != "" {
		t.Fatal("no session token should be issued on exchange failure")
	}

	// The nonce was consumed before the exchange; it must not come
	// back even though the attempt failed.
	_, _, err = svc.HandleCallback(ctx, "goodcode", start.State)
	if !errors.Is(err, state.ErrInvalidState) {
		t.Fatalf("expected consumed nonce to stay consumed, got %v", err)
	}
}

func TestHandleCallbackProfileFailure(t *testing.T) {
	ctx := context.Background()
	stub := &stubExchanger{profileErr: oauth.ErrProfileFetchFailed}
	svc := newTestService(t, stub)

	start, err := svc.StartLogin(ctx)
	if err != nil {
		t.Fatalf("StartLogin: %v", err)
	}

	_, _, err = svc.HandleCallback(ctx, "goodcode", start.State)
	if !errors.Is(err, oauth.ErrProfileFetchFailed) {
		t.Fatalf("expected ErrProfileFetchFailed, got %v", err)
	}
	if stub.exchangeCalls != 1 || stub.profileCalls != 1 {
		t.Fatalf("unexpected call counts: exchange=%d profile=%d", stub.exchangeCalls, stub.profileCalls)
	}
}

func TestAuthenticateRejectsMissingOrInvalidCredential(t *testing.T) {
	svc := newTestService(t, &stubExchanger{})

	if _, err := svc.Authenticate(""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for empty credential, got %v", err)
	}
	if _, err := svc.Authenticate("not-a-token"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for garbage credential, got %v", err)
	}
}
