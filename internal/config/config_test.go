package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OAUTH2_CLIENT_ID", "client-id")
	t.Setenv("OAUTH2_CLIENT_SECRET", "client-secret")
	t.Setenv("OAUTH2_AUTHORIZATION_URL", "https://provider.example/authorize")
	t.Setenv("OAUTH2_TOKEN_URL", "https://provider.example/token")
	t.Setenv("OAUTH2_USER_INFO_URL", "https://provider.example/userinfo")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedirectURI != "http://localhost:8000/auth/callback" {
		t.Fatalf("unexpected redirect uri: %q", cfg.RedirectURI)
	}
	if cfg.SigningAlgorithm != "HS256" {
		t.Fatalf("unexpected algorithm: %q", cfg.SigningAlgorithm)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected ttl: %v", cfg.TokenTTL)
	}
	if cfg.SigningSecret != DefaultSecret {
		t.Fatalf("expected default secret fallback, got %q", cfg.SigningSecret)
	}
	if cfg.Addr() != "0.0.0.0:8000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr())
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OAUTH2_REDIRECT_URI", "https://app.example/auth/callback")
	t.Setenv("JWT_SECRET_KEY", "real-secret")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("JWT_EXPIRATION_MINUTES", "5")
	t.Setenv("APP_HOST", "127.0.0.1")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("LAZYAUTH_PG_DSN", "postgres://localhost/lazyauth")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedirectURI != "https://app.example/auth/callback" {
		t.Fatalf("unexpected redirect uri: %q", cfg.RedirectURI)
	}
	if cfg.SigningSecret != "real-secret" || cfg.SigningAlgorithm != "HS512" {
		t.Fatalf("signing overrides not applied: %+v", cfg)
	}
	if cfg.TokenTTL != 5*time.Minute {
		t.Fatalf("unexpected ttl: %v", cfg.TokenTTL)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %q", cfg.Addr())
	}
	if cfg.PostgresDSN == "" {
		t.Fatal("expected postgres dsn to be picked up")
	}
}

func TestLoadFailsFastOnMissingProviderSettings(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("OAUTH2_CLIENT_ID", "")
	t.Setenv("OAUTH2_TOKEN_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing settings")
	}
	if !strings.Contains(err.Error(), "OAUTH2_CLIENT_ID") || !strings.Contains(err.Error(), "OAUTH2_TOKEN_URL") {
		t.Fatalf("error should name the missing settings: %v", err)
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_EXPIRATION_MINUTES", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-integer ttl")
	}

	t.Setenv("JWT_EXPIRATION_MINUTES", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero ttl")
	}

	t.Setenv("JWT_EXPIRATION_MINUTES", "30")
	t.Setenv("APP_PORT", "70000")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}
