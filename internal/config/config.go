// Package config loads the process configuration from the environment.
// The configuration is populated once at startup, validated eagerly and
// immutable afterwards.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultSecret is the insecure fallback signing secret. Running with
// it is allowed but triggers a loud startup warning.
const DefaultSecret = "default-secret-key-change-in-production"

const (
	defaultRedirectURI = "http://localhost:8000/auth/callback"
	defaultAlgorithm   = "HS256"
	defaultTTLMinutes  = 30
	defaultHost        = "0.0.0.0"
	defaultPort        = 8000
)

// Config holds every runtime setting of the service.
type Config struct {
	// OAuth2 provider
	ClientID         string
	ClientSecret     string
	AuthorizationURL string
	TokenURL         string
	UserInfoURL      string
	RedirectURI      string

	// Session token signing
	SigningSecret    string
	SigningAlgorithm string
	TokenTTL         time.Duration

	// HTTP listener
	Host string
	Port int

	// Optional Postgres DSN for the shared login-state table. Empty
	// selects the in-memory store.
	PostgresDSN string
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads the environment, applies defaults and validates required
// settings. Missing provider URLs or client credentials fail fast here
// rather than on the first login attempt.
func Load() (Config, error) {
	cfg := Config{
		ClientID:         os.Getenv("OAUTH2_CLIENT_ID"),
		ClientSecret:     os.Getenv("OAUTH2_CLIENT_SECRET"),
		AuthorizationURL: os.Getenv("OAUTH2_AUTHORIZATION_URL"),
		TokenURL:         os.Getenv("OAUTH2_TOKEN_URL"),
		UserInfoURL:      os.Getenv("OAUTH2_USER_INFO_URL"),
		RedirectURI:      envOr("OAUTH2_REDIRECT_URI", defaultRedirectURI),
		SigningSecret:    envOr("JWT_SECRET_KEY", DefaultSecret),
		SigningAlgorithm: envOr("JWT_ALGORITHM", defaultAlgorithm),
		Host:             envOr("APP_HOST", defaultHost),
		PostgresDSN:      os.Getenv("LAZYAUTH_PG_DSN"),
	}

	ttlMinutes, err := envIntOr("JWT_EXPIRATION_MINUTES", defaultTTLMinutes)
	if err != nil {
		return Config{}, err
	}
	cfg.TokenTTL = time.Duration(ttlMinutes) * time.Minute

	cfg.Port, err = envIntOr("APP_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	if cfg.SigningSecret == DefaultSecret {
		log.Printf("WARNING: using the default JWT signing secret; set JWT_SECRET_KEY before running in production")
	}
	return cfg, nil
}

func (c Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "OAUTH2_CLIENT_ID")
	}
	if strings.TrimSpace(c.ClientSecret) == "" {
		missing = append(missing, "OAUTH2_CLIENT_SECRET")
	}
	if strings.TrimSpace(c.AuthorizationURL) == "" {
		missing = append(missing, "OAUTH2_AUTHORIZATION_URL")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		missing = append(missing, "OAUTH2_TOKEN_URL")
	}
	if strings.TrimSpace(c.UserInfoURL) == "" {
		missing = append(missing, "OAUTH2_USER_INFO_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return errors.New("config: JWT_SECRET_KEY must not be blank")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: JWT_EXPIRATION_MINUTES must be greater than zero")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("config: APP_PORT must be a valid port number")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return v, nil
}
