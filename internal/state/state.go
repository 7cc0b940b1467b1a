// Package state manages the short-lived, single-use nonces that bind an
// in-flight login attempt to its callback, closing the CSRF window in
// the authorization-code handshake.
package state

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultWindow bounds how long a nonce stays valid after creation.
const DefaultWindow = 10 * time.Minute

// ErrInvalidState is returned by Consume for every failure mode.
// Missing, expired and already-consumed nonces are deliberately
// indistinguishable to callers.
var ErrInvalidState = errors.New("state: invalid or expired state")

// Store records pending login attempts. A nonce is valid for exchange
// exactly once, and only within the expiry window after creation.
// Implementations must make Consume an atomic check-and-delete so a
// replayed callback cannot win twice.
type Store interface {
	// Create records a fresh nonce and returns it.
	Create(ctx context.Context) (string, error)
	// Consume removes the nonce if it exists and has not expired.
	// Any failure returns ErrInvalidState with no side effects.
	Consume(ctx context.Context, nonce string) error
	// SweepExpired removes entries older than the expiry window.
	// Correctness does not depend on it; Consume rejects stale
	// entries regardless of when the sweep last ran.
	SweepExpired(ctx context.Context) error
}

// newNonce returns a fresh random nonce with 32 bytes of entropy,
// URL-safe encoded.
func newNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("state: generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
