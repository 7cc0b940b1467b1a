package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps pending login nonces in a mutex-guarded map. It is
// the default backing store; it caps the system to a single instance
// and loses state on restart, which is acceptable for ten-minute
// single-use records.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	window  time.Duration
	now     func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithWindow overrides the nonce validity window.
func WithWindow(d time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]time.Time),
		window:  DefaultWindow,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

// Create generates a nonce and records it as pending. Expired entries
// are swept opportunistically before the insert.
func (s *MemoryStore) Create(ctx context.Context) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[nonce] = s.now().UTC()
	return nonce, nil
}

// Consume atomically checks and deletes the nonce. The mutex is held
// across the check and the delete, so concurrent replays of the same
// nonce admit exactly one winner.
func (s *MemoryStore) Consume(ctx context.Context, nonce string) error {
	if nonce == "" {
		return ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	createdAt, ok := s.entries[nonce]
	if !ok {
		return ErrInvalidState
	}
	// Consumed is equivalent to deleted; the entry is removed even
	// when it turns out to be expired.
	delete(s.entries, nonce)
	if s.now().UTC().Sub(createdAt) > s.window {
		return ErrInvalidState
	}
	return nil
}

// SweepExpired removes entries older than the validity window.
func (s *MemoryStore) SweepExpired(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return nil
}

func (s *MemoryStore) sweepLocked() {
	cutoff := s.now().UTC().Add(-s.window)
	for nonce, createdAt := range s.entries {
		if createdAt.Before(cutoff) {
			delete(s.entries, nonce)
		}
	}
}

// Len reports the number of pending entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
