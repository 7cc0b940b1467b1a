package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PGStore implements Store on PostgreSQL so multiple instances can
// share one nonce table. Atomicity of Consume rides on a single
// conditional DELETE.
type PGStore struct {
	db     *sql.DB
	window time.Duration
	now    func() time.Time
}

// PGOption configures a PGStore.
type PGOption func(*PGStore)

// WithPGWindow overrides the nonce validity window.
func WithPGWindow(d time.Duration) PGOption {
	return func(s *PGStore) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithPGClock overrides the time source (useful for tests).
func WithPGClock(fn func() time.Time) PGOption {
	return func(s *PGStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewPGStore constructs a Postgres-backed Store.
func NewPGStore(db *sql.DB, opts ...PGOption) *PGStore {
	s := &PGStore{
		db:     db,
		window: DefaultWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*PGStore)(nil)

// EnsureSchema creates the login_states table if it does not exist.
// Called once at startup.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`create table if not exists login_states(
			nonce text primary key,
			created_at timestamptz not null
		)`)
	if err != nil {
		return fmt.Errorf("state: ensure schema: %w", err)
	}
	return nil
}

// Create generates a nonce and inserts a pending row. Expired rows are
// swept opportunistically first.
func (s *PGStore) Create(ctx context.Context) (string, error) {
	if err := s.SweepExpired(ctx); err != nil {
		return "", err
	}
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`insert into login_states(nonce, created_at) values($1, $2)`,
		nonce, s.now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("state: create: %w", err)
	}
	return nonce, nil
}

// Consume deletes the nonce only if it is still within the validity
// window. The conditional DELETE is atomic, so a concurrently replayed
// callback sees zero rows affected.
func (s *PGStore) Consume(ctx context.Context, nonce string) error {
	if nonce == "" {
		return ErrInvalidState
	}
	cutoff := s.now().UTC().Add(-s.window)
	res, err := s.db.ExecContext(ctx,
		`delete from login_states where nonce = $1 and created_at > $2`,
		nonce, cutoff,
	)
	if err != nil {
		return ErrInvalidState
	}
	affected, err := res.RowsAffected()
	if err != nil || affected == 0 {
		return ErrInvalidState
	}
	return nil
}

// SweepExpired removes rows older than the validity window.
func (s *PGStore) SweepExpired(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.window)
	if _, err := s.db.ExecContext(ctx,
		`delete from login_states where created_at <= $1`, cutoff,
	); err != nil {
		return fmt.Errorf("state: sweep: %w", err)
	}
	return nil
}
