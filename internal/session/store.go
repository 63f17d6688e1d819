// Package session owns the bearer credential and its expiry. It is the
// single source of truth for whether the operator is logged in; every
// other package reads the token through Store.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the persisted bearer token with its absolute expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// KV is the durable two-entry store behind the session. Put writes the
// token and expiry together and Clear removes them together, so no
// partial credential is ever persisted. No other package writes these
// entries.
type KV interface {
	Put(ctx context.Context, cred Credential) error
	Get(ctx context.Context) (Credential, bool, error)
	Clear(ctx context.Context) error
}

// Store guards the credential lifecycle. The expiry check and the
// clearing of stale state happen under one lock, so no caller ever
// observes a token past its expiry.
type Store struct {
	mu  sync.Mutex
	kv  KV
	now func() time.Time
}

// New creates a store over the given durable backend.
func New(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// Save persists a credential. Called once per successful login.
func (s *Store) Save(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Put(ctx, Credential{Token: token, ExpiresAt: expiresAt})
}

// Token returns the stored token if present and not expired. An expired
// credential is cleared before returning absent. Backend read failures
// are treated as absent.
func (s *Store) Token(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok, err := s.kv.Get(ctx)
	if err != nil || !ok || cred.Token == "" {
		return "", false
	}

	expiresAt := cred.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = expiryFromClaims(cred.Token)
	}
	if expiresAt.IsZero() || !s.now().Before(expiresAt) {
		_ = s.kv.Clear(ctx)
		return "", false
	}
	return cred.Token, true
}

// Logout unconditionally clears the persisted credential. Idempotent.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Clear(ctx)
}

// IsAuthenticated reports whether a usable token is currently stored.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Token(ctx)
	return ok
}

// expiryFromClaims recovers the expiry from the token's registered exp
// claim when the stored expiry entry is missing or corrupt. The token
// is decoded without signature verification; only the server can verify
// it, the client just needs the instant after which it must not present
// the token. Returns the zero time when no exp claim is readable.
func expiryFromClaims(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
