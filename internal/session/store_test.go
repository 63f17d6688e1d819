package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// memKV is an in-memory KV for store tests.
type memKV struct {
	cred   Credential
	stored bool
	puts   int
	clears int
}

func (m *memKV) Put(ctx context.Context, cred Credential) error {
	m.cred = cred
	m.stored = true
	m.puts++
	return nil
}

func (m *memKV) Get(ctx context.Context) (Credential, bool, error) {
	return m.cred, m.stored, nil
}

func (m *memKV) Clear(ctx context.Context) error {
	m.cred = Credential{}
	m.stored = false
	m.clears++
	return nil
}

func TestTokenBeforeExpiry(t *testing.T) {
	t.Parallel()

	kv := &memKV{}
	store := New(kv)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	if err := store.Save(ctx, "tok-1", now.Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	token, ok := store.Token(ctx)
	if !ok || token != "tok-1" {
		t.Fatalf("Token() = %q, %v, want tok-1, true", token, ok)
	}
	if !store.IsAuthenticated(ctx) {
		t.Error("IsAuthenticated() = false, want true")
	}
}

func TestTokenAtAndAfterExpiry(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{0, time.Millisecond, time.Hour} {
		kv := &memKV{}
		store := New(kv)
		store.now = func() time.Time { return expiry.Add(offset) }

		ctx := context.Background()
		if err := store.Save(ctx, "tok-2", expiry); err != nil {
			t.Fatalf("Save: %v", err)
		}

		if token, ok := store.Token(ctx); ok {
			t.Errorf("offset %v: Token() = %q, want absent", offset, token)
		}
		if kv.stored {
			t.Errorf("offset %v: expired credential not cleared from storage", offset)
		}
	}
}

func TestLogoutIdempotent(t *testing.T) {
	t.Parallel()

	kv := &memKV{}
	store := New(kv)
	ctx := context.Background()

	if err := store.Save(ctx, "tok-3", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := store.Logout(ctx); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if _, ok := store.Token(ctx); ok {
		t.Error("Token() after Logout should be absent")
	}
}

func TestExpiryFallbackFromJWTClaim(t *testing.T) {
	t.Parallel()

	makeToken := func(expiresAt time.Time) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		})
		signed, err := token.SignedString([]byte("test-key"))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return signed
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("valid exp claim", func(t *testing.T) {
		kv := &memKV{cred: Credential{Token: makeToken(now.Add(time.Hour))}, stored: true}
		store := New(kv)
		store.now = func() time.Time { return now }
		if _, ok := store.Token(ctx); !ok {
			t.Error("Token() should fall back to the exp claim and return the token")
		}
	})

	t.Run("expired exp claim", func(t *testing.T) {
		kv := &memKV{cred: Credential{Token: makeToken(now.Add(-time.Hour))}, stored: true}
		store := New(kv)
		store.now = func() time.Time { return now }
		if _, ok := store.Token(ctx); ok {
			t.Error("Token() should treat a past exp claim as expired")
		}
		if kv.stored {
			t.Error("expired credential not cleared")
		}
	})

	t.Run("unparseable token", func(t *testing.T) {
		kv := &memKV{cred: Credential{Token: "not-a-jwt"}, stored: true}
		store := New(kv)
		store.now = func() time.Time { return now }
		if _, ok := store.Token(ctx); ok {
			t.Error("Token() with no recoverable expiry should be absent")
		}
		if kv.stored {
			t.Error("unusable credential not cleared")
		}
	})
}

func TestFileKVRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "session.json")
	kv := NewFileKV(path)
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx); err != nil || ok {
		t.Fatalf("Get on missing file = ok %v, err %v; want absent, nil", ok, err)
	}

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := kv.Put(ctx, Credential{Token: "tok-file", ExpiresAt: expiry}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("credential file mode = %o, want 600", perm)
	}

	cred, ok, err := kv.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if cred.Token != "tok-file" {
		t.Errorf("Token = %q, want tok-file", cred.Token)
	}
	if !cred.ExpiresAt.Equal(expiry) {
		t.Errorf("ExpiresAt = %v, want %v", cred.ExpiresAt, expiry)
	}

	if err := kv.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := kv.Clear(ctx); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}
	if _, ok, _ := kv.Get(ctx); ok {
		t.Error("Get after Clear should be absent")
	}
}
