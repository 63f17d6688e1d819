package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"docuscan/internal/model"
)

// fakeSession implements Session with a fixed token.
type fakeSession struct {
	token     string
	saved     string
	savedExp  time.Time
	loggedOut bool
}

func (s *fakeSession) Token(ctx context.Context) (string, bool) {
	return s.token, s.token != ""
}

func (s *fakeSession) Save(ctx context.Context, token string, expiresAt time.Time) error {
	s.saved = token
	s.savedExp = expiresAt
	s.token = token
	return nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	s.token = ""
	s.loggedOut = true
	return nil
}

func newTestClient(t *testing.T, handler http.Handler, sess Session) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL, sess, 5*time.Second)
}

func TestLoginPersistsCredential(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["username"] != "admin" || req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
			return
		}
		json.NewEncoder(w).Encode(model.LoginResponse{AccessToken: "tok-login", TokenType: "bearer", ExpiresIn: 1800})
	})

	sess := &fakeSession{}
	client := newTestClient(t, mux, sess)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client.now = func() time.Time { return now }

	resp, err := client.Login(context.Background(), "admin", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken != "tok-login" {
		t.Errorf("AccessToken = %q, want tok-login", resp.AccessToken)
	}
	if sess.saved != "tok-login" {
		t.Errorf("persisted token = %q, want tok-login", sess.saved)
	}
	if want := now.Add(1800 * time.Second); !sess.savedExp.Equal(want) {
		t.Errorf("persisted expiry = %v, want %v", sess.savedExp, want)
	}
}

func TestLoginRejectedSurfacesDetail(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect username or password"})
	})

	sess := &fakeSession{}
	client := newTestClient(t, mux, sess)

	_, err := client.Login(context.Background(), "admin", "wrong")
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Login error = %v, want *RejectedError", err)
	}
	if rejected.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", rejected.StatusCode)
	}
	if rejected.Message != "Incorrect username or password" {
		t.Errorf("Message = %q, want server detail verbatim", rejected.Message)
	}
	if sess.saved != "" {
		t.Error("failed login must not persist partial state")
	}
}

func TestLoginEmptyCredentialsIsLocal(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), &fakeSession{})

	_, err := client.Login(context.Background(), " ", "")
	if !errors.Is(err, ErrEmptyCredentials) {
		t.Fatalf("Login error = %v, want ErrEmptyCredentials", err)
	}
	if hits.Load() != 0 {
		t.Errorf("empty credentials issued %d network calls, want 0", hits.Load())
	}
}

func TestBearerDecoration(t *testing.T) {
	t.Parallel()

	var gotAuthz string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuthz = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(model.User{Username: "admin", Role: "admin"})
	})

	client := newTestClient(t, mux, &fakeSession{token: "tok-bearer"})
	user, err := client.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if gotAuthz != "Bearer tok-bearer" {
		t.Errorf("Authorization = %q, want Bearer tok-bearer", gotAuthz)
	}
	if user.Username != "admin" {
		t.Errorf("Username = %q, want admin", user.Username)
	}
}

func TestAuthRequiredShortCircuit(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}), &fakeSession{})

	_, err := client.Me(context.Background())
	if !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("Me error = %v, want ErrAuthenticationRequired", err)
	}
	if _, err := client.Statistics(context.Background()); !errors.Is(err, ErrAuthenticationRequired) {
		t.Fatalf("Statistics error = %v, want ErrAuthenticationRequired", err)
	}
	if hits.Load() != 0 {
		t.Errorf("tokenless operations issued %d network calls, want 0", hits.Load())
	}
}

func TestUnreachableClassification(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // nothing listening anymore

	client := New(server.URL, &fakeSession{token: "tok"}, time.Second)
	_, err := client.SearchStudents(context.Background(), "", 1, 50)
	if !IsUnreachable(err) {
		t.Fatalf("SearchStudents error = %v, want unreachable classification", err)
	}
	var unreachable *UnreachableError
	if !errors.As(err, &unreachable) || unreachable.Unwrap() == nil {
		t.Error("UnreachableError should wrap the transport error")
	}
}

func TestUnauthorizedResponseDestroysCredential(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
	})

	sess := &fakeSession{token: "tok-stale"}
	client := newTestClient(t, mux, sess)

	_, err := client.Statistics(context.Background())
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Statistics error = %v, want 401 rejection", err)
	}
	if !sess.loggedOut {
		t.Error("401 response must clear the stored credential")
	}
}

func TestDeleteSuccessByStatusAlone(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/students/7", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := newTestClient(t, mux, &fakeSession{token: "tok"})
	if err := client.DeleteStudent(context.Background(), 7); err != nil {
		t.Fatalf("DeleteStudent: %v", err)
	}
}

func TestUploadSendsMultipartFileField(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "card.jpg" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(model.UploadResponse{Success: true, Message: "ok"})
	})

	client := newTestClient(t, mux, &fakeSession{token: "tok"})
	resp, err := client.Upload(context.Background(), "card.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !resp.Success || resp.Message != "ok" {
		t.Errorf("Upload response = %+v, want success ok", resp)
	}
}

func TestFileURL(t *testing.T) {
	t.Parallel()

	client := New("http://api.local", &fakeSession{}, time.Second)
	got := client.FileURL("STU-00001", "photo 1.jpg")
	want := "http://api.local/api/files/STU-00001/photo%201.jpg"
	if got != want {
		t.Errorf("FileURL = %q, want %q", got, want)
	}
}
