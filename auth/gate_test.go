package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"orion/transport"
)

// fakeAuthServer accepts only "good" tokens and reports auth_required=true.
func fakeAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"auth_required": true}`))
	}))
}

func TestVerifyWithValidToken(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	c := transport.New(srv.URL)
	g := NewGate(c, "good", nil)

	if err := g.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !g.Required() || !g.Authenticated() || !g.Allow() {
		t.Errorf("required=%v authenticated=%v allow=%v", g.Required(), g.Authenticated(), g.Allow())
	}
}

func TestVerifyWithMissingTokenClosesGate(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	c := transport.New(srv.URL)
	g := NewGate(c, "", nil)

	if err := g.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if g.Allow() {
		t.Error("gate should be closed after 401")
	}

	// Gated calls now fail locally
	_, err := c.Do(context.Background(), http.MethodGet, "/api/notes", nil)
	if !errors.Is(err, transport.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestVerifyNoAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"auth_required": false}`))
	}))
	defer srv.Close()

	c := transport.New(srv.URL)
	g := NewGate(c, "", nil)

	if err := g.Verify(context.Background()); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !g.Allow() {
		t.Error("gate should be open when server requires no auth")
	}
}

func TestSubmitTokenSuccessPersists(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	c := transport.New(srv.URL)
	var persisted string
	g := NewGate(c, "", func(tok string) error {
		persisted = tok
		return nil
	})
	g.Verify(context.Background()) // closes the gate

	if err := g.SubmitToken(context.Background(), "good"); err != nil {
		t.Fatalf("SubmitToken: %v", err)
	}
	if persisted != "good" {
		t.Errorf("persisted %q, want %q", persisted, "good")
	}
	if !g.Allow() {
		t.Error("gate should be open after accepted token")
	}
}

func TestSubmitTokenRejectedKeepsGateClosed(t *testing.T) {
	srv := fakeAuthServer(t)
	defer srv.Close()

	c := transport.New(srv.URL)
	g := NewGate(c, "", nil)
	g.Verify(context.Background())

	err := g.SubmitToken(context.Background(), "bad")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if g.Allow() {
		t.Error("gate should stay closed after rejected token")
	}
}

func TestSubmitTokenSingleFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(`{"auth_required": true}`))
	}))
	defer srv.Close()

	c := transport.New(srv.URL)
	g := NewGate(c, "", nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		g.SubmitToken(context.Background(), "first")
	}()

	// Wait until the first submission reaches the server, then try a second.
	for !func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.verifying
	}() {
	}
	err := g.SubmitToken(context.Background(), "second")
	if !errors.Is(err, ErrVerifyInFlight) {
		t.Errorf("expected ErrVerifyInFlight, got %v", err)
	}

	close(release)
	wg.Wait()
}
