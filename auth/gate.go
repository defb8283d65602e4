// Package auth validates the stored bearer token against the server and
// gates every other API call until that succeeds.
package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"orion/transport"
)

var (
	// ErrInvalidToken means the server rejected the candidate token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrVerifyInFlight means a previous submission has not resolved yet.
	ErrVerifyInFlight = errors.New("token verification already in flight")
)

type verifyResponse struct {
	AuthRequired bool `json:"auth_required"`
}

// Gate tracks whether the server demands authentication and whether the
// current token passed verification. It installs itself as the transport
// client's gate, so unauthenticated calls fail locally.
type Gate struct {
	client  *transport.Client
	persist func(token string) error

	mu            sync.Mutex
	token         string
	required      bool
	authenticated bool
	verifying     bool
}

// NewGate wires the gate into client. persist stores a verified token
// durably (nil disables persistence).
func NewGate(client *transport.Client, token string, persist func(string) error) *Gate {
	g := &Gate{client: client, persist: persist, token: token}
	client.SetToken(token)
	client.SetGate(g.Allow)
	return g
}

// Allow reports whether gated calls may proceed.
func (g *Gate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.required || g.authenticated
}

func (g *Gate) Required() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.required
}

func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticated
}

// Verify checks the currently stored token against the server. Called once
// at startup and again on demand. The server answers 2xx with
// {auth_required} when the token (or its absence) is acceptable, 401 when
// a token is required and the presented one is missing or wrong.
func (g *Gate) Verify(ctx context.Context) error {
	var body verifyResponse
	err := g.client.DoJSON(ctx, http.MethodPost, "/api/auth/verify", nil, &body, transport.BypassGate())

	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case err == nil:
		g.required = body.AuthRequired
		g.authenticated = true
		return nil
	case transport.IsStatus(err, http.StatusUnauthorized):
		g.required = true
		g.authenticated = false
		return nil
	default:
		// Network failure: leave the gate as-is, surface the error.
		return err
	}
}

// SubmitToken verifies candidate against the server and, on success,
// persists it as the durable token and opens the gate. At most one
// verification is in flight per submission.
func (g *Gate) SubmitToken(ctx context.Context, candidate string) error {
	g.mu.Lock()
	if g.verifying {
		g.mu.Unlock()
		return ErrVerifyInFlight
	}
	g.verifying = true
	prev := g.token
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.verifying = false
		g.mu.Unlock()
	}()

	g.client.SetToken(candidate)
	var body verifyResponse
	err := g.client.DoJSON(ctx, http.MethodPost, "/api/auth/verify", nil, &body, transport.BypassGate())
	if err != nil {
		g.client.SetToken(prev)
		if transport.IsStatus(err, http.StatusUnauthorized) || transport.IsStatus(err, http.StatusForbidden) {
			return ErrInvalidToken
		}
		return err
	}

	g.mu.Lock()
	g.token = candidate
	g.required = body.AuthRequired
	g.authenticated = true
	g.mu.Unlock()

	if g.persist != nil {
		if err := g.persist(candidate); err != nil {
			return err
		}
	}
	return nil
}
