// Package transport is the HTTP/JSON boundary to the orion API server.
// It attaches the bearer token, normalizes non-2xx responses into
// *APIError, and rejects calls locally while the auth gate is closed.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// ErrNotAuthenticated is returned without a network round-trip when the
// auth gate is closed.
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError carries the HTTP status of a non-2xx response. Bodies on error
// paths are never inspected beyond the status code.
type APIError struct {
	Status int
	Method string
	Path   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: server returned %d", e.Method, e.Path, e.Status)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Response is a fully-read HTTP response with request timing.
type Response struct {
	Status     int
	Body       []byte
	Header     http.Header
	TTFB       time.Duration
	Elapsed    time.Duration
	ConnReused bool
}

type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
	allow func() bool
}

func New(base string) *Client {
	return &Client{
		base: base,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// SetGate installs the auth gate check. A nil gate allows everything.
func (c *Client) SetGate(allow func() bool) {
	c.mu.Lock()
	c.allow = allow
	c.mu.Unlock()
}

type reqOptions struct {
	bypassGate  bool
	contentType string
}

type ReqOption func(*reqOptions)

// BypassGate lets a request through a closed gate. Token verification
// needs this; nothing else should.
func BypassGate() ReqOption {
	return func(o *reqOptions) { o.bypassGate = true }
}

func ContentType(ct string) ReqOption {
	return func(o *reqOptions) { o.contentType = ct }
}

// Do issues one request against the API server. The body is read fully
// before returning; non-2xx statuses come back as *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body io.Reader, opts ...ReqOption) (*Response, error) {
	var o reqOptions
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.RLock()
	token := c.token
	allow := c.allow
	c.mu.RUnlock()

	if !o.bypassGate && allow != nil && !allow() {
		return nil, ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if o.contentType != "" {
		req.Header.Set("Content-Type", o.contentType)
	}

	var ttfb time.Duration
	var reused bool
	start := time.Now()
	trace := &httptrace.ClientTrace{
		GotConn:              func(info httptrace.GotConnInfo) { reused = info.Reused },
		GotFirstResponseByte: func() { ttfb = time.Since(start) },
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading body: %w", method, path, err)
	}

	out := &Response{
		Status:     resp.StatusCode,
		Body:       data,
		Header:     resp.Header,
		TTFB:       ttfb,
		Elapsed:    time.Since(start),
		ConnReused: reused,
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, &APIError{Status: resp.StatusCode, Method: method, Path: path}
	}
	return out, nil
}

// DoJSON marshals in (when non-nil), issues the request, and unmarshals
// the response into out (when non-nil).
func (c *Client) DoJSON(ctx context.Context, method, path string, in, out any, opts ...ReqOption) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		opts = append(opts, ContentType("application/json"))
	}

	resp, err := c.Do(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}

// Warm opens a connection to the server ahead of the first real request.
func (c *Client) Warm(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base+"/", nil)
	if err != nil {
		return
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
