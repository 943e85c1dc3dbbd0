package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// APIError is returned for any non-2xx backend response
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// StatusCode extracts the HTTP status of a backend error, or 0 when err is not one
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether the backend answered 404
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the backend rejected the bearer token
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

// Option configures a client
type Option func(*transport)

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(t *transport) { t.timeout = d }
}

// WithRateLimit throttles outbound requests to rps per second. rps <= 0 disables throttling.
func WithRateLimit(rps float64) Option {
	return func(t *transport) {
		if rps <= 0 {
			t.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBaseTransport replaces the underlying round tripper
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(t *transport) { t.base = rt }
}

// WithDebug enables request logging
func WithDebug(debug bool) Option {
	return func(t *transport) { t.debug = debug }
}

// transport is the shared JSON request helper behind every client
type transport struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
	limiter *rate.Limiter
	debug   bool
	client  *http.Client
}

func newTransport(baseURL string, opts ...Option) *transport {
	t := &transport{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    http.DefaultTransport,
		timeout: 15 * time.Second,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.client = &http.Client{Timeout: t.timeout, Transport: t.base}
	return t
}

// withTokenSource returns a copy whose requests carry a bearer token from ts.
// The copy shares the rate limiter with its parent.
func (t *transport) withTokenSource(ts oauth2.TokenSource) *transport {
	cp := *t
	cp.client = &http.Client{
		Timeout:   t.timeout,
		Transport: &oauth2.Transport{Source: ts, Base: t.base},
	}
	return &cp
}

func (t *transport) url(path string, query url.Values) string {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends a JSON request and decodes the JSON response into out (if non-nil)
func (t *transport) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.url(path, query), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.send(req, out)
}

func (t *transport) send(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")

	if err := t.limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if t.debug {
		log.Printf("[DEBUG] backend %s %s -> %d (%v)", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     req.Method,
			Path:       req.URL.Path,
			Message:    errorMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

const maxErrorMessageRunes = 200

// errorMessage pulls a human readable message out of an error body
func errorMessage(data []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		var msg string
		if json.Unmarshal(payload.Message, &msg) == nil && msg != "" {
			return msg
		}
		// some validation errors come back as an array of messages
		var msgs []string
		if json.Unmarshal(payload.Message, &msgs) == nil && len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	text := strings.ToValidUTF8(strings.TrimSpace(string(data)), "")
	if runes := []rune(text); len(runes) > maxErrorMessageRunes {
		text = string(runes[:maxErrorMessageRunes])
	}
	return text
}

// Client talks to the main REST backend
type Client struct {
	t *transport
}

// NewClient creates a client for the REST backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	return &Client{t: newTransport(baseURL, opts...)}
}

// WithTokenSource returns a client that authenticates every request with ts
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	return &Client{t: c.t.withTokenSource(ts)}
}

// BearerToken wraps a raw token string as a token source
func BearerToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func escape(id string) string {
	return url.PathEscape(id)
}
