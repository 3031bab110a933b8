// Package reputation queries an external address-reputation service.
//
// The score is an opaque ordinal in [0, 100]: higher means more
// trustworthy, and nothing beyond that monotonicity should be assumed.
// The service is optional — without a configured base URL every lookup
// returns ErrNotConfigured and callers skip their reputation checks.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/safesentry/safesentry/internal/circuitbreaker"
)

// ErrNotConfigured means no reputation service was configured.
var ErrNotConfigured = errors.New("reputation: service not configured")

// ErrUnavailable marks transport or service failures. One failed lookup
// degrades one check; it never fails a whole analysis.
var ErrUnavailable = errors.New("reputation: service unavailable")

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 10 * time.Second

// breakerKey groups all reputation calls under one circuit.
const breakerKey = "reputation"

// Client fetches per-address trust scores over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBreaker guards lookups with a circuit breaker. An open circuit
// reads as ErrUnavailable, which degrades the check like any failure.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// NewClient creates a reputation client. An empty baseURL produces a
// disabled client whose lookups return ErrNotConfigured.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether lookups can be attempted at all.
func (c *Client) Configured() bool {
	return c.baseURL != ""
}

type scoreResponse struct {
	Address string `json:"address"`
	Score   int    `json:"score"`
}

// Score returns the trust score for one address. Queries are per-address,
// never batched, one attempt each.
func (c *Client) Score(ctx context.Context, addr string) (int, error) {
	if !c.Configured() {
		return 0, ErrNotConfigured
	}
	if c.breaker != nil && !c.breaker.Allow(breakerKey) {
		return 0, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	score, err := c.fetch(ctx, addr)
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure(breakerKey)
		} else {
			c.breaker.RecordSuccess(breakerKey)
		}
	}
	return score, err
}

func (c *Client) fetch(ctx context.Context, addr string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/address/"+addr+"/score", nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	}

	var sr scoreResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return 0, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if sr.Score < 0 || sr.Score > 100 {
		return 0, fmt.Errorf("%w: score %d out of range", ErrUnavailable, sr.Score)
	}
	return sr.Score, nil
}
