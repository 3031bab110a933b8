// Package verify queries a block-explorer API for whether a contract has
// verified, human-readable source code published.
//
// Only meaningful for contract addresses — callers must establish that
// first via the chain reader. Without an API key the client is disabled
// and lookups return ErrNotConfigured; a failed lookup means "could not
// determine", never "unverified".
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/safesentry/safesentry/internal/circuitbreaker"
)

// ErrNotConfigured means no explorer API key was configured.
var ErrNotConfigured = errors.New("verify: explorer api not configured")

// ErrUnavailable marks transport, quota, or malformed-response failures.
var ErrUnavailable = errors.New("verify: explorer unavailable")

// DefaultBaseURL is the Etherscan mainnet API.
const DefaultBaseURL = "https://api.etherscan.io/api"

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 10 * time.Second

const breakerKey = "verify"

// Info describes a contract's verification status.
type Info struct {
	Verified bool
	Name     string
	ABI      string
}

// Client queries an Etherscan-compatible explorer API.
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

// WithBreaker guards lookups with a circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// NewClient creates an explorer client. An empty apiKey produces a
// disabled client. An empty baseURL falls back to DefaultBaseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
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
	return c.apiKey != ""
}

type sourceCodeEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  []struct {
		SourceCode   string `json:"SourceCode"`
		ContractName string `json:"ContractName"`
		ABI          string `json:"ABI"`
	} `json:"result"`
}

// ContractInfo returns verification status for a contract address.
func (c *Client) ContractInfo(ctx context.Context, addr string) (*Info, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if c.breaker != nil && !c.breaker.Allow(breakerKey) {
		return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
	}

	info, err := c.fetch(ctx, addr)
	if c.breaker != nil {
		if err != nil {
			c.breaker.RecordFailure(breakerKey)
		} else {
			c.breaker.RecordSuccess(breakerKey)
		}
	}
	return info, err
}

func (c *Client) fetch(ctx context.Context, addr string) (*Info, error) {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", addr)
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var env sourceCodeEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	// Etherscan reports quota and key errors with status "0".
	if env.Status != "1" || len(env.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, env.Message)
	}

	r := env.Result[0]
	info := &Info{Name: r.ContractName}
	if r.SourceCode != "" {
		info.Verified = true
		info.ABI = r.ABI
	}
	return info, nil
}
