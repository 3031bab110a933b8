// Package txservice is a client for a Safe Transaction Service-compatible
// API: the directory of proposed multisig transactions awaiting owner
// confirmations. The directory only offers list-by-Safe; callers filter
// for a specific hash themselves.
package txservice

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/safesentry/safesentry/internal/safetx"
)

// DefaultTimeout bounds a single directory request.
const DefaultTimeout = 15 * time.Second

// Client queries the transaction service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a directory client for the given service base URL,
// e.g. "https://safe-transaction-sepolia.safe.global".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pendingPage is the directory's list envelope.
type pendingPage struct {
	Count   int                          `json:"count"`
	Results []*safetx.PendingTransaction `json:"results"`
}

// PendingTransactions returns the Safe's current pending set and its size.
func (c *Client) PendingTransactions(ctx context.Context, safeAddr string) ([]*safetx.PendingTransaction, int, error) {
	u, err := url.Parse(fmt.Sprintf("%s/api/v1/safes/%s/multisig-transactions/", c.baseURL, safeAddr))
	if err != nil {
		return nil, 0, fmt.Errorf("txservice: invalid url: %w", err)
	}
	q := u.Query()
	q.Set("executed", "false")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("txservice: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("txservice: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("txservice: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, 0, fmt.Errorf("txservice: service error (%d): %s", resp.StatusCode, string(body))
	}

	var page pendingPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, 0, fmt.Errorf("txservice: decode response: %w", err)
	}
	return page.Results, page.Count, nil
}
