package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the SafeSentry API.
type Config struct {
	APIURL string // Base URL, e.g. "http://localhost:8080"
}

// ErrNotFound means the API answered 404 for the requested resource.
// Handlers surface it as plain text rather than a tool error, so the
// model can relay it to the user directly.
var ErrNotFound = errors.New("mcpserver: not found")

// APIClient is a pure HTTP client for the SafeSentry API.
type APIClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewAPIClient creates a new client for the SafeSentry API.
func NewAPIClient(cfg Config) *APIClient {
	return &APIClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the API.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the API and returns the response body.
func (c *APIClient) doRequest(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
		}
		return nil, ErrNotFound
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// AnalyzeTransaction runs a risk analysis on one pending transaction.
func (c *APIClient) AnalyzeTransaction(ctx context.Context, safeAddr, safeTxHash string) (json.RawMessage, error) {
	path := "/v1/safes/" + safeAddr + "/pending/" + safeTxHash + "/analysis"
	return c.doRequest(ctx, path, nil)
}

// ListPendingTransactions lists a Safe's pending transactions.
func (c *APIClient) ListPendingTransactions(ctx context.Context, safeAddr string) (json.RawMessage, error) {
	path := "/v1/safes/" + safeAddr + "/pending"
	return c.doRequest(ctx, path, nil)
}

// GetSafeInfo returns owners, threshold, and balance for a Safe.
func (c *APIClient) GetSafeInfo(ctx context.Context, safeAddr string) (json.RawMessage, error) {
	path := "/v1/safes/" + safeAddr
	return c.doRequest(ctx, path, nil)
}

// GetReputation returns the reputation score for an address.
func (c *APIClient) GetReputation(ctx context.Context, address string) (json.RawMessage, error) {
	path := "/v1/reputation/" + address
	return c.doRequest(ctx, path, nil)
}

// ListAnalyses returns the audit trail of past analyses for a Safe.
func (c *APIClient) ListAnalyses(ctx context.Context, safeAddr string, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, "/v1/analyses/"+safeAddr, q)
}
