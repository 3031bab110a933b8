package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSafe = "0xAbCd000000000000000000000000000000000001"
	testHash = "0xaaaabbbbccccddddeeeeffff0000111122223333444455556666777788889999"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := NewAPIClient(Config{APIURL: ts.URL})
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "chain_unavailable",
			"message": "Could not read Safe state from the chain",
		})
	}))
	defer ts.Close()

	client := NewAPIClient(Config{APIURL: ts.URL})
	_, err := client.GetSafeInfo(context.Background(), testSafe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "Could not read Safe state from the chain")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewAPIClient(Config{APIURL: ts.URL})
	_, err := client.ListPendingTransactions(context.Background(), testSafe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_DoRequest_NotFoundSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "transaction_not_found",
			"message": "No pending transaction with that hash for this Safe",
		})
	}))
	defer ts.Close()

	client := NewAPIClient(Config{APIURL: ts.URL})
	_, err := client.AnalyzeTransaction(context.Background(), testSafe, testHash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewAPIClient(Config{APIURL: "http://127.0.0.1:1"})
	_, err := client.GetSafeInfo(context.Background(), testSafe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_ListAnalyses_LimitQuery(t *testing.T) {
	var gotLimit string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		_, _ = w.Write([]byte(`{"safe":"0x1","count":0,"analyses":[]}`))
	}))
	defer ts.Close()

	client := NewAPIClient(Config{APIURL: ts.URL})
	_, err := client.ListAnalyses(context.Background(), testSafe, 5)
	require.NoError(t, err)
	assert.Equal(t, "5", gotLimit)
}

// ============================================================
// Handler tests
// ============================================================

func TestHandleAnalyzeTransaction_RelaysReportText(t *testing.T) {
	report := "Safe Transaction Analysis\n=========================\n\nTransaction: " + testHash + "\n"
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/safes/"+testSafe+"/pending/"+testHash+"/analysis", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"safeAddress": testSafe,
			"actionKind":  "ether_transfer",
			"text":        report,
		})
	}))
	defer cleanup()

	result, err := h.HandleAnalyzeTransaction(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
		"safe_tx_hash": testHash,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, report, resultText(t, result))
}

func TestHandleAnalyzeTransaction_NotFoundIsPlainText(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "transaction_not_found",
			"message": "No pending transaction with that hash for this Safe",
		})
	}))
	defer cleanup()

	result, err := h.HandleAnalyzeTransaction(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
		"safe_tx_hash": testHash,
	}))
	require.NoError(t, err)

	// A missing transaction is a normal answer for the model, not a tool error.
	assert.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "No pending transaction")
	assert.Contains(t, text, testHash)
	assert.Contains(t, text, "list_pending_transactions")
}

func TestHandleAnalyzeTransaction_UpstreamFailureIsToolError(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "analysis_failed",
			"message": "Error analyzing transaction",
		})
	}))
	defer cleanup()

	result, err := h.HandleAnalyzeTransaction(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
		"safe_tx_hash": testHash,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Analyze transaction:")
	assert.Contains(t, text, "Error analyzing transaction")
}

func TestHandleAnalyzeTransaction_MissingArgs(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer cleanup()

	result, err := h.HandleAnalyzeTransaction(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "safe_address is required")

	result, err = h.HandleAnalyzeTransaction(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "safe_tx_hash is required")
}

func TestHandleListPending_FormatsTransactions(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/safes/"+testSafe+"/pending", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"safe":  testSafe,
			"count": 2,
			"results": []map[string]any{
				{
					"safeTxHash":            testHash,
					"to":                    "0x2222222222222222222222222222222222222222",
					"value":                 "1000000000000000000",
					"confirmations":         []map[string]any{{"owner": "0x1"}},
					"confirmationsRequired": 2,
				},
				{
					"safeTxHash":            "0xfeed",
					"to":                    "0x3333333333333333333333333333333333333333",
					"value":                 "0",
					"dataDecoded":           map[string]any{"method": "changeThreshold"},
					"confirmations":         []map[string]any{},
					"confirmationsRequired": 2,
				},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleListPending(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 pending transaction(s)")
	assert.Contains(t, text, testHash)
	assert.Contains(t, text, "ETH transfer")
	assert.Contains(t, text, "changeThreshold")
	assert.Contains(t, text, "Confirmations: 1 of 2")
	assert.Contains(t, text, "Confirmations: 0 of 2")
	assert.Contains(t, text, "analyze_pending_transaction")
}

func TestHandleListPending_Empty(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"safe":    testSafe,
			"count":   0,
			"results": []any{},
		})
	}))
	defer cleanup()

	result, err := h.HandleListPending(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "No pending transactions")
}

func TestHandleGetSafeInfo_FormatsOwnersAndThreshold(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/safes/"+testSafe, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"address":    testSafe,
			"owners":     []string{"0x1111111111111111111111111111111111111111", "0x2222222222222222222222222222222222222222"},
			"threshold":  2,
			"balanceWei": "1500000000000000000",
			"chainId":    11155111,
		})
	}))
	defer cleanup()

	result, err := h.HandleGetSafeInfo(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Threshold: 2 of 2 owners")
	assert.Contains(t, text, "0x1111111111111111111111111111111111111111")
	assert.Contains(t, text, "1500000000000000000 wei")
	assert.Contains(t, text, "Chain ID: 11155111")
}

func TestHandleGetReputation(t *testing.T) {
	addr := "0x4444444444444444444444444444444444444444"
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/reputation/"+addr, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"address": addr,
			"score":   85,
		})
	}))
	defer cleanup()

	result, err := h.HandleGetReputation(context.Background(), makeRequest(map[string]any{
		"address": addr,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "85/100")
}

func TestHandleGetReputation_NotConfigured(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "not_configured",
			"message": "No reputation service is configured",
		})
	}))
	defer cleanup()

	result, err := h.HandleGetReputation(context.Background(), makeRequest(map[string]any{
		"address": testSafe,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Get address reputation:")
	assert.Contains(t, text, "No reputation service is configured")
}

func TestHandleListAnalyses(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/analyses/"+testSafe, r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"safe":  testSafe,
			"count": 1,
			"analyses": []map[string]any{
				{
					"safeTxHash":   testHash,
					"actionKind":   "add_owner",
					"findingCount": 2,
					"topSeverity":  "warning",
					"analyzedAt":   "2026-03-14T09:30:00Z",
				},
			},
		})
	}))
	defer cleanup()

	result, err := h.HandleListAnalyses(context.Background(), makeRequest(map[string]any{
		"safe_address": testSafe,
		"limit":        10,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, testHash)
	assert.Contains(t, text, "add_owner")
	assert.Contains(t, text, "Worst: warning")
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080"})
	require.NotNil(t, s)
}
