package txservice

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pendingFixture = `{
  "count": 2,
  "results": [
    {
      "safeTxHash": "0xaaa1",
      "to": "0x1111111111111111111111111111111111111111",
      "value": "0",
      "data": "0x",
      "proposer": "0x2222222222222222222222222222222222222222",
      "submissionDate": "2026-08-01T12:00:00Z",
      "confirmations": [
        {"owner": "0x2222222222222222222222222222222222222222", "submissionDate": "2026-08-01T12:00:00Z"}
      ],
      "confirmationsRequired": 2
    },
    {
      "safeTxHash": "0xaaa2",
      "to": "0x3333333333333333333333333333333333333333",
      "value": "500000000000000000",
      "data": "0x",
      "dataDecoded": null,
      "proposer": "0x2222222222222222222222222222222222222222",
      "submissionDate": "2026-08-02T09:30:00Z",
      "confirmations": [],
      "confirmationsRequired": 2
    }
  ]
}`

func TestPendingTransactions(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(pendingFixture))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	txs, count, err := c.PendingTransactions(context.Background(), "0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/safes/0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe/multisig-transactions/", gotPath)
	assert.Equal(t, "executed=false", gotQuery)
	assert.Equal(t, 2, count)
	require.Len(t, txs, 2)
	assert.Equal(t, "0xaaa1", txs[0].SafeTxHash)
	assert.Equal(t, 2, txs[0].ConfirmationsRequired)
	require.Len(t, txs[0].Confirmations, 1)
	assert.Equal(t, "500000000000000000", txs[1].ValueWei().String())
}

func TestPendingTransactionsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "Safe not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.PendingTransactions(context.Background(), "0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service error (404)")
}

func TestPendingTransactionsUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // nothing listens here
	_, _, err := c.PendingTransactions(context.Background(), "0x5afe5afe5afe5afe5afe5afe5afe5afe5afe5afe")
	assert.Error(t, err)
}
