package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x4444444444444444444444444444444444444444"

func TestContractInfoVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "contract", r.URL.Query().Get("module"))
		assert.Equal(t, "getsourcecode", r.URL.Query().Get("action"))
		assert.Equal(t, testContract, r.URL.Query().Get("address"))
		assert.Equal(t, "key123", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"SourceCode":"contract DAI {}","ContractName":"Dai","ABI":"[]"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123")
	info, err := c.ContractInfo(context.Background(), testContract)
	require.NoError(t, err)
	assert.True(t, info.Verified)
	assert.Equal(t, "Dai", info.Name)
}

func TestContractInfoUnverified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"1","message":"OK","result":[
			{"SourceCode":"","ContractName":"","ABI":"Contract source code not verified"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123")
	info, err := c.ContractInfo(context.Background(), testContract)
	require.NoError(t, err)
	assert.False(t, info.Verified)
	assert.Empty(t, info.Name)
}

func TestContractInfoNotConfigured(t *testing.T) {
	c := NewClient("", "")
	assert.False(t, c.Configured())

	_, err := c.ContractInfo(context.Background(), testContract)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestContractInfoQuotaFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"0","message":"Max rate limit reached","result":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123")
	_, err := c.ContractInfo(context.Background(), testContract)
	assert.ErrorIs(t, err, ErrUnavailable)
}
