package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("TX_SERVICE_URL", "")
	t.Setenv("CHAIN_ID", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultRPCURL, cfg.RPCURL)
	assert.Equal(t, int64(DefaultChainID), cfg.ChainID)
	assert.Equal(t, DefaultTxServiceURL, cfg.TxServiceURL)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("RPC_URL", "https://rpc.example.com")
	t.Setenv("CHAIN_ID", "1")
	t.Setenv("TX_SERVICE_URL", "https://safe-transaction-mainnet.safe.global")
	t.Setenv("REPUTATION_API_URL", "https://rep.example.com")
	t.Setenv("REPUTATION_API_KEY", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "https://rpc.example.com", cfg.RPCURL)
	assert.Equal(t, int64(1), cfg.ChainID)
	assert.Equal(t, "https://rep.example.com", cfg.ReputationAPIURL)
	assert.True(t, cfg.IsProduction())
}

func TestLoadBadChainID(t *testing.T) {
	t.Setenv("CHAIN_ID", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultChainID), cfg.ChainID)
}

func TestValidate(t *testing.T) {
	cfg := &Config{RPCURL: "https://rpc.example.com", TxServiceURL: "https://tx.example.com", ChainID: 1}
	assert.NoError(t, cfg.Validate())

	cfg.RPCURL = ""
	assert.Error(t, cfg.Validate())

	cfg.RPCURL = "https://rpc.example.com"
	cfg.TxServiceURL = ""
	assert.Error(t, cfg.Validate())

	cfg.TxServiceURL = "https://tx.example.com"
	cfg.ChainID = 0
	assert.Error(t, cfg.Validate())
}
