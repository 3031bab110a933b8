// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Blockchain settings
	RPCURL  string
	ChainID int64

	// Safe Transaction Service (pending-transaction directory)
	TxServiceURL string

	// Contract verification (Etherscan-compatible). No key disables the
	// verification check, never the whole analysis.
	EtherscanAPIURL string
	EtherscanAPIKey string

	// Address reputation service. No URL disables reputation checks.
	ReputationAPIURL string
	ReputationAPIKey string

	// Tracing
	OTLPEndpoint string
}

// Sepolia defaults
const (
	DefaultRPCURL       = "https://ethereum-sepolia-rpc.publicnode.com"
	DefaultChainID      = 11155111 // Sepolia
	DefaultTxServiceURL = "https://safe-transaction-sepolia.safe.global"
	DefaultPort         = "8080"
	DefaultEnv          = "development"
	DefaultLogLevel     = "info"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", DefaultPort),
		Env:              getEnv("ENV", DefaultEnv),
		LogLevel:         getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:      os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RPCURL:           getEnv("RPC_URL", DefaultRPCURL),
		ChainID:          getEnvInt64("CHAIN_ID", DefaultChainID),
		TxServiceURL:     getEnv("TX_SERVICE_URL", DefaultTxServiceURL),
		EtherscanAPIURL:  os.Getenv("ETHERSCAN_API_URL"), // Client falls back to mainnet API
		EtherscanAPIKey:  os.Getenv("ETHERSCAN_API_KEY"),
		ReputationAPIURL: os.Getenv("REPUTATION_API_URL"),
		ReputationAPIKey: os.Getenv("REPUTATION_API_KEY"),
		OTLPEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.TxServiceURL == "" {
		return fmt.Errorf("TX_SERVICE_URL is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}
