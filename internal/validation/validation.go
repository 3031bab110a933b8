// Package validation provides input validation for API parameters.
package validation

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB).
const MaxRequestSize = 1 << 20

var (
	// ethAddressRegex validates Ethereum addresses.
	ethAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	// txHashRegex validates 32-byte transaction hashes.
	txHashRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)
)

// IsValidAddress checks if a string is a valid Ethereum address.
func IsValidAddress(addr string) bool {
	return ethAddressRegex.MatchString(addr)
}

// IsValidTxHash checks if a string is a valid 32-byte hex digest.
func IsValidTxHash(h string) bool {
	return txHashRegex.MatchString(h)
}

// RequestSizeMiddleware limits request body size.
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// AddressParamMiddleware validates the :address URL parameter on routes
// that use it, rejecting malformed addresses before any handler runs.
func AddressParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("address")
		if addr != "" && !IsValidAddress(addr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": "address must be a valid Ethereum address (0x + 40 hex chars)",
			})
			return
		}
		c.Next()
	}
}
