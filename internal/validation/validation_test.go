package validation

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want bool
	}{
		{"checksummed", "0x5aFE3855358E112B5647B952709E6165e1c1eEEe", true},
		{"lowercase", "0x5afe3855358e112b5647b952709e6165e1c1eeee", true},
		{"no prefix", "5afe3855358e112b5647b952709e6165e1c1eeee", false},
		{"too short", "0x5afe", false},
		{"non-hex", "0xZZfe3855358e112b5647b952709e6165e1c1eeee", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidAddress(tt.addr))
		})
	}
}

func TestIsValidTxHash(t *testing.T) {
	assert.True(t, IsValidTxHash("0x1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"))
	assert.False(t, IsValidTxHash("0xabcdef"), "too short")
	assert.False(t, IsValidTxHash("1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"), "missing prefix")
	assert.False(t, IsValidTxHash(""))
}

func TestAddressParamMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/safes/:address", AddressParamMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/safes/0x5afe3855358e112b5647b952709e6165e1c1eeee", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/safes/not-an-address", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
