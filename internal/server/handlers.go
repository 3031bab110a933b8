package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safesentry/safesentry/internal/analysis"
	"github.com/safesentry/safesentry/internal/health"
	"github.com/safesentry/safesentry/internal/logging"
	"github.com/safesentry/safesentry/internal/reputation"
	"github.com/safesentry/safesentry/internal/validation"
)

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    statuses,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "SafeSentry",
		"description": "Risk analysis for pending Safe multisig transactions",
		"version":     "0.1.0",
		"chainId":     s.cfg.ChainID,
	})
}

// getSafe handles GET /v1/safes/:address
func (s *Server) getSafe(c *gin.Context) {
	ctx := c.Request.Context()
	addr := c.Param("address")

	owners, err := s.safeSvc.Owners(ctx, addr)
	if err != nil {
		logging.L(ctx).Error("failed to read safe owners", "safe", addr, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "chain_unavailable",
			"message": "Failed to read Safe state from chain",
		})
		return
	}

	threshold, err := s.safeSvc.Threshold(ctx, addr)
	if err != nil {
		logging.L(ctx).Error("failed to read safe threshold", "safe", addr, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "chain_unavailable",
			"message": "Failed to read Safe state from chain",
		})
		return
	}

	// Balance and chain id are informational; omit on failure rather
	// than failing the whole response.
	resp := gin.H{
		"address":   addr,
		"owners":    owners,
		"threshold": threshold,
	}
	if bal, err := s.chainRdr.Balance(ctx, addr); err == nil {
		resp["balanceWei"] = bal.String()
	}
	if id, err := s.chainRdr.ChainID(ctx); err == nil {
		resp["chainId"] = id.Int64()
	}

	c.JSON(http.StatusOK, resp)
}

// listPending handles GET /v1/safes/:address/pending
func (s *Server) listPending(c *gin.Context) {
	ctx := c.Request.Context()
	addr := c.Param("address")

	txs, count, err := s.txSvc.PendingTransactions(ctx, addr)
	if err != nil {
		logging.L(ctx).Error("failed to list pending transactions", "safe", addr, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "txservice_unavailable",
			"message": "Failed to fetch pending transactions",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"safe":    addr,
		"count":   count,
		"results": txs,
	})
}

// analyzeTransaction handles GET /v1/safes/:address/pending/:hash/analysis
func (s *Server) analyzeTransaction(c *gin.Context) {
	ctx := c.Request.Context()
	addr := c.Param("address")
	hash := c.Param("hash")

	if !validation.IsValidTxHash(hash) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_hash",
			"message": "hash must be a 0x-prefixed 32-byte hex digest",
		})
		return
	}

	report, err := s.engine.Analyze(ctx, addr, hash)
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrTransactionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "transaction_not_found",
				"message": "No pending transaction with that hash for this Safe",
			})
		default:
			logging.L(ctx).Error("analysis failed", "safe", addr, "hash", hash, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "analysis_failed",
				"message": "Error analyzing transaction",
			})
		}
		return
	}

	c.JSON(http.StatusOK, report)
}

// getReputation handles GET /v1/reputation/:address
func (s *Server) getReputation(c *gin.Context) {
	ctx := c.Request.Context()
	addr := c.Param("address")

	score, err := s.reputation.Score(ctx, addr)
	if err != nil {
		switch {
		case errors.Is(err, reputation.ErrNotConfigured):
			c.JSON(http.StatusNotImplemented, gin.H{
				"error":   "not_configured",
				"message": "No reputation service is configured",
			})
		default:
			logging.L(ctx).Warn("reputation lookup failed", "address", addr, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "reputation_unavailable",
				"message": "Reputation service is unavailable",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address": addr,
		"score":   score,
	})
}

// listAnalyses handles GET /v1/analyses/:address (audit trail)
func (s *Server) listAnalyses(c *gin.Context) {
	ctx := c.Request.Context()
	addr := c.Param("address")

	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	recs, err := s.store.ListBySafe(ctx, addr, limit)
	if err != nil {
		logging.L(ctx).Error("failed to list analyses", "safe", addr, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list analyses",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"safe":     addr,
		"count":    len(recs),
		"analyses": recs,
	})
}
