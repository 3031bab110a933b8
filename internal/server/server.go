// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/safesentry/safesentry/internal/analysis"
	"github.com/safesentry/safesentry/internal/chain"
	"github.com/safesentry/safesentry/internal/circuitbreaker"
	"github.com/safesentry/safesentry/internal/config"
	"github.com/safesentry/safesentry/internal/health"
	"github.com/safesentry/safesentry/internal/logging"
	"github.com/safesentry/safesentry/internal/metrics"
	"github.com/safesentry/safesentry/internal/reputation"
	"github.com/safesentry/safesentry/internal/retry"
	"github.com/safesentry/safesentry/internal/safeaccount"
	"github.com/safesentry/safesentry/internal/txservice"
	"github.com/safesentry/safesentry/internal/validation"
	"github.com/safesentry/safesentry/internal/verify"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg        *config.Config
	chainRdr   *chain.Reader
	safeSvc    *safeaccount.Service
	txSvc      *txservice.Client
	reputation *reputation.Client
	verify     *verify.Client
	engine     *analysis.Engine
	store      analysis.Store
	healthReg  *health.Registry
	db         *sql.DB // nil if using in-memory
	router     *gin.Engine
	httpSrv    *http.Server
	logger     *slog.Logger

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithChainClient injects an RPC client (for testing).
func WithChainClient(c chain.Client) Option {
	return func(s *Server) {
		s.chainRdr, _ = chain.NewReader("", chain.WithClient(c))
	}
}

// WithStore overrides the audit trail store (for testing).
func WithStore(store analysis.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set chain client/logger/store)
	for _, opt := range opts {
		opt(s)
	}

	// Storage: Postgres if DATABASE_URL set, otherwise in-memory.
	// The analysis store is an audit trail only, never a report cache.
	if s.store == nil {
		if cfg.DatabaseURL != "" {
			db, err := openDatabase(cfg.DatabaseURL)
			if err != nil {
				return nil, err
			}
			s.db = db
			s.store = analysis.NewPostgresStore(db)
			s.logger.Info("using PostgreSQL audit trail", "url", maskDSN(cfg.DatabaseURL))
		} else {
			s.store = analysis.NewMemoryStore()
			s.logger.Info("using in-memory audit trail (data will not persist)")
		}
	}

	// Chain reader (unless injected)
	if s.chainRdr == nil {
		rdr, err := chain.NewReader(cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to chain rpc: %w", err)
		}
		s.chainRdr = rdr
	}

	safeSvc, err := safeaccount.New(s.chainRdr.RPC())
	if err != nil {
		return nil, fmt.Errorf("failed to create safe account service: %w", err)
	}
	s.safeSvc = safeSvc

	s.txSvc = txservice.NewClient(cfg.TxServiceURL)

	breaker := circuitbreaker.New(3, 30*time.Second)
	s.reputation = reputation.NewClient(cfg.ReputationAPIURL, cfg.ReputationAPIKey,
		reputation.WithBreaker(breaker))
	if s.reputation.Configured() {
		s.logger.Info("reputation lookups enabled")
	} else {
		s.logger.Info("reputation lookups disabled (REPUTATION_API_URL not set)")
	}

	verifyBase := cfg.EtherscanAPIURL
	if verifyBase == "" {
		verifyBase = verify.DefaultBaseURL
	}
	s.verify = verify.NewClient(verifyBase, cfg.EtherscanAPIKey,
		verify.WithBreaker(breaker))
	if s.verify.Configured() {
		s.logger.Info("contract verification lookups enabled")
	} else {
		s.logger.Info("contract verification lookups disabled (ETHERSCAN_API_KEY not set)")
	}

	s.engine = analysis.NewEngine(s.txSvc, s.safeSvc, s.chainRdr, s.reputation, s.verify).
		WithStore(s.store)

	s.setupHealthChecks()

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// openDatabase opens the connection pool, retrying the initial ping. The
// retry lives here at startup; the analysis path itself never retries.
func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = retry.Do(context.Background(), 5, time.Second, func() error {
		return db.Ping()
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

func (s *Server) setupHealthChecks() {
	s.healthReg = health.NewRegistry()

	s.healthReg.Register("chain", func(ctx context.Context) health.Status {
		if _, err := s.chainRdr.ChainID(ctx); err != nil {
			return health.Fail("chain", err)
		}
		return health.OK("chain")
	})

	if s.db != nil {
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Fail("database", err)
			}
			return health.OK("database")
		})
	}
}

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	// Validate :address URL params on all v1 routes (no-op when param absent)
	v1.Use(validation.AddressParamMiddleware())

	v1.GET("/safes/:address", s.getSafe)
	v1.GET("/safes/:address/pending", s.listPending)
	v1.GET("/safes/:address/pending/:hash/analysis", s.analyzeTransaction)
	v1.GET("/reputation/:address", s.getReputation)
	v1.GET("/analyses/:address", s.listAnalyses)
}

// Run starts the HTTP server with graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"chain_id", s.cfg.ChainID,
			"tx_service", s.cfg.TxServiceURL,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.chainRdr.Close()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
