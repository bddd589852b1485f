// Package http provides the operational HTTP surface: liveness, readiness and the
// Prometheus metrics endpoint.
package http

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/cardvault/internal/config"
	hsmDomain "github.com/allisson/cardvault/internal/hsm/domain"
	"github.com/allisson/cardvault/internal/metrics"
)

// HSMState reports the HSM connection state.
type HSMState interface {
	State() hsmDomain.ConnectionState
}

// Server represents the ops HTTP server.
type Server struct {
	db       *sql.DB
	hsm      HSMState
	listener *listener
	router   *gin.Engine
	logger   *slog.Logger
}

// NewServer creates the ops server. db is nil for the memory store.
func NewServer(
	db *sql.DB,
	hsm HSMState,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:       db,
		hsm:      hsm,
		logger:   logger,
		listener: newListener("http server", host, port, logger),
	}
}

// SetupRouter builds the gin engine with request ids, logging, optional CORS and
// HTTP metrics.
func (s *Server) SetupRouter(cfg *config.Config, metricsProvider *metrics.Provider) {
	gin.SetMode(cfg.GetGinMode())

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}
	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready when the database answers a ping and the HSM is
// connected.
func (s *Server) readinessHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	components := gin.H{}

	switch {
	case s.db == nil:
		components["database"] = "memory"
	case s.db.PingContext(ctx) != nil:
		components["database"] = "error"
		ready = false
	default:
		components["database"] = "ok"
	}

	switch {
	case s.hsm == nil:
		components["hsm"] = "error"
		ready = false
	case s.hsm.State() != hsmDomain.StateConnected:
		components["hsm"] = s.hsm.State().String()
		ready = false
	default:
		components["hsm"] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// Start serves until Shutdown is called.
func (s *Server) Start(_ context.Context) error {
	return s.listener.serve(s.router)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.listener.shutdown(ctx)
}
