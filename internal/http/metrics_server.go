package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/cardvault/internal/metrics"
)

// MetricsServer serves /metrics on its own port so scrapes never share a listener
// with the ops endpoints.
type MetricsServer struct {
	listener *listener
	router   *gin.Engine
}

// NewMetricsServer creates the metrics server. A nil provider yields a server that
// answers 404 for everything.
func NewMetricsServer(
	host string,
	port int,
	logger *slog.Logger,
	metricsProvider *metrics.Provider,
) *MetricsServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))

	if metricsProvider != nil {
		router.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	}

	return &MetricsServer{
		listener: newListener("metrics server", host, port, logger),
		router:   router,
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *MetricsServer) GetHandler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *MetricsServer) Start(_ context.Context) error {
	return s.listener.serve(s.router)
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.listener.shutdown(ctx)
}
