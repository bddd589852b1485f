package http

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// createCORSMiddleware returns the CORS middleware for the ops endpoints, or nil
// when CORS is disabled or no origins are configured. The vault talks to services,
// not browsers; CORS exists only so status dashboards can poll /health and /ready.
// Requests are read-only and never carry credentials. A "*" entry allows any origin.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured - CORS will not be applied")
		return nil
	}

	config := cors.Config{
		AllowMethods:  []string{"GET", "HEAD"},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}

	logger.Info("CORS enabled",
		slog.Bool("all_origins", config.AllowAllOrigins),
		slog.Any("origins", config.AllowOrigins))

	return cors.New(config)
}

// parseOrigins splits a comma-separated origin list, dropping blanks and duplicates.
func parseOrigins(originsStr string) []string {
	var origins []string
	for part := range strings.SplitSeq(originsStr, ",") {
		origin := strings.TrimRight(strings.TrimSpace(part), "/")
		if origin != "" && !slices.Contains(origins, origin) {
			origins = append(origins, origin)
		}
	}
	return origins
}
