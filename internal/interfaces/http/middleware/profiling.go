package middleware

import (
	"context"
	"strings"

	"github.com/gestock/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	// Enabled controls whether profiling labels are added to requests.
	Enabled bool
	// SkipPaths are paths that don't need profiling labels (e.g., health checks).
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't need profiling labels.
	SkipPathPrefixes []string
}

// DefaultProfilingConfig returns default profiling middleware configuration.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled: true,
		SkipPaths: []string{
			"/health",
			"/healthz",
			"/ready",
			"/metrics",
		},
	}
}

// Profiling returns profiling middleware with default configuration.
func Profiling() gin.HandlerFunc {
	return ProfilingWithConfig(DefaultProfilingConfig())
}

// ProfilingWithConfig tags request execution with Pyroscope labels so CPU
// profiles can be sliced by controller, route, method and tenant. Labels come
// from the matched route pattern, keeping cardinality low even for the
// per-movement workflow endpoints.
func ProfilingWithConfig(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		labels := profilingLabels(c)

		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

func profilingLabels(c *gin.Context) map[string]string {
	labels := make(map[string]string, 4)

	if method := c.Request.Method; method != "" {
		labels[telemetry.ProfilingLabelMethod] = method
	}

	route := c.FullPath()
	if route != "" {
		labels[telemetry.ProfilingLabelRoute] = route
	}

	if controller := controllerFromRoute(route); controller != "" {
		labels[telemetry.ProfilingLabelController] = controller
	}

	if tenantID := tenantIDLabel(c); tenantID != "" {
		labels[telemetry.ProfilingLabelTenantID] = tenantID
	}

	return labels
}

// controllerFromRoute derives the resource name from a route pattern, e.g.
// "/api/v1/movements/:id/send" -> "movements".
func controllerFromRoute(route string) string {
	for _, part := range strings.Split(route, "/") {
		if part == "" || part == "api" || isVersionSegment(part) {
			continue
		}
		if strings.HasPrefix(part, ":") || strings.HasPrefix(part, "*") {
			continue
		}
		return part
	}
	return ""
}

// isVersionSegment reports whether a path segment is an API version (v1, v2, ...).
func isVersionSegment(segment string) bool {
	if len(segment) < 2 || (segment[0] != 'v' && segment[0] != 'V') {
		return false
	}
	for i := 1; i < len(segment); i++ {
		if segment[i] < '0' || segment[i] > '9' {
			return false
		}
	}
	return true
}
