package middleware

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxRequestIDLength caps request IDs taken from headers.
	MaxRequestIDLength = 128
	// MaxTenantIDLength caps tenant IDs taken from headers.
	MaxTenantIDLength = 64
)

// uuidRegex validates UUID format for tenant IDs from headers.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "gestock-backend",
		Enabled:     true,
	}
}

// Tracing returns OpenTelemetry tracing middleware with default configuration.
func Tracing() gin.HandlerFunc {
	return TracingWithConfig(DefaultTracingConfig())
}

// TracingWithConfig wraps otelgin and enriches each span with request_id,
// tenant_id, user_id and service_id attributes. Span names follow otelgin's
// "METHOD route_pattern" form (e.g. "POST /api/v1/movements/:id/send").
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	base := otelgin.Middleware(cfg.ServiceName)

	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}
	}
}

// enrichSpan attaches workflow identity attributes to the current span.
func enrichSpan(c *gin.Context, span trace.Span) {
	if requestID := traceRequestID(c); requestID != "" {
		span.SetAttributes(attribute.String("request_id", requestID))
	}
	if tenantID := traceTenantID(c); tenantID != "" {
		span.SetAttributes(attribute.String("tenant_id", tenantID))
	}
	if userID := claimString(c, JWTUserIDKey); userID != "" {
		span.SetAttributes(attribute.String("user_id", userID))
	}
	// service_id identifies which hospital service the caller acts for
	if serviceID := claimString(c, JWTServiceIDKey); serviceID != "" {
		span.SetAttributes(attribute.String("service_id", serviceID))
	}
}

// traceRequestID prefers the ID set by the RequestID middleware and falls
// back to the header, truncated so oversized values cannot bloat the trace.
func traceRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}

	headerID := c.GetHeader("X-Request-ID")
	if len(headerID) > MaxRequestIDLength {
		return headerID[:MaxRequestIDLength]
	}
	return headerID
}

// traceTenantID prefers the JWT claim and accepts the X-Tenant-ID header only
// when it looks like a UUID, so unauthenticated callers cannot inject
// arbitrary strings into trace attributes.
func traceTenantID(c *gin.Context) string {
	if id := claimString(c, JWTTenantIDKey); id != "" {
		return id
	}

	headerTenantID := c.GetHeader("X-Tenant-ID")
	if headerTenantID != "" && isValidTenantID(headerTenantID) {
		return headerTenantID
	}
	return ""
}

func isValidTenantID(tenantID string) bool {
	return len(tenantID) <= MaxTenantIDLength && uuidRegex.MatchString(tenantID)
}

// claimString reads a string claim placed in the gin context by the JWT
// middleware.
func claimString(c *gin.Context, key string) string {
	if value, exists := c.Get(key); exists {
		if s, ok := value.(string); ok {
			return s
		}
	}
	return ""
}

// SpanErrorMarker marks spans as errored for 4xx/5xx responses. Place it
// after the Tracing middleware.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		statusCode := c.Writer.Status()
		if statusCode < http.StatusBadRequest {
			return
		}

		var message string
		switch {
		case statusCode >= http.StatusInternalServerError:
			message = "Internal Server Error"
		case statusCode == http.StatusUnauthorized:
			message = "Unauthorized"
		case statusCode == http.StatusForbidden:
			message = "Forbidden"
		case statusCode == http.StatusNotFound:
			message = "Not Found"
		default:
			message = "Client Error"
		}

		span.SetStatus(codes.Error, message)
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
}

// TracingAttributeInjector re-enriches the current span once authentication
// has run, so tenant, user and service claims land on the span even though
// the Tracing middleware sits before JWT in the chain.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}
		c.Next()
	}
}
