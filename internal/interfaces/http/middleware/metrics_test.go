package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newManualMeter returns a meter backed by a manual reader so tests can
// collect exactly what the middleware recorded.
func newManualMeter(t *testing.T) (metric.Meter, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp.Meter("http.server"), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestHTTPMetricsDisabled(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	router.GET("/movements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movements", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetricsNilMeterProvider(t *testing.T) {
	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))
	router.GET("/movements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movements", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetricsRecordsRequest(t *testing.T) {
	meter, reader := newManualMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(meter, true))
	router.POST("/movements/:id/send", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	body := strings.NewReader(`{"notes":"initial restock"}`)
	req := httptest.NewRequest(http.MethodPost, "/movements/9f2b2a77-3c41-4a0e-a33e-e5a9f51f0001/send", body)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	rm := collect(t, reader)

	total := findMetric(rm, "http_server_request_total")
	require.NotNil(t, total)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)

	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)

	// The route label is the pattern, not the concrete path
	route, ok := dp.Attributes.Value(attribute.Key("http.route"))
	require.True(t, ok)
	assert.Equal(t, "/movements/:id/send", route.AsString())

	status, ok := dp.Attributes.Value(attribute.Key("http.status_code"))
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusOK), status.AsInt64())

	duration := findMetric(rm, "http_server_request_duration_seconds")
	require.NotNil(t, duration)
	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)

	reqSize := findMetric(rm, "http_server_request_size_bytes")
	require.NotNil(t, reqSize)

	respSize := findMetric(rm, "http_server_response_size_bytes")
	require.NotNil(t, respSize)
}

func TestHTTPMetricsTenantLabel(t *testing.T) {
	meter, reader := newManualMeter(t)

	router := gin.New()
	// simulate the JWT middleware having resolved the tenant
	router.Use(func(c *gin.Context) {
		c.Set(JWTTenantIDKey, "7b6cfc4e-92d4-4a3e-9a41-1f2d3c4b5a60")
		c.Next()
	})
	router.Use(HTTPMetricsWithMeter(meter, true))
	router.GET("/movements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movements", nil))
	require.Equal(t, http.StatusOK, w.Code)

	rm := collect(t, reader)
	total := findMetric(rm, "http_server_request_total")
	require.NotNil(t, total)

	sum := total.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	tenant, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("tenant_id"))
	require.True(t, ok)
	assert.Equal(t, "7b6cfc4e-92d4-4a3e-9a41-1f2d3c4b5a60", tenant.AsString())
}

func TestHTTPMetricsUnmatchedRoute(t *testing.T) {
	meter, reader := newManualMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(meter, true))
	router.GET("/movements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/no-such-path", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	rm := collect(t, reader)
	total := findMetric(rm, "http_server_request_total")
	require.NotNil(t, total)

	sum := total.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)

	route, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("http.route"))
	require.True(t, ok)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetricsWithMeterDisabled(t *testing.T) {
	meter, reader := newManualMeter(t)

	router := gin.New()
	router.Use(HTTPMetricsWithMeter(meter, false))
	router.GET("/movements", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movements", nil))
	require.Equal(t, http.StatusOK, w.Code)

	rm := collect(t, reader)
	assert.Nil(t, findMetric(rm, "http_server_request_total"))
}

func TestRoutePattern(t *testing.T) {
	router := gin.New()
	var captured string
	router.GET("/movements/:id", func(c *gin.Context) {
		captured = routePattern(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/movements/abc", nil))

	assert.Equal(t, "/movements/:id", captured)
}
