package telemetry

import (
	"context"
	"maps"
	"runtime/pprof"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Label keys understood by the Pyroscope UI for slicing profiles.
const (
	ProfilingLabelController = "controller"
	ProfilingLabelRoute      = "route"
	ProfilingLabelMethod     = "method"
	ProfilingLabelTenantID   = "tenant_id"
	ProfilingLabelOperation  = "operation"
	ProfilingLabelRegion     = "region"
)

// Operation names for the movement workflow. Used as the "operation"
// profiling label on the transactional code paths.
const (
	OperationInitializeTransfer = "initialize_transfer"
	OperationConfirmDelivery    = "confirm_delivery"
	OperationSelectProducts     = "select_products"
)

// MaxLabelValueLength caps label values to keep Pyroscope cardinality
// and memory bounded.
const MaxLabelValueLength = 128

// HighCardinalityLabels lists label keys that sanitizeLabels silently
// drops. tenant_id is deliberately absent: tenant counts are low enough
// to label on. Do not modify at runtime.
var HighCardinalityLabels = map[string]bool{
	"user_id":     true,
	"request_id":  true,
	"movement_id": true,
	"trace_id":    true,
	"span_id":     true,
	"session_id":  true,
}

// WithProfilingLabels runs fn with the given pprof labels attached, so
// samples collected inside fn can be filtered by label in Pyroscope.
// The labels map is copied before use.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if len(labels) == 0 {
		fn(ctx)
		return
	}

	labelsCopy := make(map[string]string, len(labels))
	maps.Copy(labelsCopy, labels)

	labelPairs := sanitizeLabels(labelsCopy)
	if len(labelPairs) == 0 {
		fn(ctx)
		return
	}

	pyroscope.TagWrapper(ctx, pyroscope.Labels(labelPairs...), fn)
}

// WithPprofLabels is the same as WithProfilingLabels but goes through
// Go's native pprof API, for use with standard profiling tools.
func WithPprofLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if len(labels) == 0 {
		fn(ctx)
		return
	}

	labelsCopy := make(map[string]string, len(labels))
	maps.Copy(labelsCopy, labels)

	labelPairs := sanitizeLabels(labelsCopy)
	if len(labelPairs) == 0 {
		fn(ctx)
		return
	}

	pprof.Do(ctx, pprof.Labels(labelPairs...), fn)
}

// ProfilingScope accumulates labels before running a function.
type ProfilingScope struct {
	labels map[string]string
}

// NewProfilingScope creates a scope seeded with the given labels.
func NewProfilingScope(labels map[string]string) *ProfilingScope {
	scope := &ProfilingScope{
		labels: make(map[string]string),
	}
	maps.Copy(scope.labels, labels)
	return scope
}

// WithLabel adds a single label to the scope.
func (s *ProfilingScope) WithLabel(key, value string) *ProfilingScope {
	s.labels[key] = value
	return s
}

// WithController adds the controller label.
func (s *ProfilingScope) WithController(controller string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelController, controller)
}

// WithRoute adds the route label.
func (s *ProfilingScope) WithRoute(route string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelRoute, route)
}

// WithMethod adds the method label.
func (s *ProfilingScope) WithMethod(method string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelMethod, method)
}

// WithTenantID adds the tenant_id label.
func (s *ProfilingScope) WithTenantID(tenantID string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelTenantID, tenantID)
}

// WithOperation adds the operation label.
func (s *ProfilingScope) WithOperation(operation string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelOperation, operation)
}

// WithRegion adds the region label for code regions such as "db_query".
func (s *ProfilingScope) WithRegion(region string) *ProfilingScope {
	return s.WithLabel(ProfilingLabelRegion, region)
}

// Labels returns a copy of the accumulated labels.
func (s *ProfilingScope) Labels() map[string]string {
	result := make(map[string]string, len(s.labels))
	maps.Copy(result, s.labels)
	return result
}

// Run executes fn with the accumulated labels.
func (s *ProfilingScope) Run(ctx context.Context, fn func(context.Context)) {
	WithProfilingLabels(ctx, s.labels, fn)
}

// sanitizeLabels drops empty and high-cardinality labels, truncates
// oversized values, normalizes keys to snake_case, and returns a
// deterministic key/value slice.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	pairs := make([]string, 0, len(labels)*2)

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := labels[key]

		if key == "" || value == "" {
			continue
		}
		// silently skipped rather than logged to keep hot paths quiet
		if HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}

		sanitizedKey := sanitizeLabelKey(key)
		if sanitizedKey == "" {
			continue
		}

		pairs = append(pairs, sanitizedKey, value)
	}

	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, " ", "_")
	key = strings.ReplaceAll(key, "-", "_")

	result := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			result = append(result, c)
		}
	}

	return string(result)
}

// HTTPRequestLabels creates the standard label set for HTTP request
// profiling. Empty values are omitted.
func HTTPRequestLabels(controller, route, method, tenantID string) map[string]string {
	labels := make(map[string]string, 4)

	if controller != "" {
		labels[ProfilingLabelController] = controller
	}
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	if tenantID != "" {
		labels[ProfilingLabelTenantID] = tenantID
	}

	return labels
}

// OperationLabels creates labels for a named operation.
func OperationLabels(operation string, extraLabels map[string]string) map[string]string {
	labels := make(map[string]string, len(extraLabels)+1)
	labels[ProfilingLabelOperation] = operation
	maps.Copy(labels, extraLabels)

	return labels
}

// MovementOperationLabels creates labels for a movement workflow
// operation, tagging samples with the controller so they group next to
// the HTTP middleware's labels.
func MovementOperationLabels(operation string) map[string]string {
	return map[string]string{
		ProfilingLabelOperation:  operation,
		ProfilingLabelController: "movements",
	}
}

// RegionLabels creates labels for a code region (e.g. database access).
func RegionLabels(region string, extraLabels map[string]string) map[string]string {
	labels := make(map[string]string, len(extraLabels)+1)
	labels[ProfilingLabelRegion] = region
	maps.Copy(labels, extraLabels)

	return labels
}
