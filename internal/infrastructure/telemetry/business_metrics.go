// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics provides business metrics for the stock movement workflow.
// It tracks movement creation, delivery outcomes, and stock on hand.
type BusinessMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	movementCreatedTotal   *Counter
	movementSentTotal      *Counter
	transferInitiatedTotal *Counter
	deliveryConfirmedTotal *Counter

	// Gauge metrics (point-in-time values)
	pendingApprovalCount *Gauge
	stockOnHandQuantity  *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data provider for periodic collection
	movementProvider MovementMetricsProvider
}

// MovementMetricsProvider provides movement and stock data for periodic
// metrics collection. This interface allows the telemetry layer to query
// workflow state without depending on the movement domain directly.
type MovementMetricsProvider interface {
	// GetPendingApprovalCount returns the number of movements awaiting a
	// decision, grouped by providing service, for a tenant
	GetPendingApprovalCount(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error)

	// GetStockOnHandByService returns the total lot quantity per service for a tenant
	GetStockOnHandByService(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error)
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter            metric.Meter
	Logger           *zap.Logger
	CollectInterval  time.Duration // Default: 5 minutes
	MovementProvider MovementMetricsProvider
}

// NewBusinessMetrics creates a new BusinessMetrics instance.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BusinessMetrics{
		meter:            cfg.Meter,
		logger:           logger,
		stopChan:         make(chan struct{}),
		movementProvider: cfg.MovementProvider,
	}

	var err error

	bm.movementCreatedTotal, err = NewCounter(
		cfg.Meter,
		"gestock_movement_created_total",
		"Total number of movement drafts created",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	bm.movementSentTotal, err = NewCounter(
		cfg.Meter,
		"gestock_movement_sent_total",
		"Total number of movements submitted for approval",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	bm.transferInitiatedTotal, err = NewCounter(
		cfg.Meter,
		"gestock_transfer_initiated_total",
		"Total number of transfers started by providing services",
		"{transfers}",
	)
	if err != nil {
		return nil, err
	}

	bm.deliveryConfirmedTotal, err = NewCounter(
		cfg.Meter,
		"gestock_delivery_confirmed_total",
		"Total number of delivery confirmations by terminal status",
		"{deliveries}",
	)
	if err != nil {
		return nil, err
	}

	bm.pendingApprovalCount, err = NewGauge(
		cfg.Meter,
		"gestock_movement_pending_approval",
		"Number of movements awaiting an approval decision",
		"{movements}",
	)
	if err != nil {
		return nil, err
	}

	bm.stockOnHandQuantity, err = NewGauge(
		cfg.Meter,
		"gestock_stock_on_hand_quantity",
		"Total stock lot quantity held by a service",
		"{units}",
	)
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// =============================================================================
// Movement Workflow Metrics
// =============================================================================

// RecordMovementCreated records a movement draft creation.
// This should be called from the application layer when a draft is created.
func (bm *BusinessMetrics) RecordMovementCreated(ctx context.Context, tenantID, requestingServiceID uuid.UUID) {
	bm.movementCreatedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrServiceID.String(requestingServiceID.String()),
	)
}

// RecordMovementSent records a movement submitted for approval.
func (bm *BusinessMetrics) RecordMovementSent(ctx context.Context, tenantID, providingServiceID uuid.UUID) {
	bm.movementSentTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrServiceID.String(providingServiceID.String()),
	)
}

// RecordTransferInitiated records a transfer start by the providing service.
func (bm *BusinessMetrics) RecordTransferInitiated(ctx context.Context, tenantID, providingServiceID uuid.UUID) {
	bm.transferInitiatedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrServiceID.String(providingServiceID.String()),
	)
}

// RecordDeliveryConfirmed records a delivery confirmation with its terminal status.
func (bm *BusinessMetrics) RecordDeliveryConfirmed(ctx context.Context, tenantID uuid.UUID, status string) {
	bm.deliveryConfirmedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrMovementStatus.String(status),
	)
}

// =============================================================================
// Stock Metrics
// =============================================================================

// RecordPendingApprovalCount records the number of movements awaiting approval
// for a providing service. This is a gauge metric updated periodically.
func (bm *BusinessMetrics) RecordPendingApprovalCount(ctx context.Context, tenantID, serviceID uuid.UUID, count int64) {
	bm.pendingApprovalCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
		AttrServiceID.String(serviceID.String()),
	)
}

// RecordStockOnHand records the total lot quantity held by a service.
// This is a gauge metric updated periodically.
func (bm *BusinessMetrics) RecordStockOnHand(ctx context.Context, tenantID, serviceID uuid.UUID, quantity int64) {
	bm.stockOnHandQuantity.Record(ctx, quantity,
		AttrTenantID.String(tenantID.String()),
		AttrServiceID.String(serviceID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects movement and stock metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	bm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go bm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (bm *BusinessMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	bm.collectMovementMetrics(ctx, tenantProvider)

	for {
		select {
		case <-bm.stopChan:
			bm.logger.Info("Stopping periodic business metrics collection")
			return
		case <-ctx.Done():
			bm.logger.Info("Context cancelled, stopping periodic business metrics collection")
			return
		case <-ticker.C:
			bm.collectMovementMetrics(ctx, tenantProvider)
		}
	}
}

// collectMovementMetrics collects gauge metrics for all tenants.
func (bm *BusinessMetrics) collectMovementMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if bm.movementProvider == nil {
		bm.logger.Debug("No movement provider configured, skipping metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		bm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		bm.collectTenantMovementMetrics(ctx, tenantID)
	}
}

// collectTenantMovementMetrics collects movement metrics for a single tenant.
func (bm *BusinessMetrics) collectTenantMovementMetrics(ctx context.Context, tenantID uuid.UUID) {
	pendingByService, err := bm.movementProvider.GetPendingApprovalCount(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get pending approval count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		for serviceID, count := range pendingByService {
			bm.RecordPendingApprovalCount(ctx, tenantID, serviceID, count)
		}
	}

	stockByService, err := bm.movementProvider.GetStockOnHandByService(ctx, tenantID)
	if err != nil {
		bm.logger.Warn("Failed to get stock on hand for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		for serviceID, quantity := range stockByService {
			bm.RecordStockOnHand(ctx, tenantID, serviceID, quantity)
		}
	}
}

// Stop stops the periodic collection.
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() {
		close(bm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
