package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/gestock/backend/internal/infrastructure/telemetry"
)

func TestNewBusinessMetrics(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})

	require.NoError(t, err)
	require.NotNil(t, bm)
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  nil,
		Logger: zap.NewNop(),
	})

	require.Error(t, err)
	assert.Nil(t, bm)
	assert.Equal(t, "NewBusinessMetrics: meter cannot be nil", err.Error())
}

func TestBusinessMetrics_RecordMovementCreated(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()

	// Should not panic
	bm.RecordMovementCreated(ctx, tenantID, uuid.New())
	bm.RecordMovementSent(ctx, tenantID, uuid.New())
	bm.RecordTransferInitiated(ctx, tenantID, uuid.New())
}

func TestBusinessMetrics_RecordDeliveryConfirmed(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()

	// Should not panic
	bm.RecordDeliveryConfirmed(ctx, tenantID, "FULFILLED")
	bm.RecordDeliveryConfirmed(ctx, tenantID, "PARTIALLY_FULFILLED")
	bm.RecordDeliveryConfirmed(ctx, tenantID, "DAMAGED")
	bm.RecordDeliveryConfirmed(ctx, tenantID, "UNFULFILLED")
}

func TestBusinessMetrics_RecordGauges(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	serviceID := uuid.New()

	// Should not panic
	bm.RecordPendingApprovalCount(ctx, tenantID, serviceID, 3)
	bm.RecordStockOnHand(ctx, tenantID, serviceID, 250)
}

// Mock implementations for testing periodic collection

type mockTenantProvider struct {
	tenantIDs []uuid.UUID
	err       error
}

func (m *mockTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	return m.tenantIDs, m.err
}

type mockMovementProvider struct {
	pendingByService map[uuid.UUID]int64
	stockByService   map[uuid.UUID]int64
	err              error
}

func (m *mockMovementProvider) GetPendingApprovalCount(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pendingByService, nil
}

func (m *mockMovementProvider) GetStockOnHandByService(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stockByService, nil
}

func TestBusinessMetrics_PeriodicCollection(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	tenantID := uuid.New()
	serviceID := uuid.New()

	movementProvider := &mockMovementProvider{
		pendingByService: map[uuid.UUID]int64{
			serviceID: 2,
		},
		stockByService: map[uuid.UUID]int64{
			serviceID: 75,
		},
	}

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:            meter,
		Logger:           zap.NewNop(),
		MovementProvider: movementProvider,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantProvider := &mockTenantProvider{
		tenantIDs: []uuid.UUID{tenantID},
	}

	// Start periodic collection with short interval for testing
	bm.StartPeriodicCollection(ctx, tenantProvider, 100*time.Millisecond)

	// Wait for at least one collection cycle
	time.Sleep(150 * time.Millisecond)

	// Stop collection
	bm.Stop()

	// Should complete without error
}

func TestBusinessMetrics_PeriodicCollection_NoProvider(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")

	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
		// No movement provider
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantProvider := &mockTenantProvider{
		tenantIDs: []uuid.UUID{uuid.New()},
	}

	// Should not panic with no movement provider
	bm.StartPeriodicCollection(ctx, tenantProvider, 50*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	bm.Stop()
}

func TestBusinessMetrics_Stop_Idempotent(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter: meter,
	})
	require.NoError(t, err)

	// Calling Stop multiple times should not panic
	bm.Stop()
	bm.Stop()
	bm.Stop()
}

func TestBusinessMetrics_StartPeriodicCollection_OnlyOnce(t *testing.T) {
	meter := noop.NewMeterProvider().Meter("test")
	bm, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:  meter,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tenantProvider := &mockTenantProvider{
		tenantIDs: []uuid.UUID{},
	}

	// Calling StartPeriodicCollection multiple times should only start once
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Hour)
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Minute)
	bm.StartPeriodicCollection(ctx, tenantProvider, time.Second)

	bm.Stop()
}

func TestMetricsError_Error(t *testing.T) {
	err := &telemetry.MetricsError{
		Op:  "TestOperation",
		Err: "test error message",
	}

	assert.Equal(t, "TestOperation: test error message", err.Error())
}
