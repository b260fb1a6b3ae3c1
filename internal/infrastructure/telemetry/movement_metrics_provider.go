// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMovementMetricsProvider implements MovementMetricsProvider using GORM.
// It queries the movement_requests and stock_lots tables directly for
// aggregated metrics.
type GormMovementMetricsProvider struct {
	db *gorm.DB
}

// NewGormMovementMetricsProvider creates a new GormMovementMetricsProvider.
func NewGormMovementMetricsProvider(db *gorm.DB) *GormMovementMetricsProvider {
	return &GormMovementMetricsProvider{db: db}
}

// GetPendingApprovalCount returns the number of movements awaiting a decision,
// grouped by providing service, for a tenant.
func (p *GormMovementMetricsProvider) GetPendingApprovalCount(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	type result struct {
		ProvidingServiceID uuid.UUID `gorm:"column:providing_service_id"`
		Pending            int64     `gorm:"column:pending"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("movement_requests").
		Select("providing_service_id, COUNT(*) as pending").
		Where("tenant_id = ? AND status = ?", tenantID, "PENDING_APPROVAL").
		Group("providing_service_id").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[uuid.UUID]int64, len(results))
	for _, r := range results {
		m[r.ProvidingServiceID] = r.Pending
	}

	return m, nil
}

// GetStockOnHandByService returns the total lot quantity per service for a tenant.
func (p *GormMovementMetricsProvider) GetStockOnHandByService(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int64, error) {
	type result struct {
		ServiceID uuid.UUID `gorm:"column:service_id"`
		Quantity  int64     `gorm:"column:quantity"`
	}

	var results []result
	err := p.db.WithContext(ctx).
		Table("stock_lots").
		Select("service_id, COALESCE(SUM(quantity), 0) as quantity").
		Where("tenant_id = ?", tenantID).
		Group("service_id").
		Find(&results).Error

	if err != nil {
		return nil, err
	}

	m := make(map[uuid.UUID]int64, len(results))
	for _, r := range results {
		m[r.ServiceID] = r.Quantity
	}

	return m, nil
}

// GormTenantProvider implements TenantProvider using GORM. Tenants are not a
// first-class table in this subsystem, so the distinct tenants seen in
// movement_requests stand in for the active set.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns all tenant IDs with at least one movement.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("movement_requests").
		Distinct("tenant_id").
		Find(&ids).Error

	return ids, err
}
