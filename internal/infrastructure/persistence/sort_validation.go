package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// MovementSortFields contains allowed sort fields for movement requests
var MovementSortFields = map[string]bool{
	"id":                    true,
	"created_at":            true,
	"updated_at":            true,
	"movement_number":       true,
	"status":                true,
	"requesting_service_id": true,
	"providing_service_id":  true,
	"requested_at":          true,
	"transfer_initiated_at": true,
	"delivery_confirmed_at": true,
}

// StockLotSortFields contains allowed sort fields for stock lots
var StockLotSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"product_id":   true,
	"service_id":   true,
	"quantity":     true,
	"batch_number": true,
	"expiry_date":  true,
}
