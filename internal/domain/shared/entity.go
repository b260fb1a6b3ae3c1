// Package shared holds the domain building blocks common to every
// aggregate: entity identity, aggregate roots, domain events, errors,
// and query filters.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and timestamps every persisted
// entity has. GORM picks up ID as the primary key and maintains the
// timestamps by convention.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity mints a fresh identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}
