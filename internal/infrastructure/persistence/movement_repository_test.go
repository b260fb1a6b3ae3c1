package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/gestock/backend/internal/domain/movement"
	"github.com/gestock/backend/internal/domain/shared"
)

// newMockMovementRepository creates a GormMovementRepository with a mocked SQL connection
func newMockMovementRepository(t *testing.T) (*GormMovementRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormMovementRepository(gormDB), mock, mockDB
}

func TestGormMovementRepository_FindByIDForTenant(t *testing.T) {
	t.Run("returns ErrNotFound for missing movement", func(t *testing.T) {
		repo, mock, mockDB := newMockMovementRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		movementID := uuid.New()

		mock.ExpectQuery(`SELECT .* FROM "movement_requests"`).
			WithArgs(tenantID, movementID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByIDForTenant(context.Background(), tenantID, movementID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormMovementRepository_SaveWithLock(t *testing.T) {
	t.Run("stale version fails with optimistic lock error", func(t *testing.T) {
		repo, mock, mockDB := newMockMovementRepository(t)
		defer mockDB.Close()

		m, err := movement.NewMovementRequest(uuid.New(), "SM-2026-000009", uuid.New(), uuid.New(), uuid.New(), "", nil)
		require.NoError(t, err)
		// Simulate a mutation: the aggregate is at version 2, the row is not
		m.IncrementVersion()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "movement_requests" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = repo.SaveWithLock(context.Background(), m)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "OPTIMISTIC_LOCK_FAILED", domainErr.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormMovementRepository_GenerateMovementNumber(t *testing.T) {
	t.Run("increments the locked sequence row", func(t *testing.T) {
		repo, mock, mockDB := newMockMovementRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()
		year := time.Now().Year()

		mock.ExpectQuery(`SELECT .* FROM "movement_sequences" .* FOR UPDATE`).
			WithArgs(tenantID, year, 1).
			WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "year", "value", "updated_at"}).
				AddRow(tenantID, year, 41, time.Now()))
		mock.ExpectExec(`UPDATE "movement_sequences" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		number, err := repo.GenerateMovementNumber(context.Background(), tenantID)

		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("SM-%d-000042", year), number)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		expected string
	}{
		{"allowed field", "movement_number", "movement_number"},
		{"empty falls back to default", "", "created_at"},
		{"injection attempt falls back", "status; DROP TABLE movement_requests", "created_at"},
		{"unknown field falls back", "secret_column", "created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.field, MovementSortFields, "created_at"))
		})
	}
}

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", ValidateSortOrder("asc"))
	assert.Equal(t, "ASC", ValidateSortOrder(" ASC "))
	assert.Equal(t, "DESC", ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", ValidateSortOrder("sideways"))
	assert.Equal(t, "DESC", ValidateSortOrder(""))
}
