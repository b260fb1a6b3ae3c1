package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gestock/backend/internal/domain/shared"
)

func newTestLot(t *testing.T, quantity float64) *StockLot {
	t.Helper()
	lot, err := NewStockLot(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromFloat(quantity), "B-2026-01", "", nil)
	require.NoError(t, err)
	return lot
}

func TestNewStockLot(t *testing.T) {
	t.Run("creates lot", func(t *testing.T) {
		lot := newTestLot(t, 100)
		assert.True(t, lot.Quantity.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, "B-2026-01", lot.BatchNumber)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := NewStockLot(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(-1), "", "", nil)
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_QUANTITY", domainErr.Code)
	})

	t.Run("rejects nil product", func(t *testing.T) {
		_, err := NewStockLot(uuid.New(), uuid.Nil, uuid.New(), decimal.NewFromInt(1), "", "", nil)
		require.Error(t, err)
	})
}

func TestStockLot_Deduct(t *testing.T) {
	t.Run("deducts available quantity", func(t *testing.T) {
		lot := newTestLot(t, 100)

		require.NoError(t, lot.Deduct(decimal.NewFromInt(40)))
		assert.True(t, lot.Quantity.Equal(decimal.NewFromInt(60)))
	})

	t.Run("deducts to exactly zero", func(t *testing.T) {
		lot := newTestLot(t, 100)

		require.NoError(t, lot.Deduct(decimal.NewFromInt(100)))
		assert.True(t, lot.Quantity.IsZero())
	})

	t.Run("all or nothing on shortage", func(t *testing.T) {
		lot := newTestLot(t, 10)

		err := lot.Deduct(decimal.NewFromInt(11))
		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)
		assert.True(t, lot.Quantity.Equal(decimal.NewFromInt(10)), "quantity untouched on failure")
	})

	t.Run("rejects non-positive deduction", func(t *testing.T) {
		lot := newTestLot(t, 10)
		require.Error(t, lot.Deduct(decimal.Zero))
		require.Error(t, lot.Deduct(decimal.NewFromInt(-5)))
	})
}

func TestStockLot_HasStock(t *testing.T) {
	lot := newTestLot(t, 10)
	assert.True(t, lot.HasStock(decimal.NewFromInt(10)))
	assert.True(t, lot.HasStock(decimal.NewFromInt(1)))
	assert.False(t, lot.HasStock(decimal.NewFromInt(11)))
}

func TestStockLot_IsExpired(t *testing.T) {
	past := time.Now().Add(-24 * time.Hour)
	future := time.Now().Add(24 * time.Hour)

	expired, err := NewStockLot(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(5), "", "", &past)
	require.NoError(t, err)
	fresh, err := NewStockLot(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(5), "", "", &future)
	require.NoError(t, err)
	unbounded := newTestLot(t, 5)

	assert.True(t, expired.IsExpired())
	assert.False(t, fresh.IsExpired())
	assert.False(t, unbounded.IsExpired())
}
