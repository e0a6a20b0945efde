package usecase

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/aq2208/stockorder-api/internal/entity"
)

func product(id int64, price string, stock, version int64) domain.Product {
	return domain.Product{
		ID:      id,
		Name:    "p",
		Price:   decimal.RequireFromString(price),
		Stock:   stock,
		Version: version,
	}
}

func TestPriceOrderComputesExactTotal(t *testing.T) {
	snap := map[int64]domain.Product{
		1: product(1, "10.00", 5, 1),
		2: product(2, "3.50", 2, 7),
	}
	total, lines, err := priceOrder(map[int64]int64{1: 3, 2: 2}, snap)
	require.NoError(t, err)

	assert.True(t, total.Equal(decimal.RequireFromString("37.00")), "total = %s", total)
	require.Len(t, lines, 2)
	// Lines come back sorted by product id.
	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, int64(3), lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, int64(1), lines[0].Version)
	assert.Equal(t, int64(2), lines[1].ProductID)
	assert.Equal(t, int64(7), lines[1].Version)
}

func TestPriceOrderIsDeterministic(t *testing.T) {
	snap := map[int64]domain.Product{1: product(1, "0.10", 100, 1)}
	demand := map[int64]int64{1: 3}

	first, _, err := priceOrder(demand, snap)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		again, _, err := priceOrder(demand, snap)
		require.NoError(t, err)
		assert.True(t, first.Equal(again))
	}
	// 3 * 0.10 is exactly 0.30, no float drift.
	assert.True(t, first.Equal(decimal.RequireFromString("0.30")))
}

func TestPriceOrderUnknownProduct(t *testing.T) {
	snap := map[int64]domain.Product{1: product(1, "10.00", 5, 1)}
	_, _, err := priceOrder(map[int64]int64{1: 1, 99: 1}, snap)

	var nf *ProductNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, int64(99), nf.ProductID)
}

func TestPriceOrderInsufficientStock(t *testing.T) {
	snap := map[int64]domain.Product{1: product(1, "10.00", 2, 1)}
	_, _, err := priceOrder(map[int64]int64{1: 3}, snap)

	var is *InsufficientStockError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, int64(1), is.ProductID)
	assert.Equal(t, int64(3), is.Requested)
	assert.Equal(t, int64(2), is.Available)
	assert.False(t, is.AtCommit)
}
