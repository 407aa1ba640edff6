package stock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatchRecordSale(t *testing.T) {
	b := Batch{DeliveredQuantity: 1000, CumulativeStock: 1000, RemainingStock: 1000}

	require.NoError(t, b.RecordSale(400))
	require.InDelta(t, 400.0, b.SoldStock, 0.0001)
	require.InDelta(t, 600.0, b.RemainingStock, 0.0001)
	require.InDelta(t, b.CumulativeStock-b.SoldStock, b.RemainingStock, 0.0001)

	// selling exactly the remainder empties the batch
	require.NoError(t, b.RecordSale(600))
	require.InDelta(t, 0.0, b.RemainingStock, 0.0001)

	err := b.RecordSale(0.1)
	require.ErrorIs(t, err, ErrInsufficientStock)
	var insufficient *InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.InDelta(t, 0.0, insufficient.Available, 0.0001)
	require.InDelta(t, 0.1, insufficient.Requested, 0.0001)

	require.ErrorIs(t, b.RecordSale(-5), ErrInvalidQuantity)
}

func TestBatchReverseSaleIsInverse(t *testing.T) {
	b := Batch{DeliveredQuantity: 500, CumulativeStock: 500, RemainingStock: 500}
	require.NoError(t, b.RecordSale(200))
	require.NoError(t, b.ReverseSale(200))
	require.InDelta(t, 0.0, b.SoldStock, 0.0001)
	require.InDelta(t, 500.0, b.RemainingStock, 0.0001)

	// sold stock floors at zero even for oversized reversals
	require.NoError(t, b.ReverseSale(1000))
	require.InDelta(t, 0.0, b.SoldStock, 0.0001)
	require.InDelta(t, 500.0, b.RemainingStock, 0.0001)
}

func TestUnitsAvailable(t *testing.T) {
	require.Equal(t, 8, UnitsAvailable(1000, 5))   // 1000 / (5*25) = 8
	require.Equal(t, 0, UnitsAvailable(1000, 0))   // invalid unit
	require.Equal(t, 0, UnitsAvailable(0, 5))      // empty ledger
	require.Equal(t, 0, UnitsAvailable(-10, 5))    // never negative
	require.Equal(t, 7, UnitsAvailable(999.9, 5))  // floor, partial unit excluded
	require.Equal(t, 40, UnitsAvailable(1000, 1))  // single-keg product
}
