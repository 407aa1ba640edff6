package stock

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// LitresPerKeg is the fixed size of one keg. Product unit counts are
// multiplied by this constant to convert sold units into litres.
const LitresPerKeg = 25.0

// Batch is one delivery event in the rolling stock ledger. Batches chain by
// creation time: each new batch starts from the previous batch's remaining
// litres, and all sales draw down the most recent batch.
type Batch struct {
	ID                int64           `json:"id"`
	DeliveredQuantity float64         `json:"delivered_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Supplier          string          `json:"supplier"`
	CumulativeStock   float64         `json:"cumulative_stock"`
	SoldStock         float64         `json:"sold_stock"`
	RemainingStock    float64         `json:"remaining_stock"`
	CreatedBy         int64           `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Summary aggregates the ledger across all batches.
type Summary struct {
	TotalDelivered float64 `json:"total_delivered"`
	TotalSold      float64 `json:"total_sold"`
	Remaining      float64 `json:"remaining"`
	BatchCount     int     `json:"batch_count"`
}

// ErrNoBatch indicates the ledger has no delivery yet.
var ErrNoBatch = errors.New("stock: no delivery batch recorded")

// ErrNotFound indicates a missing batch row.
var ErrNotFound = errors.New("stock: batch not found")

// ErrInvalidQuantity indicates a negative or zero quantity where a positive
// value is required.
var ErrInvalidQuantity = errors.New("stock: quantity must be positive")

// ErrInsufficientStock is the sentinel matched by InsufficientStockError.
var ErrInsufficientStock = errors.New("stock: insufficient stock")

// InsufficientStockError carries the quantities so callers can adjust the
// order. Matches ErrInsufficientStock via errors.Is.
type InsufficientStockError struct {
	Product   string
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	if e.Product != "" {
		return fmt.Sprintf("stock: insufficient stock for %s: %.1f available, %.1f requested", e.Product, e.Available, e.Requested)
	}
	return fmt.Sprintf("stock: insufficient stock: %.1f litres available, %.1f requested", e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// RecordSale draws litres down from the batch. The invariant
// remaining = cumulative - sold holds after every mutation.
func (b *Batch) RecordSale(litres float64) error {
	if litres < 0 {
		return ErrInvalidQuantity
	}
	if litres > b.RemainingStock {
		return &InsufficientStockError{Available: b.RemainingStock, Requested: litres}
	}
	b.SoldStock += litres
	b.RemainingStock = b.CumulativeStock - b.SoldStock
	return nil
}

// ReverseSale adds previously sold litres back, the exact inverse of
// RecordSale for the same quantity. Sold stock never goes below zero.
func (b *Batch) ReverseSale(litres float64) error {
	if litres < 0 {
		return ErrInvalidQuantity
	}
	b.SoldStock = math.Max(0, b.SoldStock-litres)
	b.RemainingStock = b.CumulativeStock - b.SoldStock
	return nil
}

// UnitsAvailable converts available litres into whole sellable units for a
// product sized at unit kegs. Floor division: partial units do not count.
func UnitsAvailable(available float64, unit int) int {
	if unit <= 0 || available <= 0 {
		return 0
	}
	return int(available / (float64(unit) * LitresPerKeg))
}
