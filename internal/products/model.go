package products

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// SaleChannel enumerates which sales channel a product is priced for.
type SaleChannel string

const (
	SaleChannelRetail    SaleChannel = "retail"
	SaleChannelWholesale SaleChannel = "wholesale"
)

// Valid reports whether the channel is one of the known values.
func (c SaleChannel) Valid() bool {
	return c == SaleChannelRetail || c == SaleChannelWholesale
}

// Product is a catalog entry. Unit is the number of 25L kegs that make up
// one sellable unit; Price is the unit price snapshot copied into sale
// items at sale time.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Unit      int             `json:"unit"`
	SaleType  SaleChannel     `json:"sale_type"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

var (
	// ErrNotFound indicates a missing product.
	ErrNotFound = errors.New("products: product not found")
	// ErrInvalidPrice indicates a negative price.
	ErrInvalidPrice = errors.New("products: price must be >= 0")
	// ErrInvalidUnit indicates a negative keg count.
	ErrInvalidUnit = errors.New("products: unit must be >= 0")
	// ErrInvalidChannel indicates an unknown sale channel.
	ErrInvalidChannel = errors.New("products: invalid sale channel")
)
