package stock

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordDeliveryRequest is the payload for posting a new delivery batch.
type RecordDeliveryRequest struct {
	Quantity       float64         `json:"quantity" validate:"required,gt=0"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Supplier       string          `json:"supplier" validate:"required"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// UpdateBatchRequest carries administrative corrections to a batch.
type UpdateBatchRequest struct {
	Supplier  *string          `json:"supplier,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// ListBatchesRequest filters the batch history.
type ListBatchesRequest struct {
	Supplier *string    `json:"supplier,omitempty"`
	From     *time.Time `json:"from,omitempty"`
	To       *time.Time `json:"to,omitempty"`
	Limit    int        `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset   int        `json:"offset" validate:"omitempty,min=0"`
}
