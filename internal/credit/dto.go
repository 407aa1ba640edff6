package credit

import (
	"github.com/shopspring/decimal"
)

// PostEntryRequest is the payload for the standalone posting endpoint.
// Settlement-only types (credit_earned, debt_incurred) are rejected here;
// they are posted by the sale settlement itself.
type PostEntryRequest struct {
	CustomerID  int64           `json:"customer_id" validate:"required,gt=0"`
	Type        TransactionType `json:"transaction_type" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	SaleID      *int64          `json:"sale_id,omitempty"`
	Description string          `json:"description,omitempty"`
}

// ListEntriesRequest pages one customer's ledger history.
type ListEntriesRequest struct {
	CustomerID int64 `json:"customer_id" validate:"required,gt=0"`
	Limit      int   `json:"limit" validate:"omitempty,min=1,max=500"`
	Offset     int   `json:"offset" validate:"omitempty,min=0"`
}
