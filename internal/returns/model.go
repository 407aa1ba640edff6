package returns

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the return request state machine: pending moves to completed
// (approval and completion happen together) or to rejected. Both are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Return reverses part of a sale once approved.
type Return struct {
	ID                int64           `json:"id"`
	TransactionID     string          `json:"transaction_id"`
	SaleID            int64           `json:"sale_id"`
	CustomerID        *int64          `json:"customer_id,omitempty"`
	Status            Status          `json:"status"`
	TotalRefundAmount decimal.Decimal `json:"total_refund_amount"`
	Reason            string          `json:"reason,omitempty"`
	ApprovedBy        *int64          `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time      `json:"approved_at,omitempty"`
	ApprovalNotes     string          `json:"approval_notes,omitempty"`
	Items             []ReturnItem    `json:"items,omitempty"`
	CreatedBy         int64           `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// ReturnItem references an original sale line. Quantity never exceeds the
// originating line's quantity.
type ReturnItem struct {
	ID           int64           `json:"id"`
	ReturnID     int64           `json:"return_id"`
	SaleItemID   int64           `json:"sale_item_id"`
	ProductID    int64           `json:"product_id"`
	Quantity     int             `json:"quantity"`
	RefundAmount decimal.Decimal `json:"refund_amount"`
}

var (
	// ErrNotFound indicates a missing return.
	ErrNotFound = errors.New("returns: return not found")
	// ErrSaleNotFound indicates the referenced sale does not exist.
	ErrSaleNotFound = errors.New("returns: sale not found")
	// ErrInvalidState indicates a state machine violation.
	ErrInvalidState = errors.New("returns: invalid state transition")
	// ErrInvalidReturnQuantity indicates a quantity above the original line.
	ErrInvalidReturnQuantity = errors.New("returns: quantity exceeds original purchase")
	// ErrNoItems indicates a return request without items.
	ErrNoItems = errors.New("returns: at least one item required")
)

// NewTransactionID generates a return identifier like #RT5B11E930.
func NewTransactionID() string {
	id := uuid.New()
	return "#RT" + strings.ToUpper(hex.EncodeToString(id[:4]))
}
