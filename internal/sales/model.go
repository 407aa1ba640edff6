package sales

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleType mirrors the product sale channel.
type SaleType string

const (
	SaleRetail    SaleType = "retail"
	SaleWholesale SaleType = "wholesale"
)

// Valid reports whether the sale type is known.
func (t SaleType) Valid() bool {
	return t == SaleRetail || t == SaleWholesale
}

// PaymentMethod enumerates accepted payment instruments.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentTransfer    PaymentMethod = "transfer"
	PaymentCredit      PaymentMethod = "credit"
	PaymentPartPayment PaymentMethod = "part_payment"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCredit, PaymentPartPayment:
		return true
	}
	return false
}

// Sale is one settled transaction. AmountDue tracks what is still owed
// after credit and payments; it never goes below zero.
type Sale struct {
	ID            int64           `json:"id"`
	TransactionID string          `json:"transaction_id"`
	CustomerID    *int64          `json:"customer_id,omitempty"`
	SaleType      SaleType        `json:"sale_type"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	CreditApplied decimal.Decimal `json:"credit_applied"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	Items         []SaleItem      `json:"items,omitempty"`
	Payments      []Payment       `json:"payments,omitempty"`
	CreatedBy     int64           `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// SaleItem is a priced line. UnitPrice is a snapshot of the product price
// at settlement time; the line is immutable afterwards.
type SaleItem struct {
	ID         int64           `json:"id"`
	SaleID     int64           `json:"sale_id"`
	ProductID  int64           `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// Payment is one received payment, append-only.
type Payment struct {
	ID        int64           `json:"id"`
	SaleID    int64           `json:"sale_id"`
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

var (
	// ErrNotFound indicates a missing sale.
	ErrNotFound = errors.New("sales: sale not found")
	// ErrCustomerNotFound indicates the referenced customer does not exist.
	ErrCustomerNotFound = errors.New("sales: customer not found")
	// ErrProductNotFound indicates a line references a missing product.
	ErrProductNotFound = errors.New("sales: product not found")
	// ErrInvalidQuantity indicates a non-positive line quantity.
	ErrInvalidQuantity = errors.New("sales: quantity must be positive")
	// ErrInvalidDiscount indicates a negative discount.
	ErrInvalidDiscount = errors.New("sales: discount must be >= 0")
	// ErrInvalidPayment indicates a bad payment method or amount.
	ErrInvalidPayment = errors.New("sales: invalid payment")
	// ErrNoItems indicates a settlement request without line items.
	ErrNoItems = errors.New("sales: at least one item required")
	// ErrDuplicateTransactionID indicates a transaction id collision; the
	// caller may retry.
	ErrDuplicateTransactionID = errors.New("sales: duplicate transaction id")
)

// NewTransactionID generates a sale identifier like #SE3FA09C21. Collisions
// are negligible and the database unique constraint is the backstop.
func NewTransactionID() string {
	id := uuid.New()
	return "#SE" + strings.ToUpper(hex.EncodeToString(id[:4]))
}
