package customers

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerClass enumerates the trade classes.
type CustomerClass string

const (
	ClassRetail    CustomerClass = "retail"
	ClassWholesale CustomerClass = "wholesale"
)

func (c CustomerClass) Valid() bool {
	return c == ClassRetail || c == ClassWholesale
}

// Status enumerates customer account states.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusBlocked
}

// Customer holds identity and the financial profile. Balance is a signed
// store-credit amount: positive means credit owed to the customer, negative
// means debt. It is a denormalised cache of the credit ledger and is only
// mutated in lockstep with ledger postings.
type Customer struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Email          *string         `json:"email,omitempty"`
	Phone          string          `json:"phone"`
	Address        *string         `json:"address,omitempty"`
	Class          CustomerClass   `json:"type"`
	Status         Status          `json:"status"`
	Balance        decimal.Decimal `json:"balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	LastPurchase   *time.Time      `json:"last_purchase,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// AvailableCredit is the headroom a customer can still draw on:
// max(0, credit_limit + balance), balance being negative for debt.
func (c Customer) AvailableCredit() decimal.Decimal {
	available := c.CreditLimit.Add(c.Balance)
	if available.Sign() < 0 {
		return decimal.Zero
	}
	return available
}

var (
	// ErrNotFound indicates a missing customer.
	ErrNotFound = errors.New("customers: customer not found")
	// ErrInvalidClass indicates an unknown trade class.
	ErrInvalidClass = errors.New("customers: invalid customer class")
	// ErrInvalidStatus indicates an unknown status.
	ErrInvalidStatus = errors.New("customers: invalid status")
	// ErrInvalidCreditLimit indicates a negative credit limit.
	ErrInvalidCreditLimit = errors.New("customers: credit limit must be >= 0")
	// ErrOutstandingBalance prevents deleting a customer whose balance is non-zero.
	ErrOutstandingBalance = errors.New("customers: balance must be settled before deletion")
)
