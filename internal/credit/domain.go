package credit

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates ledger entry kinds. Amounts are magnitudes;
// the type carries the sign.
type TransactionType string

const (
	// TransactionCreditAdded is a manual top-up of store credit.
	TransactionCreditAdded TransactionType = "credit_added"
	// TransactionCreditUsed consumes store credit against a sale.
	TransactionCreditUsed TransactionType = "credit_used"
	// TransactionCreditRefund returns money as credit after an approved return.
	TransactionCreditRefund TransactionType = "credit_refund"
	// TransactionCreditEarned converts an overpayment into credit.
	TransactionCreditEarned TransactionType = "credit_earned"
	// TransactionDebtIncurred records a shortfall the customer still owes.
	TransactionDebtIncurred TransactionType = "debt_incurred"
)

// Valid reports whether the type is a known transaction kind.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionCreditAdded, TransactionCreditUsed, TransactionCreditRefund,
		TransactionCreditEarned, TransactionDebtIncurred:
		return true
	}
	return false
}

// Entry is one append-only ledger row. BalanceAfter is the customer's
// running balance immediately after this entry; the chain of BalanceAfter
// values is the source of truth for the current balance.
type Entry struct {
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"customer_id"`
	Type         TransactionType `json:"transaction_type"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	SaleID       *int64          `json:"sale_id,omitempty"`
	Description  string          `json:"description,omitempty"`
	CreatedBy    int64           `json:"created_by,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

var (
	// ErrInvalidAmount indicates a non-positive posting amount.
	ErrInvalidAmount = errors.New("credit: amount must be positive")
	// ErrInvalidTransactionType indicates an unknown or disallowed type.
	ErrInvalidTransactionType = errors.New("credit: invalid transaction type")
	// ErrInsufficientCredit indicates a credit_used posting larger than the balance.
	ErrInsufficientCredit = errors.New("credit: insufficient credit")
	// ErrNotFound indicates a missing customer or entry.
	ErrNotFound = errors.New("credit: not found")
)

// Apply computes the balance after posting amount of the given type on top
// of balance. Positive balance means credit owed to the customer; debt
// pushes the balance negative.
func Apply(balance decimal.Decimal, typ TransactionType, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	switch typ {
	case TransactionCreditAdded, TransactionCreditRefund, TransactionCreditEarned:
		return balance.Add(amount), nil
	case TransactionCreditUsed:
		if amount.GreaterThan(balance) {
			return decimal.Zero, ErrInsufficientCredit
		}
		return balance.Sub(amount), nil
	case TransactionDebtIncurred:
		return balance.Sub(amount), nil
	default:
		return decimal.Zero, ErrInvalidTransactionType
	}
}

// delta returns the signed movement of an entry type, used when replaying a
// chain without re-enforcing posting rules.
func delta(typ TransactionType, amount decimal.Decimal) decimal.Decimal {
	switch typ {
	case TransactionCreditUsed, TransactionDebtIncurred:
		return amount.Neg()
	default:
		return amount
	}
}

// ImpliedOpening derives the balance a chain must have started from for
// its first entry to be consistent. Used when the true opening balance
// (the denormalised value at bootstrap time) was never recorded.
func ImpliedOpening(first Entry) decimal.Decimal {
	return first.BalanceAfter.Sub(delta(first.Type, first.Amount))
}

// ChainViolation describes one inconsistent link found by VerifyChain.
type ChainViolation struct {
	EntryID  int64           `json:"entry_id"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// VerifyChain replays entries in order from the opening balance and reports
// every entry whose recorded balance_after disagrees with the replay.
func VerifyChain(opening decimal.Decimal, entries []Entry) []ChainViolation {
	var violations []ChainViolation
	balance := opening
	for _, e := range entries {
		expected := balance.Add(delta(e.Type, e.Amount))
		if !expected.Equal(e.BalanceAfter) {
			violations = append(violations, ChainViolation{
				EntryID:  e.ID,
				Expected: expected,
				Actual:   e.BalanceAfter,
			})
		}
		// continue from the recorded value so one bad link is one violation
		balance = e.BalanceAfter
	}
	return violations
}
