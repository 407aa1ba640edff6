package credit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kegline/kegline/internal/shared"
)

// Account is the slice of the customer row the ledger needs: the
// denormalised balance used to bootstrap customers with no entries yet.
type Account struct {
	ID      int64
	Balance decimal.Decimal
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, customerID int64) (Account, error)
	LatestBalanceAfter(ctx context.Context, customerID int64) (decimal.Decimal, bool, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	UpdateAccountBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts standalone ledger entries and serves history. The customer
// row is locked before the read-modify-write so concurrent postings against
// the same customer serialise.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Post appends one entry and moves the denormalised customer balance in the
// same transaction. Only manual types are accepted; the settlement posts
// credit_earned and debt_incurred itself.
func (s *Service) Post(ctx context.Context, req PostEntryRequest, actorID int64) (Entry, error) {
	switch req.Type {
	case TransactionCreditAdded, TransactionCreditUsed, TransactionCreditRefund:
	default:
		return Entry{}, ErrInvalidTransactionType
	}
	if req.Amount.Sign() <= 0 {
		return Entry{}, ErrInvalidAmount
	}

	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		balance, found, err := tx.LatestBalanceAfter(ctx, req.CustomerID)
		if err != nil {
			return err
		}
		if !found {
			balance = account.Balance
		}

		newBalance, err := Apply(balance, req.Type, req.Amount)
		if err != nil {
			return err
		}

		entry = Entry{
			CustomerID:   req.CustomerID,
			Type:         req.Type,
			Amount:       req.Amount,
			BalanceAfter: newBalance,
			SaleID:       req.SaleID,
			Description:  req.Description,
			CreatedBy:    actorID,
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id

		return tx.UpdateAccountBalance(ctx, req.CustomerID, newBalance)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("post credit entry: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "credit:" + string(req.Type),
			Entity:   "customer_credit",
			EntityID: strconv.FormatInt(entry.ID, 10),
			Meta: map[string]any{
				"customer_id":   req.CustomerID,
				"amount":        req.Amount.String(),
				"balance_after": entry.BalanceAfter.String(),
			},
		})
	}
	return entry, nil
}

// ListEntries returns one customer's ledger history, newest first.
func (s *Service) ListEntries(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error) {
	return s.repo.ListEntries(ctx, req)
}

// CurrentBalance resolves a customer's balance from the ledger, falling
// back to the denormalised field for customers without entries.
func (s *Service) CurrentBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		latest, found, err := tx.LatestBalanceAfter(ctx, customerID)
		if err != nil {
			return err
		}
		if found {
			balance = latest
		} else {
			balance = account.Balance
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
