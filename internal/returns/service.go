package returns

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/shared"
	"github.com/kegline/kegline/internal/stock"
)

// SaleRef is the slice of the original sale a return needs.
type SaleRef struct {
	ID            int64
	TransactionID string
	CustomerID    *int64
}

// SoldItem is one original sale line used to validate quantities and price
// refunds.
type SoldItem struct {
	ID        int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// TxRepository spans the tables a return decision touches.
type TxRepository interface {
	GetSaleRef(ctx context.Context, saleID int64) (SaleRef, error)
	ListSoldItems(ctx context.Context, saleID int64) ([]SoldItem, error)
	ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error)
	GetReturnForUpdate(ctx context.Context, id int64) (Return, error)
	GetProductUnit(ctx context.Context, productID int64) (int, error)
	GetLatestBatchForUpdate(ctx context.Context) (stock.Batch, error)
	UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error
	GetAccountBalanceForUpdate(ctx context.Context, customerID int64) (decimal.Decimal, error)
	LatestBalanceAfter(ctx context.Context, customerID int64) (decimal.Decimal, bool, error)
	InsertCreditEntry(ctx context.Context, entry credit.Entry) (int64, error)
	UpdateCustomerBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error
	UpdateReturnDecision(ctx context.Context, id int64, status Status, approvedBy int64, approvedAt time.Time, notes string) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReturn(ctx context.Context, id int64) (Return, error)
	ListReturns(ctx context.Context, req ListReturnsRequest) ([]Return, int, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockCache invalidates the cached stock level after a reversal.
type StockCache interface {
	Invalidate(ctx context.Context) error
}

// Service owns the return lifecycle. Approval reverses stock and posts the
// refund credit in one transaction; rejection has no side effects.
type Service struct {
	repo       RepositoryPort
	audit      AuditPort
	stockCache StockCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, stockCache StockCache) *Service {
	return &Service{repo: repo, audit: audit, stockCache: stockCache}
}

// Create opens a pending return. Quantities are validated against the
// original sale lines before anything is persisted.
func (s *Service) Create(ctx context.Context, req CreateReturnRequest, actorID int64) (Return, error) {
	if len(req.Items) == 0 {
		return Return{}, ErrNoItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Return{}, ErrInvalidReturnQuantity
		}
	}

	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleRef(ctx, req.SaleID)
		if err != nil {
			return err
		}
		soldItems, err := tx.ListSoldItems(ctx, req.SaleID)
		if err != nil {
			return err
		}
		soldByID := make(map[int64]SoldItem, len(soldItems))
		for _, item := range soldItems {
			soldByID[item.ID] = item
		}
		alreadyReturned, err := tx.ReturnedQuantities(ctx, req.SaleID)
		if err != nil {
			return err
		}

		// Requested quantities are summed per sale item so a line repeated in
		// the request cannot slip past the per-line cap, and prior returns
		// (pending or completed) count against the sold quantity too.
		requested := make(map[int64]int, len(req.Items))
		for _, input := range req.Items {
			requested[input.SaleItemID] += input.Quantity
		}
		for saleItemID, quantity := range requested {
			sold, ok := soldByID[saleItemID]
			if !ok {
				return ErrInvalidReturnQuantity
			}
			if quantity+alreadyReturned[saleItemID] > sold.Quantity {
				return ErrInvalidReturnQuantity
			}
		}

		ret = Return{
			TransactionID: NewTransactionID(),
			SaleID:        sale.ID,
			CustomerID:    sale.CustomerID,
			Status:        StatusPending,
			Reason:        req.Reason,
			CreatedBy:     actorID,
		}

		totalRefund := decimal.Zero
		var items []ReturnItem
		for _, input := range req.Items {
			sold := soldByID[input.SaleItemID]
			refund := sold.UnitPrice.Mul(decimal.NewFromInt(int64(input.Quantity)))
			items = append(items, ReturnItem{
				SaleItemID:   sold.ID,
				ProductID:    sold.ProductID,
				Quantity:     input.Quantity,
				RefundAmount: refund,
			})
			totalRefund = totalRefund.Add(refund)
		}
		ret.TotalRefundAmount = totalRefund

		id, err := tx.InsertReturn(ctx, ret)
		if err != nil {
			return err
		}
		ret.ID = id
		for i := range items {
			items[i].ReturnID = id
			itemID, err := tx.InsertReturnItem(ctx, items[i])
			if err != nil {
				return err
			}
			items[i].ID = itemID
		}
		ret.Items = items
		return nil
	})
	if err != nil {
		return Return{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "returns:create",
			Entity:   "return",
			EntityID: ret.TransactionID,
			Meta: map[string]any{
				"sale_id":       req.SaleID,
				"refund_amount": ret.TotalRefundAmount.String(),
			},
		})
	}
	return ret, nil
}

// Approve completes a pending return: litres flow back into the latest
// batch and the refund is posted as credit when a customer is attached.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64, notes string) (Return, error) {
	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ret, err = tx.GetReturnForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return ErrInvalidState
		}

		litresReturned := 0.0
		for _, item := range ret.Items {
			unit, err := tx.GetProductUnit(ctx, item.ProductID)
			if err != nil {
				return err
			}
			litresReturned += float64(unit) * stock.LitresPerKeg * float64(item.Quantity)
		}
		if litresReturned > 0 {
			batch, err := tx.GetLatestBatchForUpdate(ctx)
			if err != nil {
				return err
			}
			if err := batch.ReverseSale(litresReturned); err != nil {
				return err
			}
			if err := tx.UpdateBatchQuantities(ctx, batch.ID, batch.SoldStock, batch.RemainingStock); err != nil {
				return err
			}
		}

		if ret.TotalRefundAmount.Sign() > 0 && ret.CustomerID != nil {
			customerID := *ret.CustomerID
			denormalised, err := tx.GetAccountBalanceForUpdate(ctx, customerID)
			if err != nil {
				return err
			}
			balance, found, err := tx.LatestBalanceAfter(ctx, customerID)
			if err != nil {
				return err
			}
			if !found {
				balance = denormalised
			}

			newBalance, err := credit.Apply(balance, credit.TransactionCreditRefund, ret.TotalRefundAmount)
			if err != nil {
				return err
			}
			entry := credit.Entry{
				CustomerID:   customerID,
				Type:         credit.TransactionCreditRefund,
				Amount:       ret.TotalRefundAmount,
				BalanceAfter: newBalance,
				SaleID:       &ret.SaleID,
				Description:  "refund for return " + ret.TransactionID,
				CreatedBy:    actorID,
			}
			if _, err := tx.InsertCreditEntry(ctx, entry); err != nil {
				return err
			}
			if err := tx.UpdateCustomerBalance(ctx, customerID, newBalance); err != nil {
				return err
			}
		}

		now := time.Now()
		if err := tx.UpdateReturnDecision(ctx, id, StatusCompleted, actorID, now, notes); err != nil {
			return err
		}
		ret.Status = StatusCompleted
		ret.ApprovedBy = &actorID
		ret.ApprovedAt = &now
		ret.ApprovalNotes = notes
		return nil
	})
	if err != nil {
		return Return{}, err
	}

	if s.stockCache != nil {
		_ = s.stockCache.Invalidate(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "returns:approve",
			Entity:   "return",
			EntityID: ret.TransactionID,
			Meta:     map[string]any{"refund_amount": ret.TotalRefundAmount.String()},
		})
	}
	return ret, nil
}

// Reject closes a pending return with no stock or credit side effects.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64, notes string) (Return, error) {
	var ret Return
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		ret, err = tx.GetReturnForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ret.Status != StatusPending {
			return ErrInvalidState
		}

		now := time.Now()
		if err := tx.UpdateReturnDecision(ctx, id, StatusRejected, actorID, now, notes); err != nil {
			return err
		}
		ret.Status = StatusRejected
		ret.ApprovedBy = &actorID
		ret.ApprovedAt = &now
		ret.ApprovalNotes = notes
		return nil
	})
	if err != nil {
		return Return{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "returns:reject",
			Entity:   "return",
			EntityID: strconv.FormatInt(id, 10),
		})
	}
	return ret, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Return, error) {
	return s.repo.GetReturn(ctx, id)
}

func (s *Service) List(ctx context.Context, req ListReturnsRequest) ([]Return, int, error) {
	return s.repo.ListReturns(ctx, req)
}
