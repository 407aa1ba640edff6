package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/shared"
	"github.com/kegline/kegline/internal/stock"
)

// CustomerAccount is the slice of the customer row the settlement needs.
type CustomerAccount struct {
	ID      int64
	Balance decimal.Decimal
}

// ProductInfo is the catalog snapshot used to price a line and size its
// litre draw.
type ProductInfo struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Unit  int
}

// TxRepository spans every table a settlement writes. All methods run on
// the same transaction so a failure anywhere rolls the whole sale back.
type TxRepository interface {
	GetCustomerForUpdate(ctx context.Context, id int64) (CustomerAccount, error)
	GetProduct(ctx context.Context, id int64) (ProductInfo, error)
	GetLatestBatchForUpdate(ctx context.Context) (stock.Batch, error)
	UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error
	InsertSale(ctx context.Context, sale Sale) (int64, error)
	InsertItem(ctx context.Context, item SaleItem) (int64, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	LatestBalanceAfter(ctx context.Context, customerID int64) (decimal.Decimal, bool, error)
	InsertCreditEntry(ctx context.Context, entry credit.Entry) (int64, error)
	UpdateCustomerBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error
	RecordCustomerPurchase(ctx context.Context, customerID int64, total decimal.Decimal, at time.Time) error
	UpdateSaleTotals(ctx context.Context, saleID int64, subtotal, total, creditApplied, amountDue decimal.Decimal) error
	GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error)
	UpdateSaleAmountDue(ctx context.Context, saleID int64, amountDue decimal.Decimal) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id int64) (Sale, error)
	GetSaleByTransactionID(ctx context.Context, transactionID string) (Sale, error)
	ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error)
	ListPayments(ctx context.Context, saleID int64) ([]Payment, error)
	Stats(ctx context.Context, req StatsRequest) (Stats, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockCache invalidates the cached stock level after a settlement.
type StockCache interface {
	Invalidate(ctx context.Context) error
}

// Service runs the settlement. The order inside Settle is load-bearing:
// stock is reserved before payments are considered, and credit application
// depends on the final total.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	stockCache  StockCache
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore, stockCache StockCache) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, stockCache: stockCache}
}

// Settle turns a draft sale into a finalized one: stock check and
// decrement, payment recording, automatic credit application, and
// debt/overpayment postings, all in one transaction.
func (s *Service) Settle(ctx context.Context, req SettleRequest, actorID int64) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, ErrNoItems
	}
	if !req.SaleType.Valid() {
		return Sale{}, fmt.Errorf("sales: invalid sale type %q", req.SaleType)
	}
	if req.Discount.Sign() < 0 {
		return Sale{}, ErrInvalidDiscount
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Sale{}, ErrInvalidQuantity
		}
	}
	for _, p := range req.Payments {
		if !p.Method.Valid() || p.Amount.Sign() <= 0 {
			return Sale{}, ErrInvalidPayment
		}
	}

	insertedKey := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, "sales"); err != nil {
			return Sale{}, err
		}
		insertedKey = true
	}

	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var account CustomerAccount
		if req.CustomerID != nil {
			var err error
			account, err = tx.GetCustomerForUpdate(ctx, *req.CustomerID)
			if err != nil {
				return err
			}
		}

		sale = Sale{
			TransactionID: NewTransactionID(),
			CustomerID:    req.CustomerID,
			SaleType:      req.SaleType,
			Discount:      req.Discount,
			CreatedBy:     actorID,
		}
		saleID, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = saleID

		// stock check and decrement, all against the locked latest batch
		batch, err := tx.GetLatestBatchForUpdate(ctx)
		if err != nil && !errors.Is(err, stock.ErrNoBatch) {
			return err
		}

		subtotal := decimal.Zero
		for _, input := range req.Items {
			product, err := tx.GetProduct(ctx, input.ProductID)
			if err != nil {
				return err
			}

			available := stock.UnitsAvailable(batch.RemainingStock, product.Unit)
			if available < input.Quantity {
				return &stock.InsufficientStockError{
					Product:   product.Name,
					Available: float64(available),
					Requested: float64(input.Quantity),
				}
			}

			unitPrice := product.Price
			if input.UnitPrice != nil {
				unitPrice = *input.UnitPrice
			}
			item := SaleItem{
				SaleID:     saleID,
				ProductID:  product.ID,
				Quantity:   input.Quantity,
				UnitPrice:  unitPrice,
				TotalPrice: unitPrice.Mul(decimal.NewFromInt(int64(input.Quantity))),
			}
			if _, err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
			sale.Items = append(sale.Items, item)
			subtotal = subtotal.Add(item.TotalPrice)

			litres := float64(product.Unit) * stock.LitresPerKeg * float64(input.Quantity)
			if err := batch.RecordSale(litres); err != nil {
				return err
			}
		}
		if batch.ID != 0 {
			if err := tx.UpdateBatchQuantities(ctx, batch.ID, batch.SoldStock, batch.RemainingStock); err != nil {
				return err
			}
		}

		sale.Subtotal = subtotal
		sale.Total = subtotal.Sub(req.Discount)

		totalPayments := decimal.Zero
		for _, p := range req.Payments {
			payment := Payment{SaleID: saleID, Method: p.Method, Amount: p.Amount}
			if _, err := tx.InsertPayment(ctx, payment); err != nil {
				return err
			}
			sale.Payments = append(sale.Payments, payment)
			totalPayments = totalPayments.Add(p.Amount)
		}

		creditApplied := decimal.Zero
		if req.CustomerID != nil {
			balance, found, err := tx.LatestBalanceAfter(ctx, account.ID)
			if err != nil {
				return err
			}
			if !found {
				balance = account.Balance
			}

			// existing credit always pays first
			if balance.Sign() > 0 && sale.Total.Sign() > 0 {
				creditApplied = decimal.Min(balance, sale.Total)
				balance, err = s.postEntry(ctx, tx, account.ID, credit.TransactionCreditUsed, creditApplied, balance, saleID,
					fmt.Sprintf("credit applied to sale %s", sale.TransactionID))
				if err != nil {
					return err
				}
			}

			owedAfterCredit := sale.Total.Sub(creditApplied)
			finalBalance := owedAfterCredit.Sub(totalPayments)
			switch {
			case finalBalance.Sign() > 0:
				balance, err = s.postEntry(ctx, tx, account.ID, credit.TransactionDebtIncurred, finalBalance, balance, saleID,
					fmt.Sprintf("outstanding on sale %s", sale.TransactionID))
			case finalBalance.Sign() < 0:
				balance, err = s.postEntry(ctx, tx, account.ID, credit.TransactionCreditEarned, finalBalance.Neg(), balance, saleID,
					fmt.Sprintf("overpayment on sale %s", sale.TransactionID))
			}
			if err != nil {
				return err
			}

			if err := tx.UpdateCustomerBalance(ctx, account.ID, balance); err != nil {
				return err
			}
			if err := tx.RecordCustomerPurchase(ctx, account.ID, sale.Total, time.Now()); err != nil {
				return err
			}
		}

		sale.CreditApplied = creditApplied
		sale.AmountDue = decimal.Max(decimal.Zero, sale.Total.Sub(creditApplied).Sub(totalPayments))

		return tx.UpdateSaleTotals(ctx, saleID, sale.Subtotal, sale.Total, sale.CreditApplied, sale.AmountDue)
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, req.IdempotencyKey)
		}
		return Sale{}, err
	}

	if s.stockCache != nil {
		_ = s.stockCache.Invalidate(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "sales:settle",
			Entity:   "sale",
			EntityID: sale.TransactionID,
			Meta: map[string]any{
				"total":          sale.Total.String(),
				"credit_applied": sale.CreditApplied.String(),
				"amount_due":     sale.AmountDue.String(),
			},
		})
	}
	return sale, nil
}

// postEntry appends one ledger entry computed from the running balance and
// returns the new balance. The denormalised customer balance is written
// once by the caller after all postings.
func (s *Service) postEntry(ctx context.Context, tx TxRepository, customerID int64, typ credit.TransactionType, amount, balance decimal.Decimal, saleID int64, description string) (decimal.Decimal, error) {
	newBalance, err := credit.Apply(balance, typ, amount)
	if err != nil {
		return decimal.Zero, err
	}
	entry := credit.Entry{
		CustomerID:   customerID,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: newBalance,
		SaleID:       &saleID,
		Description:  description,
	}
	if _, err := tx.InsertCreditEntry(ctx, entry); err != nil {
		return decimal.Zero, err
	}
	return newBalance, nil
}

// AddPayment appends a payment to an existing sale and reduces its amount
// due. Credit is not re-applied.
func (s *Service) AddPayment(ctx context.Context, saleID int64, req AddPaymentRequest, actorID int64) (Payment, Sale, error) {
	if !req.Method.Valid() || req.Amount.Sign() <= 0 {
		return Payment{}, Sale{}, ErrInvalidPayment
	}

	var payment Payment
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}

		payment = Payment{SaleID: saleID, Method: req.Method, Amount: req.Amount}
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id

		sale.AmountDue = decimal.Max(decimal.Zero, sale.AmountDue.Sub(req.Amount))
		return tx.UpdateSaleAmountDue(ctx, saleID, sale.AmountDue)
	})
	if err != nil {
		return Payment{}, Sale{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "sales:add_payment",
			Entity:   "sale",
			EntityID: sale.TransactionID,
			Meta: map[string]any{
				"method": string(req.Method),
				"amount": req.Amount.String(),
			},
		})
	}
	return payment, sale, nil
}

// UpdateSale recalculates totals after a discount correction. Stock and
// credit postings stay as settled.
func (s *Service) UpdateSale(ctx context.Context, saleID int64, req UpdateSaleRequest) (Sale, error) {
	if req.Discount == nil {
		return s.repo.GetSale(ctx, saleID)
	}
	if req.Discount.Sign() < 0 {
		return Sale{}, ErrInvalidDiscount
	}

	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}

		totalPayments := decimal.Zero
		for _, p := range sale.Payments {
			totalPayments = totalPayments.Add(p.Amount)
		}

		sale.Discount = *req.Discount
		sale.Total = sale.Subtotal.Sub(sale.Discount)
		sale.AmountDue = decimal.Max(decimal.Zero, sale.Total.Sub(sale.CreditApplied).Sub(totalPayments))

		return tx.UpdateSaleTotals(ctx, saleID, sale.Subtotal, sale.Total, sale.CreditApplied, sale.AmountDue)
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) GetByTransactionID(ctx context.Context, transactionID string) (Sale, error) {
	return s.repo.GetSaleByTransactionID(ctx, transactionID)
}

func (s *Service) List(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	return s.repo.ListSales(ctx, req)
}

func (s *Service) Stats(ctx context.Context, req StatsRequest) (Stats, error) {
	return s.repo.Stats(ctx, req)
}

func (s *Service) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	if _, err := s.repo.GetSale(ctx, saleID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, saleID)
}
