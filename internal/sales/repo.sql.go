package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/platform/db"
	"github.com/kegline/kegline/internal/stock"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

const saleColumns = `id, transaction_id, customer_id, sale_type, subtotal, discount, total, credit_applied, amount_due, created_by, created_at, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var createdBy *int64
	err := row.Scan(&s.ID, &s.TransactionID, &s.CustomerID, &s.SaleType,
		&s.Subtotal, &s.Discount, &s.Total, &s.CreditApplied, &s.AmountDue,
		&createdBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	if createdBy != nil {
		s.CreatedBy = *createdBy
	}
	return s, nil
}

func loadItems(ctx context.Context, q rowQuerier, saleID int64) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, product_id, quantity, unit_price, total_price FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		var item SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.TotalPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func loadPayments(ctx context.Context, q rowQuerier, saleID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, method, amount, created_at FROM payments WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func hydrateSale(ctx context.Context, q rowQuerier, sale Sale) (Sale, error) {
	items, err := loadItems(ctx, q, sale.ID)
	if err != nil {
		return Sale{}, err
	}
	payments, err := loadPayments(ctx, q, sale.ID)
	if err != nil {
		return Sale{}, err
	}
	sale.Items = items
	sale.Payments = payments
	return sale, nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetSale(ctx context.Context, id int64) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		return Sale{}, err
	}
	return hydrateSale(ctx, r.pool, sale)
}

func (r *Repository) GetSaleByTransactionID(ctx context.Context, transactionID string) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE transaction_id=$1`, transactionID))
	if err != nil {
		return Sale{}, err
	}
	return hydrateSale(ctx, r.pool, sale)
}

func (r *Repository) ListSales(ctx context.Context, req ListSalesRequest) ([]Sale, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.SaleType != nil {
		conditions = append(conditions, fmt.Sprintf("sale_type = $%d", argPos))
		args = append(args, *req.SaleType)
		argPos++
	}
	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}
	if req.Pending {
		conditions = append(conditions, "amount_due > 0")
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM sales %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM sales %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, saleColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *Repository) ListPayments(ctx context.Context, saleID int64) ([]Payment, error) {
	return loadPayments(ctx, r.pool, saleID)
}

// Stats aggregates totals over the sale history inside the optional window.
func (r *Repository) Stats(ctx context.Context, req StatsRequest) (Stats, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argPos))
		args = append(args, *req.From)
		argPos++
	}
	if req.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", argPos))
		args = append(args, *req.To)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var stats Stats
	err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT
COALESCE(SUM(total), 0),
COUNT(id),
COALESCE(AVG(total), 0),
COALESCE(SUM(total) FILTER (WHERE sale_type = 'retail'), 0),
COALESCE(SUM(total) FILTER (WHERE sale_type = 'wholesale'), 0),
COALESCE(SUM(discount), 0),
COALESCE(SUM(amount_due), 0)
FROM sales %s`, whereClause), args...).
		Scan(&stats.TotalSales, &stats.TotalTransactions, &stats.AverageSaleValue,
			&stats.RetailSales, &stats.WholesaleSales, &stats.TotalDiscounts,
			&stats.OutstandingAmount)
	if err != nil {
		return Stats{}, err
	}

	paymentQuery := fmt.Sprintf(`SELECT
COALESCE(SUM(p.amount) FILTER (WHERE p.method = 'cash'), 0),
COALESCE(SUM(p.amount) FILTER (WHERE p.method = 'credit'), 0)
FROM payments p
JOIN sales s ON s.id = p.sale_id %s`, strings.Replace(whereClause, "created_at", "s.created_at", -1))
	if err := r.pool.QueryRow(ctx, paymentQuery, args...).Scan(&stats.CashSales, &stats.CreditSales); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (r *txRepository) GetCustomerForUpdate(ctx context.Context, id int64) (CustomerAccount, error) {
	var account CustomerAccount
	err := r.tx.QueryRow(ctx, `SELECT id, balance FROM customers WHERE id=$1 FOR UPDATE`, id).
		Scan(&account.ID, &account.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerAccount{}, ErrCustomerNotFound
		}
		return CustomerAccount{}, err
	}
	return account, nil
}

func (r *txRepository) GetProduct(ctx context.Context, id int64) (ProductInfo, error) {
	var p ProductInfo
	err := r.tx.QueryRow(ctx, `SELECT id, name, price, unit FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductInfo{}, ErrProductNotFound
		}
		return ProductInfo{}, err
	}
	return p, nil
}

func (r *txRepository) GetLatestBatchForUpdate(ctx context.Context) (stock.Batch, error) {
	var b stock.Batch
	err := r.tx.QueryRow(ctx, `SELECT id, delivered_quantity, unit_price, supplier, cumulative_stock, sold_stock, remaining_stock, created_by, created_at, updated_at
FROM stock_batches ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`).
		Scan(&b.ID, &b.DeliveredQuantity, &b.UnitPrice, &b.Supplier,
			&b.CumulativeStock, &b.SoldStock, &b.RemainingStock,
			&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Batch{}, stock.ErrNoBatch
		}
		return stock.Batch{}, err
	}
	return b, nil
}

func (r *txRepository) UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_batches SET sold_stock=$2, remaining_stock=$3, updated_at=NOW() WHERE id=$1`, id, sold, remaining)
	return err
}

func (r *txRepository) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sales (transaction_id, customer_id, sale_type, subtotal, discount, total, credit_applied, amount_due, created_by, created_at, updated_at)
VALUES ($1,$2,$3,0,$4,0,0,0,$5,NOW(),NOW()) RETURNING id`,
		sale.TransactionID, sale.CustomerID, sale.SaleType, sale.Discount, nullInt(sale.CreatedBy)).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateTransactionID
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertItem(ctx context.Context, item SaleItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, quantity, unit_price, total_price)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		item.SaleID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (sale_id, method, amount, created_at)
VALUES ($1,$2,$3,NOW()) RETURNING id`,
		payment.SaleID, payment.Method, payment.Amount).Scan(&id)
	return id, err
}

func (r *txRepository) LatestBalanceAfter(ctx context.Context, customerID int64) (decimal.Decimal, bool, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT balance_after FROM customer_credits
WHERE customer_id=$1
ORDER BY created_at DESC, id DESC
LIMIT 1`, customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, err
	}
	return balance, true, nil
}

func (r *txRepository) InsertCreditEntry(ctx context.Context, entry credit.Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO customer_credits (customer_id, transaction_type, amount, balance_after, sale_id, description, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		entry.CustomerID, entry.Type, entry.Amount, entry.BalanceAfter,
		entry.SaleID, entry.Description, nullInt(entry.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateCustomerBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET balance=$2, updated_at=NOW() WHERE id=$1`, customerID, balance)
	return err
}

func (r *txRepository) RecordCustomerPurchase(ctx context.Context, customerID int64, total decimal.Decimal, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET total_purchases = total_purchases + $2, last_purchase = $3, updated_at = NOW() WHERE id=$1`, customerID, total, at)
	return err
}

func (r *txRepository) UpdateSaleTotals(ctx context.Context, saleID int64, subtotal, total, creditApplied, amountDue decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET subtotal=$2, total=$3, credit_applied=$4, amount_due=$5, updated_at=NOW() WHERE id=$1`,
		saleID, subtotal, total, creditApplied, amountDue)
	return err
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, saleID int64) (Sale, error) {
	sale, err := scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1 FOR UPDATE`, saleID))
	if err != nil {
		return Sale{}, err
	}
	return hydrateSale(ctx, r.tx, sale)
}

func (r *txRepository) UpdateSaleAmountDue(ctx context.Context, saleID int64, amountDue decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE sales SET amount_due=$2, updated_at=NOW() WHERE id=$1`, saleID, amountDue)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
