package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/platform/db"
	"github.com/kegline/kegline/internal/stock"
)

// Repository persists returns in PostgreSQL.
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

const returnColumns = `id, transaction_id, sale_id, customer_id, status, total_refund_amount, reason, approved_by, approved_at, approval_notes, created_by, created_at, updated_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanReturn(row pgx.Row) (Return, error) {
	var ret Return
	var createdBy *int64
	var notes *string
	err := row.Scan(&ret.ID, &ret.TransactionID, &ret.SaleID, &ret.CustomerID,
		&ret.Status, &ret.TotalRefundAmount, &ret.Reason,
		&ret.ApprovedBy, &ret.ApprovedAt, &notes,
		&createdBy, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Return{}, ErrNotFound
		}
		return Return{}, err
	}
	if createdBy != nil {
		ret.CreatedBy = *createdBy
	}
	if notes != nil {
		ret.ApprovalNotes = *notes
	}
	return ret, nil
}

func loadReturnItems(ctx context.Context, q rowQuerier, returnID int64) ([]ReturnItem, error) {
	rows, err := q.Query(ctx, `SELECT id, return_id, sale_item_id, product_id, quantity, refund_amount FROM return_items WHERE return_id=$1 ORDER BY id`, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReturnItem
	for rows.Next() {
		var item ReturnItem
		if err := rows.Scan(&item.ID, &item.ReturnID, &item.SaleItemID, &item.ProductID, &item.Quantity, &item.RefundAmount); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("returns repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) GetReturn(ctx context.Context, id int64) (Return, error) {
	ret, err := scanReturn(r.pool.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id=$1`, id))
	if err != nil {
		return Return{}, err
	}
	items, err := loadReturnItems(ctx, r.pool, id)
	if err != nil {
		return Return{}, err
	}
	ret.Items = items
	return ret, nil
}

func (r *Repository) ListReturns(ctx context.Context, req ListReturnsRequest) ([]Return, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM returns %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM returns %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, returnColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Return
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, ret)
	}
	return items, total, rows.Err()
}

func (r *txRepository) GetSaleRef(ctx context.Context, saleID int64) (SaleRef, error) {
	var ref SaleRef
	err := r.tx.QueryRow(ctx, `SELECT id, transaction_id, customer_id FROM sales WHERE id=$1`, saleID).
		Scan(&ref.ID, &ref.TransactionID, &ref.CustomerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SaleRef{}, ErrSaleNotFound
		}
		return SaleRef{}, err
	}
	return ref, nil
}

func (r *txRepository) ListSoldItems(ctx context.Context, saleID int64) ([]SoldItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, product_id, quantity, unit_price FROM sale_items WHERE sale_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SoldItem
	for rows.Next() {
		var item SoldItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ReturnedQuantities sums quantities already claimed against each sale item
// by open or completed returns. Rejected returns release their claim.
func (r *txRepository) ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int, error) {
	rows, err := r.tx.Query(ctx, `SELECT ri.sale_item_id, COALESCE(SUM(ri.quantity), 0)
FROM return_items ri
JOIN returns ret ON ret.id = ri.return_id
WHERE ret.sale_id = $1 AND ret.status IN ($2, $3)
GROUP BY ri.sale_item_id`, saleID, StatusPending, StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quantities := make(map[int64]int)
	for rows.Next() {
		var saleItemID int64
		var quantity int
		if err := rows.Scan(&saleItemID, &quantity); err != nil {
			return nil, err
		}
		quantities[saleItemID] = quantity
	}
	return quantities, rows.Err()
}

func (r *txRepository) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO returns (transaction_id, sale_id, customer_id, status, total_refund_amount, reason, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		ret.TransactionID, ret.SaleID, ret.CustomerID, ret.Status,
		ret.TotalRefundAmount, ret.Reason, nullInt(ret.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO return_items (return_id, sale_item_id, product_id, quantity, refund_amount)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		item.ReturnID, item.SaleItemID, item.ProductID, item.Quantity, item.RefundAmount).Scan(&id)
	return id, err
}

func (r *txRepository) GetReturnForUpdate(ctx context.Context, id int64) (Return, error) {
	ret, err := scanReturn(r.tx.QueryRow(ctx, `SELECT `+returnColumns+` FROM returns WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Return{}, err
	}
	items, err := loadReturnItems(ctx, r.tx, id)
	if err != nil {
		return Return{}, err
	}
	ret.Items = items
	return ret, nil
}

func (r *txRepository) GetProductUnit(ctx context.Context, productID int64) (int, error) {
	var unit int
	err := r.tx.QueryRow(ctx, `SELECT unit FROM products WHERE id=$1`, productID).Scan(&unit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return unit, nil
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

func (r *txRepository) GetAccountBalanceForUpdate(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := r.tx.QueryRow(ctx, `SELECT balance FROM customers WHERE id=$1 FOR UPDATE`, customerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, err
	}
	return balance, nil
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

func (r *txRepository) UpdateReturnDecision(ctx context.Context, id int64, status Status, approvedBy int64, approvedAt time.Time, notes string) error {
	_, err := r.tx.Exec(ctx, `UPDATE returns SET status=$2, approved_by=$3, approved_at=$4, approval_notes=$5, updated_at=NOW() WHERE id=$1`,
		id, status, nullInt(approvedBy), approvedAt, notes)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
