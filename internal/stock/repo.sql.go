package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kegline/kegline/internal/platform/db"
)

// Repository persists stock batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	GetLatestBatchForUpdate(ctx context.Context) (Batch, error)
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
	UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error
}

type txRepository struct {
	tx pgx.Tx
}

const batchColumns = `id, delivered_quantity, unit_price, supplier, cumulative_stock, sold_stock, remaining_stock, created_by, created_at, updated_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.DeliveredQuantity, &b.UnitPrice, &b.Supplier,
		&b.CumulativeStock, &b.SoldStock, &b.RemainingStock,
		&b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetLatestBatch returns the most recent batch without locking.
func (r *Repository) GetLatestBatch(ctx context.Context) (Batch, error) {
	b, err := scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM stock_batches ORDER BY created_at DESC, id DESC LIMIT 1`))
	if errors.Is(err, ErrNotFound) {
		return Batch{}, ErrNoBatch
	}
	return b, err
}

func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM stock_batches WHERE id=$1`, id))
}

func (r *Repository) ListBatches(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.Supplier != nil {
		conditions = append(conditions, fmt.Sprintf("supplier ILIKE '%%' || $%d || '%%'", argPos))
		args = append(args, *req.Supplier)
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

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM stock_batches %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM stock_batches %s
ORDER BY created_at DESC, id DESC
LIMIT $%d OFFSET $%d`, batchColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *Repository) UpdateBatch(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE stock_batches SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"supplier", "unit_price"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	_, err := r.pool.Exec(ctx, query, args...)
	return err
}

func (r *Repository) DeleteBatch(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM stock_batches WHERE id=$1`, id)
	return err
}

// Summary totals the ledger across all batches. Remaining comes from the
// latest batch only, per the rolling-chain model.
func (r *Repository) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(delivered_quantity), 0), COALESCE(SUM(sold_stock), 0), COUNT(*) FROM stock_batches`).
		Scan(&s.TotalDelivered, &s.TotalSold, &s.BatchCount)
	if err != nil {
		return Summary{}, err
	}
	latest, err := r.GetLatestBatch(ctx)
	if err != nil {
		if errors.Is(err, ErrNoBatch) {
			return s, nil
		}
		return Summary{}, err
	}
	s.Remaining = latest.RemainingStock
	return s, nil
}

func (r *txRepository) GetLatestBatchForUpdate(ctx context.Context) (Batch, error) {
	b, err := scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM stock_batches ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE`))
	if errors.Is(err, ErrNotFound) {
		return Batch{}, ErrNoBatch
	}
	return b, err
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_batches (delivered_quantity, unit_price, supplier, cumulative_stock, sold_stock, remaining_stock, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW()) RETURNING id`,
		batch.DeliveredQuantity, batch.UnitPrice, batch.Supplier,
		batch.CumulativeStock, batch.SoldStock, batch.RemainingStock, nullInt(batch.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_batches SET sold_stock=$2, remaining_stock=$3, updated_at=NOW() WHERE id=$1`, id, sold, remaining)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
