package credit

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kegline/kegline/internal/platform/db"
)

// Repository persists credit ledger entries in PostgreSQL.
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

const entryColumns = `id, customer_id, transaction_type, amount, balance_after, sale_id, description, created_by, created_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var createdBy *int64
	err := row.Scan(&e.ID, &e.CustomerID, &e.Type, &e.Amount, &e.BalanceAfter,
		&e.SaleID, &e.Description, &createdBy, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	return e, nil
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("credit repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *Repository) ListEntries(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customer_credits WHERE customer_id=$1`, req.CustomerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM customer_credits
WHERE customer_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`, req.CustomerID, limit, req.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	return items, total, rows.Err()
}

// ListCustomerIDs returns every customer that has ledger entries, used by
// the integrity scan.
func (r *Repository) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT customer_id FROM customer_credits ORDER BY customer_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListEntriesAscending returns a customer's full chain oldest first, for
// replay verification.
func (r *Repository) ListEntriesAscending(ctx context.Context, customerID int64) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM customer_credits
WHERE customer_id=$1
ORDER BY created_at ASC, id ASC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, customerID int64) (Account, error) {
	var account Account
	err := r.tx.QueryRow(ctx, `SELECT id, balance FROM customers WHERE id=$1 FOR UPDATE`, customerID).
		Scan(&account.ID, &account.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	return account, nil
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

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO customer_credits (customer_id, transaction_type, amount, balance_after, sale_id, description, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		entry.CustomerID, entry.Type, entry.Amount, entry.BalanceAfter,
		entry.SaleID, entry.Description, nullInt(entry.CreatedBy)).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE customers SET balance=$2, updated_at=NOW() WHERE id=$1`, customerID, balance)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
