package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists customers in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const customerColumns = `id, name, email, phone, address, type, status, balance, credit_limit, total_purchases, last_purchase, notes, created_by, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Class, &c.Status,
		&c.Balance, &c.CreditLimit, &c.TotalPurchases, &c.LastPurchase, &c.Notes,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
}

func (r *PGRepository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.Class != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, *req.Class)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE '%%' || $%d || '%%' OR phone ILIKE '%%' || $%d || '%%')", argPos, argPos))
		args = append(args, *req.Search)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM customers %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM customers %s
ORDER BY last_purchase DESC NULLS LAST, id DESC
LIMIT $%d OFFSET $%d`, customerColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO customers (name, email, phone, address, type, status, balance, credit_limit, total_purchases, notes, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,0,$7,0,$8,$9,NOW(),NOW()) RETURNING id`,
		c.Name, c.Email, c.Phone, c.Address, c.Class, c.Status, c.CreditLimit, c.Notes, nullInt(c.CreatedBy)).Scan(&id)
	return id, err
}

func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE customers SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"name", "email", "phone", "address", "type", "status", "credit_limit", "notes"} {
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

func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	return err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
