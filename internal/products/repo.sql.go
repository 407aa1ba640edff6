package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository persists products in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, price, unit, sale_type, created_at, updated_at FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price, &p.Unit, &p.SaleType, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *PGRepository) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1

	if req.SaleType != nil {
		conditions = append(conditions, fmt.Sprintf("sale_type = $%d", argPos))
		args = append(args, *req.SaleType)
		argPos++
	}
	if req.Search != nil {
		conditions = append(conditions, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", argPos))
		args = append(args, *req.Search)
		argPos++
	}

	whereClause := "WHERE " + conditions[0]
	for i := 1; i < len(conditions); i++ {
		whereClause += " AND " + conditions[i]
	}

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, name, price, unit, sale_type, created_at, updated_at
FROM products %s
ORDER BY sale_type ASC, unit ASC, id ASC
LIMIT $%d OFFSET $%d`, whereClause, argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Unit, &p.SaleType, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *PGRepository) Create(ctx context.Context, p Product) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, price, unit, sale_type, created_at, updated_at)
VALUES ($1,$2,$3,$4,NOW(),NOW()) RETURNING id`, p.Name, p.Price, p.Unit, p.SaleType).Scan(&id)
	return id, err
}

func (r *PGRepository) Update(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE products SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"name", "price", "unit", "sale_type"} {
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
	_, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return err
}
