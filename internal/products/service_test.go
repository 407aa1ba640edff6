package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items  map[int64]Product
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Product)}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := r.items[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListProductsRequest) ([]Product, int, error) {
	var out []Product
	for _, p := range r.items {
		if req.SaleType != nil && p.SaleType != *req.SaleType {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, p Product) (int64, error) {
	r.nextID++
	p.ID = r.nextID
	r.items[p.ID] = p
	return p.ID, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	p := r.items[id]
	if v, ok := updates["name"]; ok {
		p.Name = v.(string)
	}
	if v, ok := updates["price"]; ok {
		p.Price = v.(decimal.Decimal)
	}
	if v, ok := updates["unit"]; ok {
		p.Unit = v.(int)
	}
	if v, ok := updates["sale_type"]; ok {
		p.SaleType = v.(SaleChannel)
	}
	r.items[id] = p
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(r.items, id)
	return nil
}

func TestCreateProduct(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProductRequest{
		Name:     "25L Keg",
		Price:    decimal.NewFromInt(18500),
		Unit:     1,
		SaleType: SaleChannelRetail,
	})
	require.NoError(t, err)
	require.Equal(t, "25L Keg", p.Name)
	require.Equal(t, 1, p.Unit)

	_, err = svc.Create(ctx, CreateProductRequest{
		Name:     "Bad",
		Price:    decimal.NewFromInt(-1),
		SaleType: SaleChannelRetail,
	})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Create(ctx, CreateProductRequest{
		Name:     "Bad",
		Price:    decimal.NewFromInt(10),
		SaleType: SaleChannel("bulk"),
	})
	require.ErrorIs(t, err, ErrInvalidChannel)
}

func TestUpdateProduct(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	p, err := svc.Create(ctx, CreateProductRequest{
		Name:     "Drum",
		Price:    decimal.NewFromInt(70000),
		Unit:     4,
		SaleType: SaleChannelWholesale,
	})
	require.NoError(t, err)

	newPrice := decimal.NewFromInt(72000)
	updated, err := svc.Update(ctx, p.ID, UpdateProductRequest{Price: &newPrice})
	require.NoError(t, err)
	require.True(t, updated.Price.Equal(newPrice))

	_, err = svc.Update(ctx, 9999, UpdateProductRequest{Price: &newPrice})
	require.ErrorIs(t, err, ErrNotFound)
}
