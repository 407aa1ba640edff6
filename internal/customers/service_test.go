package customers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items  map[int64]Customer
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Customer)}
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Customer, error) {
	c, ok := r.items[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var out []Customer
	for _, c := range r.items {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(ctx context.Context, c Customer) (int64, error) {
	r.nextID++
	c.ID = r.nextID
	r.items[c.ID] = c
	return c.ID, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	c := r.items[id]
	if v, ok := updates["status"]; ok {
		c.Status = v.(Status)
	}
	if v, ok := updates["credit_limit"]; ok {
		c.CreditLimit = v.(decimal.Decimal)
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	r.items[id] = c
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	delete(r.items, id)
	return nil
}

func TestCreateCustomerDefaults(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{
		Name:  "Mama Nkechi Stores",
		Phone: "+2348031234567",
		Class: ClassWholesale,
	}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusActive, c.Status)
	require.True(t, c.Balance.IsZero())
	require.Equal(t, int64(7), c.CreatedBy)

	_, err = svc.Create(ctx, CreateCustomerRequest{
		Name:  "Bad",
		Phone: "+2348031234567",
		Class: CustomerClass("vip"),
	}, 7)
	require.ErrorIs(t, err, ErrInvalidClass)
}

func TestAvailableCredit(t *testing.T) {
	c := Customer{
		CreditLimit: decimal.NewFromInt(10000),
		Balance:     decimal.NewFromInt(-4000),
	}
	require.True(t, c.AvailableCredit().Equal(decimal.NewFromInt(6000)))

	c.Balance = decimal.NewFromInt(-15000)
	require.True(t, c.AvailableCredit().IsZero())

	c.Balance = decimal.NewFromInt(2500)
	require.True(t, c.AvailableCredit().Equal(decimal.NewFromInt(12500)))
}

func TestDeleteRequiresSettledBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCustomerRequest{
		Name:  "Chuka & Sons",
		Phone: "+2348020000001",
		Class: ClassRetail,
	}, 0)
	require.NoError(t, err)

	held := repo.items[c.ID]
	held.Balance = decimal.NewFromInt(-2000)
	repo.items[c.ID] = held

	require.ErrorIs(t, svc.Delete(ctx, c.ID), ErrOutstandingBalance)

	held.Balance = decimal.Zero
	repo.items[c.ID] = held
	require.NoError(t, svc.Delete(ctx, c.ID))
}
