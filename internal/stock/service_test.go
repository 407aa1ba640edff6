package stock

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	batches []Batch
	nextID  int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) latest() (int, bool) {
	if len(r.batches) == 0 {
		return 0, false
	}
	return len(r.batches) - 1, true
}

func (r *memoryRepo) GetLatestBatch(ctx context.Context) (Batch, error) {
	idx, ok := r.latest()
	if !ok {
		return Batch{}, ErrNoBatch
	}
	return r.batches[idx], nil
}

func (r *memoryRepo) GetBatch(ctx context.Context, id int64) (Batch, error) {
	for _, b := range r.batches {
		if b.ID == id {
			return b, nil
		}
	}
	return Batch{}, ErrNotFound
}

func (r *memoryRepo) ListBatches(ctx context.Context, req ListBatchesRequest) ([]Batch, int, error) {
	out := make([]Batch, len(r.batches))
	copy(out, r.batches)
	return out, len(out), nil
}

func (r *memoryRepo) UpdateBatch(ctx context.Context, id int64, updates map[string]any) error {
	for i := range r.batches {
		if r.batches[i].ID == id {
			if v, ok := updates["supplier"]; ok {
				r.batches[i].Supplier = v.(string)
			}
			if v, ok := updates["unit_price"]; ok {
				r.batches[i].UnitPrice = v.(decimal.Decimal)
			}
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepo) DeleteBatch(ctx context.Context, id int64) error {
	for i := range r.batches {
		if r.batches[i].ID == id {
			r.batches = append(r.batches[:i], r.batches[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryRepo) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	for _, b := range r.batches {
		s.TotalDelivered += b.DeliveredQuantity
		s.TotalSold += b.SoldStock
	}
	s.BatchCount = len(r.batches)
	if idx, ok := r.latest(); ok {
		s.Remaining = r.batches[idx].RemainingStock
	}
	return s, nil
}

func (tx *memoryTx) GetLatestBatchForUpdate(ctx context.Context) (Batch, error) {
	return tx.repo.GetLatestBatch(ctx)
}

func (tx *memoryTx) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	tx.repo.nextID++
	batch.ID = tx.repo.nextID
	tx.repo.batches = append(tx.repo.batches, batch)
	return batch.ID, nil
}

func (tx *memoryTx) UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error {
	for i := range tx.repo.batches {
		if tx.repo.batches[i].ID == id {
			tx.repo.batches[i].SoldStock = sold
			tx.repo.batches[i].RemainingStock = remaining
			return nil
		}
	}
	return ErrNotFound
}

func TestRecordDeliveryAndSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	batch, err := svc.RecordDelivery(ctx, RecordDeliveryRequest{
		Quantity:  1000,
		UnitPrice: decimal.NewFromInt(150),
		Supplier:  "Supplier A",
	}, 1)
	require.NoError(t, err)
	require.InDelta(t, 1000.0, batch.CumulativeStock, 0.0001)
	require.InDelta(t, 1000.0, batch.RemainingStock, 0.0001)

	available, err := svc.CurrentAvailable(ctx)
	require.NoError(t, err)
	require.InDelta(t, 1000.0, available, 0.0001)

	// a settlement draws 400L down from the latest batch
	held := repo.batches[0]
	require.NoError(t, held.RecordSale(400))
	repo.batches[0] = held

	available, err = svc.CurrentAvailable(ctx)
	require.NoError(t, err)
	require.InDelta(t, 600.0, available, 0.0001)
	require.InDelta(t, 400.0, repo.batches[0].SoldStock, 0.0001)
}

func TestDeliveryChainsOnPreviousRemaining(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordDelivery(ctx, RecordDeliveryRequest{Quantity: 1000, Supplier: "Supplier A"}, 1)
	require.NoError(t, err)

	held := repo.batches[0]
	require.NoError(t, held.RecordSale(700))
	repo.batches[0] = held

	batch, err := svc.RecordDelivery(ctx, RecordDeliveryRequest{Quantity: 500, Supplier: "Supplier B"}, 1)
	require.NoError(t, err)
	require.InDelta(t, 800.0, batch.CumulativeStock, 0.0001) // 300 left + 500 delivered
	require.InDelta(t, 800.0, batch.RemainingStock, 0.0001)

	units, err := svc.UnitsAvailableFor(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 16, units) // 800 / (2*25)
}

func TestRecordDeliveryRejectsInvalidQuantity(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordDelivery(ctx, RecordDeliveryRequest{Quantity: 0, Supplier: "Supplier A"}, 1)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.RecordDelivery(ctx, RecordDeliveryRequest{Quantity: -10, Supplier: "Supplier A"}, 1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestCurrentAvailableEmptyLedger(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil, nil)

	available, err := svc.CurrentAvailable(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 0.0, available, 0.0001)
}
