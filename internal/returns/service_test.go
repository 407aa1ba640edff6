package returns

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kegline/kegline/internal/credit"
	"github.com/kegline/kegline/internal/stock"
)

type memoryState struct {
	sales         map[int64]SaleRef
	soldItems     map[int64][]SoldItem
	productUnits  map[int64]int
	balances      map[int64]decimal.Decimal
	batches       []stock.Batch
	returns       map[int64]Return
	returnItems   []ReturnItem
	creditEntries []credit.Entry
	nextID        int64
}

func (s *memoryState) clone() *memoryState {
	out := &memoryState{
		sales:        make(map[int64]SaleRef, len(s.sales)),
		soldItems:    make(map[int64][]SoldItem, len(s.soldItems)),
		productUnits: make(map[int64]int, len(s.productUnits)),
		balances:     make(map[int64]decimal.Decimal, len(s.balances)),
		returns:      make(map[int64]Return, len(s.returns)),
		nextID:       s.nextID,
	}
	for k, v := range s.sales {
		out.sales[k] = v
	}
	for k, v := range s.soldItems {
		out.soldItems[k] = append([]SoldItem(nil), v...)
	}
	for k, v := range s.productUnits {
		out.productUnits[k] = v
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	for k, v := range s.returns {
		out.returns[k] = v
	}
	out.batches = append(out.batches, s.batches...)
	out.returnItems = append(out.returnItems, s.returnItems...)
	out.creditEntries = append(out.creditEntries, s.creditEntries...)
	return out
}

type memoryRepo struct {
	state *memoryState
}

type memoryTx struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		sales:        make(map[int64]SaleRef),
		soldItems:    make(map[int64][]SoldItem),
		productUnits: make(map[int64]int),
		balances:     make(map[int64]decimal.Decimal),
		returns:      make(map[int64]Return),
	}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{state: snapshot}); err != nil {
		return err
	}
	r.state = snapshot
	return nil
}

func (r *memoryRepo) GetReturn(ctx context.Context, id int64) (Return, error) {
	ret, ok := r.state.returns[id]
	if !ok {
		return Return{}, ErrNotFound
	}
	return ret, nil
}

func (r *memoryRepo) ListReturns(ctx context.Context, req ListReturnsRequest) ([]Return, int, error) {
	var out []Return
	for _, ret := range r.state.returns {
		if req.Status != nil && ret.Status != *req.Status {
			continue
		}
		out = append(out, ret)
	}
	return out, len(out), nil
}

func (tx *memoryTx) GetSaleRef(ctx context.Context, saleID int64) (SaleRef, error) {
	ref, ok := tx.state.sales[saleID]
	if !ok {
		return SaleRef{}, ErrSaleNotFound
	}
	return ref, nil
}

func (tx *memoryTx) ListSoldItems(ctx context.Context, saleID int64) ([]SoldItem, error) {
	return tx.state.soldItems[saleID], nil
}

func (tx *memoryTx) ReturnedQuantities(ctx context.Context, saleID int64) (map[int64]int, error) {
	quantities := make(map[int64]int)
	for _, item := range tx.state.returnItems {
		ret, ok := tx.state.returns[item.ReturnID]
		if !ok || ret.SaleID != saleID {
			continue
		}
		if ret.Status == StatusPending || ret.Status == StatusCompleted {
			quantities[item.SaleItemID] += item.Quantity
		}
	}
	return quantities, nil
}

func (tx *memoryTx) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	tx.state.nextID++
	ret.ID = tx.state.nextID
	tx.state.returns[ret.ID] = ret
	return ret.ID, nil
}

func (tx *memoryTx) InsertReturnItem(ctx context.Context, item ReturnItem) (int64, error) {
	tx.state.nextID++
	item.ID = tx.state.nextID
	tx.state.returnItems = append(tx.state.returnItems, item)
	return item.ID, nil
}

func (tx *memoryTx) GetReturnForUpdate(ctx context.Context, id int64) (Return, error) {
	ret, ok := tx.state.returns[id]
	if !ok {
		return Return{}, ErrNotFound
	}
	for _, item := range tx.state.returnItems {
		if item.ReturnID == id {
			ret.Items = append(ret.Items, item)
		}
	}
	return ret, nil
}

func (tx *memoryTx) GetProductUnit(ctx context.Context, productID int64) (int, error) {
	unit, ok := tx.state.productUnits[productID]
	if !ok {
		return 0, ErrNotFound
	}
	return unit, nil
}

func (tx *memoryTx) GetLatestBatchForUpdate(ctx context.Context) (stock.Batch, error) {
	if len(tx.state.batches) == 0 {
		return stock.Batch{}, stock.ErrNoBatch
	}
	return tx.state.batches[len(tx.state.batches)-1], nil
}

func (tx *memoryTx) UpdateBatchQuantities(ctx context.Context, id int64, sold, remaining float64) error {
	for i := range tx.state.batches {
		if tx.state.batches[i].ID == id {
			tx.state.batches[i].SoldStock = sold
			tx.state.batches[i].RemainingStock = remaining
			return nil
		}
	}
	return stock.ErrNotFound
}

func (tx *memoryTx) GetAccountBalanceForUpdate(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	balance, ok := tx.state.balances[customerID]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return balance, nil
}

func (tx *memoryTx) LatestBalanceAfter(ctx context.Context, customerID int64) (decimal.Decimal, bool, error) {
	for i := len(tx.state.creditEntries) - 1; i >= 0; i-- {
		if tx.state.creditEntries[i].CustomerID == customerID {
			return tx.state.creditEntries[i].BalanceAfter, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func (tx *memoryTx) InsertCreditEntry(ctx context.Context, entry credit.Entry) (int64, error) {
	tx.state.nextID++
	entry.ID = tx.state.nextID
	tx.state.creditEntries = append(tx.state.creditEntries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) UpdateCustomerBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error {
	tx.state.balances[customerID] = balance
	return nil
}

func (tx *memoryTx) UpdateReturnDecision(ctx context.Context, id int64, status Status, approvedBy int64, approvedAt time.Time, notes string) error {
	ret, ok := tx.state.returns[id]
	if !ok {
		return ErrNotFound
	}
	ret.Status = status
	ret.ApprovedBy = &approvedBy
	ret.ApprovedAt = &approvedAt
	ret.ApprovalNotes = notes
	tx.state.returns[id] = ret
	return nil
}

// One sale of 4 single-keg units (25L each) at 750 apiece, against a batch
// that has 100L sold out of 500L.
func seedSoldSale(repo *memoryRepo) {
	customerID := int64(7)
	repo.state.sales[1] = SaleRef{ID: 1, TransactionID: "#SE0AF3C2D1", CustomerID: &customerID}
	repo.state.soldItems[1] = []SoldItem{
		{ID: 11, ProductID: 3, Quantity: 4, UnitPrice: decimal.NewFromInt(750)},
	}
	repo.state.productUnits[3] = 1
	repo.state.balances[7] = decimal.Zero
	repo.state.batches = []stock.Batch{{
		ID:                1,
		DeliveredQuantity: 500,
		CumulativeStock:   500,
		SoldStock:         100,
		RemainingStock:    400,
	}}
}

func TestCreateReturnValidatesQuantity(t *testing.T) {
	repo := newMemoryRepo()
	seedSoldSale(repo)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 5}},
	}, 2)
	require.ErrorIs(t, err, ErrInvalidReturnQuantity)
	require.Empty(t, repo.state.returns)

	ret, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 2}},
		Reason: "damaged kegs",
	}, 2)
	require.NoError(t, err)
	require.Equal(t, StatusPending, ret.Status)
	require.Equal(t, "#RT", ret.TransactionID[:3])
	require.True(t, ret.TotalRefundAmount.Equal(decimal.NewFromInt(1500)))
	require.Len(t, ret.Items, 1)
}

func TestCreateReturnAggregatesRepeatedLines(t *testing.T) {
	repo := newMemoryRepo()
	seedSoldSale(repo)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	// Two lines for the same sale item must not bypass the sold-quantity cap.
	_, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items: []ReturnItemInput{
			{SaleItemID: 11, Quantity: 4},
			{SaleItemID: 11, Quantity: 4},
		},
	}, 2)
	require.ErrorIs(t, err, ErrInvalidReturnQuantity)
	require.Empty(t, repo.state.returns)
	require.Empty(t, repo.state.returnItems)

	// Split lines summing to the sold quantity are fine.
	ret, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items: []ReturnItemInput{
			{SaleItemID: 11, Quantity: 1},
			{SaleItemID: 11, Quantity: 3},
		},
	}, 2)
	require.NoError(t, err)
	require.True(t, ret.TotalRefundAmount.Equal(decimal.NewFromInt(3000)))
}

func TestCreateReturnCountsPriorReturns(t *testing.T) {
	repo := newMemoryRepo()
	seedSoldSale(repo)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 3}},
	}, 2)
	require.NoError(t, err)

	// 3 of 4 are already claimed by the pending return.
	_, err = svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 2}},
	}, 2)
	require.ErrorIs(t, err, ErrInvalidReturnQuantity)

	_, err = svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 1}},
	}, 2)
	require.NoError(t, err)

	// Rejecting the first return releases its claim.
	_, err = svc.Reject(ctx, first.ID, 9, "changed mind")
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 3}},
	}, 2)
	require.NoError(t, err)
}

func TestCreateReturnUnknownSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateReturnRequest{
		SaleID: 42,
		Items:  []ReturnItemInput{{SaleItemID: 1, Quantity: 1}},
	}, 0)
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestApproveReversesStockAndRefundsCredit(t *testing.T) {
	repo := newMemoryRepo()
	seedSoldSale(repo)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 2}},
	}, 2)
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, ret.ID, 9, "ok")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, approved.Status)
	require.Equal(t, int64(9), *approved.ApprovedBy)

	// 2 units * 1 keg * 25L flow back into the batch
	require.InDelta(t, 50.0, repo.state.batches[0].SoldStock, 0.0001)
	require.InDelta(t, 450.0, repo.state.batches[0].RemainingStock, 0.0001)

	require.Len(t, repo.state.creditEntries, 1)
	entry := repo.state.creditEntries[0]
	require.Equal(t, credit.TransactionCreditRefund, entry.Type)
	require.True(t, entry.Amount.Equal(decimal.NewFromInt(1500)))
	require.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(1500)))
	require.True(t, repo.state.balances[7].Equal(decimal.NewFromInt(1500)))
}

func TestApproveRequiresPendingState(t *testing.T) {
	repo := newMemoryRepo()
	seedSoldSale(repo)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 1}},
	}, 2)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, ret.ID, 9, "")
	require.NoError(t, err)

	_, err = svc.Approve(ctx, ret.ID, 9, "again")
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.Reject(ctx, ret.ID, 9, "late")
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestRejectHasNoSideEffects(t *testing.T) {
	repo := newMemoryRepo()
	seedSoldSale(repo)
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	ret, err := svc.Create(ctx, CreateReturnRequest{
		SaleID: 1,
		Items:  []ReturnItemInput{{SaleItemID: 11, Quantity: 2}},
	}, 2)
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, ret.ID, 9, "not eligible")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Equal(t, "not eligible", rejected.ApprovalNotes)

	require.InDelta(t, 100.0, repo.state.batches[0].SoldStock, 0.0001)
	require.Empty(t, repo.state.creditEntries)
	require.True(t, repo.state.balances[7].IsZero())

	_, err = svc.Approve(ctx, ret.ID, 9, "")
	require.ErrorIs(t, err, ErrInvalidState)
}
