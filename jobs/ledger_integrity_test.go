package jobs

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kegline/kegline/internal/credit"
)

type memorySource struct {
	entries map[int64][]credit.Entry
}

func (s *memorySource) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memorySource) ListEntriesAscending(ctx context.Context, customerID int64) ([]credit.Entry, error) {
	return s.entries[customerID], nil
}

func TestLedgerScanFlagsBrokenChains(t *testing.T) {
	source := &memorySource{entries: map[int64][]credit.Entry{
		// Consistent chain bootstrapped from a non-zero denormalised balance.
		1: {
			{ID: 10, CustomerID: 1, Type: credit.TransactionCreditUsed, Amount: decimal.NewFromInt(200), BalanceAfter: decimal.NewFromInt(300)},
			{ID: 11, CustomerID: 1, Type: credit.TransactionCreditEarned, Amount: decimal.NewFromInt(50), BalanceAfter: decimal.NewFromInt(350)},
		},
		// Second link disagrees with the replay by 100.
		2: {
			{ID: 20, CustomerID: 2, Type: credit.TransactionCreditAdded, Amount: decimal.NewFromInt(500), BalanceAfter: decimal.NewFromInt(500)},
			{ID: 21, CustomerID: 2, Type: credit.TransactionDebtIncurred, Amount: decimal.NewFromInt(200), BalanceAfter: decimal.NewFromInt(400)},
		},
	}}
	job := NewLedgerIntegrityJob(source, nil, nil)

	customers, findings, err := job.scan(context.Background(), LedgerIntegrityPayload{})
	require.NoError(t, err)
	require.Equal(t, 2, customers)
	require.Len(t, findings, 1)
	require.Equal(t, int64(2), findings[0].CustomerID)
	require.Equal(t, int64(21), findings[0].Violation.EntryID)
	require.True(t, findings[0].Violation.Expected.Equal(decimal.NewFromInt(300)))
}

func TestLedgerScanSingleCustomer(t *testing.T) {
	source := &memorySource{entries: map[int64][]credit.Entry{
		3: {
			{ID: 30, CustomerID: 3, Type: credit.TransactionCreditAdded, Amount: decimal.NewFromInt(100), BalanceAfter: decimal.NewFromInt(100)},
		},
		4: {
			{ID: 40, CustomerID: 4, Type: credit.TransactionCreditAdded, Amount: decimal.NewFromInt(100), BalanceAfter: decimal.NewFromInt(999)},
		},
	}}
	job := NewLedgerIntegrityJob(source, nil, nil)

	customers, findings, err := job.scan(context.Background(), LedgerIntegrityPayload{CustomerID: 3})
	require.NoError(t, err)
	require.Equal(t, 1, customers)
	require.Empty(t, findings)
}
