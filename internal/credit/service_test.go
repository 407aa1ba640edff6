package credit

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestApply(t *testing.T) {
	balance := decimal.NewFromInt(1000)

	got, err := Apply(balance, TransactionCreditAdded, decimal.NewFromInt(500))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(1500)))

	got, err = Apply(balance, TransactionCreditUsed, decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = Apply(balance, TransactionCreditUsed, decimal.NewFromInt(1001))
	require.ErrorIs(t, err, ErrInsufficientCredit)

	got, err = Apply(decimal.Zero, TransactionDebtIncurred, decimal.NewFromInt(2000))
	require.NoError(t, err)
	require.True(t, got.Equal(decimal.NewFromInt(-2000)))

	got, err = Apply(decimal.NewFromInt(-500), TransactionCreditEarned, decimal.NewFromInt(500))
	require.NoError(t, err)
	require.True(t, got.IsZero())

	_, err = Apply(balance, TransactionCreditAdded, decimal.Zero)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Apply(balance, TransactionType("bonus"), decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInvalidTransactionType)
}

func TestVerifyChain(t *testing.T) {
	entries := []Entry{
		{ID: 1, Type: TransactionCreditAdded, Amount: decimal.NewFromInt(1000), BalanceAfter: decimal.NewFromInt(1000)},
		{ID: 2, Type: TransactionCreditUsed, Amount: decimal.NewFromInt(400), BalanceAfter: decimal.NewFromInt(600)},
		{ID: 3, Type: TransactionDebtIncurred, Amount: decimal.NewFromInt(900), BalanceAfter: decimal.NewFromInt(-300)},
	}
	require.Empty(t, VerifyChain(decimal.Zero, entries))

	// Corrupting entry 2 also breaks entry 3: the replay continues from the
	// recorded 700, expecting -200 where -300 is stored.
	entries[1].BalanceAfter = decimal.NewFromInt(700)
	violations := VerifyChain(decimal.Zero, entries)
	require.Len(t, violations, 2)
	require.Equal(t, int64(2), violations[0].EntryID)
	require.True(t, violations[0].Expected.Equal(decimal.NewFromInt(600)))
	require.True(t, violations[0].Actual.Equal(decimal.NewFromInt(700)))
	require.Equal(t, int64(3), violations[1].EntryID)
	require.True(t, violations[1].Expected.Equal(decimal.NewFromInt(-200)))

	// Once entry 3 chains off the recorded (bad) value it stays consistent,
	// so one bad link yields exactly one violation.
	entries[2].BalanceAfter = decimal.NewFromInt(-200)
	violations = VerifyChain(decimal.Zero, entries)
	require.Len(t, violations, 1)
	require.Equal(t, int64(2), violations[0].EntryID)
}

type memoryRepo struct {
	accounts map[int64]*Account
	entries  []Entry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[int64]*Account)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) ListEntries(ctx context.Context, req ListEntriesRequest) ([]Entry, int, error) {
	var out []Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].CustomerID == req.CustomerID {
			out = append(out, r.entries[i])
		}
	}
	return out, len(out), nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, customerID int64) (Account, error) {
	if account, ok := tx.repo.accounts[customerID]; ok {
		return *account, nil
	}
	return Account{}, ErrNotFound
}

func (tx *memoryTx) LatestBalanceAfter(ctx context.Context, customerID int64) (decimal.Decimal, bool, error) {
	for i := len(tx.repo.entries) - 1; i >= 0; i-- {
		if tx.repo.entries[i].CustomerID == customerID {
			return tx.repo.entries[i].BalanceAfter, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) UpdateAccountBalance(ctx context.Context, customerID int64, balance decimal.Decimal) error {
	account, ok := tx.repo.accounts[customerID]
	if !ok {
		return ErrNotFound
	}
	account.Balance = balance
	return nil
}

func TestPostChainsBalances(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[1] = &Account{ID: 1, Balance: decimal.Zero}
	svc := NewService(repo, nil)
	ctx := context.Background()

	entry, err := svc.Post(ctx, PostEntryRequest{CustomerID: 1, Type: TransactionCreditAdded, Amount: decimal.NewFromInt(1000)}, 3)
	require.NoError(t, err)
	require.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(1000)))
	require.True(t, repo.accounts[1].Balance.Equal(decimal.NewFromInt(1000)))

	entry, err = svc.Post(ctx, PostEntryRequest{CustomerID: 1, Type: TransactionCreditUsed, Amount: decimal.NewFromInt(250)}, 3)
	require.NoError(t, err)
	require.True(t, entry.BalanceAfter.Equal(decimal.NewFromInt(750)))
	require.True(t, repo.accounts[1].Balance.Equal(decimal.NewFromInt(750)))

	require.Empty(t, VerifyChain(decimal.Zero, repo.entries))
}

func TestPostBootstrapsFromDenormalisedBalance(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[2] = &Account{ID: 2, Balance: decimal.NewFromInt(300)}
	svc := NewService(repo, nil)

	entry, err := svc.Post(context.Background(), PostEntryRequest{CustomerID: 2, Type: TransactionCreditUsed, Amount: decimal.NewFromInt(300)}, 0)
	require.NoError(t, err)
	require.True(t, entry.BalanceAfter.IsZero())
}

func TestPostRejectsSettlementOnlyTypes(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[1] = &Account{ID: 1}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Post(ctx, PostEntryRequest{CustomerID: 1, Type: TransactionDebtIncurred, Amount: decimal.NewFromInt(10)}, 0)
	require.ErrorIs(t, err, ErrInvalidTransactionType)

	_, err = svc.Post(ctx, PostEntryRequest{CustomerID: 1, Type: TransactionCreditEarned, Amount: decimal.NewFromInt(10)}, 0)
	require.ErrorIs(t, err, ErrInvalidTransactionType)
}

func TestPostInsufficientCreditRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	repo.accounts[1] = &Account{ID: 1, Balance: decimal.NewFromInt(100)}
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), PostEntryRequest{CustomerID: 1, Type: TransactionCreditUsed, Amount: decimal.NewFromInt(200)}, 0)
	require.ErrorIs(t, err, ErrInsufficientCredit)
	require.Empty(t, repo.entries)
	require.True(t, repo.accounts[1].Balance.Equal(decimal.NewFromInt(100)))
}
