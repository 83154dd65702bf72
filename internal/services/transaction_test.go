package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/iban"
	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/metrics"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/worker"
)

var transferTime = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func newTransferFixture(t *testing.T) (*memStore, *TransactionService, Actor, Actor) {
	t.Helper()
	store := newMemStore()
	alice := store.addUser("alice", "Alice Martin", models.RoleClient)
	bob := store.addUser("bob", "Bob Durand", models.RoleClient)
	store.addAccount("a1", "alice", models.AccountTypeChecking, "100.00")
	store.addAccount("b1", "bob", models.AccountTypeChecking, "20.00")
	svc := NewTransactionService(store, ledger.NoOverdraft, metrics.New(prometheus.NewRegistry()), fixedClock(transferTime), nil, nil)
	return store, svc, alice, bob
}

func TestTransferMovesFundsAndRecordsPair(t *testing.T) {
	store, svc, alice, _ := newTransferFixture(t)

	res, err := svc.Transfer(context.Background(), alice, models.TransferRequest{
		FromAccountID: "a1",
		ToAccountID:   "b1",
		Amount:        d("30.50"),
	})
	require.NoError(t, err)

	assert.True(t, res.From.Balance.Equal(d("69.50")))
	assert.True(t, res.To.Balance.Equal(d("50.50")))
	assert.True(t, store.account("a1").Balance.Equal(d("69.50")))
	assert.True(t, store.account("b1").Balance.Equal(d("50.50")))

	total := store.account("a1").Balance.Add(store.account("b1").Balance)
	assert.True(t, total.Equal(d("120.00")), "сумма балансов должна сохраняться")

	out := store.transactionsOf("a1")
	in := store.transactionsOf("b1")
	require.Len(t, out, 1)
	require.Len(t, in, 1)
	assert.Equal(t, models.TransactionTypeTransferOut, out[0].Type)
	assert.Equal(t, "b1", *out[0].RelatedAccountID)
	assert.Equal(t, "Bob Durand", *out[0].RelatedClientName)
	assert.Equal(t, models.TransactionTypeTransferIn, in[0].Type)
	assert.Equal(t, "a1", *in[0].RelatedAccountID)
	assert.Equal(t, "Alice Martin", *in[0].RelatedClientName)
	assert.Equal(t, transferTime, in[0].CreatedAt)
}

func TestTransferByIBAN(t *testing.T) {
	store, svc, alice, _ := newTransferFixture(t)
	code, err := iban.Generate(testIBANParams)
	require.NoError(t, err)
	b1 := store.account("b1")
	b1.IBAN = code
	require.NoError(t, store.Repos().Accounts.Update(context.Background(), b1))

	_, err = svc.Transfer(context.Background(), alice, models.TransferRequest{
		FromAccountID: "a1",
		ToIBAN:        iban.Format(code),
		Amount:        d("10"),
	})
	require.NoError(t, err)
	assert.True(t, store.account("b1").Balance.Equal(d("30.00")))

	_, err = svc.Transfer(context.Background(), alice, models.TransferRequest{
		FromAccountID: "a1",
		ToIBAN:        "FR00 0000 0000 0000",
		Amount:        d("10"),
	})
	assert.ErrorIs(t, err, ErrInvalidIBAN)
}

func TestTransferFailuresLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		name  string
		actor string
		req   models.TransferRequest
		want  error
	}{
		{"zero amount", "alice", models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("0")}, ledger.ErrInvalidAmount},
		{"sub-cent amount", "alice", models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("0.001")}, ledger.ErrInvalidAmount},
		{"insufficient funds", "alice", models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("100.01")}, ledger.ErrInsufficientFunds},
		{"same account", "alice", models.TransferRequest{FromAccountID: "a1", ToAccountID: "a1", Amount: d("1")}, ledger.ErrSameAccount},
		{"unknown destination", "alice", models.TransferRequest{FromAccountID: "a1", ToAccountID: "zz", Amount: d("1")}, ledger.ErrAccountNotFound},
		{"foreign source", "bob", models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("1")}, ErrUnauthorizedAccess},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, svc, alice, bob := newTransferFixture(t)
			actor := alice
			if tc.actor == "bob" {
				actor = bob
			}

			_, err := svc.Transfer(context.Background(), actor, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, store.account("a1").Balance.Equal(d("100.00")))
			assert.True(t, store.account("b1").Balance.Equal(d("20.00")))
			assert.Empty(t, store.transactionsOf("a1"))
			assert.Empty(t, store.transactionsOf("b1"))
		})
	}
}

func TestTransferToClosedAccount(t *testing.T) {
	store, svc, alice, _ := newTransferFixture(t)
	b1 := store.account("b1")
	b1.IsClosed = true
	require.NoError(t, store.Repos().Accounts.Update(context.Background(), b1))

	_, err := svc.Transfer(context.Background(), alice, models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("5")})
	assert.ErrorIs(t, err, ledger.ErrAccountClosed)
	assert.True(t, store.account("a1").Balance.Equal(d("100.00")))
}

func TestTransferRollsBackOnJournalFailure(t *testing.T) {
	store, svc, alice, _ := newTransferFixture(t)
	store.failTxInsert = errStorage

	_, err := svc.Transfer(context.Background(), alice, models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("10")})
	assert.ErrorIs(t, err, errStorage)
	assert.True(t, store.account("a1").Balance.Equal(d("100.00")), "списание должно откатиться")
	assert.True(t, store.account("b1").Balance.Equal(d("20.00")), "зачисление должно откатиться")
}

func TestTransferWithOverdraftPolicy(t *testing.T) {
	store, _, alice, _ := newTransferFixture(t)
	svc := NewTransactionService(store, ledger.OverdraftUpTo(d("50")), nil, fixedClock(transferTime), nil, nil)

	_, err := svc.Transfer(context.Background(), alice, models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("150")})
	require.NoError(t, err)
	assert.True(t, store.account("a1").Balance.Equal(d("-50.00")))

	_, err = svc.Transfer(context.Background(), alice, models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("0.01")})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}

func TestConcurrentTransfersConserveMoney(t *testing.T) {
	store, svc, alice, bob := newTransferFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(context.Background(), alice, models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("7")})
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(context.Background(), bob, models.TransferRequest{FromAccountID: "b1", ToAccountID: "a1", Amount: d("3")})
		}()
	}
	wg.Wait()

	total := store.account("a1").Balance.Add(store.account("b1").Balance)
	assert.True(t, total.Equal(d("120.00")))
	assert.False(t, store.account("a1").Balance.IsNegative())
	assert.False(t, store.account("b1").Balance.IsNegative())
}

func TestTransferInvalidatesBalanceCacheThroughPool(t *testing.T) {
	store, _, alice, _ := newTransferFixture(t)
	redisCache, mr := newTestCache(t)
	pool := worker.NewWorkerPool(1, 10, 0)
	pool.Start()
	svc := NewTransactionService(store, ledger.NoOverdraft, nil, fixedClock(transferTime), redisCache, pool)

	ctx := context.Background()
	require.NoError(t, redisCache.Set(ctx, cache.AccountInfoKey("a1"), "stale", time.Minute))
	require.NoError(t, redisCache.Set(ctx, cache.AccountInfoKey("b1"), "stale", time.Minute))

	_, err := svc.Transfer(ctx, alice, models.TransferRequest{FromAccountID: "a1", ToAccountID: "b1", Amount: d("1")})
	require.NoError(t, err)
	require.NoError(t, pool.Shutdown(time.Second))

	assert.False(t, mr.Exists(cache.AccountInfoKey("a1")))
	assert.False(t, mr.Exists(cache.AccountInfoKey("b1")))
}
