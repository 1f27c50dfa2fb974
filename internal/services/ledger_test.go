package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository/memory"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
	"github.com/honeynil/game-payment-ledger/pkg/pagination"
)

const testGameID = 1

// newMemoryLedger runs the full service against the in-process store with one
// active game whose accounts start at startBalance.
func newMemoryLedger(t *testing.T, startBalance string, users ...int64) (*ledgerService, []*models.Account) {
	t.Helper()
	store := memory.NewStore()
	store.AddGame(models.Game{
		ID:           testGameID,
		Name:         "monopoly",
		Status:       models.GameStatusActive,
		StartBalance: decimal.RequireFromString(startBalance),
	}, users...)

	accounts := memory.NewAccountRepository(store)
	games := memory.NewGameRepository(store)
	payments := memory.NewPaymentRepository(store)

	registry := NewAccountRegistry(accounts, games, 3)
	engine := NewPaymentEngine(registry, games, payments, nil)
	svc := NewLedgerService(registry, engine, NewStatementReader(accounts, payments), payments, nil)

	created := make([]*models.Account, 0, len(users))
	for _, userID := range users {
		account, err := svc.ResolveAccount(context.Background(), models.AccountKey{UserID: userID, GameID: testGameID, Type: models.AccountTypeGameBalance})
		require.NoError(t, err)
		created = append(created, account)
	}
	return svc, created
}

func pay(from, to *models.Account, amount string) models.NewPayment {
	return models.NewPayment{
		AccountIDFrom: from.ID,
		AccountIDTo:   to.ID,
		Amount:        decimal.RequireFromString(amount),
		GameID:        testGameID,
		Message:       "street purchase",
	}
}

func balanceOf(t *testing.T, svc *ledgerService, account *models.Account) decimal.Decimal {
	t.Helper()
	balance, err := svc.GetBalance(context.Background(), account.ID, testGameID)
	require.NoError(t, err)
	return balance
}

func TestLedger_SimpleTransfer(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newMemoryLedger(t, "100.00", 1, 2)
	a, b := accounts[0], accounts[1]

	payment, replayed, err := svc.CreatePayment(ctx, "", pay(a, b, "40.00"))
	require.NoError(t, err)
	assert.False(t, replayed)

	assert.Equal(t, "60.00", balanceOf(t, svc, a).StringFixed(2))
	assert.Equal(t, "140.00", balanceOf(t, svc, b).StringFixed(2))

	rows, err := svc.GetStatement(ctx, models.StatementQuery{AccountID: a.ID, GameID: testGameID, Limit: 10})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, payment.ID, rows[0].ID)
	assert.Equal(t, "40.00", rows[0].Amount.StringFixed(2))

	got, err := svc.GetPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.AccountIDFrom)
}

func TestLedger_ExactBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("one cent over", func(t *testing.T) {
		svc, accounts := newMemoryLedger(t, "10.00", 1, 2)
		_, _, err := svc.CreatePayment(ctx, "", pay(accounts[0], accounts[1], "10.01"))
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)

		rows, err := svc.GetStatement(ctx, models.StatementQuery{AccountID: accounts[0].ID, GameID: testGameID, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, rows)
		assert.Equal(t, "10.00", balanceOf(t, svc, accounts[0]).StringFixed(2))
	})

	t.Run("whole balance", func(t *testing.T) {
		svc, accounts := newMemoryLedger(t, "10.00", 1, 2)
		_, _, err := svc.CreatePayment(ctx, "", pay(accounts[0], accounts[1], "10.00"))
		require.NoError(t, err)
		assert.True(t, balanceOf(t, svc, accounts[0]).IsZero())
	})
}

func TestLedger_ConcurrentPaymentsNeverOverdraw(t *testing.T) {
	const n = 20
	ctx := context.Background()
	// room for exactly n-1 payments of 5.00
	svc, accounts := newMemoryLedger(t, "95.00", 1, 2)
	payer, payee := accounts[0], accounts[1]

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		committed    int
		insufficient int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CreatePayment(ctx, "", pay(payer, payee, "5.00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n-1, committed)
	assert.Equal(t, 1, insufficient)
	assert.True(t, balanceOf(t, svc, payer).IsZero())
	assert.Equal(t, "190.00", balanceOf(t, svc, payee).StringFixed(2))
}

func TestLedger_ConservationAndNonNegativity(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newMemoryLedger(t, "50.00", 1, 2, 3, 4)
	total := decimal.RequireFromString("200.00")
	rng := rand.New(rand.NewSource(42))

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		from := accounts[rng.Intn(len(accounts))]
		to := accounts[rng.Intn(len(accounts))]
		if from.ID == to.ID {
			continue
		}
		amount := decimal.New(int64(rng.Intn(3000)+1), -2)
		wg.Add(1)
		go func(req models.NewPayment) {
			defer wg.Done()
			_, _, err := svc.CreatePayment(ctx, "", req)
			if err != nil {
				assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
			}
		}(pay(from, to, amount.StringFixed(2)))
	}
	wg.Wait()

	sum := decimal.Zero
	for _, account := range accounts {
		balance := balanceOf(t, svc, account)
		assert.False(t, balance.IsNegative(), "account %d went negative: %s", account.ID, balance)
		sum = sum.Add(balance)
	}
	assert.True(t, total.Equal(sum), "expected %s in circulation, got %s", total, sum)
}

func TestLedger_BalanceReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newMemoryLedger(t, "100.00", 1, 2)
	_, _, err := svc.CreatePayment(ctx, "", pay(accounts[0], accounts[1], "12.34"))
	require.NoError(t, err)

	first := balanceOf(t, svc, accounts[0])
	second := balanceOf(t, svc, accounts[0])
	assert.True(t, first.Equal(second))
	assert.Equal(t, "87.66", first.StringFixed(2))
}

func TestLedger_StatementPagesAreStable(t *testing.T) {
	ctx := context.Background()
	svc, accounts := newMemoryLedger(t, "100.00", 1, 2)
	a, b := accounts[0], accounts[1]

	for i := 0; i < 5; i++ {
		_, _, err := svc.CreatePayment(ctx, "", pay(a, b, "1.00"))
		require.NoError(t, err)
	}

	query := models.StatementQuery{AccountID: a.ID, GameID: testGameID, Offset: 0, Limit: 3}
	before, err := svc.GetStatement(ctx, query)
	require.NoError(t, err)
	require.Len(t, before, 3)

	for i := 0; i < 3; i++ {
		_, _, err := svc.CreatePayment(ctx, "", pay(b, a, "2.00"))
		require.NoError(t, err)
	}

	after, err := svc.GetStatement(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	t.Run("cursor continues where the page ended", func(t *testing.T) {
		last := after[len(after)-1]
		next, err := svc.GetStatement(ctx, models.StatementQuery{
			AccountID: a.ID,
			GameID:    testGameID,
			Limit:     10,
			After:     &pagination.Cursor{Timestamp: last.PaymentOn, ID: last.ID},
		})
		require.NoError(t, err)
		assert.Len(t, next, 5)
		for _, p := range next {
			assert.True(t, p.PaymentOn.After(last.PaymentOn) || (p.PaymentOn.Equal(last.PaymentOn) && p.ID > last.ID))
		}
	})
}

func TestLedger_EmptyStatement(t *testing.T) {
	svc, accounts := newMemoryLedger(t, "100.00", 1)

	rows, err := svc.GetStatement(context.Background(), models.StatementQuery{AccountID: accounts[0].ID, GameID: testGameID, Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestLedger_BalanceByUserCreatesAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryLedger(t, "75.50", 1, 9)

	key := models.AccountKey{UserID: 9, GameID: testGameID, Type: models.AccountTypeGameBalance}
	account, balance, err := svc.GetBalanceByUser(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "75.50", balance.StringFixed(2))

	again, _, err := svc.GetBalanceByUser(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, account.ID, again.ID)

	_, _, err = svc.GetBalanceByUser(ctx, models.AccountKey{UserID: 404, GameID: testGameID, Type: models.AccountTypeGameBalance})
	assert.ErrorIs(t, err, pkgerrors.ErrUserNotInGame)
}

func TestLedger_ConcurrentResolveCreatesOneAccount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryLedger(t, "100.00", 5)
	key := models.AccountKey{UserID: 5, GameID: testGameID, Type: models.AccountTypeGameBalance}

	ids := make(chan int64, 10)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			account, err := svc.ResolveAccount(ctx, key)
			if assert.NoError(t, err) {
				ids <- account.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]struct{}{}
	for id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 1)
}

func TestLedger_GetBalanceWrongGame(t *testing.T) {
	svc, accounts := newMemoryLedger(t, "100.00", 1)

	_, err := svc.GetBalance(context.Background(), accounts[0].ID, testGameID+1)
	assert.ErrorIs(t, err, pkgerrors.ErrAccountNotInGame)

	_, err = svc.GetBalance(context.Background(), 999, testGameID)
	assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
}
