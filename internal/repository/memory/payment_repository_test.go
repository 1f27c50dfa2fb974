package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
	"github.com/honeynil/game-payment-ledger/pkg/pagination"
)

func seedAccounts(t *testing.T, store *Store) (payer, payee *models.Account) {
	t.Helper()
	accounts := NewAccountRepository(store)
	payer = &models.Account{UserID: 1, GameID: 1, Type: models.AccountTypeGameBalance, StartBalance: decimal.NewFromInt(100)}
	payee = &models.Account{UserID: 2, GameID: 1, Type: models.AccountTypeGameBalance, StartBalance: decimal.NewFromInt(100)}
	require.NoError(t, accounts.Create(context.Background(), payer))
	require.NoError(t, accounts.Create(context.Background(), payee))
	return payer, payee
}

func insert(t *testing.T, repo *PaymentRepository, from, to int64, amount string) models.Payment {
	t.Helper()
	p := models.Payment{Amount: decimal.RequireFromString(amount), AccountIDFrom: from, AccountIDTo: to, Message: "transfer", GameID: 1}
	err := repo.InTx(context.Background(), func(ctx context.Context, tx repository.LedgerTx) error {
		return tx.Insert(ctx, &p)
	})
	require.NoError(t, err)
	return p
}

func TestAccountRepository_DuplicateKey(t *testing.T) {
	store := NewStore()
	accounts := NewAccountRepository(store)
	ctx := context.Background()

	a := &models.Account{UserID: 1, GameID: 1, Type: models.AccountTypeGameBalance}
	require.NoError(t, accounts.Create(ctx, a))
	err := accounts.Create(ctx, &models.Account{UserID: 1, GameID: 1, Type: models.AccountTypeGameBalance})
	assert.ErrorIs(t, err, pkgerrors.ErrAccountAlreadyExists)

	got, err := accounts.GetByKey(ctx, a.Key())
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestPaymentRepository_RollbackLeavesNoTrace(t *testing.T) {
	store := NewStore()
	payer, payee := seedAccounts(t, store)
	repo := NewPaymentRepository(store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		p := &models.Payment{Amount: decimal.NewFromInt(5), AccountIDFrom: payer.ID, AccountIDTo: payee.ID, Message: "transfer", GameID: 1}
		if err := tx.Insert(ctx, p); err != nil {
			return err
		}
		sums, err := tx.Totals(ctx, payer.ID)
		require.NoError(t, err)
		assert.Equal(t, "5.00", sums.Debits.StringFixed(2))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sums, err := repo.Totals(ctx, payer.ID)
	require.NoError(t, err)
	assert.True(t, sums.Debits.IsZero())
}

func TestPaymentRepository_CancelledContextRollsBack(t *testing.T) {
	store := NewStore()
	payer, payee := seedAccounts(t, store)
	repo := NewPaymentRepository(store)

	ctx, cancel := context.WithCancel(context.Background())
	err := repo.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		p := &models.Payment{Amount: decimal.NewFromInt(5), AccountIDFrom: payer.ID, AccountIDTo: payee.ID, Message: "transfer", GameID: 1}
		err := tx.Insert(ctx, p)
		cancel()
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	rows, err := repo.GetStatement(context.Background(), models.StatementQuery{AccountID: payer.ID, GameID: 1, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestPaymentRepository_LockAccountExcludesWriters(t *testing.T) {
	store := NewStore()
	payer, _ := seedAccounts(t, store)
	repo := NewPaymentRepository(store)
	ctx := context.Background()

	var inside atomic.Int32
	var overlapped atomic.Bool
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_ = repo.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
				if _, err := tx.LockAccount(ctx, payer.ID); err != nil {
					return err
				}
				if inside.Add(1) > 1 {
					overlapped.Store(true)
				}
				time.Sleep(20 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			done <- struct{}{}
		}()
	}
	<-done
	<-done
	assert.False(t, overlapped.Load())
}

func TestPaymentRepository_Statement(t *testing.T) {
	store := NewStore()
	payer, payee := seedAccounts(t, store)
	repo := NewPaymentRepository(store)
	ctx := context.Background()

	first := insert(t, repo, payer.ID, payee.ID, "1.00")
	second := insert(t, repo, payee.ID, payer.ID, "2.00")
	third := insert(t, repo, payer.ID, payee.ID, "3.00")

	t.Run("OrderedByPaymentOnThenID", func(t *testing.T) {
		rows, err := repo.GetStatement(ctx, models.StatementQuery{AccountID: payer.ID, GameID: 1, Limit: 10})
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, []int64{first.ID, second.ID, third.ID}, []int64{rows[0].ID, rows[1].ID, rows[2].ID})
	})

	t.Run("OffsetAndLimit", func(t *testing.T) {
		rows, err := repo.GetStatement(ctx, models.StatementQuery{AccountID: payer.ID, GameID: 1, Offset: 1, Limit: 1})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, second.ID, rows[0].ID)
	})

	t.Run("OffsetBeyondRows", func(t *testing.T) {
		rows, err := repo.GetStatement(ctx, models.StatementQuery{AccountID: payer.ID, GameID: 1, Offset: 10, Limit: 10})
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("Cursor", func(t *testing.T) {
		after := &pagination.Cursor{Timestamp: first.PaymentOn, ID: first.ID}
		rows, err := repo.GetStatement(ctx, models.StatementQuery{AccountID: payer.ID, GameID: 1, Limit: 10, After: after})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, second.ID, rows[0].ID)
	})

	t.Run("OtherGame", func(t *testing.T) {
		rows, err := repo.GetStatement(ctx, models.StatementQuery{AccountID: payer.ID, GameID: 2, Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("GetByID", func(t *testing.T) {
		p, err := repo.GetByID(ctx, third.ID)
		require.NoError(t, err)
		assert.Equal(t, "3.00", p.Amount.StringFixed(2))

		_, err = repo.GetByID(ctx, 999)
		assert.ErrorIs(t, err, pkgerrors.ErrPaymentNotFound)
	})
}

func TestPaymentRepository_LateCommitSortsAfterEarlierReads(t *testing.T) {
	store := NewStore()
	x, y := seedAccounts(t, store)
	z := &models.Account{UserID: 3, GameID: 1, Type: models.AccountTypeGameBalance, StartBalance: decimal.NewFromInt(100)}
	require.NoError(t, NewAccountRepository(store).Create(context.Background(), z))
	repo := NewPaymentRepository(store)
	ctx := context.Background()

	// y -> x inserts first and commits last.
	inserted := make(chan struct{})
	release := make(chan struct{})
	errc := make(chan error, 1)
	late := models.Payment{Amount: decimal.NewFromInt(1), AccountIDFrom: y.ID, AccountIDTo: x.ID, Message: "transfer", GameID: 1}
	go func() {
		errc <- repo.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
			if err := tx.Insert(ctx, &late); err != nil {
				return err
			}
			close(inserted)
			<-release
			return nil
		})
	}()
	<-inserted
	early := insert(t, repo, z.ID, x.ID, "2.00")

	firstPage := models.StatementQuery{AccountID: x.ID, GameID: 1, Limit: 1}
	before, err := repo.GetStatement(ctx, firstPage)
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, early.ID, before[0].ID)

	close(release)
	require.NoError(t, <-errc)

	t.Run("PageUnchanged", func(t *testing.T) {
		after, err := repo.GetStatement(ctx, firstPage)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("CursorReachesLateRow", func(t *testing.T) {
		cursor := &pagination.Cursor{Timestamp: before[0].PaymentOn, ID: before[0].ID}
		rest, err := repo.GetStatement(ctx, models.StatementQuery{AccountID: x.ID, GameID: 1, Limit: 10, After: cursor})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, late.ID, rest[0].ID)
		assert.True(t, late.PaymentOn.After(early.PaymentOn))
	})
}
