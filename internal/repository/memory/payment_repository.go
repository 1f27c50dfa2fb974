package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

type PaymentRepository struct {
	store *Store
}

func NewPaymentRepository(store *Store) *PaymentRepository {
	return &PaymentRepository{store: store}
}

// InTx stages inserts and publishes them atomically once fn succeeds.
// Payments get their id and payment_on at commit, so a committed row always
// sorts after every row committed before it.
// Account locks taken through LockAccount are held until InTx returns.
func (r *PaymentRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	tx := &ledgerTx{store: r.store, held: make(map[int64]*sync.Mutex)}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.mu.Lock()
	r.store.commit(tx.staged)
	r.store.mu.Unlock()
	return nil
}

func (r *PaymentRepository) Totals(ctx context.Context, accountID int64) (models.LedgerTotals, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return totals(r.store.payments, accountID), nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, p := range r.store.payments {
		if p.ID == id {
			payment := p
			return &payment, nil
		}
	}
	return nil, pkgerrors.ErrPaymentNotFound
}

func (r *PaymentRepository) GetStatement(ctx context.Context, q models.StatementQuery) ([]models.Payment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	page := make([]models.Payment, 0, q.Limit)
	skipped := 0
	for _, p := range r.store.payments {
		if p.GameID != q.GameID || (p.AccountIDFrom != q.AccountID && p.AccountIDTo != q.AccountID) {
			continue
		}
		if !q.After.After(p.PaymentOn, p.ID) {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		if len(page) == q.Limit {
			break
		}
		page = append(page, p)
	}
	return page, nil
}

type ledgerTx struct {
	store  *Store
	held   map[int64]*sync.Mutex
	staged []*models.Payment
}

func (t *ledgerTx) LockAccount(ctx context.Context, accountID int64) (*models.Account, error) {
	t.store.mu.Lock()
	account, ok := t.store.accounts[accountID]
	l := t.store.accountLock(accountID)
	t.store.mu.Unlock()
	if !ok {
		return nil, pkgerrors.ErrAccountNotFound
	}

	if _, already := t.held[accountID]; !already {
		l.Lock()
		t.held[accountID] = l
	}
	return &account, nil
}

// Totals sees committed payments plus the ones staged in this transaction.
func (t *ledgerTx) Totals(ctx context.Context, accountID int64) (models.LedgerTotals, error) {
	t.store.mu.RLock()
	sums := totals(t.store.payments, accountID)
	t.store.mu.RUnlock()

	for _, p := range t.staged {
		sums = addPayment(sums, *p, accountID)
	}
	return sums, nil
}

// Insert stages p. Its ID and PaymentOn are filled in when InTx commits.
func (t *ledgerTx) Insert(ctx context.Context, p *models.Payment) error {
	if p == nil {
		return pkgerrors.ErrNilPayment
	}
	t.staged = append(t.staged, p)
	return nil
}

func (t *ledgerTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func totals(payments []models.Payment, accountID int64) models.LedgerTotals {
	sums := models.LedgerTotals{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, p := range payments {
		sums = addPayment(sums, p, accountID)
	}
	return sums
}

func addPayment(sums models.LedgerTotals, p models.Payment, accountID int64) models.LedgerTotals {
	if p.AccountIDTo == accountID {
		sums.Credits = sums.Credits.Add(p.Amount)
	}
	if p.AccountIDFrom == accountID {
		sums.Debits = sums.Debits.Add(p.Amount)
	}
	return sums
}
