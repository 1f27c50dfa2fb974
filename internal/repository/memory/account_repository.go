package memory

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/models"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return pkgerrors.ErrNilAccount
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accountKeys[account.Key()]; exists {
		return pkgerrors.ErrAccountAlreadyExists
	}
	s.nextAccountID++
	account.ID = s.nextAccountID
	account.CreatedOn = s.stamp()
	s.accounts[account.ID] = *account
	s.accountKeys[account.Key()] = account.ID
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, pkgerrors.ErrAccountNotFound
	}
	return &account, nil
}

func (r *AccountRepository) GetByKey(ctx context.Context, key models.AccountKey) (*models.Account, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountKeys[key]
	if !ok {
		return nil, pkgerrors.ErrAccountNotFound
	}
	account := s.accounts[id]
	return &account, nil
}
