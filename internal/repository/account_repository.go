package repository

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/models"
)

//go:generate mockgen -source=account_repository.go -destination=mocks/mock_account_repository.go -package=mocks

type AccountRepository interface {
	// Create inserts the account and fills ID and CreatedOn. A duplicate
	// (user, game, type) key returns errors.ErrAccountAlreadyExists.
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByKey(ctx context.Context, key models.AccountKey) (*models.Account, error)
}
