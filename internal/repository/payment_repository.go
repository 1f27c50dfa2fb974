package repository

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/models"
)

//go:generate mockgen -source=payment_repository.go -destination=mocks/mock_payment_repository.go -package=mocks

// LedgerReader sums committed payments for an account.
type LedgerReader interface {
	Totals(ctx context.Context, accountID int64) (models.LedgerTotals, error)
}

// LedgerTx is the write side of the ledger, valid only inside PaymentRepository.InTx.
type LedgerTx interface {
	LedgerReader
	// LockAccount blocks concurrent writers on the account until the
	// surrounding transaction ends.
	LockAccount(ctx context.Context, accountID int64) (*models.Account, error)
	Insert(ctx context.Context, payment *models.Payment) error
}

type PaymentRepository interface {
	LedgerReader
	// InTx runs fn in one atomic unit. fn may be invoked again when the
	// store reports a transient serialization failure.
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	GetByID(ctx context.Context, id int64) (*models.Payment, error)
	GetStatement(ctx context.Context, query models.StatementQuery) ([]models.Payment, error)
}
