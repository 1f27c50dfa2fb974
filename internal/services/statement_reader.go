package service

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	"github.com/honeynil/game-payment-ledger/pkg/pagination"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

type StatementReader struct {
	accounts repository.AccountRepository
	payments repository.PaymentRepository
}

func NewStatementReader(accounts repository.AccountRepository, payments repository.PaymentRepository) *StatementReader {
	return &StatementReader{accounts: accounts, payments: payments}
}

// GetStatement pages through the account's payments in one game, oldest first.
// An account from another game has no rows there, so the page is empty.
func (r *StatementReader) GetStatement(ctx context.Context, q models.StatementQuery) ([]models.Payment, error) {
	if q.Offset < 0 || q.Limit < 1 {
		return nil, pkgerrors.ErrInvalidPagination
	}
	q.Limit = pagination.ClampLimit(q.Limit)

	account, err := r.accounts.GetByID(ctx, q.AccountID)
	if err != nil {
		return nil, err
	}
	if account.GameID != q.GameID {
		return []models.Payment{}, nil
	}

	return r.payments.GetStatement(ctx, q)
}
