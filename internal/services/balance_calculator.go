package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
)

// ComputeBalance derives the live balance of account from the ledger as seen
// by reader: start + credits - debits. Pass the open LedgerTx to get the
// snapshot a subsequent insert will commit against.
func ComputeBalance(ctx context.Context, reader repository.LedgerReader, account *models.Account) (decimal.Decimal, error) {
	totals, err := reader.Totals(ctx, account.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute balance: %w", err)
	}
	return totals.Balance(account.StartBalance), nil
}
