package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

type AccountRegistry struct {
	accounts repository.AccountRepository
	games    repository.GameRepository
	attempts int
}

func NewAccountRegistry(accounts repository.AccountRepository, games repository.GameRepository, attempts int) *AccountRegistry {
	if attempts < 1 {
		attempts = 1
	}
	return &AccountRegistry{accounts: accounts, games: games, attempts: attempts}
}

// ResolveAccount returns the account for key, creating it with the game's
// starting balance on first use. A concurrent creator winning the unique key
// is not an error: the loser re-reads the winner's row.
func (r *AccountRegistry) ResolveAccount(ctx context.Context, key models.AccountKey) (_ *models.Account, err error) {
	ctx, span := otel.Tracer("account-registry").Start(ctx, "ResolveAccount")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(
		attribute.Int64("user_id", key.UserID),
		attribute.Int64("game_id", key.GameID),
		attribute.String("type", string(key.Type)),
	)

	if !key.Type.Valid() {
		return nil, pkgerrors.ErrInvalidAccountType
	}

	var game *models.Game
	for attempt := 1; attempt <= r.attempts; attempt++ {
		account, err := r.accounts.GetByKey(ctx, key)
		if err == nil {
			return account, nil
		}
		if !stderrors.Is(err, pkgerrors.ErrAccountNotFound) {
			return nil, err
		}

		if game == nil {
			if game, err = r.admissibleGame(ctx, key); err != nil {
				return nil, err
			}
		}

		account = &models.Account{
			UserID:       key.UserID,
			GameID:       key.GameID,
			Type:         key.Type,
			StartBalance: game.StartBalance,
		}
		err = r.accounts.Create(ctx, account)
		if err == nil {
			slog.Info("account opened", "method", "ResolveAccount", "account_id", account.ID, "user_id", key.UserID, "game_id", key.GameID)
			return account, nil
		}
		if !stderrors.Is(err, pkgerrors.ErrAccountAlreadyExists) {
			return nil, err
		}
		slog.Warn("account creation raced, re-reading", "method", "ResolveAccount", "attempt", attempt, "user_id", key.UserID, "game_id", key.GameID)
	}

	return nil, pkgerrors.ErrAccountConflict
}

func (r *AccountRegistry) admissibleGame(ctx context.Context, key models.AccountKey) (*models.Game, error) {
	game, err := r.games.GetByID(ctx, key.GameID)
	if err != nil {
		return nil, err
	}
	ok, err := r.games.IsParticipant(ctx, key.GameID, key.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d, game %d: %w", key.UserID, key.GameID, pkgerrors.ErrUserNotInGame)
	}
	return game, nil
}

func (r *AccountRegistry) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	return r.accounts.GetByID(ctx, id)
}
