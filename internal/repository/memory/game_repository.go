package memory

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/models"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

type GameRepository struct {
	store *Store
}

func NewGameRepository(store *Store) *GameRepository {
	return &GameRepository{store: store}
}

func (r *GameRepository) GetByID(ctx context.Context, id int64) (*models.Game, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	game, ok := r.store.games[id]
	if !ok {
		return nil, pkgerrors.ErrGameNotFound
	}
	return &game, nil
}

func (r *GameRepository) IsParticipant(ctx context.Context, gameID, userID int64) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.participants[gameID][userID]
	return ok, nil
}
