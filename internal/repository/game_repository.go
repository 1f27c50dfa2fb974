package repository

import (
	"context"

	"github.com/honeynil/game-payment-ledger/internal/models"
)

//go:generate mockgen -source=game_repository.go -destination=mocks/mock_game_repository.go -package=mocks

// GameRepository reads games and rosters owned by the game service.
type GameRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Game, error)
	IsParticipant(ctx context.Context, gameID, userID int64) (bool, error)
}
