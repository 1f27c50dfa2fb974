package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/game-payment-ledger/internal/models"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

// PostgresGameRepository reads the games and game_participants tables
// maintained by the game service. It never writes.
type PostgresGameRepository struct {
	db *sql.DB
}

func NewPostgresGameRepository(db *sql.DB) *PostgresGameRepository {
	return &PostgresGameRepository{db: db}
}

func (r *PostgresGameRepository) GetByID(ctx context.Context, id int64) (_ *models.Game, err error) {
	ctx, span, done := observe(ctx, "game-repository", "GetGameByID")
	defer done(&err)
	span.SetAttributes(attribute.Int64("game_id", id))

	var game models.Game
	query := `SELECT id, name, status, start_balance FROM games WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(&game.ID, &game.Name, &game.Status, &game.StartBalance)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("game not found", "method", "GetByID", "game_id", id)
		return nil, pkgerrors.ErrGameNotFound
	}
	if err != nil {
		slog.Error("failed to get game by id", "method", "GetByID", "game_id", id, "error", err)
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	return &game, nil
}

func (r *PostgresGameRepository) IsParticipant(ctx context.Context, gameID, userID int64) (_ bool, err error) {
	ctx, span, done := observe(ctx, "game-repository", "IsParticipant")
	defer done(&err)
	span.SetAttributes(attribute.Int64("game_id", gameID), attribute.Int64("user_id", userID))

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM game_participants WHERE game_id = $1 AND user_id = $2)`
	if err = r.db.QueryRowContext(ctx, query, gameID, userID).Scan(&exists); err != nil {
		slog.Error("failed to check participant", "method", "IsParticipant", "game_id", gameID, "user_id", userID, "error", err)
		return false, fmt.Errorf("failed to check participant: %w", err)
	}

	return exists, nil
}
