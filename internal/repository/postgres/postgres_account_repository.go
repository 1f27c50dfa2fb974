package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/database"
	"github.com/honeynil/game-payment-ledger/internal/models"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

const accountColumns = `id, user_id, game_id, type, start_balance, created_on`

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewPostgresAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account *models.Account) (err error) {
	ctx, span, done := observe(ctx, "account-repository", "CreateAccount")
	defer done(&err)

	if account == nil {
		err = pkgerrors.ErrNilAccount
		slog.Error("failed to create account", "method", "Create", "error", err)
		return err
	}

	span.SetAttributes(
		attribute.Int64("user_id", account.UserID),
		attribute.Int64("game_id", account.GameID),
		attribute.String("type", string(account.Type)),
	)

	query := `INSERT INTO accounts (user_id, game_id, type, start_balance) VALUES ($1, $2, $3, $4) RETURNING id, created_on`
	err = r.db.QueryRowContext(ctx, query, account.UserID, account.GameID, account.Type, account.StartBalance).
		Scan(&account.ID, &account.CreatedOn)
	if database.IsUniqueViolation(err) {
		slog.Warn("account already exists", "method", "Create", "user_id", account.UserID, "game_id", account.GameID, "type", account.Type)
		err = pkgerrors.ErrAccountAlreadyExists
		return err
	}
	if err != nil {
		slog.Error("failed to create account", "method", "Create", "user_id", account.UserID, "game_id", account.GameID, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account created", "method", "Create", "account_id", account.ID, "user_id", account.UserID, "game_id", account.GameID, "type", account.Type)
	return nil
}

func (r *PostgresAccountRepository) GetByID(ctx context.Context, id int64) (_ *models.Account, err error) {
	ctx, span, done := observe(ctx, "account-repository", "GetAccountByID")
	defer done(&err)
	span.SetAttributes(attribute.Int64("account_id", id))

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("account not found", "method", "GetByID", "account_id", id)
		return nil, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		slog.Error("failed to get account by id", "method", "GetByID", "account_id", id, "error", err)
		return nil, fmt.Errorf("failed to get account by id: %w", err)
	}

	return account, nil
}

func (r *PostgresAccountRepository) GetByKey(ctx context.Context, key models.AccountKey) (_ *models.Account, err error) {
	ctx, span, done := observe(ctx, "account-repository", "GetAccountByKey")
	defer done(&err)
	span.SetAttributes(
		attribute.Int64("user_id", key.UserID),
		attribute.Int64("game_id", key.GameID),
		attribute.String("type", string(key.Type)),
	)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 AND game_id = $2 AND type = $3`
	account, err := scanAccount(r.db.QueryRowContext(ctx, query, key.UserID, key.GameID, key.Type))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		slog.Error("failed to get account by key", "method", "GetByKey", "user_id", key.UserID, "game_id", key.GameID, "error", err)
		return nil, fmt.Errorf("failed to get account by key: %w", err)
	}

	return account, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.GameID, &a.Type, &a.StartBalance, &a.CreatedOn); err != nil {
		return nil, err
	}
	return &a, nil
}
