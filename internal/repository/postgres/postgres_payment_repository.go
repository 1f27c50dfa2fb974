package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.opentelemetry.io/otel/attribute"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/database"
	"github.com/honeynil/game-payment-ledger/internal/models"
	core "github.com/honeynil/game-payment-ledger/internal/repository"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

const paymentColumns = `id, amount, payment_on, account_id_from, account_id_to, message, game_id`

const totalsQuery = `
	SELECT
		COALESCE(SUM(amount) FILTER (WHERE account_id_to = $1), 0) AS credits,
		COALESCE(SUM(amount) FILTER (WHERE account_id_from = $1), 0) AS debits
	FROM payments
	WHERE account_id_to = $1 OR account_id_from = $1
`

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresPaymentRepository struct {
	db    *sql.DB
	retry retrypolicy.RetryPolicy[any]
}

func NewPostgresPaymentRepository(db *sql.DB, retry retrypolicy.RetryPolicy[any]) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db, retry: retry}
}

func (r *PostgresPaymentRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx core.LedgerTx) error) (err error) {
	ctx, _, done := observe(ctx, "payment-repository", "LedgerTx")
	defer done(&err)

	return database.WithTx(ctx, r.db, r.retry, func(tx *sql.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

func (r *PostgresPaymentRepository) Totals(ctx context.Context, accountID int64) (_ models.LedgerTotals, err error) {
	ctx, span, done := observe(ctx, "payment-repository", "LedgerTotals")
	defer done(&err)
	span.SetAttributes(attribute.Int64("account_id", accountID))

	return queryTotals(ctx, r.db, accountID)
}

func (r *PostgresPaymentRepository) GetByID(ctx context.Context, id int64) (_ *models.Payment, err error) {
	ctx, span, done := observe(ctx, "payment-repository", "GetPaymentByID")
	defer done(&err)
	span.SetAttributes(attribute.Int64("payment_id", id))

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	var p models.Payment
	err = scanPayment(r.db.QueryRowContext(ctx, query, id), &p)
	if stderrors.Is(err, sql.ErrNoRows) {
		slog.Warn("payment not found", "method", "GetByID", "payment_id", id)
		return nil, pkgerrors.ErrPaymentNotFound
	}
	if err != nil {
		slog.Error("failed to get payment by id", "method", "GetByID", "payment_id", id, "error", err)
		return nil, fmt.Errorf("failed to get payment by id: %w", err)
	}

	return &p, nil
}

func (r *PostgresPaymentRepository) GetStatement(ctx context.Context, q models.StatementQuery) (_ []models.Payment, err error) {
	ctx, span, done := observe(ctx, "payment-repository", "GetStatement")
	defer done(&err)
	span.SetAttributes(
		attribute.Int64("account_id", q.AccountID),
		attribute.Int64("game_id", q.GameID),
		attribute.Int("offset", q.Offset),
		attribute.Int("limit", q.Limit),
	)

	query, args := statementQuery(q)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to query statement", "method", "GetStatement", "account_id", q.AccountID, "game_id", q.GameID, "error", err)
		return nil, fmt.Errorf("failed to query statement: %w", err)
	}
	defer rows.Close()

	payments := make([]models.Payment, 0, q.Limit)
	for rows.Next() {
		var p models.Payment
		if err = scanPayment(rows, &p); err != nil {
			slog.Error("failed to scan payment", "method", "GetStatement", "account_id", q.AccountID, "error", err)
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err = rows.Err(); err != nil {
		slog.Error("failed to iterate statement", "method", "GetStatement", "account_id", q.AccountID, "error", err)
		return nil, fmt.Errorf("failed to iterate statement: %w", err)
	}

	slog.Debug("statement retrieved", "method", "GetStatement", "account_id", q.AccountID, "game_id", q.GameID, "rows", len(payments))
	return payments, nil
}

// statementQuery orders by the ledger total order (payment_on, id). With a
// cursor the page starts strictly after it and offset applies from there.
func statementQuery(q models.StatementQuery) (string, []any) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE (account_id_from = $1 OR account_id_to = $1) AND game_id = $2`
	args := []any{q.AccountID, q.GameID}
	if q.After != nil {
		query += ` AND (payment_on, id) > ($3, $4)`
		args = append(args, q.After.Timestamp, q.After.ID)
	}
	query += fmt.Sprintf(` ORDER BY payment_on, id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, q.Offset, q.Limit)
	return query, args
}

// ledgerTx is the write side of the ledger bound to one *sql.Tx.
type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) LockAccount(ctx context.Context, accountID int64) (_ *models.Account, err error) {
	ctx, span, done := observe(ctx, "payment-repository", "LockAccount")
	defer done(&err)
	span.SetAttributes(attribute.Int64("account_id", accountID))

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	account, err := scanAccount(t.tx.QueryRowContext(ctx, query, accountID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		slog.Error("failed to lock account", "method", "LockAccount", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}

	return account, nil
}

func (t *ledgerTx) Totals(ctx context.Context, accountID int64) (_ models.LedgerTotals, err error) {
	ctx, span, done := observe(ctx, "payment-repository", "LedgerTotalsTx")
	defer done(&err)
	span.SetAttributes(attribute.Int64("account_id", accountID))

	return queryTotals(ctx, t.tx, accountID)
}

func (t *ledgerTx) Insert(ctx context.Context, p *models.Payment) (err error) {
	ctx, span, done := observe(ctx, "payment-repository", "InsertPayment")
	defer done(&err)

	if p == nil {
		err = pkgerrors.ErrNilPayment
		slog.Error("failed to insert payment", "method", "Insert", "error", err)
		return err
	}

	span.SetAttributes(
		attribute.Int64("account_id_from", p.AccountIDFrom),
		attribute.Int64("account_id_to", p.AccountIDTo),
		attribute.Int64("game_id", p.GameID),
		attribute.String("amount", p.Amount.StringFixed(2)),
	)

	query := `INSERT INTO payments (amount, payment_on, account_id_from, account_id_to, message, game_id) VALUES ($1, clock_timestamp(), $2, $3, $4, $5) RETURNING id, payment_on`
	err = t.tx.QueryRowContext(ctx, query, p.Amount, p.AccountIDFrom, p.AccountIDTo, p.Message, p.GameID).Scan(&p.ID, &p.PaymentOn)
	if err != nil {
		slog.Error("failed to insert payment", "method", "Insert", "account_id_from", p.AccountIDFrom, "account_id_to", p.AccountIDTo, "error", err)
		return fmt.Errorf("failed to insert payment: %w", err)
	}

	return nil
}

func queryTotals(ctx context.Context, q querier, accountID int64) (models.LedgerTotals, error) {
	var totals models.LedgerTotals
	if err := q.QueryRowContext(ctx, totalsQuery, accountID).Scan(&totals.Credits, &totals.Debits); err != nil {
		slog.Error("failed to sum ledger", "method", "Totals", "account_id", accountID, "error", err)
		return models.LedgerTotals{}, fmt.Errorf("failed to sum ledger: %w", err)
	}
	return totals, nil
}

func scanPayment(row rowScanner, p *models.Payment) error {
	return row.Scan(&p.ID, &p.Amount, &p.PaymentOn, &p.AccountIDFrom, &p.AccountIDTo, &p.Message, &p.GameID)
}
