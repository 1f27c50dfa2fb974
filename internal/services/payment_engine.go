package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/kafka"
	"github.com/honeynil/game-payment-ledger/internal/infrastructure/observability"
	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

const publishTimeout = 5 * time.Second

type PaymentEngine struct {
	registry  *AccountRegistry
	games     repository.GameRepository
	payments  repository.PaymentRepository
	publisher kafka.PaymentPublisher
}

// NewPaymentEngine builds the engine. publisher may be nil, in which case no
// events are published.
func NewPaymentEngine(registry *AccountRegistry, games repository.GameRepository, payments repository.PaymentRepository, publisher kafka.PaymentPublisher) *PaymentEngine {
	return &PaymentEngine{
		registry:  registry,
		games:     games,
		payments:  payments,
		publisher: publisher,
	}
}

// CreatePayment validates req, then locks both accounts, checks the payer's
// derived balance and appends the payment in one transaction.
//
// Holding the payee lock until commit means every payment touching an account
// is stamped in that account's commit order, so statement pages and cursors
// never miss a row that committed late.
func (e *PaymentEngine) CreatePayment(ctx context.Context, req models.NewPayment) (_ *models.Payment, err error) {
	ctx, span := otel.Tracer("payment-engine").Start(ctx, "CreatePayment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account_id_from", req.AccountIDFrom),
		attribute.Int64("account_id_to", req.AccountIDTo),
		attribute.Int64("game_id", req.GameID),
	)
	defer func() {
		outcome := observability.OutcomeCommitted
		switch {
		case err == nil:
		case stderrors.Is(err, pkgerrors.ErrInsufficientFunds):
			outcome = observability.OutcomeInsufficientFunds
		case stderrors.Is(err, pkgerrors.ErrInvalidInput), stderrors.Is(err, pkgerrors.ErrNotFound):
			outcome = observability.OutcomeRejected
		default:
			outcome = observability.OutcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.PaymentsTotal.WithLabelValues(outcome).Inc()
	}()

	if err = ValidateNewPayment(req); err != nil {
		slog.Warn("payment rejected", "method", "CreatePayment", "account_id_from", req.AccountIDFrom, "account_id_to", req.AccountIDTo, "error", err)
		return nil, err
	}

	game, err := e.games.GetByID(ctx, req.GameID)
	if err != nil {
		return nil, err
	}
	if !game.Active() {
		return nil, fmt.Errorf("game %d is %s: %w", game.ID, game.Status, pkgerrors.ErrGameNotActive)
	}

	payer, err := e.registry.GetAccount(ctx, req.AccountIDFrom)
	if err != nil {
		return nil, fmt.Errorf("payer: %w", err)
	}
	payee, err := e.registry.GetAccount(ctx, req.AccountIDTo)
	if err != nil {
		return nil, fmt.Errorf("payee: %w", err)
	}
	if payer.GameID != req.GameID || payee.GameID != req.GameID {
		return nil, pkgerrors.ErrAccountNotInGame
	}

	payment := &models.Payment{
		Amount:        req.Amount,
		AccountIDFrom: payer.ID,
		AccountIDTo:   payee.ID,
		Message:       req.Message,
		GameID:        req.GameID,
	}
	err = e.payments.InTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		locked, err := lockPair(ctx, tx, payer.ID, payee.ID)
		if err != nil {
			return err
		}
		balance, err := ComputeBalance(ctx, tx, locked)
		if err != nil {
			return err
		}
		if balance.LessThan(req.Amount) {
			return fmt.Errorf("account %d has %s, needs %s: %w", payer.ID, balance.StringFixed(2), req.Amount.StringFixed(2), pkgerrors.ErrInsufficientFunds)
		}
		return tx.Insert(ctx, payment)
	})
	logger := observability.WithContext(ctx, "method", "CreatePayment")
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrInsufficientFunds) {
			logger.Info("payment declined", "account_id_from", payer.ID, "amount", req.Amount.StringFixed(2), "error", err)
		} else {
			logger.Error("failed to commit payment", "account_id_from", payer.ID, "account_id_to", payee.ID, "error", err)
		}
		return nil, err
	}

	logger.Info("payment committed", "payment_id", payment.ID, "account_id_from", payment.AccountIDFrom, "account_id_to", payment.AccountIDTo, "amount", payment.Amount.StringFixed(2))
	e.publish(ctx, payment)
	return payment, nil
}

// lockPair locks payer and payee in ascending id order, so two payments
// between the same accounts in opposite directions cannot deadlock. It
// returns the locked payer row.
func lockPair(ctx context.Context, tx repository.LedgerTx, payerID, payeeID int64) (*models.Account, error) {
	first, second := payerID, payeeID
	if second < first {
		first, second = second, first
	}

	locked, err := tx.LockAccount(ctx, first)
	if err != nil {
		return nil, err
	}
	other, err := tx.LockAccount(ctx, second)
	if err != nil {
		return nil, err
	}
	if other.ID == payerID {
		return other, nil
	}
	return locked, nil
}

// publish is best effort: the payment is already committed.
func (e *PaymentEngine) publish(ctx context.Context, p *models.Payment) {
	if e.publisher == nil {
		return
	}

	event := kafka.PaymentCommitted{
		EventID:       uuid.NewString(),
		PaymentID:     p.ID,
		GameID:        p.GameID,
		AccountIDFrom: p.AccountIDFrom,
		AccountIDTo:   p.AccountIDTo,
		Amount:        p.Amount,
		PaymentOn:     p.PaymentOn,
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.PublishPaymentCommitted(sendCtx, event); err != nil {
		slog.Error("failed to publish payment event", "payment_id", p.ID, "event_id", event.EventID, "error", err)
	}
}
