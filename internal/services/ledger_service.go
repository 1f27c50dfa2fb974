package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/redis"
	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/internal/repository"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

//go:generate mockgen -source=ledger_service.go -destination=mocks/mock_ledger_service.go -package=mocks

type LedgerService interface {
	// CreatePayment commits a payment. With a non-empty idempotencyKey a repeat
	// of a committed request returns the original payment and replayed=true.
	CreatePayment(ctx context.Context, idempotencyKey string, req models.NewPayment) (payment *models.Payment, replayed bool, err error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	GetStatement(ctx context.Context, q models.StatementQuery) ([]models.Payment, error)
	GetBalance(ctx context.Context, accountID, gameID int64) (decimal.Decimal, error)
	GetBalanceByUser(ctx context.Context, key models.AccountKey) (*models.Account, decimal.Decimal, error)
	ResolveAccount(ctx context.Context, key models.AccountKey) (*models.Account, error)
}

type ledgerService struct {
	registry    *AccountRegistry
	engine      *PaymentEngine
	statements  *StatementReader
	payments    repository.PaymentRepository
	idempotency redis.IdempotencyStore
}

// NewLedgerService wires the ledger components. idempotency may be nil, which
// disables idempotency keys.
func NewLedgerService(
	registry *AccountRegistry,
	engine *PaymentEngine,
	statements *StatementReader,
	payments repository.PaymentRepository,
	idempotency redis.IdempotencyStore,
) *ledgerService {
	return &ledgerService{
		registry:    registry,
		engine:      engine,
		statements:  statements,
		payments:    payments,
		idempotency: idempotency,
	}
}

// CreatePayment reserves the key with the request fingerprint before the
// payment runs. A repeat with the same fingerprint replays the original
// payment; a different request under the same key is a conflict.
func (s *ledgerService) CreatePayment(ctx context.Context, idempotencyKey string, req models.NewPayment) (*models.Payment, bool, error) {
	if idempotencyKey == "" || s.idempotency == nil {
		payment, err := s.engine.CreatePayment(ctx, req)
		return payment, false, err
	}

	ctx, span := otel.Tracer("ledger-service").Start(ctx, "CreatePaymentIdempotent")
	defer span.End()

	fingerprint := req.Fingerprint()
	reserved, err := s.idempotency.Reserve(ctx, idempotencyKey, fingerprint)
	if err != nil {
		slog.Error("failed to reserve idempotency key", "method", "CreatePayment", "key", idempotencyKey, "error", err)
		return nil, false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	if !reserved {
		payment, err := s.replay(ctx, idempotencyKey, fingerprint)
		return payment, err == nil, err
	}

	payment, err := s.engine.CreatePayment(ctx, req)
	if err != nil {
		if relErr := s.idempotency.Release(ctx, idempotencyKey); relErr != nil {
			slog.Error("failed to release idempotency key", "method", "CreatePayment", "key", idempotencyKey, "error", relErr)
		}
		return nil, false, err
	}

	record := redis.Record{PaymentID: payment.ID, Fingerprint: fingerprint}
	if err := s.idempotency.Complete(ctx, idempotencyKey, record); err != nil {
		slog.Error("failed to record idempotency key", "method", "CreatePayment", "key", idempotencyKey, "payment_id", payment.ID, "error", err)
	}
	return payment, false, nil
}

func (s *ledgerService) replay(ctx context.Context, key, fingerprint string) (*models.Payment, error) {
	record, err := s.idempotency.Lookup(ctx, key)
	if stderrors.Is(err, redis.ErrRecordNotFound) {
		return nil, pkgerrors.ErrRequestInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	if record.Fingerprint != fingerprint {
		slog.Warn("idempotency key reused with a different request", "method", "CreatePayment", "key", key)
		return nil, pkgerrors.ErrIdempotencyKeyReused
	}
	if record.Pending() {
		return nil, pkgerrors.ErrRequestInProgress
	}

	slog.Info("replaying idempotent payment", "method", "CreatePayment", "payment_id", record.PaymentID)
	return s.payments.GetByID(ctx, record.PaymentID)
}

func (s *ledgerService) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *ledgerService) GetStatement(ctx context.Context, q models.StatementQuery) ([]models.Payment, error) {
	return s.statements.GetStatement(ctx, q)
}

// GetBalance reads at read-committed level; no lock is taken.
func (s *ledgerService) GetBalance(ctx context.Context, accountID, gameID int64) (decimal.Decimal, error) {
	account, err := s.registry.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if account.GameID != gameID {
		return decimal.Zero, pkgerrors.ErrAccountNotInGame
	}
	return ComputeBalance(ctx, s.payments, account)
}

func (s *ledgerService) GetBalanceByUser(ctx context.Context, key models.AccountKey) (*models.Account, decimal.Decimal, error) {
	account, err := s.registry.ResolveAccount(ctx, key)
	if err != nil {
		return nil, decimal.Zero, err
	}
	balance, err := ComputeBalance(ctx, s.payments, account)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return account, balance, nil
}

func (s *ledgerService) ResolveAccount(ctx context.Context, key models.AccountKey) (*models.Account, error) {
	return s.registry.ResolveAccount(ctx, key)
}
