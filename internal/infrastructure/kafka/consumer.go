package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/segmentio/kafka-go"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/observability"
	"github.com/honeynil/game-payment-ledger/internal/models"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

type AccountResolver interface {
	ResolveAccount(ctx context.Context, key models.AccountKey) (*models.Account, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer opens ledger accounts for participants announced by the game service.
type Consumer struct {
	reader   messageReader
	resolver AccountResolver
	retry    retrypolicy.RetryPolicy[any]
}

func NewConsumer(brokers []string, topic, groupID string, resolver AccountResolver) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		resolver: resolver,
		retry:    newHandleRetryPolicy(5, 100*time.Millisecond, 5*time.Second),
	}
}

func newHandleRetryPolicy(maxRetries int, base, max time.Duration) retrypolicy.RetryPolicy[any] {
	return retrypolicy.NewBuilder[any]().
		WithBackoff(base, max).
		WithMaxRetries(maxRetries).
		WithJitterFactor(0.1).
		Build()
}

// Consume blocks until ctx is done. Offsets are committed after the account
// exists, so a crash replays the event and ResolveAccount returns the same row.
// An event that keeps failing is dropped after the retry budget and counted in
// ledger_events_consumed_total{status="dropped"}.
func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("participant consumer stopped")
				return
			}
			slog.Error("failed to read Kafka message", "error", err)
			continue
		}

		err = failsafe.With[any](c.retry).WithContext(ctx).Run(func() error {
			return c.handle(ctx, msg)
		})
		status := observability.ConsumeHandled
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			status = observability.ConsumeDropped
			slog.Error("dropping participant event after retries", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
		observability.EventsConsumed.WithLabelValues(msg.Topic, status).Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			slog.Error("failed to commit Kafka offset", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// handle returns an error only for failures worth redelivering.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var event ParticipantJoined
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.Error("failed to unmarshal participant event", "offset", msg.Offset, "error", err)
		return nil
	}
	if event.GameID == 0 || event.UserID == 0 {
		slog.Error("invalid participant event: missing game_id or user_id", "offset", msg.Offset)
		return nil
	}

	accountType := models.AccountType(event.AccountType)
	if accountType == "" {
		accountType = models.AccountTypeGameBalance
	}

	account, err := c.resolver.ResolveAccount(ctx, models.AccountKey{UserID: event.UserID, GameID: event.GameID, Type: accountType})
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrInvalidInput) || stderrors.Is(err, pkgerrors.ErrNotFound) {
			slog.Warn("skipping participant event", "game_id", event.GameID, "user_id", event.UserID, "error", err)
			return nil
		}
		return err
	}

	slog.Info("participant account ready", "game_id", event.GameID, "user_id", event.UserID, "account_id", account.ID)
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
