package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"github.com/honeynil/game-payment-ledger/internal/infrastructure/observability"
)

const eventTypeHeader = "event_type"

// PaymentPublisher announces committed payments to downstream services.
type PaymentPublisher interface {
	PublishPaymentCommitted(ctx context.Context, event PaymentCommitted) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentWriter writes payment events to a single topic. Messages are keyed by
// game id, so the payments of one game keep their commit order in a partition.
type PaymentWriter struct {
	writer messageWriter
	topic  string
}

func NewPaymentWriter(brokers []string, topic string) *PaymentWriter {
	return &PaymentWriter{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

func (w *PaymentWriter) PublishPaymentCommitted(ctx context.Context, event PaymentCommitted) error {
	value, err := json.Marshal(event)
	if err != nil {
		observability.EventsPublished.WithLabelValues(w.topic, "error").Inc()
		return fmt.Errorf("encode payment %d event: %w", event.PaymentID, err)
	}

	err = w.writer.WriteMessages(ctx, kafka.Message{
		Key:     strconv.AppendInt(nil, event.GameID, 10),
		Value:   value,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(PaymentCommittedType)}},
	})
	if err != nil {
		observability.EventsPublished.WithLabelValues(w.topic, "error").Inc()
		return fmt.Errorf("write payment %d event to %s: %w", event.PaymentID, w.topic, err)
	}
	observability.EventsPublished.WithLabelValues(w.topic, "success").Inc()
	return nil
}

func (w *PaymentWriter) Close() error {
	return w.writer.Close()
}
