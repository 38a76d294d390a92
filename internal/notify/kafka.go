package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tradesignal/internal/models"
)

// Kafka publishes each signal keyed by symbol so one symbol stays on one
// partition.
type Kafka struct {
	Writer *kafka.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{Writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (k *Kafka) Notify(ctx context.Context, rec *models.SignalRecord) error {
	b, err := json.Marshal(NewPayload(rec))
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.Symbol),
		Value: b,
		Time:  rec.Timestamp.UTC(),
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", k.Writer.Topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	if k == nil || k.Writer == nil {
		return nil
	}
	return k.Writer.Close()
}
