package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafka.Reader the consumer uses
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// ReportConsumer reads report messages from a topic
type ReportConsumer struct {
	reader messageReader
}

// NewReportConsumer creates a consumer in the given consumer group
func NewReportConsumer(brokerAddr, topic, groupID string) (*ReportConsumer, error) {
	if brokerAddr == "" || topic == "" {
		return nil, fmt.Errorf("kafka broker address and topic are required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &ReportConsumer{reader: reader}, nil
}

// Consume calls handler for every report until ctx is done. Undecodable messages are skipped.
func (c *ReportConsumer) Consume(ctx context.Context, handler func(*messaging.ReportMessage) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to read message: %w", err)
		}

		var report messaging.ReportMessage
		if err := json.Unmarshal(msg.Value, &report); err != nil {
			continue
		}
		if err := handler(&report); err != nil {
			return err
		}
	}
}

// Close closes the reader
func (c *ReportConsumer) Close() error {
	return c.reader.Close()
}

// SetupConsumer starts a consumer that logs every report it receives
func SetupConsumer(ctx context.Context, logger zerolog.Logger, brokerAddr, topic, groupID string) (*ReportConsumer, error) {
	consumer, err := NewReportConsumer(brokerAddr, topic, groupID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
		return nil, err
	}

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		err := consumer.Consume(ctx, func(msg *messaging.ReportMessage) error {
			logger.Info().
				Str("log", msg.Log).
				Str("instrument", msg.Instrument).
				Int64("index", msg.Index).
				Int("sell_levels", len(msg.Sells)).
				Int("buy_levels", len(msg.Buys)).
				Int64("matched", msg.Matched).
				Str("cash_flow", msg.CashFlow).
				Msg("Received report")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return consumer, nil
}
