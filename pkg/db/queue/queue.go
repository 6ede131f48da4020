package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/clobreplay/pkg/messaging"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	maxRetry = 5
)

// newSyncProducer and newConsumer are replaced in tests
var (
	newSyncProducer = sarama.NewSyncProducer
	newConsumer     = sarama.NewConsumer
)

func producerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = maxRetry
	config.Producer.RequiredAcks = sarama.WaitForLocal
	return config
}

// QueueMessageSender implements messaging.MessageSender on a sarama sync producer.
// Reports travel as protobuf-encoded structpb.Struct values.
type QueueMessageSender struct {
	mu       sync.Mutex
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender connects a producer to brokers
func NewQueueMessageSender(brokers []string, topic string) (*QueueMessageSender, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	producer, err := newSyncProducer(brokers, producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &QueueMessageSender{producer: producer, topic: topic}, nil
}

// SendReport sends the report to the Kafka queue
func (q *QueueMessageSender) SendReport(ctx context.Context, report *messaging.ReportMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	messageBytes, err := EncodeReport(report)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     q.topic,
		Key:       sarama.StringEncoder(report.Key()),
		Value:     sarama.ByteEncoder(messageBytes),
		Timestamp: report.GeneratedAt,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}
	return nil
}

// Close closes the producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

var _ messaging.MessageSender = (*QueueMessageSender)(nil)

// EncodeReport serialises a report as a protobuf Struct
func EncodeReport(report *messaging.ReportMessage) ([]byte, error) {
	value, err := structpb.NewStruct(map[string]interface{}{
		"log":         report.Log,
		"instrument":  report.Instrument,
		"index":       float64(report.Index),
		"sells":       levelsToList(report.Sells),
		"buys":        levelsToList(report.Buys),
		"matched":     float64(report.Matched),
		"cashFlow":    report.CashFlow,
		"generatedAt": report.GeneratedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build report struct: %w", err)
	}
	messageBytes, err := proto.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return messageBytes, nil
}

// DecodeReport is the inverse of EncodeReport
func DecodeReport(data []byte) (*messaging.ReportMessage, error) {
	var value structpb.Struct
	if err := proto.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	fields := value.GetFields()

	report := &messaging.ReportMessage{
		Log:        fields["log"].GetStringValue(),
		Instrument: fields["instrument"].GetStringValue(),
		Index:      int64(fields["index"].GetNumberValue()),
		Sells:      listToLevels(fields["sells"].GetListValue()),
		Buys:       listToLevels(fields["buys"].GetListValue()),
		Matched:    int64(fields["matched"].GetNumberValue()),
		CashFlow:   fields["cashFlow"].GetStringValue(),
	}
	if ts := fields["generatedAt"].GetStringValue(); ts != "" {
		generatedAt, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid report timestamp: %w", err)
		}
		report.GeneratedAt = generatedAt
	}
	return report, nil
}

func levelsToList(levels []messaging.LevelMessage) []interface{} {
	out := make([]interface{}, 0, len(levels))
	for _, level := range levels {
		out = append(out, map[string]interface{}{
			"price":    level.Price,
			"quantity": float64(level.Quantity),
		})
	}
	return out
}

func listToLevels(list *structpb.ListValue) []messaging.LevelMessage {
	out := make([]messaging.LevelMessage, 0, len(list.GetValues()))
	for _, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()
		out = append(out, messaging.LevelMessage{
			Price:    fields["price"].GetStringValue(),
			Quantity: int64(fields["quantity"].GetNumberValue()),
		})
	}
	return out
}

// QueueMessageConsumer reads reports from partition 0 of a topic
type QueueMessageConsumer struct {
	consumer sarama.Consumer
	topic    string
	done     chan struct{}
	once     sync.Once
}

// NewQueueMessageConsumer connects a consumer to brokers
func NewQueueMessageConsumer(brokers []string, topic string) (*QueueMessageConsumer, error) {
	consumer, err := newConsumer(brokers, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}
	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeReports calls handler for each decodable report until Close is called
func (c *QueueMessageConsumer) ConsumeReports(handler func(*messaging.ReportMessage) error) error {
	partitionConsumer, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to start partition consumer: %w", err)
	}
	defer partitionConsumer.Close()

	for {
		select {
		case msg, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			report, err := DecodeReport(msg.Value)
			if err != nil {
				continue
			}
			if err := handler(report); err != nil {
				return err
			}
		case consumerErr, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			return consumerErr.Err
		case <-c.done:
			return nil
		}
	}
}

// Close stops ConsumeReports and closes the consumer
func (c *QueueMessageConsumer) Close() error {
	c.once.Do(func() { close(c.done) })
	return c.consumer.Close()
}
