package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/nikolaydubina/fpdecimal"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeReader struct {
	messages chan kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-r.messages:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) Close() error {
	return nil
}

func sampleReport() *messaging.ReportMessage {
	return messaging.NewReportMessage("daily", &core.Snapshot{
		Instrument: "2211",
		Index:      9,
		Sells:      []core.Level{{Side: core.Sell, Price: fpdecimal.FromInt(11), Quantity: 4}},
		Buys:       []core.Level{},
		CashFlow:   fpdecimal.Zero,
	})
}

func TestNewKafkaMessageSenderValidates(t *testing.T) {
	_, err := NewKafkaMessageSender("", "reports")
	assert.Error(t, err)

	sender, err := NewKafkaMessageSender("localhost:9092", "reports")
	require.NoError(t, err)
	assert.Equal(t, "reports", sender.Topic())
}

func TestKafkaMessageSender_SendReport(t *testing.T) {
	writer := &fakeWriter{}
	sender := &KafkaMessageSender{writer: writer, topic: "reports"}

	report := sampleReport()
	require.NoError(t, sender.SendReport(context.Background(), report))

	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte("daily:2211"), writer.messages[0].Key)

	var decoded messaging.ReportMessage
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, report.Instrument, decoded.Instrument)
	assert.Equal(t, report.Index, decoded.Index)
	assert.Equal(t, report.Sells, decoded.Sells)

	writer.err = errors.New("leader not available")
	assert.Error(t, sender.SendReport(context.Background(), report))

	require.NoError(t, sender.Close())
	assert.True(t, writer.closed)
}

func TestReportConsumer_Consume(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 2)}
	consumer := &ReportConsumer{reader: reader}

	data, err := json.Marshal(sampleReport())
	require.NoError(t, err)
	reader.messages <- kafka.Message{Value: []byte("not json")}
	reader.messages <- kafka.Message{Value: data}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *messaging.ReportMessage, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- consumer.Consume(ctx, func(msg *messaging.ReportMessage) error {
			received <- msg
			cancel()
			return nil
		})
	}()

	msg := <-received
	assert.Equal(t, "2211", msg.Instrument)
	assert.NoError(t, <-errCh)
}

func TestReportConsumer_HandlerError(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 1)}
	consumer := &ReportConsumer{reader: reader}

	data, err := json.Marshal(sampleReport())
	require.NoError(t, err)
	reader.messages <- kafka.Message{Value: data}

	boom := errors.New("boom")
	err = consumer.Consume(context.Background(), func(*messaging.ReportMessage) error { return boom })
	assert.ErrorIs(t, err, boom)
}
