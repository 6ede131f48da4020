package integration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erain9/clobreplay/pkg/db/queue"
	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/erain9/clobreplay/pkg/messaging/kafka"
	"github.com/erain9/clobreplay/pkg/server"
	"github.com/erain9/clobreplay/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStop = errors.New("stop consuming")

func TestIntegration_PublishWithKafkaGo(t *testing.T) {
	testutil.SkipIfKafkaUnavailable(t, kafkaAddr())

	sender, err := kafka.NewKafkaMessageSender(kafkaAddr(), testutil.ReportsTopic)
	require.NoError(t, err)
	defer sender.Close()

	h := setupIntegration(t, sender)

	consumer, err := kafka.NewReportConsumer(kafkaAddr(), testutil.ReportsTopic, fmt.Sprintf("itest-%d", time.Now().UnixNano()))
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = h.client.Query(ctx, &server.QueryRequest{Log: "daily", Instrument: "2211", Index: 4})
	require.NoError(t, err)

	received := make(chan *messaging.ReportMessage, 1)
	go func() {
		_ = consumer.Consume(ctx, func(msg *messaging.ReportMessage) error {
			if msg.Log == "daily" && msg.Instrument == "2211" && msg.Index == 4 {
				received <- msg
				return errStop
			}
			return nil
		})
	}()

	select {
	case msg := <-received:
		assert.Len(t, msg.Buys, 1)
		assert.Len(t, msg.Sells, 1)
	case <-ctx.Done():
		t.Fatal("report was not consumed in time")
	}
}

func TestIntegration_PublishWithSaramaPool(t *testing.T) {
	testutil.SkipIfKafkaUnavailable(t, kafkaAddr())

	pool, err := queue.NewSaramaSenderPool(2, []string{kafkaAddr()}, testutil.ReportsTopic)
	require.NoError(t, err)
	defer pool.Close()

	consumer, err := queue.NewQueueMessageConsumer([]string{kafkaAddr()}, testutil.ReportsTopic)
	require.NoError(t, err)
	defer consumer.Close()

	received := make(chan *messaging.ReportMessage, 1)
	go func() {
		_ = consumer.ConsumeReports(func(msg *messaging.ReportMessage) error {
			if msg.Instrument == "1131" && msg.Index == 2 {
				received <- msg
			}
			return nil
		})
	}()
	// The consumer starts at the newest offset; give it time to attach
	time.Sleep(time.Second)

	h := setupIntegration(t, pool)
	_, err = h.client.Query(context.Background(), &server.QueryRequest{Log: "daily", Instrument: "1131", Index: 2})
	require.NoError(t, err)

	select {
	case msg := <-received:
		assert.Equal(t, "daily", msg.Log)
		assert.Equal(t, int64(60), msg.Matched)
	case <-time.After(30 * time.Second):
		t.Fatal("report was not consumed in time")
	}
}
