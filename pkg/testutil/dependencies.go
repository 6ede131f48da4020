package testutil

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/erain9/clobreplay/pkg/messaging/kafka"
	"github.com/redis/go-redis/v9"
)

// dependencyTimeout bounds each availability check
const dependencyTimeout = 2 * time.Second

// RedisAvailable pings the Redis server at addr
func RedisAvailable(addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dependencyTimeout)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis not available at %s: %w", addr, err)
	}
	return nil
}

// KafkaAvailable checks that a broker listens at addr and that the reports topic can be
// consumed. Running out of time with no message is fine; any other read error is not.
func KafkaAvailable(addr, topic string) error {
	conn, err := net.DialTimeout("tcp", addr, dependencyTimeout)
	if err != nil {
		return fmt.Errorf("kafka not available at %s: %w", addr, err)
	}
	_ = conn.Close()

	consumer, err := kafka.NewReportConsumer(addr, topic, fmt.Sprintf("clob-availability-%d", time.Now().UnixNano()))
	if err != nil {
		return err
	}
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), dependencyTimeout)
	defer cancel()

	// Consume returns nil when ctx expires; an early report means the topic is live
	err = consumer.Consume(ctx, func(*messaging.ReportMessage) error {
		cancel()
		return nil
	})
	if err != nil {
		return fmt.Errorf("kafka at %s is not responding on %s: %w", addr, topic, err)
	}
	return nil
}

// SkipIfRedisUnavailable skips the test if Redis is unavailable on the specified address
func SkipIfRedisUnavailable(t testing.TB, redisAddr string) {
	t.Helper()
	if err := RedisAvailable(redisAddr); err != nil {
		t.Skipf("Skipping test: %v", err)
	}
}

// SkipIfKafkaUnavailable skips the test if Kafka cannot serve the reports topic
func SkipIfKafkaUnavailable(t testing.TB, kafkaAddr string) {
	t.Helper()
	if err := KafkaAvailable(kafkaAddr, ReportsTopic); err != nil {
		t.Skipf("Skipping test: %v", err)
	}
}

// SkipIfDependenciesUnavailable skips the test if either Redis or Kafka is unavailable
func SkipIfDependenciesUnavailable(t testing.TB, redisAddr, kafkaAddr string) {
	t.Helper()
	SkipIfRedisUnavailable(t, redisAddr)
	SkipIfKafkaUnavailable(t, kafkaAddr)
}
