package testutil

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportsTopic is the topic created in test Kafka containers
const ReportsTopic = "clob-reports"

// DockerContainer represents a Docker container used for testing
type DockerContainer struct {
	ID        string
	Name      string
	Type      string
	HostPort  string
	StartedAt time.Time

	linked []string
}

// Addr returns the host address of the container's published port
func (c *DockerContainer) Addr() string {
	return "localhost:" + c.HostPort
}

func dockerRun(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", append([]string{"run", "--rm", "-d"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("docker run: %w, output: %s", err, output)
	}
	return strings.TrimSpace(string(output)), nil
}

func removeContainer(ctx context.Context, id string) error {
	output, err := exec.CommandContext(ctx, "docker", "rm", "-f", id).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to remove container %s: %w, output: %s", id, err, output)
	}
	return nil
}

// StartRedisContainer starts a Redis container on host port 6380 and waits until it answers PING
func StartRedisContainer(ctx context.Context) (*DockerContainer, error) {
	name := fmt.Sprintf("clobreplay-redis-test-%d", time.Now().UnixNano())
	hostPort := "6380"

	id, err := dockerRun(ctx, "--name", name, "-p", hostPort+":6379", "redis:alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}
	container := &DockerContainer{
		ID:        id,
		Name:      name,
		Type:      "redis",
		HostPort:  hostPort,
		StartedAt: time.Now(),
	}

	client := redis.NewClient(&redis.Options{Addr: container.Addr()})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := client.Ping(pingCtx).Err(); err == nil {
			return container, nil
		}
		select {
		case <-pingCtx.Done():
			_ = container.Stop(context.Background())
			return nil, fmt.Errorf("timed out waiting for Redis to be ready")
		case <-ticker.C:
		}
	}
}

// StartKafkaContainer starts Zookeeper and Kafka and waits until the reports topic can be created
func StartKafkaContainer(ctx context.Context) (*DockerContainer, error) {
	stamp := time.Now().UnixNano()
	name := fmt.Sprintf("clobreplay-kafka-test-%d", stamp)
	zookeeper := fmt.Sprintf("clobreplay-zookeeper-test-%d", stamp)
	hostPort := "9092"

	zookeeperID, err := dockerRun(ctx, "--name", zookeeper,
		"-e", "ZOOKEEPER_CLIENT_PORT=2181",
		"confluentinc/cp-zookeeper:latest")
	if err != nil {
		return nil, fmt.Errorf("failed to start Zookeeper container: %w", err)
	}

	id, err := dockerRun(ctx, "--name", name,
		"--link", zookeeper+":zookeeper",
		"-p", hostPort+":9092",
		"-e", "KAFKA_ZOOKEEPER_CONNECT=zookeeper:2181",
		"-e", "KAFKA_ADVERTISED_LISTENERS=PLAINTEXT://localhost:"+hostPort,
		"-e", "KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR=1",
		"confluentinc/cp-kafka:latest")
	if err != nil {
		_ = removeContainer(context.Background(), zookeeperID)
		return nil, fmt.Errorf("failed to start Kafka container: %w", err)
	}

	container := &DockerContainer{
		ID:        id,
		Name:      name,
		Type:      "kafka",
		HostPort:  hostPort,
		StartedAt: time.Now(),
		linked:    []string{zookeeperID},
	}

	for i := 0; i < 40; i++ {
		if ctx.Err() != nil {
			_ = container.Stop(context.Background())
			return nil, ctx.Err()
		}
		create := exec.CommandContext(ctx, "docker", "exec", name,
			"kafka-topics", "--create",
			"--bootstrap-server", "localhost:9092",
			"--replication-factor", "1",
			"--partitions", "1",
			"--topic", ReportsTopic,
		)
		if err := create.Run(); err == nil {
			return container, nil
		}
		time.Sleep(time.Second)
	}

	_ = container.Stop(context.Background())
	return nil, fmt.Errorf("timed out waiting for Kafka to be ready")
}

// Stop removes the container and anything started alongside it
func (c *DockerContainer) Stop(ctx context.Context) error {
	err := removeContainer(ctx, c.ID)
	for _, id := range c.linked {
		_ = removeContainer(ctx, id)
	}
	return err
}

// WithRedisOnly starts Redis, runs testFunc with its address and stops the container on cleanup.
// The test is skipped when Docker is unavailable.
func WithRedisOnly(t testing.TB, testFunc func(redisAddr string)) {
	t.Helper()

	container, err := StartRedisContainer(context.Background())
	if err != nil {
		t.Skip("Skipping test: could not start Redis container:", err)
		return
	}
	t.Cleanup(func() { _ = container.Stop(context.Background()) })

	testFunc(container.Addr())
}

// WithKafkaOnly starts Kafka, runs testFunc with its address and stops the containers on cleanup
func WithKafkaOnly(t testing.TB, testFunc func(kafkaAddr string)) {
	t.Helper()

	container, err := StartKafkaContainer(context.Background())
	if err != nil {
		t.Skip("Skipping test: could not start Kafka container:", err)
		return
	}
	t.Cleanup(func() { _ = container.Stop(context.Background()) })

	testFunc(container.Addr())
}

// WithTestDependencies starts Redis and Kafka for the duration of the test
func WithTestDependencies(t testing.TB, testFunc func(redisAddr, kafkaAddr string)) {
	t.Helper()

	WithRedisOnly(t, func(redisAddr string) {
		WithKafkaOnly(t, func(kafkaAddr string) {
			t.Logf("Redis available at: %s, Kafka available at: %s", redisAddr, kafkaAddr)
			testFunc(redisAddr, kafkaAddr)
		})
	})
}

// DependencyType specifies which dependencies are needed for a test
type DependencyType int

const (
	// NoDependencies indicates that no external dependencies are needed
	NoDependencies DependencyType = iota
	// RedisOnly indicates that only Redis is needed
	RedisOnly
	// KafkaOnly indicates that only Kafka is needed
	KafkaOnly
	// RedisAndKafka indicates that both Redis and Kafka are needed
	RedisAndKafka
)

// WithDependencies runs a test with the specified dependencies.
// testFunc must be func(), func(string) or func(string, string) to match depType.
func WithDependencies(t testing.TB, depType DependencyType, testFunc interface{}) {
	t.Helper()

	switch depType {
	case NoDependencies:
		tf, ok := testFunc.(func())
		if !ok {
			t.Errorf("Invalid function type for NoDependencies: expected func(), got %T", testFunc)
			return
		}
		tf()

	case RedisOnly:
		tf, ok := testFunc.(func(redisAddr string))
		if !ok {
			t.Errorf("Invalid function type for RedisOnly: expected func(string), got %T", testFunc)
			return
		}
		WithRedisOnly(t, tf)

	case KafkaOnly:
		tf, ok := testFunc.(func(kafkaAddr string))
		if !ok {
			t.Errorf("Invalid function type for KafkaOnly: expected func(string), got %T", testFunc)
			return
		}
		WithKafkaOnly(t, tf)

	case RedisAndKafka:
		tf, ok := testFunc.(func(redisAddr, kafkaAddr string))
		if !ok {
			t.Errorf("Invalid function type for RedisAndKafka: expected func(string, string), got %T", testFunc)
			return
		}
		WithTestDependencies(t, tf)

	default:
		t.Errorf("Unknown dependency type: %v", depType)
	}
}
