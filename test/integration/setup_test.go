package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	redisbackend "github.com/erain9/clobreplay/pkg/backend/redis"
	"github.com/erain9/clobreplay/pkg/feed"
	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/erain9/clobreplay/pkg/server"
	"github.com/erain9/clobreplay/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

const scenarioCSV = `ID,Ticker,Type,Side,Price,Volume
0,1131,L,Sell,10.0,50
1,1131,L,Sell,9.5,30
2,1131,M,Buy,-1,60
3,2211,L,Buy,10.0,20
4,2211,L,Sell,10.5,5
`

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// redisAddr and kafkaAddr point at the services from docker-compose unless overridden
func redisAddr() string { return envOr("CLOB_TEST_REDIS_ADDR", "localhost:6379") }
func kafkaAddr() string { return envOr("CLOB_TEST_KAFKA_ADDR", "localhost:9092") }

func scenarioLog(tb testing.TB) *feed.Log {
	tb.Helper()
	log, err := feed.ReadCSV(strings.NewReader(scenarioCSV))
	require.NoError(tb, err)
	return log
}

type harness struct {
	client *server.SnapshotServiceClient
	cache  *redisbackend.ReportCache
	redis  *redis.Client
}

// setupIntegration serves the scenario log over an in-memory gRPC listener with a real
// Redis report cache and the given sender
func setupIntegration(t *testing.T, sender messaging.MessageSender) *harness {
	t.Helper()
	testutil.SkipIfRedisUnavailable(t, redisAddr())

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr(), DB: 14})
	require.NoError(t, rdb.FlushDB(context.Background()).Err())

	prefix := fmt.Sprintf("itest-%d", time.Now().UnixNano())
	cache := redisbackend.NewReportCache(rdb, prefix, time.Minute, zap.NewNop())

	manager := server.NewLogManager()
	_, err := manager.Register(context.Background(), "daily", scenarioLog(t))
	require.NoError(t, err)

	opts := []server.QueryOption{server.WithCache(cache)}
	if sender != nil {
		opts = append(opts, server.WithSender(sender))
	}
	query := server.NewQueryService(manager, opts...)

	lis := bufconn.Listen(bufSize)
	grpcServer := server.NewGRPCServer(server.NewGRPCSnapshotService(query))
	go func() {
		_ = grpcServer.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		grpcServer.Stop()
		_ = lis.Close()
		_ = rdb.Close()
	})

	return &harness{
		client: server.NewSnapshotServiceClient(conn),
		cache:  cache,
		redis:  rdb,
	}
}
