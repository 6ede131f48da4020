package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/clobreplay/config"
	redisbackend "github.com/erain9/clobreplay/pkg/backend/redis"
	"github.com/erain9/clobreplay/pkg/db/queue"
	"github.com/erain9/clobreplay/pkg/logging"
	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/erain9/clobreplay/pkg/messaging/kafka"
	"github.com/erain9/clobreplay/pkg/otel"
	"github.com/erain9/clobreplay/pkg/replay"
	"github.com/erain9/clobreplay/pkg/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stdout,
		File:   logging.FileConfig{Path: cfg.Server.LogFile},
	})
	logger := log.Logger

	ctx, stop := signal.NotifyContext(logger.WithContext(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize OpenTelemetry
	if cfg.Otel.Enabled {
		cleanup, err := otel.Init(otel.Config{
			ServiceName:      cfg.Otel.ServiceName,
			Endpoint:         cfg.Otel.Endpoint,
			CollectorEnabled: true,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize OpenTelemetry")
		}
		defer cleanup()
		if err := otel.StartRuntimeMetrics(otel.DefaultRuntimeInterval); err != nil {
			logger.Warn().Err(err).Msg("Runtime metrics disabled")
		}
	}

	manager, err := loadLogs(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load order logs")
	}
	defer manager.Close()

	opts, closers := queryOptions(ctx, cfg)
	defer func() {
		for _, closeFn := range closers {
			closeFn()
		}
	}()
	query := server.NewQueryService(manager, opts...)

	grpcServer, err := setupGRPCServer(ctx, cfg, query)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to setup gRPC server")
	}

	httpServer := setupHTTPServer(ctx, cfg, query)

	<-ctx.Done()
	logger.Info().Msg("Received signal, shutting down")

	// Graceful shutdown
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logger.Info().Msg("Servers shutdown complete")
}

// loadLogs registers every configured order log with a manager
func loadLogs(ctx context.Context, cfg *config.Config) (*server.LogManager, error) {
	logger := zerolog.Ctx(ctx)

	manager := server.NewLogManager(
		replay.WithParallelism(cfg.Replay.Parallelism),
		replay.WithCheckInterval(cfg.Replay.CheckInterval),
	)
	for _, source := range cfg.Feed.Logs {
		info, err := manager.Load(ctx, source.Name, source.Format, source.Path)
		if err != nil {
			manager.Close()
			return nil, fmt.Errorf("log %s: %w", source.Name, err)
		}
		server.LogSummary(*logger, info)
	}
	if len(cfg.Feed.Logs) == 0 {
		logger.Warn().Msg("No order logs configured; queries will return NotFound")
	}
	return manager, nil
}

// queryOptions wires the optional report cache and report publisher. A backend that cannot be
// reached is logged and skipped; the service answers every query by replay alone.
func queryOptions(ctx context.Context, cfg *config.Config) ([]server.QueryOption, []func()) {
	logger := zerolog.Ctx(ctx)

	var (
		opts    []server.QueryOption
		closers []func()
	)

	if cfg.Redis.Enabled {
		redisbackend.SetDefaultRedisOptions(&redisbackend.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		zapLogger, err := zap.NewProduction()
		if err != nil {
			zapLogger = zap.NewNop()
		}
		cache := redisbackend.NewReportCache(redisbackend.GetRedisClient(), cfg.Redis.Prefix, cfg.Redis.TTL, zapLogger)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err = cache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable - continuing without report cache")
			_ = cache.Close()
		} else {
			logger.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TTL).Msg("Report cache enabled")
			opts = append(opts, server.WithCache(cache))
			closers = append(closers, func() {
				_ = cache.Close()
				_ = zapLogger.Sync()
			})
		}
	}

	if cfg.Kafka.Enabled {
		sender, err := newSender(cfg)
		if err != nil {
			logger.Warn().Err(err).Str("driver", cfg.Kafka.Driver).Msg("Kafka unavailable - continuing without report publishing")
		} else {
			logger.Info().
				Str("driver", cfg.Kafka.Driver).
				Str("topic", cfg.Kafka.Topic).
				Msg("Report publishing enabled")
			opts = append(opts, server.WithSender(sender))
			closers = append(closers, func() { _ = sender.Close() })
		}
	}

	return opts, closers
}

func newSender(cfg *config.Config) (messaging.MessageSender, error) {
	switch cfg.Kafka.Driver {
	case config.DriverSarama:
		return queue.NewSaramaSenderPool(cfg.Kafka.PoolSize, cfg.Brokers(), cfg.Kafka.Topic)
	case config.DriverKafkaGo, "":
		return kafka.NewKafkaMessageSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
	default:
		return nil, errors.New("unknown kafka driver: " + cfg.Kafka.Driver)
	}
}

// setupGRPCServer initializes and starts a gRPC server
func setupGRPCServer(ctx context.Context, cfg *config.Config, query *server.QueryService) (*grpc.Server, error) {
	logger := zerolog.Ctx(ctx)

	grpcAddr := cfg.Server.GRPCAddr
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := server.NewGRPCServer(server.NewGRPCSnapshotService(query))

	go func() {
		logger.Info().Str("addr", grpcAddr).Msg("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("Failed to serve gRPC")
		}
	}()
	return grpcServer, nil
}

// setupHTTPServer initializes and starts the REST server
func setupHTTPServer(ctx context.Context, cfg *config.Config, query *server.QueryService) *http.Server {
	logger := zerolog.Ctx(ctx)

	httpAddr := cfg.Server.HTTPAddr
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           server.NewHTTPHandler(query),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpAddr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	return httpServer
}
