package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const (
	// RequestIDKey is the key used to store request IDs in context
	RequestIDKey contextKey = "request_id"
)

// Config defines logging configuration
type Config struct {
	// Level is the logging level (debug, info, warn, error)
	Level string
	// Pretty determines if logs should be formatted for human readability
	Pretty bool
	// Output is where logs are written (defaults to os.Stdout)
	Output io.Writer
	// File, when set, also writes JSON logs to a rotated file
	File FileConfig
}

// FileConfig controls log file rotation
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stdout,
	}
}

// Setup configures global logging based on the provided config
func Setup(cfg Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Configure output
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Set up pretty logging if enabled
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	// The file always gets JSON, whatever the console format
	if cfg.File.Path != "" {
		output = zerolog.MultiLevelWriter(output, newRotatingFile(cfg.File))
	}

	// Set global logger
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

func newRotatingFile(cfg FileConfig) io.Writer {
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// FromContext extracts a logger with request context
func FromContext(ctx context.Context) zerolog.Logger {
	// Extract request ID if present
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return log.With().Str("request_id", requestID).Logger()
	}

	// Extract metadata from gRPC context
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		// Add metadata fields to logger
		logCtx := log.With()
		for k, v := range md {
			if len(v) > 0 {
				logCtx = logCtx.Str(k, v[0])
			}
		}
		return logCtx.Logger()
	}

	return log.Logger
}

// requestLogger tags the global logger with the method and, when the caller sent one,
// the x-request-id header. The id is also stored in the returned context.
func requestLogger(ctx context.Context, method string) (context.Context, zerolog.Logger) {
	logger := log.With().Str("grpc.method", method).Logger()
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if requestIDs := md.Get("x-request-id"); len(requestIDs) > 0 {
			logger = logger.With().Str("request_id", requestIDs[0]).Logger()
			ctx = context.WithValue(ctx, RequestIDKey, requestIDs[0])
		}
	}
	return ctx, logger
}

// callerFault lists the codes produced by bad input rather than by the server
var callerFault = map[codes.Code]bool{
	codes.InvalidArgument: true,
	codes.NotFound:        true,
	codes.Canceled:        true,
}

func logCompletion(logger zerolog.Logger, err error, start time.Time, what string) {
	duration := time.Since(start)

	code := codes.OK
	if err != nil {
		code = codes.Unknown
		if st, ok := status.FromError(err); ok {
			code = st.Code()
		}
	}

	var event *zerolog.Event
	switch {
	case code == codes.OK:
		event = logger.Info()
	case callerFault[code]:
		event = logger.Warn().Err(err).Str("grpc.code", code.String())
	default:
		event = logger.Error().Err(err).Str("grpc.code", code.String())
	}

	event.Dur("duration", duration).
		Int("grpc.status", int(code)).
		Msg(fmt.Sprintf("%s completed in %v", what, duration))
}

// UnaryServerInterceptor returns a gRPC interceptor for request logging
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		ctx, logger := requestLogger(ctx, info.FullMethod)
		logger.Debug().Msg("Request received")

		resp, err := handler(ctx, req)
		logCompletion(logger, err, start, "Request")
		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC interceptor for streaming request logging
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		ctx, logger := requestLogger(stream.Context(), info.FullMethod)
		logger = logger.With().Bool("grpc.stream", true).Logger()
		logger.Debug().Msg("Stream started")

		err := handler(srv, &wrappedServerStream{ServerStream: stream, ctx: ctx})
		logCompletion(logger, err, start, "Stream")
		return err
	}
}

// wrappedServerStream carries the request-scoped context into stream handlers
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
