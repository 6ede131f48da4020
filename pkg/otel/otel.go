package otel

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ServiceQuery  = "query-service"
	ServiceReplay = "replay-engine"
)

var (
	queryServiceTracer   trace.Tracer
	replayEngineTracer   trace.Tracer
	queryResource        *sdkresource.Resource
	replayResource       *sdkresource.Resource
	queryTracerProvider  *sdktrace.TracerProvider
	replayTracerProvider *sdktrace.TracerProvider
	meterProvider        *sdkmetric.MeterProvider
	providersLock        sync.RWMutex
)

// Config holds the OpenTelemetry configuration
type Config struct {
	ServiceName      string
	ServiceVersion   string
	Endpoint         string
	ConnectTimeout   time.Duration
	ReconnectDelay   time.Duration
	CollectorEnabled bool
}

// Init initializes OpenTelemetry with the given configuration
func Init(cfg Config) (func(), error) {
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = "0.1.0"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 10 * time.Second
	}

	var cleanup []func()

	providersLock.Lock()
	defer providersLock.Unlock()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = ServiceQuery
	}
	queryResource = initResource(serviceName, cfg.ServiceVersion)
	replayResource = initResource(ServiceReplay, cfg.ServiceVersion)

	if cfg.CollectorEnabled {
		queryTP, err := initTracerProvider(cfg, queryResource)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize query service tracer provider")
		} else {
			queryTracerProvider = queryTP
			cleanup = append(cleanup, shutdownFunc("query tracer provider", cfg.ConnectTimeout, queryTP.Shutdown))
		}

		replayTP, err := initTracerProvider(cfg, replayResource)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize replay engine tracer provider")
		} else {
			replayTracerProvider = replayTP
			cleanup = append(cleanup, shutdownFunc("replay tracer provider", cfg.ConnectTimeout, replayTP.Shutdown))
		}
	}

	// One meter provider is shared by both services
	if cfg.CollectorEnabled {
		mp, err := initMeterProvider(cfg, queryResource)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize meter provider, continuing without metrics")
		} else {
			meterProvider = mp
			cleanup = append(cleanup, shutdownFunc("meter provider", cfg.ConnectTimeout, mp.Shutdown))
		}
	}

	if queryTracerProvider != nil {
		queryServiceTracer = queryTracerProvider.Tracer(serviceName)
	}
	if replayTracerProvider != nil {
		replayEngineTracer = replayTracerProvider.Tracer(ServiceReplay)
	}

	// Return cleanup function that executes all cleanup functions
	return func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}

func shutdownFunc(name string, timeout time.Duration, shutdown func(context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Error().Err(err).Str("component", name).Msg("Error shutting down")
		}
	}
}

func initResource(serviceName, serviceVersion string) *sdkresource.Resource {
	extraResources, err := sdkresource.New(
		context.Background(),
		sdkresource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
		sdkresource.WithOS(),
		sdkresource.WithProcess(),
		sdkresource.WithContainer(),
		sdkresource.WithHost(),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create resource")
		return sdkresource.Default()
	}

	resource, err := sdkresource.Merge(
		sdkresource.Default(),
		extraResources,
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to merge resources")
		return sdkresource.Default()
	}

	return resource
}

func initTracerProvider(cfg Config, resource *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	// Create gRPC connection to collector
	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithTimeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, err
	}

	// Create exporter
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithGRPCConn(conn),
	)
	if err != nil {
		return nil, err
	}

	// Create tracer provider with the specific resource
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(1),
		)),
	)

	// Set the text map propagator (this is shared between services)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	// Set the tracer provider
	otel.SetTracerProvider(tp)

	return tp, nil
}

func initMeterProvider(cfg Config, resource *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	ctx := context.Background()

	// Create gRPC connection to collector
	conn, err := grpc.DialContext(ctx, cfg.Endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithTimeout(cfg.ConnectTimeout),
	)
	if err != nil {
		return nil, err
	}

	// Create exporter
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithGRPCConn(conn),
	)
	if err != nil {
		return nil, err
	}

	// Create meter provider
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(5*time.Second))),
		sdkmetric.WithResource(resource),
	)

	// Set global meter provider
	otel.SetMeterProvider(mp)

	return mp, nil
}

// GetQueryServiceTracer returns the tracer for the query service
func GetQueryServiceTracer() trace.Tracer {
	providersLock.RLock()
	defer providersLock.RUnlock()
	return queryServiceTracer
}

// GetReplayEngineTracer returns the tracer for the replay engine
func GetReplayEngineTracer() trace.Tracer {
	providersLock.RLock()
	defer providersLock.RUnlock()
	return replayEngineTracer
}

// GetTracerProvider returns the appropriate tracer provider based on the service name
func GetTracerProvider(serviceName string) trace.TracerProvider {
	providersLock.RLock()
	defer providersLock.RUnlock()

	switch serviceName {
	case ServiceReplay:
		if replayTracerProvider != nil {
			return replayTracerProvider
		}
	default:
		if queryTracerProvider != nil {
			return queryTracerProvider
		}
	}
	return otel.GetTracerProvider()
}

// GetTextMapPropagator returns the configured propagator
func GetTextMapPropagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// GetMeterProvider returns the configured meter provider, or the global one before Init
func GetMeterProvider() metric.MeterProvider {
	providersLock.RLock()
	defer providersLock.RUnlock()
	if meterProvider == nil {
		return otel.GetMeterProvider()
	}
	return meterProvider
}

// ResetForTesting resets the global variables for testing
func ResetForTesting() {
	providersLock.Lock()
	defer providersLock.Unlock()
	queryServiceTracer = nil
	replayEngineTracer = nil
	queryTracerProvider = nil
	replayTracerProvider = nil
}

// InitForTesting installs one tracer for both services
func InitForTesting(tracer trace.Tracer) error {
	providersLock.Lock()
	defer providersLock.Unlock()
	queryServiceTracer = tracer
	replayEngineTracer = tracer
	return nil
}
