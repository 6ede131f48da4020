package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const (
	instrumentationName = "github.com/erain9/clobreplay/pkg/otel"
)

var (
	grpcMetrics     *GRPCServerMetrics
	grpcMetricsErr  error
	grpcMetricsOnce sync.Once
)

// GRPCServerMetrics holds the metrics instruments for the snapshot service
type GRPCServerMetrics struct {
	// Latency metrics
	serverLatency metric.Float64Histogram

	// Traffic metrics
	requestsTotal    metric.Int64Counter
	requestsInFlight metric.Int64UpDownCounter

	// Error metrics
	errorTotal metric.Int64Counter
}

// NewGRPCServerMetrics creates a new GRPCServerMetrics instance
func NewGRPCServerMetrics(meter metric.Meter) (*GRPCServerMetrics, error) {
	serverLatency, err := meter.Float64Histogram(
		"grpc.server.duration",
		metric.WithDescription("Response latency (seconds) of gRPC server"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"grpc.server.requests.total",
		metric.WithDescription("Total number of gRPC requests started"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestsInFlight, err := meter.Int64UpDownCounter(
		"grpc.server.requests.in_flight",
		metric.WithDescription("Number of gRPC requests currently in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	errorTotal, err := meter.Int64Counter(
		"grpc.server.errors.total",
		metric.WithDescription("Total number of gRPC errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &GRPCServerMetrics{
		serverLatency:    serverLatency,
		requestsTotal:    requestsTotal,
		requestsInFlight: requestsInFlight,
		errorTotal:       errorTotal,
	}, nil
}

// GetGRPCServerMetrics returns the GRPCServerMetrics singleton built on the package meter
func GetGRPCServerMetrics() (*GRPCServerMetrics, error) {
	grpcMetricsOnce.Do(func() {
		grpcMetrics, grpcMetricsErr = NewGRPCServerMetrics(meter)
	})
	return grpcMetrics, grpcMetricsErr
}

// RecordLatency records the latency of a gRPC request
func (m *GRPCServerMetrics) RecordLatency(ctx context.Context, method string, duration time.Duration, statusCode string) {
	m.serverLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(
		semconv.RPCMethodKey.String(method),
		semconv.RPCGRPCStatusCodeKey.String(statusCode),
	))
}

// IncRequests increments the total requests counter
func (m *GRPCServerMetrics) IncRequests(ctx context.Context, method string) {
	m.requestsTotal.Add(ctx, 1, metric.WithAttributes(semconv.RPCMethodKey.String(method)))
}

// AddInFlightRequests adds to the in-flight requests counter
func (m *GRPCServerMetrics) AddInFlightRequests(ctx context.Context, delta int64) {
	m.requestsInFlight.Add(ctx, delta)
}

// IncErrors increments the error counter
func (m *GRPCServerMetrics) IncErrors(ctx context.Context, method string, statusCode string) {
	attrs := []attribute.KeyValue{
		semconv.RPCMethodKey.String(method),
		semconv.RPCGRPCStatusCodeKey.String(statusCode),
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// UnaryServerInterceptor records request count, latency, in-flight and errors per method
func (m *GRPCServerMetrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		m.IncRequests(ctx, info.FullMethod)
		m.AddInFlightRequests(ctx, 1)
		defer m.AddInFlightRequests(ctx, -1)

		resp, err := handler(ctx, req)

		code := status.Code(err).String()
		m.RecordLatency(ctx, info.FullMethod, time.Since(start), code)
		if err != nil {
			m.IncErrors(ctx, info.FullMethod, code)
		}
		return resp, err
	}
}
