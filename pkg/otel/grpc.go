package otel

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"
)

// NewGRPCStatsHandler creates a server stats handler that traces every RPC
func NewGRPCStatsHandler() stats.Handler {
	return otelgrpc.NewServerHandler(
		otelgrpc.WithMeterProvider(otel.GetMeterProvider()),
		otelgrpc.WithTracerProvider(otel.GetTracerProvider()),
	)
}

// NewGRPCClientStatsHandler propagates trace context from clients such as cmd/client and cmd/loadtest
func NewGRPCClientStatsHandler() stats.Handler {
	return otelgrpc.NewClientHandler(
		otelgrpc.WithTracerProvider(otel.GetTracerProvider()),
		otelgrpc.WithPropagators(GetTextMapPropagator()),
	)
}

// MetricsServerInterceptor returns a unary interceptor backed by GRPCServerMetrics
func MetricsServerInterceptor() (grpc.UnaryServerInterceptor, error) {
	m, err := GetGRPCServerMetrics()
	if err != nil {
		return nil, err
	}
	return m.UnaryServerInterceptor(), nil
}
