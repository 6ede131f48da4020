package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStartSpan_NotInitialised(t *testing.T) {
	ResetForTesting()

	ctx := context.Background()
	got, span := StartSpan(ctx, SpanQuery)
	require.NotNil(t, span)
	assert.Equal(t, ctx, got)
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestStartSpan_RoutesToTracer(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		ResetForTesting()
		_ = tp.Shutdown(context.Background())
	})
	require.NoError(t, InitForTesting(tp.Tracer("test")))

	ctx, span := StartSpan(context.Background(), SpanReplay, attribute.Int(AttributeRecords, 3))
	AddAttributes(span, attribute.String(AttributeInstrument, "X"))
	RecordError(span, errors.New("boom"))
	span.End()
	assert.NotNil(t, ctx)

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, SpanReplay, ended[0].Name())
	assert.Len(t, ended[0].Attributes(), 2)
	assert.Len(t, ended[0].Events(), 1)
}

func TestGRPCServerMetrics_Interceptor(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewGRPCServerMetrics(mp.Meter("test"))
	require.NoError(t, err)
	interceptor := m.UnaryServerInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/clob.v1.SnapshotService/Query"}

	ok := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }
	fail := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "missing")
	}

	resp, err := interceptor(context.Background(), nil, info, ok)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	_, err = interceptor(context.Background(), nil, info, fail)
	assert.Equal(t, codes.NotFound, status.Code(err))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if data, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, point := range data.DataPoints {
					sums[metric.Name] += point.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["grpc.server.requests.total"])
	assert.Equal(t, int64(1), sums["grpc.server.errors.total"])
	assert.Equal(t, int64(0), sums["grpc.server.requests.in_flight"])
}

func TestGetReplayMetrics_Singleton(t *testing.T) {
	a := GetReplayMetrics()
	b := GetReplayMetrics()
	assert.Same(t, a, b)

	// No provider installed: recording must not panic
	ctx := context.Background()
	a.RecordRecords(ctx, 10)
	a.RecordMatched(ctx, "X", 5)
	a.RecordCacheLookup(ctx, true)
}
