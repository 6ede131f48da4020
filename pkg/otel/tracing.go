package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	// Span names
	SpanQuery         = "query_snapshot"
	SpanReplay        = "replay"
	SpanReplayBook    = "replay_instrument"
	SpanCacheLookup   = "cache_lookup"
	SpanPublishReport = "publish_report"

	// Attribute keys
	AttributeLog            = "clob.log"
	AttributeInstrument     = "clob.instrument"
	AttributeIndex          = "clob.index"
	AttributeRecords        = "clob.records"
	AttributeInstruments    = "clob.instruments"
	AttributeParallelism    = "clob.parallelism"
	AttributeCacheHit       = "clob.cache_hit"
	AttributeSellLevels     = "clob.levels.sell"
	AttributeBuyLevels      = "clob.levels.buy"
	AttributeMatchedQty     = "clob.matched_quantity"
	AttributeMessageBackend = "messaging.system"
)

// StartSpan starts a span on the tracer owning name. When tracing is not initialised it
// returns ctx unchanged and a no-op span, so callers can always End it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	var tracer trace.Tracer

	switch name {
	case SpanReplay, SpanReplayBook:
		tracer = GetReplayEngineTracer()
	default:
		tracer = GetQueryServiceTracer()
	}

	if tracer == nil {
		return ctx, noop.Span{}
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordError marks the span as failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
}
