package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	replayMetrics     *ReplayMetrics
	replayMetricsOnce sync.Once
	// meter is the global meter; it delegates to the provider installed by Init
	meter = otel.GetMeterProvider().Meter(instrumentationName)
)

// ReplayMetrics holds metrics for replays and snapshot queries
type ReplayMetrics struct {
	// Records fed through the matching engine
	recordsTotal metric.Int64Counter
	// Quantity matched across all books
	matchedQuantityTotal metric.Int64Counter
	// End-to-end query latency
	queryDuration metric.Float64Histogram
	// Cache lookups by outcome
	cacheLookups metric.Int64Counter
}

// GetReplayMetrics returns the ReplayMetrics singleton. Instruments that fail to register
// are left nil and silently skipped.
func GetReplayMetrics() *ReplayMetrics {
	replayMetricsOnce.Do(func() {
		m := &ReplayMetrics{}

		if c, err := meter.Int64Counter(
			"replay.records.total",
			metric.WithDescription("Total number of order records replayed"),
			metric.WithUnit("{record}"),
		); err == nil {
			m.recordsTotal = c
		}

		if c, err := meter.Int64Counter(
			"orderbook.matched_quantity.total",
			metric.WithDescription("Total quantity matched while replaying"),
			metric.WithUnit("{unit}"),
		); err == nil {
			m.matchedQuantityTotal = c
		}

		if h, err := meter.Float64Histogram(
			"query.duration",
			metric.WithDescription("Latency (seconds) of snapshot queries"),
			metric.WithUnit("s"),
		); err == nil {
			m.queryDuration = h
		}

		if c, err := meter.Int64Counter(
			"query.cache.lookups",
			metric.WithDescription("Report cache lookups by outcome"),
			metric.WithUnit("{lookup}"),
		); err == nil {
			m.cacheLookups = c
		}

		replayMetrics = m
	})
	return replayMetrics
}

// RecordRecords adds the number of log records scanned by a replay
func (m *ReplayMetrics) RecordRecords(ctx context.Context, records int64) {
	if m.recordsTotal == nil {
		return
	}
	m.recordsTotal.Add(ctx, records)
}

// RecordMatched adds the quantity matched in one instrument's book
func (m *ReplayMetrics) RecordMatched(ctx context.Context, instrument string, matched int64) {
	if m.matchedQuantityTotal == nil || matched == 0 {
		return
	}
	m.matchedQuantityTotal.Add(ctx, matched, metric.WithAttributes(attribute.String(AttributeInstrument, instrument)))
}

// RecordQuery records the latency of a snapshot query
func (m *ReplayMetrics) RecordQuery(ctx context.Context, log string, duration time.Duration, cached bool) {
	if m.queryDuration == nil {
		return
	}
	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttributeLog, log),
		attribute.Bool(AttributeCacheHit, cached),
	))
}

// RecordCacheLookup counts a cache hit or miss
func (m *ReplayMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m.cacheLookups == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool(AttributeCacheHit, hit)))
}
