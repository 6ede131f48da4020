package server

import (
	"context"
	"time"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/logging"
	"github.com/erain9/clobreplay/pkg/messaging"
	"github.com/erain9/clobreplay/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ReportCache stores finished reports keyed by log content and position
type ReportCache interface {
	Get(ctx context.Context, log, fingerprint, instrument string, index int64) (*core.Snapshot, bool, error)
	Set(ctx context.Context, log, fingerprint string, snapshot *core.Snapshot) error
}

// QueryService answers snapshot queries against the logs of a LogManager
type QueryService struct {
	manager *LogManager
	cache   ReportCache
	sender  messaging.MessageSender
}

// QueryOption configures a QueryService
type QueryOption func(*QueryService)

// WithCache looks reports up in cache before replaying and stores them after
func WithCache(cache ReportCache) QueryOption {
	return func(s *QueryService) {
		s.cache = cache
	}
}

// WithSender publishes every computed report
func WithSender(sender messaging.MessageSender) QueryOption {
	return func(s *QueryService) {
		s.sender = sender
	}
}

// NewQueryService creates a query service
func NewQueryService(manager *LogManager, opts ...QueryOption) *QueryService {
	s := &QueryService{manager: manager}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Manager returns the log manager queries run against
func (s *QueryService) Manager() *LogManager {
	return s.manager
}

// Query returns the snapshot of instrument after records 0..index of the named log.
// Cache and publish failures are logged and never fail the query.
func (s *QueryService) Query(ctx context.Context, logName, instrument string, index int64) (*core.Snapshot, error) {
	start := time.Now()
	logger := logging.FromContext(ctx).With().
		Str("order_log", logName).
		Str("instrument", instrument).
		Int64("index", index).
		Logger()

	ctx, span := otel.StartSpan(ctx, otel.SpanQuery,
		attribute.String(otel.AttributeLog, logName),
		attribute.String(otel.AttributeInstrument, instrument),
		attribute.Int64(otel.AttributeIndex, index),
	)
	defer span.End()

	driver, info, err := s.manager.Get(ctx, logName)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	if cached := s.lookup(ctx, logName, info.Fingerprint, instrument, index); cached != nil {
		otel.AddAttributes(span, attribute.Bool(otel.AttributeCacheHit, true))
		otel.GetReplayMetrics().RecordQuery(ctx, logName, time.Since(start), true)
		logger.Debug().Msg("Served report from cache")
		return cached, nil
	}

	snapshot, err := driver.Query(ctx, instrument, index)
	if err != nil {
		otel.RecordError(span, err)
		logger.Debug().Err(err).Msg("Replay failed")
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, logName, info.Fingerprint, snapshot); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache report")
		}
	}
	s.publish(ctx, logName, snapshot)

	duration := time.Since(start)
	otel.AddAttributes(span, attribute.Bool(otel.AttributeCacheHit, false))
	otel.GetReplayMetrics().RecordQuery(ctx, logName, duration, false)
	logger.Debug().
		Int("sell_levels", len(snapshot.Sells)).
		Int("buy_levels", len(snapshot.Buys)).
		Dur("duration", duration).
		Msg("Report computed")

	return snapshot, nil
}

func (s *QueryService) lookup(ctx context.Context, logName, fingerprint, instrument string, index int64) *core.Snapshot {
	if s.cache == nil {
		return nil
	}

	ctx, span := otel.StartSpan(ctx, otel.SpanCacheLookup)
	defer span.End()

	snapshot, ok, err := s.cache.Get(ctx, logName, fingerprint, instrument, index)
	if err != nil {
		otel.RecordError(span, err)
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).Msg("Report cache lookup failed")
		return nil
	}
	otel.GetReplayMetrics().RecordCacheLookup(ctx, ok)
	otel.AddAttributes(span, attribute.Bool(otel.AttributeCacheHit, ok))
	return snapshot
}

func (s *QueryService) publish(ctx context.Context, logName string, snapshot *core.Snapshot) {
	if s.sender == nil {
		return
	}

	ctx, span := otel.StartSpan(ctx, otel.SpanPublishReport)
	defer span.End()

	if err := s.sender.SendReport(ctx, messaging.NewReportMessage(logName, snapshot)); err != nil {
		otel.RecordError(span, err)
		logger := logging.FromContext(ctx)
		logger.Warn().Err(err).
			Str("order_log", logName).
			Str("instrument", snapshot.Instrument).
			Msg("Failed to publish report")
	}
}
