package replay

import (
	"context"
	"fmt"

	"github.com/erain9/clobreplay/pkg/backend/memory"
	"github.com/erain9/clobreplay/pkg/core"
	"github.com/erain9/clobreplay/pkg/logging"
	"github.com/erain9/clobreplay/pkg/otel"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultCheckInterval is how many records are replayed between cancellation checks
	DefaultCheckInterval = 4096
)

// Driver rebuilds order books from a log. It holds no book state between calls:
// every Build or Query starts from empty books.
type Driver struct {
	log           core.OrderLog
	newBackend    core.BackendFactory
	parallelism   int
	checkInterval int
}

// Option configures a Driver
type Option func(*Driver)

// WithBackendFactory sets the backend used for each instrument's book
func WithBackendFactory(f core.BackendFactory) Option {
	return func(d *Driver) {
		if f != nil {
			d.newBackend = f
		}
	}
}

// WithParallelism replays up to n instruments concurrently in Build. n <= 1 is sequential.
func WithParallelism(n int) Option {
	return func(d *Driver) {
		d.parallelism = n
	}
}

// WithCheckInterval sets how often ctx is checked during a replay
func WithCheckInterval(k int) Option {
	return func(d *Driver) {
		if k > 0 {
			d.checkInterval = k
		}
	}
}

// New creates a driver over log
func New(log core.OrderLog, opts ...Option) *Driver {
	d := &Driver{
		log:           log,
		newBackend:    memory.Factory,
		parallelism:   1,
		checkInterval: DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Log returns the log the driver replays
func (d *Driver) Log() core.OrderLog {
	return d.log
}

// Len returns the number of records in the log
func (d *Driver) Len() int {
	return d.log.Len()
}

func (d *Driver) validate(n int64) error {
	if n < 0 || n >= int64(d.log.Len()) {
		return &IndexError{Index: n, Len: d.log.Len()}
	}
	return nil
}

// Build replays records 0..n into a fresh venue
func (d *Driver) Build(ctx context.Context, n int64) (*core.Venue, error) {
	if err := d.validate(n); err != nil {
		return nil, err
	}

	ctx, span := otel.StartSpan(ctx, otel.SpanReplay,
		attribute.Int64(otel.AttributeIndex, n),
		attribute.Int(otel.AttributeParallelism, d.parallelism),
	)
	defer span.End()

	var (
		venue *core.Venue
		err   error
	)
	if d.parallelism > 1 {
		venue, err = d.buildParallel(ctx, n)
	} else {
		venue, err = d.buildSequential(ctx, n)
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	metrics := otel.GetReplayMetrics()
	metrics.RecordRecords(ctx, n+1)
	for _, instrument := range venue.Instruments() {
		metrics.RecordMatched(ctx, instrument, venue.Book(instrument).Matched())
	}
	otel.AddAttributes(span, attribute.Int(otel.AttributeInstruments, len(venue.Instruments())))

	logger := logging.FromContext(ctx)
	logger.Debug().
		Int64("index", n).
		Int("instruments", len(venue.Instruments())).
		Msg("Replay finished")

	return venue, nil
}

func (d *Driver) buildSequential(ctx context.Context, n int64) (*core.Venue, error) {
	venue := core.NewVenue(d.newBackend)
	for i := 0; i <= int(n); i++ {
		if i%d.checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := venue.Process(d.log.At(i)); err != nil {
			return nil, fmt.Errorf("replaying record %d: %w", i, err)
		}
	}
	return venue, nil
}

// buildParallel partitions records by instrument, preserving log order inside each partition.
// Books are independent, so the result equals the sequential replay.
func (d *Driver) buildParallel(ctx context.Context, n int64) (*core.Venue, error) {
	venue := core.NewVenue(d.newBackend)

	var (
		instruments []string
		partitions  = make(map[string][]int)
	)
	for i := 0; i <= int(n); i++ {
		instrument := d.log.At(i).Instrument()
		if _, ok := partitions[instrument]; !ok {
			instruments = append(instruments, instrument)
		}
		partitions[instrument] = append(partitions[instrument], i)
	}

	books := make([]*core.OrderBook, len(instruments))
	p := pool.New().
		WithMaxGoroutines(d.parallelism).
		WithContext(ctx).
		WithCancelOnError()

	for slot, instrument := range instruments {
		records := partitions[instrument]
		p.Go(func(ctx context.Context) error {
			ctx, span := otel.StartSpan(ctx, otel.SpanReplayBook,
				attribute.String(otel.AttributeInstrument, instrument),
				attribute.Int(otel.AttributeRecords, len(records)),
			)
			defer span.End()

			book := venue.NewBook(instrument)
			for j, i := range records {
				if j%d.checkInterval == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				if _, err := book.Process(d.log.At(i)); err != nil {
					return fmt.Errorf("replaying record %d: %w", i, err)
				}
			}
			books[slot] = book
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		return nil, err
	}
	// A cancellation that lands after the last check must still fail the replay
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, book := range books {
		if err := venue.AddBook(book); err != nil {
			return nil, err
		}
	}
	return venue, nil
}

// Query returns the snapshot of instrument after records 0..n. Only the instrument's own
// records are replayed; an instrument absent from the prefix yields an empty snapshot.
func (d *Driver) Query(ctx context.Context, instrument string, n int64) (*core.Snapshot, error) {
	if err := d.validate(n); err != nil {
		return nil, err
	}

	ctx, span := otel.StartSpan(ctx, otel.SpanReplayBook,
		attribute.String(otel.AttributeInstrument, instrument),
		attribute.Int64(otel.AttributeIndex, n),
	)
	defer span.End()

	book := core.NewOrderBook(instrument, d.newBackend())
	var records int64
	for i := 0; i <= int(n); i++ {
		if i%d.checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				otel.RecordError(span, err)
				return nil, err
			}
		}
		order := d.log.At(i)
		if order.Instrument() != instrument {
			continue
		}
		if _, err := book.Process(order); err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("replaying record %d: %w", i, err)
		}
		records++
	}

	snapshot := book.Snapshot(n)
	metrics := otel.GetReplayMetrics()
	metrics.RecordRecords(ctx, n+1)
	metrics.RecordMatched(ctx, instrument, book.Matched())
	otel.AddAttributes(span,
		attribute.Int64(otel.AttributeRecords, records),
		attribute.Int(otel.AttributeSellLevels, len(snapshot.Sells)),
		attribute.Int(otel.AttributeBuyLevels, len(snapshot.Buys)),
		attribute.Int64(otel.AttributeMatchedQty, book.Matched()),
	)
	return snapshot, nil
}

// Snapshot builds the whole venue and reports one instrument. It gives the same result as
// Query and exists to cross-check the instrument-only replay.
func (d *Driver) Snapshot(ctx context.Context, instrument string, n int64) (*core.Snapshot, error) {
	venue, err := d.Build(ctx, n)
	if err != nil {
		return nil, err
	}
	return venue.Snapshot(instrument, n), nil
}
