package feed

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/erain9/clobreplay/pkg/core"
)

// Log is an in-memory order log. Positions are zero-based; sequence indices strictly increase.
type Log struct {
	orders []*core.Order

	fingerprintOnce sync.Once
	fingerprint     string
}

var _ core.OrderLog = (*Log)(nil)

// NewLog wraps orders, rejecting a nil order or a sequence index that does not increase
func NewLog(orders []*core.Order) (*Log, error) {
	for i, order := range orders {
		if order == nil {
			return nil, fmt.Errorf("%w: nil order at position %d", ErrMalformedRecord, i)
		}
		if i > 0 && order.Seq() <= orders[i-1].Seq() {
			return nil, fmt.Errorf("%w: position %d has %d after %d", ErrUnorderedLog, i, order.Seq(), orders[i-1].Seq())
		}
	}
	return &Log{orders: orders}, nil
}

// Len implements core.OrderLog
func (l *Log) Len() int {
	return len(l.orders)
}

// At implements core.OrderLog
func (l *Log) At(i int) *core.Order {
	return l.orders[i]
}

// Orders returns the underlying records. Callers must not modify the slice.
func (l *Log) Orders() []*core.Order {
	return l.orders
}

// Instruments returns the distinct instruments of the log, sorted
func (l *Log) Instruments() []string {
	seen := make(map[string]struct{})
	for _, order := range l.orders {
		seen[order.Instrument()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for instrument := range seen {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out
}

// Fingerprint is a content hash of every record, used to key cached reports
func (l *Log) Fingerprint() string {
	l.fingerprintOnce.Do(func() {
		h := xxhash.New()
		buf := make([]byte, 0, 64)
		for _, order := range l.orders {
			buf = buf[:0]
			buf = strconv.AppendInt(buf, order.Seq(), 10)
			buf = append(buf, '|')
			buf = append(buf, string(order.OrderType())...)
			buf = append(buf, '|')
			buf = append(buf, order.Side().String()...)
			buf = append(buf, '|')
			buf = append(buf, order.Instrument()...)
			buf = append(buf, '|')
			buf = append(buf, order.Price().String()...)
			buf = append(buf, '|')
			buf = strconv.AppendInt(buf, order.Quantity(), 10)
			buf = append(buf, '\n')
			_, _ = h.Write(buf)
		}
		l.fingerprint = strconv.FormatUint(h.Sum64(), 16)
	})
	return l.fingerprint
}
