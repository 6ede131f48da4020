package memory

import (
	"fmt"
	"strings"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/google/btree"
	"github.com/nikolaydubina/fpdecimal"
)

// degree of the per-side b-trees. Books rarely hold more than a few hundred levels.
const degree = 16

// level is the tree item; ordering only looks at price
type level struct {
	price fpdecimal.Decimal
	queue *core.PriceLevelQueue
}

func lessByPrice(a, b level) bool {
	return a.price.LessThan(b.price)
}

// OrderSide represents one side (bid/ask) of the order book, keyed by price ascending
type OrderSide struct {
	levels *btree.BTreeG[level]
}

// NewOrderSide creates an empty side
func NewOrderSide() *OrderSide {
	return &OrderSide{levels: btree.NewG(degree, lessByPrice)}
}

// Queue returns the queue at price, creating it if absent
func (os *OrderSide) Queue(price fpdecimal.Decimal) *core.PriceLevelQueue {
	if item, ok := os.levels.Get(level{price: price}); ok {
		return item.queue
	}
	q := core.NewPriceLevelQueue(price)
	os.levels.ReplaceOrInsert(level{price: price, queue: q})
	return q
}

// Get returns the queue at price without creating one
func (os *OrderSide) Get(price fpdecimal.Decimal) *core.PriceLevelQueue {
	item, ok := os.levels.Get(level{price: price})
	if !ok {
		return nil
	}
	return item.queue
}

// RemoveIfEmpty deletes the price key when its queue holds nothing
func (os *OrderSide) RemoveIfEmpty(price fpdecimal.Decimal) bool {
	item, ok := os.levels.Get(level{price: price})
	if !ok || !item.queue.IsEmpty() {
		return false
	}
	os.levels.Delete(item)
	return true
}

// MinPriceQueue returns the lowest level, nil if empty
func (os *OrderSide) MinPriceQueue() *core.PriceLevelQueue {
	item, ok := os.levels.Min()
	if !ok {
		return nil
	}
	return item.queue
}

// MaxPriceQueue returns the highest level, nil if empty
func (os *OrderSide) MaxPriceQueue() *core.PriceLevelQueue {
	item, ok := os.levels.Max()
	if !ok {
		return nil
	}
	return item.queue
}

// Descend walks levels from the highest price down
func (os *OrderSide) Descend(fn func(q *core.PriceLevelQueue) bool) {
	os.levels.Descend(func(item level) bool {
		return fn(item.queue)
	})
}

// Prices returns all prices in ascending order
func (os *OrderSide) Prices() []fpdecimal.Decimal {
	prices := make([]fpdecimal.Decimal, 0, os.levels.Len())
	os.levels.Ascend(func(item level) bool {
		prices = append(prices, item.price)
		return true
	})
	return prices
}

// Len returns the number of price levels
func (os *OrderSide) Len() int {
	return os.levels.Len()
}

// String implements fmt.Stringer interface
func (os *OrderSide) String() string {
	sb := strings.Builder{}
	os.levels.Descend(func(item level) bool {
		sb.WriteString(fmt.Sprintf("\n%s -> orders: %d qty: %d", item.price, item.queue.Len(), item.queue.Total()))
		return true
	})
	return sb.String()
}

// MemoryBackend implements core.OrderBookBackend with one b-tree per side.
// A backend belongs to a single book and is not safe for concurrent use.
type MemoryBackend struct {
	bids *OrderSide
	asks *OrderSide
}

// NewMemoryBackend creates a new in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		bids: NewOrderSide(),
		asks: NewOrderSide(),
	}
}

// Factory satisfies core.BackendFactory
func Factory() core.OrderBookBackend {
	return NewMemoryBackend()
}

var _ core.OrderBookBackend = (*MemoryBackend)(nil)

func (b *MemoryBackend) side(side core.Side) *OrderSide {
	if side == core.Buy {
		return b.bids
	}
	return b.asks
}

// GetBids returns the bids side
func (b *MemoryBackend) GetBids() *OrderSide {
	return b.bids
}

// GetAsks returns the asks side
func (b *MemoryBackend) GetAsks() *OrderSide {
	return b.asks
}

// Queue implements core.OrderBookBackend
func (b *MemoryBackend) Queue(side core.Side, price fpdecimal.Decimal) *core.PriceLevelQueue {
	return b.side(side).Queue(price)
}

// RemoveIfEmpty implements core.OrderBookBackend
func (b *MemoryBackend) RemoveIfEmpty(side core.Side, price fpdecimal.Decimal) bool {
	return b.side(side).RemoveIfEmpty(price)
}

// Best returns the lowest ask or the highest bid
func (b *MemoryBackend) Best(side core.Side) *core.PriceLevelQueue {
	if side == core.Buy {
		return b.bids.MaxPriceQueue()
	}
	return b.asks.MinPriceQueue()
}

// Descend implements core.OrderBookBackend
func (b *MemoryBackend) Descend(side core.Side, fn func(level *core.PriceLevelQueue) bool) {
	b.side(side).Descend(fn)
}

// Len implements core.OrderBookBackend
func (b *MemoryBackend) Len(side core.Side) int {
	return b.side(side).Len()
}

// String implements fmt.Stringer interface
func (b *MemoryBackend) String() string {
	return fmt.Sprintf("asks:%s\nbids:%s", b.asks, b.bids)
}
