package core

import "github.com/nikolaydubina/fpdecimal"

// OrderBookBackend stores the price levels of a single instrument.
// Implementations must drop a price key as soon as its queue is empty.
type OrderBookBackend interface {
	// Queue returns the queue at price, creating an empty one if absent
	Queue(side Side, price fpdecimal.Decimal) *PriceLevelQueue
	// RemoveIfEmpty deletes the price key iff its queue is empty
	RemoveIfEmpty(side Side, price fpdecimal.Decimal) bool

	// Best returns the lowest sell level or the highest buy level, nil if the side is empty
	Best(side Side) *PriceLevelQueue
	// Descend walks the levels of a side from the highest price down until fn returns false
	Descend(side Side, fn func(level *PriceLevelQueue) bool)
	// Len returns the number of price levels on a side
	Len(side Side) int
}

// BackendFactory creates an empty backend for a new instrument
type BackendFactory func() OrderBookBackend
