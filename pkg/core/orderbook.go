package core

import (
	"fmt"

	"github.com/nikolaydubina/fpdecimal"
)

// OrderBook implements price-time priority matching for a single instrument
type OrderBook struct {
	instrument string
	backend    OrderBookBackend
	matched    int64
	cashFlow   fpdecimal.Decimal
}

// NewOrderBook creates Orderbook object with a backend
func NewOrderBook(instrument string, backend OrderBookBackend) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		backend:    backend,
		cashFlow:   fpdecimal.Zero,
	}
}

// Instrument returns the instrument this book belongs to
func (ob *OrderBook) Instrument() string {
	return ob.instrument
}

// Backend returns the storage holding the price levels
func (ob *OrderBook) Backend() OrderBookBackend {
	return ob.backend
}

// Matched returns the total quantity matched in this book so far
func (ob *OrderBook) Matched() int64 {
	return ob.matched
}

// CashFlow returns the running cash flow of incoming orders: buys lifting offers add
// quantity times price, sells hitting bids subtract it.
func (ob *OrderBook) CashFlow() fpdecimal.Decimal {
	return ob.cashFlow
}

// Process matches an order against the book and rests or discards whatever is left
func (ob *OrderBook) Process(order *Order) (*Done, error) {
	if order.Instrument() != ob.instrument {
		return nil, fmt.Errorf("%w: %s != %s", ErrInstrumentMismatch, order.Instrument(), ob.instrument)
	}

	var (
		done *Done
		err  error
	)
	if order.IsMarketOrder() {
		done = ob.processMarketOrder(order)
	} else if order.IsLimitOrder() {
		done, err = ob.processLimitOrder(order)
	} else {
		panic("unrecognized order type")
	}
	if err != nil {
		return nil, err
	}

	ob.matched += done.Processed
	if order.Side() == Buy {
		ob.cashFlow = ob.cashFlow.Add(done.Notional)
	} else {
		ob.cashFlow = ob.cashFlow.Sub(done.Notional)
	}
	return done, nil
}

// private methods

func (ob *OrderBook) processMarketOrder(marketOrder *Order) *Done {
	done := newDone(marketOrder)

	// No price bound: sweep the opposite side until filled or empty
	done.Left = ob.match(done, marketOrder.Side(), marketOrder.Quantity(), func(fpdecimal.Decimal) bool {
		return true
	})

	// Market orders never rest
	done.Discarded = done.Left
	return done
}

func (ob *OrderBook) processLimitOrder(limitOrder *Order) (*Done, error) {
	done := newDone(limitOrder)
	limit := limitOrder.Price()

	var eligible func(price fpdecimal.Decimal) bool
	if limitOrder.Side() == Buy {
		eligible = func(price fpdecimal.Decimal) bool { return price.LessThanOrEqual(limit) }
	} else {
		eligible = func(price fpdecimal.Decimal) bool { return price.GreaterThanOrEqual(limit) }
	}

	done.Left = ob.match(done, limitOrder.Side(), limitOrder.Quantity(), eligible)

	if done.Left > 0 {
		queue := ob.backend.Queue(limitOrder.Side(), limit)
		if err := queue.Append(done.Left); err != nil {
			return nil, fmt.Errorf("error resting limit order #%d: %w", limitOrder.Seq(), err)
		}
		done.Stored = true
	}
	return done, nil
}

// match consumes opposite-side liquidity best level first. Levels are visited in price order,
// so the scan stops at the first level that fails eligible. Returns the unmatched volume.
func (ob *OrderBook) match(done *Done, taker Side, volume int64, eligible func(price fpdecimal.Decimal) bool) int64 {
	maker := taker.Opposite()

	for volume > 0 {
		level := ob.backend.Best(maker)
		if level == nil {
			break
		}
		price := level.Price()
		if !eligible(price) {
			break
		}

		done.LevelsTouched++
		for volume > 0 && !level.IsEmpty() {
			matched := level.Fill(volume)
			volume -= matched
			done.Processed += matched
			done.Notional = done.Notional.Add(price.Mul(fpdecimal.FromInt(matched)))
		}

		ob.backend.RemoveIfEmpty(maker, price)
	}

	return volume
}

// Snapshot aggregates the resting liquidity of the book, both sides price-descending
func (ob *OrderBook) Snapshot(index int64) *Snapshot {
	snapshot := newSnapshot(ob.instrument, index)
	snapshot.Matched = ob.matched
	snapshot.CashFlow = ob.cashFlow

	ob.backend.Descend(Sell, func(level *PriceLevelQueue) bool {
		snapshot.Sells = append(snapshot.Sells, Level{Side: Sell, Price: level.Price(), Quantity: level.Total()})
		return true
	})
	ob.backend.Descend(Buy, func(level *PriceLevelQueue) bool {
		snapshot.Buys = append(snapshot.Buys, Level{Side: Buy, Price: level.Price(), Quantity: level.Total()})
		return true
	})

	return snapshot
}

// String implements fmt.Stringer interface
func (ob *OrderBook) String() string {
	return ob.Snapshot(-1).String()
}
