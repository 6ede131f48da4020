package core

import (
	"encoding/json"

	"github.com/nikolaydubina/fpdecimal"
)

// Done contains information about the order execution result
type Done struct {
	// Initial order processed
	Order *Order
	// Original quantity of the order
	Quantity int64
	// Quantity matched against resting liquidity
	Processed int64
	// Quantity left after matching
	Left int64
	// Sum of matched quantity times level price
	Notional fpdecimal.Decimal
	// Number of opposite price levels the order matched at
	LevelsTouched int
	// Whether the remainder was rested on the book (limit orders only)
	Stored bool
	// Quantity thrown away because a market order ran out of liquidity
	Discarded int64
}

// newDone creates a new Done object for the given order
func newDone(order *Order) *Done {
	return &Done{
		Order:    order,
		Quantity: order.Quantity(),
		Left:     order.Quantity(),
		Notional: fpdecimal.Zero,
	}
}

// IsFilled reports whether the whole order was matched
func (d *Done) IsFilled() bool {
	return d.Left == 0
}

// MarshalJSON implements json.Marshaler interface for Done
func (d *Done) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Order         *Order `json:"order"`
		Quantity      int64  `json:"quantity"`
		Processed     int64  `json:"processed"`
		Left          int64  `json:"left"`
		Notional      string `json:"notional"`
		LevelsTouched int    `json:"levelsTouched"`
		Stored        bool   `json:"stored"`
		Discarded     int64  `json:"discarded"`
	}{
		Order:         d.Order,
		Quantity:      d.Quantity,
		Processed:     d.Processed,
		Left:          d.Left,
		Notional:      d.Notional.String(),
		LevelsTouched: d.LevelsTouched,
		Stored:        d.Stored,
		Discarded:     d.Discarded,
	})
}
