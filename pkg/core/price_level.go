package core

import (
	"fmt"
	"strings"

	"github.com/eapache/queue"
	"github.com/nikolaydubina/fpdecimal"
)

// restingOrder is the remaining quantity of one order waiting at a price level.
// Held by pointer so the front can be reduced in place.
type restingOrder struct {
	quantity int64
}

// PriceLevelQueue is the FIFO of resting quantities at one exact price on one side.
// Every element is strictly positive; an exhausted front is removed immediately.
type PriceLevelQueue struct {
	price  fpdecimal.Decimal
	orders *queue.Queue
	total  int64
}

// NewPriceLevelQueue creates an empty queue for the given price
func NewPriceLevelQueue(price fpdecimal.Decimal) *PriceLevelQueue {
	return &PriceLevelQueue{
		price:  price,
		orders: queue.New(),
	}
}

// Price returns the price of the level
func (q *PriceLevelQueue) Price() fpdecimal.Decimal {
	return q.price
}

// Append adds new resting liquidity at the back of the queue
func (q *PriceLevelQueue) Append(quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	q.orders.Add(&restingOrder{quantity: quantity})
	q.total += quantity
	return nil
}

// Len returns the number of resting orders at this level
func (q *PriceLevelQueue) Len() int {
	return q.orders.Length()
}

// IsEmpty reports whether no liquidity is left at this level
func (q *PriceLevelQueue) IsEmpty() bool {
	return q.orders.Length() == 0
}

// Total returns the aggregate resting quantity
func (q *PriceLevelQueue) Total() int64 {
	return q.total
}

// Front returns the remaining quantity of the oldest resting order, 0 if the queue is empty
func (q *PriceLevelQueue) Front() int64 {
	if q.IsEmpty() {
		return 0
	}
	return q.orders.Peek().(*restingOrder).quantity
}

// Fill matches up to quantity against the oldest resting order and returns the matched amount.
// The front order is popped once it is exhausted.
func (q *PriceLevelQueue) Fill(quantity int64) int64 {
	if quantity <= 0 || q.IsEmpty() {
		return 0
	}

	front := q.orders.Peek().(*restingOrder)
	matched := min(quantity, front.quantity)
	front.quantity -= matched
	q.total -= matched

	if front.quantity == 0 {
		q.orders.Remove()
	}
	return matched
}

// Quantities returns a copy of the resting quantities, oldest first
func (q *PriceLevelQueue) Quantities() []int64 {
	out := make([]int64, 0, q.orders.Length())
	for i := 0; i < q.orders.Length(); i++ {
		out = append(out, q.orders.Get(i).(*restingOrder).quantity)
	}
	return out
}

// String implements fmt.Stringer interface
func (q *PriceLevelQueue) String() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("%s ->", q.price))
	for _, qty := range q.Quantities() {
		sb.WriteString(fmt.Sprintf(" %d", qty))
	}
	return sb.String()
}
