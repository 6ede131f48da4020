package core

import (
	"fmt"
	"sort"

	"github.com/nikolaydubina/fpdecimal"
)

// Venue holds one independent OrderBook per instrument.
// There is no interaction between instruments.
type Venue struct {
	newBackend BackendFactory
	books      map[string]*OrderBook
}

// NewVenue creates an empty venue; books are created with newBackend on first use
func NewVenue(newBackend BackendFactory) *Venue {
	if newBackend == nil {
		panic("core: nil backend factory")
	}
	return &Venue{
		newBackend: newBackend,
		books:      make(map[string]*OrderBook),
	}
}

// Process routes the order to its instrument's book
func (v *Venue) Process(order *Order) (*Done, error) {
	book, ok := v.books[order.Instrument()]
	if !ok {
		book = NewOrderBook(order.Instrument(), v.newBackend())
		v.books[order.Instrument()] = book
	}
	return book.Process(order)
}

// Book returns the book for an instrument, nil if the instrument never traded
func (v *Venue) Book(instrument string) *OrderBook {
	return v.books[instrument]
}

// AddBook attaches a book built elsewhere, e.g. by a parallel replay worker
func (v *Venue) AddBook(book *OrderBook) error {
	if _, exists := v.books[book.Instrument()]; exists {
		return fmt.Errorf("order book for %s already exists", book.Instrument())
	}
	v.books[book.Instrument()] = book
	return nil
}

// NewBook creates a detached book using the venue's backend factory
func (v *Venue) NewBook(instrument string) *OrderBook {
	return NewOrderBook(instrument, v.newBackend())
}

// Instruments returns the instruments seen so far, sorted
func (v *Venue) Instruments() []string {
	out := make([]string, 0, len(v.books))
	for instrument := range v.books {
		out = append(out, instrument)
	}
	sort.Strings(out)
	return out
}

// Snapshot reports an instrument's book. An unknown instrument yields an empty snapshot.
func (v *Venue) Snapshot(instrument string, index int64) *Snapshot {
	book, ok := v.books[instrument]
	if !ok {
		return newSnapshot(instrument, index)
	}
	return book.Snapshot(index)
}

// CashFlow sums the cash flow of every book
func (v *Venue) CashFlow() fpdecimal.Decimal {
	total := fpdecimal.Zero
	for _, book := range v.books {
		total = total.Add(book.CashFlow())
	}
	return total
}
