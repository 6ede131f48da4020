package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the side an incoming order of this side matches against
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide converts feed spellings ("Buy", "BUY", "sell", ...) to a Side
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B":
		return Buy, nil
	case "SELL", "S":
		return Sell, nil
	default:
		return Sell, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// OrderType represents type of the order
type OrderType string

// Order types
const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

// ParseOrderType accepts "M"/"L" as written by the historical feed as well as the full names
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "MARKET":
		return TypeMarket, nil
	case "L", "LIMIT":
		return TypeLimit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderType, s)
	}
}

// Order is one immutable event of the historical order log
type Order struct {
	seq        int64
	orderType  OrderType
	side       Side
	instrument string
	price      fpdecimal.Decimal
	quantity   int64
}

type orderJSON struct {
	Seq        int64     `json:"seq"`
	OrderType  OrderType `json:"orderType"`
	Side       string    `json:"side"`
	Instrument string    `json:"instrument"`
	Price      string    `json:"price"`
	Quantity   int64     `json:"quantity"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderJSON{
		Seq:        o.seq,
		OrderType:  o.orderType,
		Side:       o.side.String(),
		Instrument: o.instrument,
		Price:      o.price.String(),
		Quantity:   o.quantity,
	})
}

// UnmarshalJSON decodes an order and runs the same validation as the constructors
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	side, err := ParseSide(raw.Side)
	if err != nil {
		return err
	}

	var decoded *Order
	switch raw.OrderType {
	case TypeMarket:
		decoded, err = NewMarketOrder(raw.Seq, side, raw.Instrument, raw.Quantity)
	case TypeLimit:
		price, perr := fpdecimal.FromString(raw.Price)
		if perr != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPrice, perr)
		}
		decoded, err = NewLimitOrder(raw.Seq, side, raw.Instrument, raw.Quantity, price)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, raw.OrderType)
	}
	if err != nil {
		return err
	}

	*o = *decoded
	return nil
}

func validateCommon(seq int64, side Side, instrument string, quantity int64) error {
	if seq < 0 {
		return ErrInvalidSequence
	}
	if side != Buy && side != Sell {
		return ErrInvalidSide
	}
	if instrument == "" {
		return ErrInvalidInstrument
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// NewMarketOrder creates new constant object Order
func NewMarketOrder(seq int64, side Side, instrument string, quantity int64) (*Order, error) {
	if err := validateCommon(seq, side, instrument, quantity); err != nil {
		return nil, err
	}

	return &Order{
		seq:        seq,
		orderType:  TypeMarket,
		side:       side,
		instrument: instrument,
		price:      fpdecimal.Zero,
		quantity:   quantity,
	}, nil
}

// NewLimitOrder creates new constant object Order
func NewLimitOrder(seq int64, side Side, instrument string, quantity int64, price fpdecimal.Decimal) (*Order, error) {
	if err := validateCommon(seq, side, instrument, quantity); err != nil {
		return nil, err
	}
	if price.LessThanOrEqual(fpdecimal.Zero) {
		return nil, ErrInvalidPrice
	}

	return &Order{
		seq:        seq,
		orderType:  TypeLimit,
		side:       side,
		instrument: instrument,
		price:      price,
		quantity:   quantity,
	}, nil
}

// Seq returns the sequence index of the order in its log
func (o *Order) Seq() int64 {
	return o.seq
}

// OrderType returns the order type
func (o *Order) OrderType() OrderType {
	return o.orderType
}

// Side returns side of the order
func (o *Order) Side() Side {
	return o.side
}

// Instrument returns the instrument identifier
func (o *Order) Instrument() string {
	return o.instrument
}

// Price returns the limit price; zero for market orders
func (o *Order) Price() fpdecimal.Decimal {
	return o.price
}

// Quantity returns the submitted quantity
func (o *Order) Quantity() int64 {
	return o.quantity
}

// IsMarketOrder returns true if order is market
func (o *Order) IsMarketOrder() bool {
	return o.orderType == TypeMarket
}

// IsLimitOrder returns true if order is limit
func (o *Order) IsLimitOrder() bool {
	return o.orderType == TypeLimit
}

// String implements fmt.Stringer interface
func (o *Order) String() string {
	if o.IsMarketOrder() {
		return fmt.Sprintf("#%d %s %s %s qty: %d", o.seq, o.instrument, o.orderType, o.side, o.quantity)
	}
	return fmt.Sprintf("#%d %s %s %s qty: %d price: %s", o.seq, o.instrument, o.orderType, o.side, o.quantity, o.price)
}
