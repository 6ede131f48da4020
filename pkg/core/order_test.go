package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nikolaydubina/fpdecimal"
)

func TestSideString(t *testing.T) {
	tests := []struct {
		name string
		side Side
		want string
	}{
		{"Buy", Buy, "BUY"},
		{"Sell", Sell, "SELL"},
		{"Invalid", Side(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.side.String(); got != tt.want {
				t.Errorf("Side.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSideOpposite(t *testing.T) {
	if Buy.Opposite() != Sell {
		t.Errorf("Buy.Opposite() = %v, want SELL", Buy.Opposite())
	}
	if Sell.Opposite() != Buy {
		t.Errorf("Sell.Opposite() = %v, want BUY", Sell.Opposite())
	}
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		in      string
		want    Side
		wantErr bool
	}{
		{"Buy", Buy, false},
		{"BUY", Buy, false},
		{" sell ", Sell, false},
		{"S", Sell, false},
		{"hold", Sell, true},
		{"", Sell, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSide(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSide) {
					t.Errorf("ParseSide(%q) error = %v, want ErrInvalidSide", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSide(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSide(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseOrderType(t *testing.T) {
	tests := []struct {
		in      string
		want    OrderType
		wantErr bool
	}{
		{"M", TypeMarket, false},
		{"l", TypeLimit, false},
		{"LIMIT", TypeLimit, false},
		{"market", TypeMarket, false},
		{"STOP", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrderType(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOrderType) {
					t.Errorf("ParseOrderType(%q) error = %v, want ErrInvalidOrderType", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOrderType(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseOrderType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewMarketOrder(t *testing.T) {
	order, err := NewMarketOrder(3, Buy, "1131", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Seq() != 3 {
		t.Errorf("Expected Seq 3, got %d", order.Seq())
	}
	if order.Side() != Buy {
		t.Errorf("Expected Side Buy, got %v", order.Side())
	}
	if order.Instrument() != "1131" {
		t.Errorf("Expected Instrument 1131, got %s", order.Instrument())
	}
	if order.Quantity() != 10 {
		t.Errorf("Expected Quantity 10, got %d", order.Quantity())
	}
	if !order.Price().Equal(fpdecimal.Zero) {
		t.Errorf("Expected Price 0, got %v", order.Price())
	}
	if !order.IsMarketOrder() {
		t.Error("Expected IsMarketOrder to be true")
	}
	if order.IsLimitOrder() {
		t.Error("Expected IsLimitOrder to be false")
	}
}

func TestNewLimitOrder(t *testing.T) {
	price := fpdecimal.FromFloat(100.25)
	order, err := NewLimitOrder(0, Sell, "2211", 7, price)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if order.Side() != Sell {
		t.Errorf("Expected Side Sell, got %v", order.Side())
	}
	if !order.Price().Equal(price) {
		t.Errorf("Expected Price %v, got %v", price, order.Price())
	}
	if !order.IsLimitOrder() {
		t.Error("Expected IsLimitOrder to be true")
	}
	if order.OrderType() != TypeLimit {
		t.Errorf("Expected OrderType LIMIT, got %v", order.OrderType())
	}
}

func TestOrderValidation(t *testing.T) {
	price := fpdecimal.FromInt(10)

	tests := []struct {
		name  string
		build func() (*Order, error)
		want  error
	}{
		{"negative seq", func() (*Order, error) { return NewMarketOrder(-1, Buy, "X", 1) }, ErrInvalidSequence},
		{"bad side", func() (*Order, error) { return NewMarketOrder(0, Side(7), "X", 1) }, ErrInvalidSide},
		{"empty instrument", func() (*Order, error) { return NewMarketOrder(0, Buy, "", 1) }, ErrInvalidInstrument},
		{"zero quantity", func() (*Order, error) { return NewMarketOrder(0, Buy, "X", 0) }, ErrInvalidQuantity},
		{"negative quantity", func() (*Order, error) { return NewLimitOrder(0, Sell, "X", -5, price) }, ErrInvalidQuantity},
		{"zero price", func() (*Order, error) { return NewLimitOrder(0, Sell, "X", 5, fpdecimal.Zero) }, ErrInvalidPrice},
		{"negative price", func() (*Order, error) { return NewLimitOrder(0, Sell, "X", 5, fpdecimal.FromInt(-1)) }, ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := tt.build()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if order != nil {
				t.Errorf("expected nil order, got %v", order)
			}
		})
	}
}

func TestOrderString(t *testing.T) {
	market, _ := NewMarketOrder(1, Buy, "X", 5)
	if got, want := market.String(), "#1 X MARKET BUY qty: 5"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	limit, _ := NewLimitOrder(2, Sell, "X", 5, fpdecimal.FromFloat(9.5))
	if got, want := limit.String(), "#2 X LIMIT SELL qty: 5 price: "+fpdecimal.FromFloat(9.5).String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestOrderJSON(t *testing.T) {
	original, err := NewLimitOrder(4, Buy, "2313", 12, fpdecimal.FromFloat(123.45))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Failed to marshal order: %v", err)
	}

	var decoded Order
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal order: %v", err)
	}

	if decoded.Seq() != original.Seq() ||
		decoded.Side() != original.Side() ||
		decoded.Instrument() != original.Instrument() ||
		decoded.Quantity() != original.Quantity() ||
		!decoded.Price().Equal(original.Price()) ||
		decoded.OrderType() != original.OrderType() {
		t.Errorf("decoded order %v does not match original %v", &decoded, original)
	}
}

func TestOrderUnmarshalRejectsInvalid(t *testing.T) {
	inputs := []string{
		`{"seq":1,"orderType":"LIMIT","side":"BUY","instrument":"X","price":"0","quantity":5}`,
		`{"seq":1,"orderType":"STOP","side":"BUY","instrument":"X","price":"1","quantity":5}`,
		`{"seq":1,"orderType":"MARKET","side":"HOLD","instrument":"X","price":"0","quantity":5}`,
		`{"seq":1,"orderType":"MARKET","side":"BUY","instrument":"X","price":"0","quantity":0}`,
	}

	for _, input := range inputs {
		var order Order
		if err := json.Unmarshal([]byte(input), &order); err == nil {
			t.Errorf("expected error decoding %s", input)
		}
	}
}
