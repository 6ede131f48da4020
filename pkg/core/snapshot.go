package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
)

// Level is the aggregate resting quantity at one price on one side
type Level struct {
	Side     Side
	Price    fpdecimal.Decimal
	Quantity int64
}

// LadderRow is one line of the trading ladder: bid and ask size around a price
type LadderRow struct {
	Price   fpdecimal.Decimal
	BidSize int64
	AskSize int64
}

// Snapshot is the price-level report of one instrument at one log index.
// Sells and Buys are both ordered by price descending.
type Snapshot struct {
	Instrument string
	Index      int64
	Sells      []Level
	Buys       []Level
	Matched    int64
	CashFlow   fpdecimal.Decimal
}

func newSnapshot(instrument string, index int64) *Snapshot {
	return &Snapshot{
		Instrument: instrument,
		Index:      index,
		Sells:      make([]Level, 0),
		Buys:       make([]Level, 0),
		CashFlow:   fpdecimal.Zero,
	}
}

// Levels flattens the report sell-then-buy, each group price-descending
func (s *Snapshot) Levels() []Level {
	out := make([]Level, 0, len(s.Sells)+len(s.Buys))
	out = append(out, s.Sells...)
	return append(out, s.Buys...)
}

// IsEmpty reports whether no liquidity rests on either side
func (s *Snapshot) IsEmpty() bool {
	return len(s.Sells) == 0 && len(s.Buys) == 0
}

// Total returns the aggregate resting quantity on one side
func (s *Snapshot) Total(side Side) int64 {
	levels := s.Buys
	if side == Sell {
		levels = s.Sells
	}
	var total int64
	for _, level := range levels {
		total += level.Quantity
	}
	return total
}

// Ladder merges both sides into one price-descending ladder
func (s *Snapshot) Ladder() []LadderRow {
	rows := make([]LadderRow, 0, len(s.Sells)+len(s.Buys))
	i, j := 0, 0
	for i < len(s.Sells) || j < len(s.Buys) {
		switch {
		case j == len(s.Buys) || (i < len(s.Sells) && s.Sells[i].Price.GreaterThan(s.Buys[j].Price)):
			rows = append(rows, LadderRow{Price: s.Sells[i].Price, AskSize: s.Sells[i].Quantity})
			i++
		case i == len(s.Sells) || s.Buys[j].Price.GreaterThan(s.Sells[i].Price):
			rows = append(rows, LadderRow{Price: s.Buys[j].Price, BidSize: s.Buys[j].Quantity})
			j++
		default:
			rows = append(rows, LadderRow{Price: s.Sells[i].Price, BidSize: s.Buys[j].Quantity, AskSize: s.Sells[i].Quantity})
			i++
			j++
		}
	}
	return rows
}

// String renders the report the way the historical tool printed it
func (s *Snapshot) String() string {
	sb := strings.Builder{}
	sb.WriteString("Printing OrderBook ----\n")
	for _, level := range s.Levels() {
		sb.WriteString(fmt.Sprintf("%s %s %d\n", sideLabel(level.Side), FormatPrice(level.Price), level.Quantity))
	}
	sb.WriteString("End")
	return sb.String()
}

// FormatPrice prints a price with trailing fractional zeros dropped but at least one
// fractional digit kept: 10.000 prints as 10.0, 9.500 as 9.5.
func FormatPrice(price fpdecimal.Decimal) string {
	out := price.String()
	if !strings.Contains(out, ".") {
		return out + ".0"
	}
	out = strings.TrimRight(out, "0")
	if strings.HasSuffix(out, ".") {
		out += "0"
	}
	return out
}

func sideLabel(side Side) string {
	if side == Buy {
		return "Buy"
	}
	return "Sell"
}

type levelJSON struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

type snapshotJSON struct {
	Instrument string      `json:"instrument"`
	Index      int64       `json:"index"`
	Sells      []levelJSON `json:"sells"`
	Buys       []levelJSON `json:"buys"`
	Matched    int64       `json:"matched"`
	CashFlow   string      `json:"cashFlow"`
}

func encodeLevels(levels []Level) []levelJSON {
	out := make([]levelJSON, 0, len(levels))
	for _, level := range levels {
		out = append(out, levelJSON{Price: level.Price.String(), Quantity: level.Quantity})
	}
	return out
}

func decodeLevels(side Side, raw []levelJSON) ([]Level, error) {
	out := make([]Level, 0, len(raw))
	for _, level := range raw {
		price, err := fpdecimal.FromString(level.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
		}
		out = append(out, Level{Side: side, Price: price, Quantity: level.Quantity})
	}
	return out, nil
}

// MarshalJSON implements json.Marshaler; identical snapshots encode to identical bytes
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		Instrument: s.Instrument,
		Index:      s.Index,
		Sells:      encodeLevels(s.Sells),
		Buys:       encodeLevels(s.Buys),
		Matched:    s.Matched,
		CashFlow:   s.CashFlow.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	sells, err := decodeLevels(Sell, raw.Sells)
	if err != nil {
		return err
	}
	buys, err := decodeLevels(Buy, raw.Buys)
	if err != nil {
		return err
	}
	cashFlow := fpdecimal.Zero
	if raw.CashFlow != "" {
		if cashFlow, err = fpdecimal.FromString(raw.CashFlow); err != nil {
			return fmt.Errorf("invalid cash flow: %w", err)
		}
	}

	*s = Snapshot{
		Instrument: raw.Instrument,
		Index:      raw.Index,
		Sells:      sells,
		Buys:       buys,
		Matched:    raw.Matched,
		CashFlow:   cashFlow,
	}
	return nil
}
