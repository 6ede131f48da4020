package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// MessageSender publishes finished snapshot reports.
// It keeps the query service independent of the broker client in use.
type MessageSender interface {
	SendReport(ctx context.Context, msg *ReportMessage) error
	Close() error
}

// ReportMessage is the broker payload for one snapshot report
type ReportMessage struct {
	Log         string         `json:"log"`
	Instrument  string         `json:"instrument"`
	Index       int64          `json:"index"`
	Sells       []LevelMessage `json:"sells"`
	Buys        []LevelMessage `json:"buys"`
	Matched     int64          `json:"matched"`
	CashFlow    string         `json:"cashFlow"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// LevelMessage is one aggregated price level, price as a decimal string
type LevelMessage struct {
	Price    string `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Key identifies the report stream a message belongs to
func (m *ReportMessage) Key() string {
	return m.Log + ":" + m.Instrument
}

// NewReportMessage converts a snapshot of the named log into a message
func NewReportMessage(log string, snapshot *core.Snapshot) *ReportMessage {
	return &ReportMessage{
		Log:         log,
		Instrument:  snapshot.Instrument,
		Index:       snapshot.Index,
		Sells:       levelMessages(snapshot.Sells),
		Buys:        levelMessages(snapshot.Buys),
		Matched:     snapshot.Matched,
		CashFlow:    snapshot.CashFlow.String(),
		GeneratedAt: time.Now().UTC(),
	}
}

func levelMessages(levels []core.Level) []LevelMessage {
	out := make([]LevelMessage, 0, len(levels))
	for _, level := range levels {
		out = append(out, LevelMessage{Price: level.Price.String(), Quantity: level.Quantity})
	}
	return out
}

// Snapshot converts the message back into a snapshot
func (m *ReportMessage) Snapshot() (*core.Snapshot, error) {
	sells, err := coreLevels(core.Sell, m.Sells)
	if err != nil {
		return nil, err
	}
	buys, err := coreLevels(core.Buy, m.Buys)
	if err != nil {
		return nil, err
	}
	cashFlow := fpdecimal.Zero
	if m.CashFlow != "" {
		if cashFlow, err = fpdecimal.FromString(m.CashFlow); err != nil {
			return nil, fmt.Errorf("invalid cash flow %q: %w", m.CashFlow, err)
		}
	}
	return &core.Snapshot{
		Instrument: m.Instrument,
		Index:      m.Index,
		Sells:      sells,
		Buys:       buys,
		Matched:    m.Matched,
		CashFlow:   cashFlow,
	}, nil
}

func coreLevels(side core.Side, levels []LevelMessage) ([]core.Level, error) {
	out := make([]core.Level, 0, len(levels))
	for _, level := range levels {
		price, err := fpdecimal.FromString(level.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidPrice, level.Price)
		}
		out = append(out, core.Level{Side: side, Price: price, Quantity: level.Quantity})
	}
	return out, nil
}
