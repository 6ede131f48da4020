// Package report renders snapshot reports for terminals.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/fatih/color"
	"github.com/nikolaydubina/fpdecimal"
)

// View selects how a snapshot is printed
type View string

const (
	// ViewSnapshot prints one line per level, sells then buys
	ViewSnapshot View = "snapshot"
	// ViewLadder prints bid size, price and ask size per price
	ViewLadder View = "ladder"
	// ViewTable prints a coloured table
	ViewTable View = "table"
)

// ParseView parses a view name
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewSnapshot, ViewLadder, ViewTable:
		return v, nil
	default:
		return "", fmt.Errorf("unknown view %q: want snapshot, ladder or table", s)
	}
}

var (
	header = color.New(color.FgCyan).SprintfFunc()
	ask    = color.New(color.FgRed).SprintfFunc()
	bid    = color.New(color.FgGreen).SprintfFunc()
)

// Write prints s in the given view
func Write(w io.Writer, view View, s *core.Snapshot) error {
	switch view {
	case ViewLadder:
		return WriteLadder(w, s)
	case ViewTable:
		return WriteTable(w, s)
	default:
		return WriteSnapshot(w, s)
	}
}

// WriteSnapshot prints the level listing framed by "Printing OrderBook ----" and "End"
func WriteSnapshot(w io.Writer, s *core.Snapshot) error {
	_, err := fmt.Fprintln(w, s.String())
	return err
}

// WriteLadder prints the trading ladder, one row per price, highest first
func WriteLadder(w io.Writer, s *core.Snapshot) error {
	if _, err := fmt.Fprintf(w, "Ticker: %s\nBid Size | Price  | Ask Size\n---------+--------+---------\n", s.Instrument); err != nil {
		return err
	}
	for _, row := range s.Ladder() {
		if _, err := fmt.Fprintf(w, "%7s  | %6s | %s\n", size(row.BidSize), core.FormatPrice(row.Price), size(row.AskSize)); err != nil {
			return err
		}
	}
	return nil
}

func size(q int64) string {
	if q == 0 {
		return " "
	}
	return strconv.FormatInt(q, 10)
}

// WriteTable prints a coloured table of both sides with totals
func WriteTable(w io.Writer, s *core.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(tw, "%s\t%s\t%s\t\n", header("Price"), header("Quantity"), header("Side"))
	for _, level := range s.Sells {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", core.FormatPrice(level.Price), level.Quantity, ask("ASK"))
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t\n", "-----", "-----", "----")
	for _, level := range s.Buys {
		fmt.Fprintf(tw, "%s\t%d\t%s\t\n", core.FormatPrice(level.Price), level.Quantity, bid("BID"))
	}
	fmt.Fprintf(tw, "\n%s\t%d\t%s\t\n", "asks", s.Total(core.Sell), "")
	fmt.Fprintf(tw, "%s\t%d\t%s\t\n", "bids", s.Total(core.Buy), "")
	fmt.Fprintf(tw, "%s\t%d\t%s\t\n", "matched", s.Matched, "")

	return tw.Flush()
}

// WritePnL prints the venue cash flow rounded to cents
func WritePnL(w io.Writer, cashFlow fpdecimal.Decimal) error {
	f, err := strconv.ParseFloat(cashFlow.String(), 64)
	if err != nil {
		return fmt.Errorf("invalid cash flow %s: %w", cashFlow, err)
	}
	_, err = fmt.Fprintf(w, "\nTotal PnL: $%.2f\n\n", f)
	return err
}
