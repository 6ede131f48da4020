package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/erain9/clobreplay/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// Column names of the historical CSV feed
const (
	ColumnID           = "ID"
	ColumnTicker       = "Ticker"
	ColumnAction       = "Action"
	ColumnType         = "Type"
	ColumnSide         = "Side"
	ColumnPrice        = "Price"
	ColumnVolume       = "Volume"
	ColumnCancelTarget = "Cancel_Target_ID"

	// ActionAdd is the only action a row may carry
	ActionAdd = "Add"

	// PriceDigits is the number of fractional digits a price may carry
	PriceDigits = 3
)

var requiredColumns = []string{ColumnID, ColumnTicker, ColumnType, ColumnSide, ColumnPrice, ColumnVolume}

// LoadCSV reads a CSV order log from path
func LoadCSV(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open order log: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// ReadCSV parses a header-driven CSV order log. Unknown columns are ignored.
// A row whose Action is present and not "Add" is rejected.
func ReadCSV(r io.Reader) (*Log, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &RecordError{Line: 1, Err: fmt.Errorf("%w: empty input", ErrMissingColumn)}
	}
	if err != nil {
		return nil, &RecordError{Line: 1, Err: err}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &RecordError{Line: 1, Field: name, Err: ErrMissingColumn}
		}
	}
	actionCol, hasAction := columns[ColumnAction]

	var orders []*core.Order
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &RecordError{Line: parseErr.Line, Err: fmt.Errorf("%w: %v", ErrMalformedRecord, parseErr.Err)}
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		if hasAction {
			if action := strings.TrimSpace(record[actionCol]); action != ActionAdd {
				return nil, &RecordError{Line: line, Field: ColumnAction, Err: fmt.Errorf("%w: %q", ErrUnsupportedAction, action)}
			}
		}

		order, err := parseRecord(record, columns, line)
		if err != nil {
			return nil, err
		}
		if n := len(orders); n > 0 && order.Seq() <= orders[n-1].Seq() {
			return nil, &RecordError{Line: line, Field: ColumnID, Err: ErrUnorderedLog}
		}
		orders = append(orders, order)
	}

	return NewLog(orders)
}

func parseRecord(record []string, columns map[string]int, line int) (*core.Order, error) {
	field := func(name string) string {
		return strings.TrimSpace(record[columns[name]])
	}
	fail := func(name string, err error) error {
		return &RecordError{Line: line, Field: name, Err: err}
	}

	seq, err := strconv.ParseInt(field(ColumnID), 10, 64)
	if err != nil {
		return nil, fail(ColumnID, fmt.Errorf("%w: %v", core.ErrInvalidSequence, err))
	}
	orderType, err := core.ParseOrderType(field(ColumnType))
	if err != nil {
		return nil, fail(ColumnType, err)
	}
	side, err := core.ParseSide(field(ColumnSide))
	if err != nil {
		return nil, fail(ColumnSide, err)
	}
	quantity, err := strconv.ParseInt(field(ColumnVolume), 10, 64)
	if err != nil {
		return nil, fail(ColumnVolume, fmt.Errorf("%w: %v", core.ErrInvalidQuantity, err))
	}
	instrument := field(ColumnTicker)

	var order *core.Order
	if orderType == core.TypeMarket {
		// Market rows carry a placeholder price, typically -1
		order, err = core.NewMarketOrder(seq, side, instrument, quantity)
	} else {
		price, perr := ParsePrice(field(ColumnPrice))
		if perr != nil {
			return nil, fail(ColumnPrice, perr)
		}
		order, err = core.NewLimitOrder(seq, side, instrument, quantity, price)
	}
	if err != nil {
		return nil, fail(fieldFor(err), err)
	}
	return order, nil
}

func fieldFor(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidQuantity):
		return ColumnVolume
	case errors.Is(err, core.ErrInvalidPrice):
		return ColumnPrice
	case errors.Is(err, core.ErrInvalidInstrument):
		return ColumnTicker
	case errors.Is(err, core.ErrInvalidSequence):
		return ColumnID
	default:
		return ""
	}
}

// ParsePrice parses a decimal price. Digits beyond PriceDigits are rejected unless they are
// trailing zeros, so two distinct input prices never collapse onto one level.
func ParsePrice(s string) (fpdecimal.Decimal, error) {
	if s == "" {
		return fpdecimal.Zero, fmt.Errorf("%w: empty", core.ErrInvalidPrice)
	}
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		if frac := strings.TrimRight(s[dot+1:], "0"); len(frac) > PriceDigits {
			return fpdecimal.Zero, fmt.Errorf("%w: %s", ErrPricePrecision, s)
		}
		if len(s)-dot-1 > PriceDigits {
			s = s[:dot+1+PriceDigits]
		}
	}
	price, err := fpdecimal.FromString(s)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("%w: %v", core.ErrInvalidPrice, err)
	}
	return price, nil
}

// WriteCSV writes orders in the historical feed layout, including the Action column
func WriteCSV(w io.Writer, orders []*core.Order) error {
	writer := csv.NewWriter(w)
	header := []string{ColumnID, ColumnTicker, ColumnAction, ColumnType, ColumnSide, ColumnPrice, ColumnVolume, ColumnCancelTarget}
	if err := writer.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, order := range orders {
		row[0] = strconv.FormatInt(order.Seq(), 10)
		row[1] = order.Instrument()
		row[2] = ActionAdd
		row[4] = sideName(order.Side())
		if order.IsMarketOrder() {
			row[3] = "M"
			row[5] = "-1"
		} else {
			row[3] = "L"
			row[5] = order.Price().String()
		}
		row[6] = strconv.FormatInt(order.Quantity(), 10)
		row[7] = "-1"
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func sideName(side core.Side) string {
	if side == core.Buy {
		return "Buy"
	}
	return "Sell"
}
