package feed

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrUnorderedLog       = errors.New("sequence indices must be strictly increasing")
	ErrPricePrecision     = errors.New("price has more fractional digits than supported")
	ErrMissingColumn      = errors.New("missing column")
	ErrUnsupportedAction  = errors.New("unsupported action")
	ErrUnknownFormat      = errors.New("unknown log format")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrEmptyTickerList    = errors.New("generator needs at least one ticker")
	ErrInvalidGenerateCfg = errors.New("invalid generator configuration")
)

// RecordError locates a rejected input record
type RecordError struct {
	Line  int
	Field string
	Err   error
}

func (e *RecordError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
