package core

import "errors"

// Errors
var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrInvalidInstrument  = errors.New("invalid instrument")
	ErrInvalidSequence    = errors.New("invalid sequence index")
	ErrInvalidIndex       = errors.New("invalid index")
	ErrInstrumentMismatch = errors.New("order instrument does not match order book")
)
