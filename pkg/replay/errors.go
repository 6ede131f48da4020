package replay

import (
	"fmt"

	"github.com/erain9/clobreplay/pkg/core"
)

// IndexError reports a query position outside the log
type IndexError struct {
	Index int64
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %d not in [0, %d)", core.ErrInvalidIndex, e.Index, e.Len)
}

// Unwrap lets callers match core.ErrInvalidIndex with errors.Is
func (e *IndexError) Unwrap() error {
	return core.ErrInvalidIndex
}
