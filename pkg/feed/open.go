package feed

import (
	"fmt"
	"strings"
)

// Log formats
const (
	FormatCSV    = "csv"
	FormatSQLite = "sqlite"
)

// Loader loads a log stored in a non-CSV format
type Loader func(path string) (*Log, error)

var loaders = map[string]Loader{}

// RegisterLoader makes a format available to Open. Storage packages call it from init.
func RegisterLoader(format string, loader Loader) {
	loaders[strings.ToLower(format)] = loader
}

// Open loads a log from path in the given format
func Open(format, path string) (*Log, error) {
	switch f := strings.ToLower(format); f {
	case "", FormatCSV:
		return LoadCSV(path)
	default:
		loader, ok := loaders[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
		}
		return loader(path)
	}
}
