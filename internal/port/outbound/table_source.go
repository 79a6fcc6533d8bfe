// Package outbound defines the outbound port interfaces for reading the
// student table from a remote source.
package outbound

import (
	"context"

	"github.com/gaepo/sheetlogin/internal/domain/table"
)

// TableSource is the outbound port for fetching the student table.
// Adapters implement this for different backends (Sheets API, CSV export).
type TableSource interface {
	// Fetch reads the whole table. The first row of the source is the header.
	// Errors should match table.ErrConnection or table.ErrFormat.
	Fetch(ctx context.Context) (*table.Table, error)

	// Name identifies the source in logs and metrics.
	Name() string
}
