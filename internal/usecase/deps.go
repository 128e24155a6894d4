package usecase

import (
	"context"
	"errors"
	"time"

	"NewsSignals/internal/normalize"
)

// ErrStockNotFound is returned when a caller asks for a stock or keyword the
// normalization tables do not know.
var ErrStockNotFound = errors.New("stock not found")

// IndexSource hands out normalization indexes. Refresh forces a new snapshot;
// Load may return a cached one.
type IndexSource interface {
	Load(ctx context.Context) (*normalize.Index, error)
	Refresh(ctx context.Context) (*normalize.Index, error)
}

// Clock returns the current time.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}
