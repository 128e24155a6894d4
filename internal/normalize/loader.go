package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"NewsSignals/internal/domain"
)

const indexCacheKey = "normalization-index"

// EntryReader loads the three normalization tables.
type EntryReader interface {
	NormalizationEntries(ctx context.Context) ([]domain.NormalizationEntry, error)
}

// Loader builds indexes from storage. Batches call Refresh to get a fresh
// snapshot; on-demand lookups call Load and share a TTL-cached index.
type Loader struct {
	reader EntryReader
	cache  *cache.Cache
	logger *slog.Logger
}

// NewLoader wires a reader with a cache of the given TTL.
func NewLoader(reader EntryReader, ttl time.Duration, logger *slog.Logger) *Loader {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Loader{
		reader: reader,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Load returns the cached index, building it on a miss.
func (l *Loader) Load(ctx context.Context) (*Index, error) {
	if v, ok := l.cache.Get(indexCacheKey); ok {
		if idx, ok := v.(*Index); ok {
			return idx, nil
		}
	}
	return l.Refresh(ctx)
}

// Refresh reads the tables, builds a new index and replaces the cached one.
func (l *Loader) Refresh(ctx context.Context) (*Index, error) {
	if l.reader == nil {
		return nil, fmt.Errorf("normalization reader is not configured")
	}

	entries, err := l.reader.NormalizationEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load normalization entries: %w", err)
	}

	idx := Build(entries)
	l.cache.SetDefault(indexCacheKey, idx)

	if l.logger != nil {
		l.logger.Debug("normalization index built",
			"entries", len(entries),
			"texts", idx.Len(),
			"stocks", idx.StockCount())
	}
	return idx, nil
}
