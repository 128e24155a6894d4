package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsSignals/internal/domain"
)

type countingReader struct {
	entries []domain.NormalizationEntry
	err     error
	calls   int
}

func (c *countingReader) NormalizationEntries(context.Context) ([]domain.NormalizationEntry, error) {
	c.calls++
	return c.entries, c.err
}

func TestLoaderCachesUntilRefresh(t *testing.T) {
	t.Parallel()

	reader := &countingReader{entries: []domain.NormalizationEntry{
		{Kind: domain.KindCanonical, Text: "Kakao", StockCode: "035720", StockName: "Kakao"},
	}}
	loader := NewLoader(reader, time.Minute, nil)
	ctx := context.Background()

	first, err := loader.Load(ctx)
	require.NoError(t, err)
	second, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, reader.calls)

	reader.entries = append(reader.entries, domain.NormalizationEntry{
		Kind: domain.KindAlias, Text: "Kakao Corp", StockCode: "035720", StockName: "Kakao",
	})
	fresh, err := loader.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)
	code, ok := fresh.Resolve("Kakao Corp")
	require.True(t, ok)
	assert.Equal(t, "035720", code)

	cached, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Same(t, fresh, cached)
}

func TestLoaderErrors(t *testing.T) {
	t.Parallel()

	_, err := NewLoader(&countingReader{err: errors.New("db down")}, 0, nil).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")

	_, err = NewLoader(nil, 0, nil).Refresh(context.Background())
	assert.Error(t, err)
}
