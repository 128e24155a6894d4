package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsSignals/internal/domain"
)

func TestInputHashIsOrderAndDuplicateInsensitive(t *testing.T) {
	t.Parallel()

	a := InputHash([]int64{3, 1, 2})
	b := InputHash([]int64{1, 2, 3, 2})
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	// md5("1,2,3")
	assert.Equal(t, "55b84a9d317184fe61224bfb4a060fb0", a)
	assert.NotEqual(t, a, InputHash([]int64{1, 2, 3, 4}))
}

func TestInputHashMatchesCommaJoinedDigest(t *testing.T) {
	t.Parallel()

	// md5 of the empty string
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", InputHash(nil))
}

type hashStub struct {
	hash  string
	found bool
	err   error
}

func (h hashStub) LatestInputHash(context.Context, string) (string, bool, error) {
	return h.hash, h.found, h.err
}

func TestCacheCheck(t *testing.T) {
	t.Parallel()

	ids := []int64{10, 11}
	hash := InputHash(ids)
	ctx := context.Background()

	d, err := NewCache(hashStub{}).Check(ctx, "A", ids)
	require.NoError(t, err)
	assert.False(t, d.Skip)
	assert.Equal(t, hash, d.InputHash)

	d, err = NewCache(hashStub{hash: hash, found: true}).Check(ctx, "A", ids)
	require.NoError(t, err)
	assert.True(t, d.Skip)

	d, err = NewCache(hashStub{hash: hash, found: true}).Check(ctx, "A", []int64{10, 11, 12})
	require.NoError(t, err)
	assert.False(t, d.Skip)

	_, err = NewCache(hashStub{err: errors.New("boom")}).Check(ctx, "A", ids)
	require.Error(t, err)
}

func TestWindowStart(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC), WindowStart(now, time.UTC, 2))
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), WindowStart(now, time.UTC, 1))
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), WindowStart(now, nil, 0))
}

func TestSelectCandidates(t *testing.T) {
	t.Parallel()

	since := time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)
	records := []domain.MentionRecord{
		{ArticleID: 5, PublishedAt: since.Add(time.Hour), Keywords: []string{"Samsung"}},
		{ArticleID: 2, PublishedAt: since, Keywords: []string{"Other", "Samsung Electronics"}},
		{ArticleID: 7, PublishedAt: since.Add(-time.Second), Keywords: []string{"Samsung"}},
		{ArticleID: 9, PublishedAt: since.Add(time.Hour), Keywords: []string{"LG"}},
		{ArticleID: 5, PublishedAt: since.Add(time.Hour), Keywords: []string{"SEC"}},
	}

	got := SelectCandidates(records, []string{"Samsung Electronics", "Samsung", "SEC"}, since)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ArticleID)
	assert.Equal(t, int64(5), got[1].ArticleID)
	assert.Equal(t, []string{"Samsung", "SEC"}, got[1].Keywords)
	assert.Equal(t, []int64{2, 5}, CandidateIDs(got))
}

func TestKeepEmbedded(t *testing.T) {
	t.Parallel()

	records := []domain.MentionRecord{{ArticleID: 2}, {ArticleID: 5}, {ArticleID: 8}}
	got := KeepEmbedded(records, map[int64]struct{}{5: {}, 8: {}, 99: {}})
	assert.Equal(t, []int64{5, 8}, CandidateIDs(got))

	// The hash follows the embedded subset, not the keyword match.
	assert.NotEqual(t, InputHash(CandidateIDs(records)), InputHash(CandidateIDs(got)))
	assert.Empty(t, KeepEmbedded(records, nil))
}
