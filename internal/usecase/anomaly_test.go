package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsSignals/internal/config"
	"NewsSignals/internal/domain"
)

type countingObserver struct {
	anomalies []int
}

func (c *countingObserver) ObserveAnomalies(n int) { c.anomalies = append(c.anomalies, n) }

// spikeStore holds 12 recent Samsung articles against a baseline of 5,
// 10 recent Hynix articles against 25, and 3 recent Kakao articles.
func spikeStore() *memStore {
	store := newMemStore()
	recent := testNow.Add(-time.Hour)
	baseline := time.Date(2026, 10, 10, 10, 0, 0, 0, time.UTC)

	for id := int64(1); id <= 12; id++ {
		store.addArticle(id, recent, "samsung", nil, "Samsung")
	}
	store.mentions[0].Keywords = append(store.mentions[0].Keywords, "Samsung Electronics", "Foo")
	for id := int64(101); id <= 105; id++ {
		store.addArticle(id, baseline, "samsung-old", nil, "Samsung Electronics")
	}
	for id := int64(21); id <= 30; id++ {
		store.addArticle(id, recent, "hynix", nil, "Hynix")
	}
	for id := int64(201); id <= 225; id++ {
		store.addArticle(id, baseline, "hynix-old", nil, "SK hynix")
	}
	for id := int64(31); id <= 33; id++ {
		store.addArticle(id, recent, "kakao", nil, "Kakao")
	}
	// Yesterday before the recent window starts: counted nowhere.
	store.addArticle(40, time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC), "kakao-gap", nil, "Kakao")
	return store
}

func newAnomalyService(store *memStore, idx *staticIndex, notifier *recordingNotifier, obs *countingObserver) *AnomalyService {
	deps := AnomalyDeps{
		Mentions:   store,
		Index:      idx,
		Thresholds: config.AnomalyConfig{MinTodayCount: 10, Ratio: 2, CompareDays: 5},
		Extraction: config.ExtractionConfig{Model: "gpt-4o-mini", PromptVersion: "v1"},
		Location:   time.UTC,
		Clock:      fixedClock,
	}
	if notifier != nil {
		deps.Notifier = notifier
	}
	if obs != nil {
		deps.Observer = obs
	}
	return NewAnomalyService(deps)
}

func TestDetectScoresSpikes(t *testing.T) {
	store := spikeStore()
	idx := &staticIndex{idx: testIndex()}
	obs := &countingObserver{}

	signals, err := newAnomalyService(store, idx, nil, obs).Detect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.AnomalySignal{
		{StockCode: "005930", StockName: "Samsung Electronics", TodayCount: 12, AvgCount: 1, Ratio: 12},
		{StockCode: "000660", StockName: "SK hynix", TodayCount: 10, AvgCount: 5, Ratio: 2},
	}, signals)
	assert.Equal(t, []int{2}, obs.anomalies)
	assert.Equal(t, 1, idx.refreshes)
	assert.Zero(t, idx.loads)

	require.Len(t, store.queries, 1)
	q := store.queries[0]
	assert.Equal(t, time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC), q.From)
	assert.True(t, q.To.Equal(testNow))
	assert.Equal(t, "gpt-4o-mini", q.Model)
	assert.Equal(t, "v1", q.PromptVersion)
}

func TestDetectIndexFailure(t *testing.T) {
	idx := &staticIndex{err: errors.New("db down")}
	_, err := newAnomalyService(newMemStore(), idx, nil, nil).Detect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestHotStocks(t *testing.T) {
	idx := &staticIndex{idx: testIndex()}
	svc := newAnomalyService(spikeStore(), idx, nil, nil)

	hot, err := svc.HotStocks(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.HotStock{
		{Rank: 1, StockCode: "005930", StockName: "Samsung Electronics", Count: 12},
		{Rank: 2, StockCode: "000660", StockName: "SK hynix", Count: 10},
		{Rank: 3, StockCode: "035720", StockName: "Kakao", Count: 3},
	}, hot)

	top, err := svc.HotStocks(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "005930", top[0].StockCode)

	assert.Equal(t, 2, idx.loads)
	assert.Zero(t, idx.refreshes)
}

func TestAlertPublishesDigest(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newAnomalyService(spikeStore(), &staticIndex{idx: testIndex()}, notifier, nil)

	signals, err := svc.Alert(context.Background())
	require.NoError(t, err)
	require.Len(t, signals, 2)

	require.Len(t, notifier.digests, 1)
	assert.Contains(t, notifier.digests[0], "1. Samsung Electronics (005930): today 12, avg 1.0, x12.0")
	assert.Contains(t, notifier.digests[0], "2. SK hynix (000660): today 10, avg 5.0, x2.0")
}

func TestAlertSwallowsPublishFailure(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("telegram down")}
	svc := newAnomalyService(spikeStore(), &staticIndex{idx: testIndex()}, notifier, nil)

	signals, err := svc.Alert(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, 2)
	assert.Len(t, notifier.digests, 1)
}

func TestAlertWithoutSignalsSendsNothing(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := newAnomalyService(newMemStore(), &staticIndex{idx: testIndex()}, notifier, nil)

	signals, err := svc.Alert(context.Background())
	require.NoError(t, err)
	assert.Empty(t, signals)
	assert.Empty(t, notifier.digests)
}

func TestFormatAnomalyDigest(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	got := FormatAnomalyDigest([]domain.AnomalySignal{
		{StockCode: "000001", StockName: "Foo_Bar*", TodayCount: 11, AvgCount: 2.5, Ratio: 4.4},
	}, at)
	assert.Equal(t, "*Mention spikes* 2026-10-15 09:30 UTC\n1. Foo\\_Bar\\* (000001): today 11, avg 2.5, x4.4", got)
	assert.Empty(t, FormatAnomalyDigest(nil, at))
}
