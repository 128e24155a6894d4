package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"NewsSignals/internal/domain"
	"NewsSignals/internal/normalize"
	"NewsSignals/internal/ports"
)

var testNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testIndex() *normalize.Index {
	return normalize.Build([]domain.NormalizationEntry{
		{Kind: domain.KindCanonical, Text: "Samsung Electronics", StockCode: "005930", StockName: "Samsung Electronics"},
		{Kind: domain.KindAlias, Text: "Samsung", StockCode: "005930", StockName: "Samsung Electronics"},
		{Kind: domain.KindCanonical, Text: "SK hynix", StockCode: "000660", StockName: "SK hynix"},
		{Kind: domain.KindAlias, Text: "Hynix", StockCode: "000660", StockName: "SK hynix"},
		{Kind: domain.KindCanonical, Text: "Kakao", StockCode: "035720", StockName: "Kakao"},
	})
}

type staticIndex struct {
	mu        sync.Mutex
	idx       *normalize.Index
	err       error
	loads     int
	refreshes int
}

func (s *staticIndex) Load(context.Context) (*normalize.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.idx, s.err
}

func (s *staticIndex) Refresh(context.Context) (*normalize.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return s.idx, s.err
}

type memStore struct {
	mu         sync.Mutex
	mentions   []domain.MentionRecord
	embeddings map[int64][]float64
	articles   map[int64]domain.Article
	prices     map[string]*domain.PriceRow
	snapshots  []domain.ClusterSnapshot
	queries    []ports.MentionQuery
	failStock  string
}

var _ ports.ClusterStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		embeddings: map[int64][]float64{},
		articles:   map[int64]domain.Article{},
		prices:     map[string]*domain.PriceRow{},
	}
}

func (m *memStore) addArticle(id int64, at time.Time, title string, emb []float64, keywords ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mentions = append(m.mentions, domain.MentionRecord{ArticleID: id, PublishedAt: at, Keywords: keywords})
	m.articles[id] = domain.Article{
		ID:          id,
		Title:       title,
		Body:        title + " body",
		Press:       "Daily",
		URL:         "https://news.example/" + title,
		PublishedAt: at,
	}
	if emb != nil {
		m.embeddings[id] = emb
	}
}

func (m *memStore) ListMentions(_ context.Context, q ports.MentionQuery) ([]domain.MentionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	var out []domain.MentionRecord
	for _, r := range m.mentions {
		if r.PublishedAt.Before(q.From) || r.PublishedAt.After(q.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) Embeddings(_ context.Context, ids []int64) (map[int64][]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64][]float64{}
	for _, id := range ids {
		if v, ok := m.embeddings[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (m *memStore) EmbeddedIDs(_ context.Context, ids []int64) (map[int64]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]struct{}{}
	for _, id := range ids {
		if len(m.embeddings[id]) > 0 {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) embed(id int64, emb []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[id] = emb
}

func (m *memStore) Articles(_ context.Context, ids []int64) (map[int64]domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]domain.Article{}
	for _, id := range ids {
		if a, ok := m.articles[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (m *memStore) LatestPrice(_ context.Context, code string) (*domain.PriceRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prices[code], nil
}

func (m *memStore) latest(code string) *domain.ClusterSnapshot {
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].StockCode == code {
			snap := m.snapshots[i]
			return &snap
		}
	}
	return nil
}

func (m *memStore) LatestInputHash(_ context.Context, code string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap := m.latest(code); snap != nil {
		return snap.InputHash, true, nil
	}
	return "", false, nil
}

func (m *memStore) LatestSnapshot(_ context.Context, code string) (*domain.ClusterSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest(code), nil
}

func (m *memStore) AppendSnapshot(_ context.Context, snap domain.ClusterSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.StockCode == m.failStock {
		return 0, errors.New("disk full")
	}
	snap.ID = int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, snap)
	return snap.ID, nil
}

func (m *memStore) snapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

type countingSummarizer struct {
	mu     sync.Mutex
	titles int
	bodies int
	err    error
}

func (c *countingSummarizer) SummarizeTitles(context.Context, []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles++
	if c.err != nil {
		return "", c.err
	}
	return "headline", nil
}

func (c *countingSummarizer) SummarizeBodies(context.Context, []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies++
	if c.err != nil {
		return "", c.err
	}
	return "summary", nil
}

func (c *countingSummarizer) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.titles + c.bodies
}

type recordingNotifier struct {
	mu      sync.Mutex
	digests []string
	err     error
}

func (r *recordingNotifier) PublishDigest(_ context.Context, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests = append(r.digests, digest)
	return r.err
}
