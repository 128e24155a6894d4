package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsSignals/internal/domain"
	"NewsSignals/internal/ports"
)

// TopicsStore is the read side of the topics view.
type TopicsStore interface {
	ports.SnapshotStore
	ports.ArticleReader
	ports.PriceReader
}

// TopicsDeps wires the topics read path.
type TopicsDeps struct {
	Store    TopicsStore
	Index    IndexSource
	Location *time.Location
	Logger   *slog.Logger
}

// TopicsService serves the latest clustering snapshot of a stock.
type TopicsService struct {
	store  TopicsStore
	index  IndexSource
	loc    *time.Location
	logger *slog.Logger
}

// NewTopicsService constructs the read path.
func NewTopicsService(deps TopicsDeps) *TopicsService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	return &TopicsService{store: deps.Store, index: deps.Index, loc: loc, logger: logger}
}

// Latest returns the newest snapshot of stockCode with article metadata and
// current prices. A stock without snapshots yields an empty view.
func (s *TopicsService) Latest(ctx context.Context, stockCode string) (domain.StockTopics, error) {
	idx, err := s.index.Load(ctx)
	if err != nil {
		return domain.StockTopics{}, fmt.Errorf("load normalization index: %w", err)
	}
	if _, ok := idx.Stock(stockCode); !ok {
		return domain.StockTopics{}, fmt.Errorf("%w: %s", ErrStockNotFound, stockCode)
	}

	out := domain.StockTopics{
		StockCode:  stockCode,
		StockName:  idx.Name(stockCode),
		StockPrice: s.price(ctx, stockCode).ToStockPrice(),
		Clusters:   []domain.ClusterView{},
		Noise:      []domain.ArticleView{},
	}

	snap, err := s.store.LatestSnapshot(ctx, stockCode)
	if err != nil {
		return domain.StockTopics{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	if snap == nil {
		return out, nil
	}

	computedAt := snap.ComputedAt.In(s.loc)
	out.ComputedAt = &computedAt
	out.TotalCount = snap.TotalCount

	result := snap.Result
	articles, err := s.store.Articles(ctx, referencedIDs(result))
	if err != nil {
		return domain.StockTopics{}, fmt.Errorf("load snapshot articles: %w", err)
	}

	if result.Topic != nil {
		out.Topic = &domain.TopicView{
			Title:       result.Topic.Title,
			Summary:     result.Topic.Summary,
			ClusterView: s.view(result.Topic.Articles, articles),
		}
	}
	for _, c := range result.Clusters {
		out.Clusters = append(out.Clusters, s.view(c.Articles, articles))
	}
	out.Noise = s.enrich(result.Noise, articles)

	if rel := result.RelatedStock; rel != nil {
		related := *rel
		related.Close, related.Diff, related.DiffRate = nil, nil, nil
		if row := s.price(ctx, rel.StockCode); row != nil {
			related.Close = row.Close
			related.Diff = row.Diff
			related.DiffRate = row.DiffRate
		}
		out.RelatedStock = &related
	}

	return out, nil
}

func (s *TopicsService) view(refs []domain.ArticleRef, articles map[int64]domain.Article) domain.ClusterView {
	views := s.enrich(refs, articles)

	var earliest *time.Time
	for _, v := range views {
		if v.PublishedAt != nil && (earliest == nil || v.PublishedAt.Before(*earliest)) {
			earliest = v.PublishedAt
		}
	}

	cv := domain.ClusterView{Count: len(refs), Articles: views}
	if earliest != nil {
		cv.FirstPublished = earliest.Format("15:04")
	}
	return cv
}

func (s *TopicsService) enrich(refs []domain.ArticleRef, articles map[int64]domain.Article) []domain.ArticleView {
	out := make([]domain.ArticleView, 0, len(refs))
	for _, ref := range refs {
		v := domain.ArticleView{NewsID: ref.NewsID, Title: ref.Title}
		if a, ok := articles[ref.NewsID]; ok {
			v.Press = a.Press
			v.URL = a.URL
			if !a.PublishedAt.IsZero() {
				t := a.PublishedAt.In(s.loc)
				v.PublishedAt = &t
			}
		}
		out = append(out, v)
	}
	return out
}

func (s *TopicsService) price(ctx context.Context, code string) *domain.PriceRow {
	row, err := s.store.LatestPrice(ctx, code)
	if err != nil {
		s.logger.Warn("latest price unavailable", "stock_code", code, "error", err)
		return nil
	}
	return row
}

func referencedIDs(r domain.ClusterResult) []int64 {
	var ids []int64
	if r.Topic != nil {
		for _, a := range r.Topic.Articles {
			ids = append(ids, a.NewsID)
		}
	}
	for _, c := range r.Clusters {
		for _, a := range c.Articles {
			ids = append(ids, a.NewsID)
		}
	}
	for _, a := range r.Noise {
		ids = append(ids, a.NewsID)
	}
	return ids
}
