package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"NewsSignals/internal/domain"
)

// ErrTopicUnavailable marks a result whose clusters are valid but whose topic
// headline or summary could not be generated.
var ErrTopicUnavailable = errors.New("topic summary unavailable")

// Summarizer turns topic titles and bodies into a headline and a summary.
type Summarizer interface {
	SummarizeTitles(ctx context.Context, titles []string) (string, error)
	SummarizeBodies(ctx context.Context, bodies []string) (string, error)
}

// Store is the read side the clusterer needs.
type Store interface {
	Embeddings(ctx context.Context, ids []int64) (map[int64][]float64, error)
	Articles(ctx context.Context, ids []int64) (map[int64]domain.Article, error)
	LatestPrice(ctx context.Context, stockCode string) (*domain.PriceRow, error)
}

// Index resolves keywords and names stocks.
type Index interface {
	Resolve(text string) (string, bool)
	Name(code string) string
}

// Params tunes one clustering pass.
type Params struct {
	Eps        float64
	MinSamples int
	MaxBodies  int
	BodyChars  int
}

// DefaultParams mirrors the batch defaults.
func DefaultParams() Params {
	return Params{Eps: 0.2, MinSamples: 2, MaxBodies: 5, BodyChars: 300}
}

// Input describes the stock being clustered. Candidates must already be
// restricted to the stock's keywords and lookback window.
type Input struct {
	StockCode  string
	Keyword    string
	Keywords   []string
	Candidates []domain.MentionRecord
	Index      Index
	Params     Params
}

// Option configures a Clusterer.
type Option func(*Clusterer)

// WithBodyFormatter cleans article bodies before truncation.
func WithBodyFormatter(fn func(string) string) Option {
	return func(c *Clusterer) {
		if fn != nil {
			c.formatBody = fn
		}
	}
}

// Clusterer groups candidate articles by embedding similarity and names the
// largest group.
type Clusterer struct {
	store      Store
	summarizer Summarizer
	logger     *slog.Logger
	formatBody func(string) string
}

// NewClusterer wires the store and the summarizer. A nil summarizer leaves
// topics untitled.
func NewClusterer(store Store, summarizer Summarizer, logger *slog.Logger, opts ...Option) *Clusterer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Clusterer{
		store:      store,
		summarizer: summarizer,
		logger:     logger,
		formatBody: strings.TrimSpace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run clusters the candidates. On a summarizer failure it returns the full
// result together with an error wrapping ErrTopicUnavailable.
func (c *Clusterer) Run(ctx context.Context, in Input) (domain.ClusterResult, error) {
	p := in.Params
	if p.MinSamples <= 0 {
		p.MinSamples = DefaultParams().MinSamples
	}

	result := domain.ClusterResult{
		Keyword:  in.Keyword,
		Clusters: []domain.Cluster{},
		Noise:    []domain.ArticleRef{},
	}
	result.StockPrice = c.latestPrice(ctx, in.StockCode).ToStockPrice()

	ids := CandidateIDs(in.Candidates)
	if len(ids) == 0 {
		return result, nil
	}

	result.RelatedStock = c.relatedStock(ctx, in)

	embeddings, err := c.store.Embeddings(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("load embeddings: %w", err)
	}
	articles, err := c.store.Articles(ctx, ids)
	if err != nil {
		return result, fmt.Errorf("load articles: %w", err)
	}

	vectors := make([]domain.ArticleVector, 0, len(embeddings))
	for _, id := range ids {
		emb, ok := embeddings[id]
		if !ok || len(emb) == 0 {
			continue
		}
		vectors = append(vectors, domain.ArticleVector{
			ArticleID: id,
			Title:     articles[id].Title,
			Embedding: emb,
		})
	}
	result.TotalCount = len(vectors)
	if len(vectors) == 0 {
		return result, nil
	}

	points := make([][]float64, len(vectors))
	for i, v := range vectors {
		points[i] = v.Embedding
	}
	labels, err := DBSCAN(points, p.Eps, p.MinSamples)
	if err != nil {
		return result, fmt.Errorf("dbscan: %w", err)
	}

	clusters, noise := group(vectors, labels)
	result.Noise = noise
	if len(clusters) == 0 {
		return result, nil
	}

	top := clusters[0]
	result.Clusters = clusters[1:]
	result.Topic = &domain.Topic{Count: top.Count, Articles: top.Articles}

	if err := c.describeTopic(ctx, result.Topic, articles, p); err != nil {
		return result, fmt.Errorf("%w: %w", ErrTopicUnavailable, err)
	}
	return result, nil
}

// group splits vectors by label. Clusters are ordered by size descending,
// equal sizes keeping the order in which their first member appears.
func group(vectors []domain.ArticleVector, labels []int) ([]domain.Cluster, []domain.ArticleRef) {
	noise := []domain.ArticleRef{}
	var order []int
	members := map[int][]domain.ArticleRef{}

	for i, v := range vectors {
		ref := domain.ArticleRef{NewsID: v.ArticleID, Title: v.Title}
		label := labels[i]
		if label == Noise {
			noise = append(noise, ref)
			continue
		}
		if _, ok := members[label]; !ok {
			order = append(order, label)
		}
		members[label] = append(members[label], ref)
	}

	clusters := make([]domain.Cluster, 0, len(order))
	for _, label := range order {
		refs := members[label]
		clusters = append(clusters, domain.Cluster{Count: len(refs), Articles: refs})
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Count > clusters[j].Count })

	return clusters, noise
}

func (c *Clusterer) describeTopic(ctx context.Context, topic *domain.Topic, articles map[int64]domain.Article, p Params) error {
	if c.summarizer == nil {
		return nil
	}

	titles := make([]string, 0, len(topic.Articles))
	var bodies []string
	for _, ref := range topic.Articles {
		titles = append(titles, ref.Title)
		if p.MaxBodies > 0 && len(bodies) >= p.MaxBodies {
			continue
		}
		body := c.formatBody(articles[ref.NewsID].Body)
		if body == "" {
			continue
		}
		bodies = append(bodies, truncateRunes(body, p.BodyChars))
	}

	headline, err := c.summarizer.SummarizeTitles(ctx, titles)
	if err != nil {
		return fmt.Errorf("summarize titles: %w", err)
	}
	topic.Title = &headline

	if len(bodies) == 0 {
		return nil
	}
	summary, err := c.summarizer.SummarizeBodies(ctx, bodies)
	if err != nil {
		return fmt.Errorf("summarize bodies: %w", err)
	}
	topic.Summary = &summary
	return nil
}

func (c *Clusterer) latestPrice(ctx context.Context, code string) *domain.PriceRow {
	if code == "" {
		return nil
	}
	row, err := c.store.LatestPrice(ctx, code)
	if err != nil {
		c.logger.Warn("latest price unavailable", "stock_code", code, "error", err)
		return nil
	}
	return row
}

// relatedStock finds the other stock mentioned by the most candidate articles.
// The target's own keywords are ignored; ties go to the smaller stock code.
func (c *Clusterer) relatedStock(ctx context.Context, in Input) *domain.RelatedStock {
	if in.Index == nil {
		return nil
	}

	own := make(map[string]struct{}, len(in.Keywords))
	for _, kw := range in.Keywords {
		own[kw] = struct{}{}
	}

	articlesByStock := map[string]map[int64]struct{}{}
	for _, rec := range in.Candidates {
		for _, kw := range rec.Keywords {
			if _, skip := own[kw]; skip {
				continue
			}
			code, ok := in.Index.Resolve(kw)
			if !ok || code == in.StockCode {
				continue
			}
			set := articlesByStock[code]
			if set == nil {
				set = map[int64]struct{}{}
				articlesByStock[code] = set
			}
			set[rec.ArticleID] = struct{}{}
		}
	}

	best, bestCount := "", 0
	for code, set := range articlesByStock {
		n := len(set)
		if n > bestCount || (n == bestCount && code < best) {
			best, bestCount = code, n
		}
	}
	if best == "" {
		return nil
	}

	related := &domain.RelatedStock{
		StockCode:    best,
		StockName:    in.Index.Name(best),
		MentionCount: bestCount,
	}
	if row := c.latestPrice(ctx, best); row != nil {
		related.Close = row.Close
		related.Diff = row.Diff
		related.DiffRate = row.DiffRate
	}
	return related
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
