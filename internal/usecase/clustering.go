package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"NewsSignals/internal/cluster"
	"NewsSignals/internal/config"
	"NewsSignals/internal/domain"
	"NewsSignals/internal/jobs"
	"NewsSignals/internal/metrics"
	"NewsSignals/internal/normalize"
	"NewsSignals/internal/ports"
)

// StockObserver records per-stock clustering outcomes.
type StockObserver interface {
	ObserveStock(outcome string, elapsed time.Duration)
}

// ClusteringDeps wires the clustering use case.
type ClusteringDeps struct {
	Store         ports.ClusterStore
	Index         IndexSource
	Summarizer    ports.TopicSummarizer
	Jobs          *jobs.Coordinator
	Observer      StockObserver
	Params        config.ClusteringConfig
	Extraction    config.ExtractionConfig
	BodyFormatter func(string) string
	Location      *time.Location
	Clock         Clock
	Logger        *slog.Logger
}

// ClusteringService runs the per-stock clustering batch and on-demand
// keyword clustering.
type ClusteringService struct {
	store      ports.ClusterStore
	index      IndexSource
	jobs       *jobs.Coordinator
	observer   StockObserver
	clusterer  *cluster.Clusterer
	cache      *cluster.Cache
	params     cluster.Params
	days       int
	extraction config.ExtractionConfig
	loc        *time.Location
	clock      Clock
	logger     *slog.Logger
}

// BatchReport summarizes one clustering batch.
type BatchReport struct {
	RunID    string `json:"run_id"`
	Stocks   int    `json:"stocks"`
	Computed int    `json:"computed"`
	Skipped  int    `json:"skipped"`
	Empty    int    `json:"empty"`
	Failed   int    `json:"failed"`
}

// NewClusteringService constructs the use case. A nil summarizer leaves topics untitled.
func NewClusteringService(deps ClusteringDeps) *ClusteringService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	params := cluster.DefaultParams()
	if deps.Params.Eps > 0 {
		params.Eps = deps.Params.Eps
	}
	if deps.Params.MinSamples > 0 {
		params.MinSamples = deps.Params.MinSamples
	}
	if deps.Params.MaxBodies > 0 {
		params.MaxBodies = deps.Params.MaxBodies
	}
	if deps.Params.BodyChars > 0 {
		params.BodyChars = deps.Params.BodyChars
	}
	days := deps.Params.Days
	if days <= 0 {
		days = 2
	}

	var summarizer cluster.Summarizer
	if deps.Summarizer != nil {
		summarizer = deps.Summarizer
	}

	return &ClusteringService{
		store:    deps.Store,
		index:    deps.Index,
		jobs:     deps.Jobs,
		observer: deps.Observer,
		clusterer: cluster.NewClusterer(deps.Store, summarizer, logger,
			cluster.WithBodyFormatter(deps.BodyFormatter)),
		cache:      cluster.NewCache(deps.Store),
		params:     params,
		days:       days,
		extraction: deps.Extraction,
		loc:        loc,
		clock:      deps.Clock,
		logger:     logger,
	}
}

// StartBatch launches RunBatch in the background unless a clustering batch
// is already running.
func (s *ClusteringService) StartBatch(ctx context.Context) (jobs.StartResult, error) {
	if s.jobs == nil {
		return "", fmt.Errorf("job coordinator is not configured")
	}
	return s.jobs.Start(ctx, jobs.KindClustering, func(ctx context.Context) error {
		_, err := s.RunBatch(ctx)
		return err
	})
}

// Status reports whether a clustering batch is running.
func (s *ClusteringService) Status() (jobs.Status, error) {
	if s.jobs == nil {
		return jobs.Status{}, fmt.Errorf("job coordinator is not configured")
	}
	return s.jobs.Status(jobs.KindClustering)
}

// RunBatch clusters every stock mentioned inside the lookback window, one
// stock at a time. A failing stock is logged and skipped; it never aborts
// the batch and leaves no snapshot behind.
func (s *ClusteringService) RunBatch(ctx context.Context) (BatchReport, error) {
	report := BatchReport{RunID: uuid.NewString()}
	logger := s.logger.With("run_id", report.RunID)

	now := s.clock.now()
	since := cluster.WindowStart(now, s.loc, s.days)

	idx, err := s.index.Refresh(ctx)
	if err != nil {
		return report, fmt.Errorf("build normalization index: %w", err)
	}

	records, err := s.store.ListMentions(ctx, ports.MentionQuery{
		From:          since,
		To:            now,
		Model:         s.extraction.Model,
		PromptVersion: s.extraction.PromptVersion,
	})
	if err != nil {
		return report, fmt.Errorf("list mentions: %w", err)
	}

	targets := batchTargets(idx, records)
	report.Stocks = len(targets)
	logger.Info("clustering batch started", "since", since, "records", len(records), "stocks", len(targets))

	for _, code := range targets {
		start := time.Now()
		outcome, err := s.clusterStock(ctx, logger, idx, code, records, since, now)
		s.observe(outcome, time.Since(start))

		switch outcome {
		case metrics.StockComputed:
			report.Computed++
		case metrics.StockSkipped:
			report.Skipped++
		case metrics.StockEmpty:
			report.Empty++
		case metrics.StockFailed:
			report.Failed++
			logger.Error("stock clustering failed",
				"stock_code", code,
				"stock_name", idx.Name(code),
				"error", err)
		}
	}

	logger.Info("clustering batch finished",
		"computed", report.Computed,
		"skipped", report.Skipped,
		"empty", report.Empty,
		"failed", report.Failed)
	return report, nil
}

func (s *ClusteringService) clusterStock(
	ctx context.Context,
	logger *slog.Logger,
	idx *normalize.Index,
	code string,
	records []domain.MentionRecord,
	since, now time.Time,
) (string, error) {
	keywords := idx.Keywords(code)
	name := idx.Name(code)

	candidates, err := s.candidates(ctx, records, keywords, since)
	if err != nil {
		return metrics.StockFailed, err
	}
	if len(candidates) == 0 {
		return metrics.StockEmpty, nil
	}

	decision, err := s.cache.Check(ctx, code, cluster.CandidateIDs(candidates))
	if err != nil {
		return metrics.StockFailed, err
	}
	if decision.Skip {
		logger.Info("cluster input unchanged, skipping",
			"stock_code", code,
			"stock_name", name,
			"input_hash", decision.InputHash)
		return metrics.StockSkipped, nil
	}

	result, err := s.clusterer.Run(ctx, cluster.Input{
		StockCode:  code,
		Keyword:    name,
		Keywords:   keywords,
		Candidates: candidates,
		Index:      idx,
		Params:     s.params,
	})
	if err != nil {
		return metrics.StockFailed, err
	}

	id, err := s.store.AppendSnapshot(ctx, domain.ClusterSnapshot{
		StockCode:  code,
		StockName:  name,
		TotalCount: result.TotalCount,
		InputHash:  decision.InputHash,
		ComputedAt: now,
		Result:     result,
	})
	if err != nil {
		return metrics.StockFailed, fmt.Errorf("append snapshot: %w", err)
	}

	logger.Info("stock clustered",
		"stock_code", code,
		"stock_name", name,
		"snapshot_id", id,
		"total_count", result.TotalCount,
		"clusters", len(result.Clusters),
		"noise", len(result.Noise))
	return metrics.StockComputed, nil
}

// ClusterKeyword clusters the articles of the stock a keyword resolves to,
// without reading or writing snapshots. days and eps fall back to the batch
// settings when non-positive. A summarizer failure degrades to an untitled topic.
func (s *ClusteringService) ClusterKeyword(ctx context.Context, keyword string, days int, eps float64) (domain.ClusterResult, error) {
	idx, err := s.index.Load(ctx)
	if err != nil {
		return domain.ClusterResult{}, fmt.Errorf("load normalization index: %w", err)
	}

	code, ok := idx.Resolve(keyword)
	if !ok {
		return domain.ClusterResult{}, fmt.Errorf("%w: keyword %q", ErrStockNotFound, keyword)
	}
	if days <= 0 {
		days = s.days
	}
	params := s.params
	if eps > 0 {
		params.Eps = eps
	}

	now := s.clock.now()
	since := cluster.WindowStart(now, s.loc, days)
	records, err := s.store.ListMentions(ctx, ports.MentionQuery{
		From:          since,
		To:            now,
		Model:         s.extraction.Model,
		PromptVersion: s.extraction.PromptVersion,
	})
	if err != nil {
		return domain.ClusterResult{}, fmt.Errorf("list mentions: %w", err)
	}

	keywords := idx.Keywords(code)
	candidates, err := s.candidates(ctx, records, keywords, since)
	if err != nil {
		return domain.ClusterResult{}, err
	}
	result, err := s.clusterer.Run(ctx, cluster.Input{
		StockCode:  code,
		Keyword:    keyword,
		Keywords:   keywords,
		Candidates: candidates,
		Index:      idx,
		Params:     params,
	})
	if errors.Is(err, cluster.ErrTopicUnavailable) {
		s.logger.Warn("topic summary unavailable", "keyword", keyword, "stock_code", code, "error", err)
		return result, nil
	}
	if err != nil {
		return domain.ClusterResult{}, err
	}
	return result, nil
}

// candidates selects the keyword-matched records inside the window that have
// a stored embedding. The input hash covers exactly this set.
func (s *ClusteringService) candidates(ctx context.Context, records []domain.MentionRecord, keywords []string, since time.Time) ([]domain.MentionRecord, error) {
	matched := cluster.SelectCandidates(records, keywords, since)
	if len(matched) == 0 {
		return matched, nil
	}
	embedded, err := s.store.EmbeddedIDs(ctx, cluster.CandidateIDs(matched))
	if err != nil {
		return nil, fmt.Errorf("load embedded ids: %w", err)
	}
	return cluster.KeepEmbedded(matched, embedded), nil
}

func (s *ClusteringService) observe(outcome string, elapsed time.Duration) {
	if s.observer != nil {
		s.observer.ObserveStock(outcome, elapsed)
	}
}

// batchTargets resolves every keyword in records and returns the distinct
// stock codes in ascending order.
func batchTargets(idx *normalize.Index, records []domain.MentionRecord) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		for _, kw := range rec.Keywords {
			if code, ok := idx.Resolve(kw); ok {
				seen[code] = struct{}{}
			}
		}
	}
	codes := make([]string, 0, len(seen))
	for code := range seen {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
