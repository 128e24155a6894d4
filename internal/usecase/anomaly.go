package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsSignals/internal/anomaly"
	"NewsSignals/internal/config"
	"NewsSignals/internal/domain"
	"NewsSignals/internal/mentions"
	"NewsSignals/internal/ports"
)

const defaultHotStocks = 3

// AnomalyObserver records detection results.
type AnomalyObserver interface {
	ObserveAnomalies(n int)
}

// AnomalyDeps wires the anomaly use case.
type AnomalyDeps struct {
	Mentions   ports.MentionReader
	Index      IndexSource
	Notifier   ports.Notifier
	Observer   AnomalyObserver
	Thresholds config.AnomalyConfig
	Extraction config.ExtractionConfig
	Location   *time.Location
	Clock      Clock
	Logger     *slog.Logger
}

// AnomalyService detects mention-volume spikes and ranks hot stocks.
type AnomalyService struct {
	mentions    ports.MentionReader
	index       IndexSource
	notifier    ports.Notifier
	observer    AnomalyObserver
	scorer      *anomaly.Scorer
	compareDays int
	extraction  config.ExtractionConfig
	loc         *time.Location
	clock       Clock
	logger      *slog.Logger
}

// NewAnomalyService constructs the use case.
func NewAnomalyService(deps AnomalyDeps) *AnomalyService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	compareDays := deps.Thresholds.CompareDays
	if compareDays <= 0 {
		compareDays = anomaly.DefaultCompareDays
	}
	return &AnomalyService{
		mentions: deps.Mentions,
		index:    deps.Index,
		notifier: deps.Notifier,
		observer: deps.Observer,
		scorer: anomaly.NewScorer(anomaly.Config{
			MinTodayCount: deps.Thresholds.MinTodayCount,
			Ratio:         deps.Thresholds.Ratio,
			CompareDays:   compareDays,
		}),
		compareDays: compareDays,
		extraction:  deps.Extraction,
		loc:         loc,
		clock:       deps.Clock,
		logger:      logger,
	}
}

// Detect returns the anomaly signals for the current time, ratio descending.
// The normalization index is rebuilt for every detection.
func (s *AnomalyService) Detect(ctx context.Context) ([]domain.AnomalySignal, error) {
	w := mentions.NewWindows(s.clock.now(), s.loc, s.compareDays)

	idx, err := s.index.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("build normalization index: %w", err)
	}

	records, err := s.mentions.ListMentions(ctx, ports.MentionQuery{
		From:          w.BaselineStart,
		To:            w.Now,
		Model:         s.extraction.Model,
		PromptVersion: s.extraction.PromptVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}

	counts := mentions.Counts(mentions.Aggregate(idx, records, w))
	signals := s.scorer.Score(counts, idx)

	if s.observer != nil {
		s.observer.ObserveAnomalies(len(signals))
	}
	s.logger.Info("anomaly detection finished",
		"records", len(records),
		"stocks", len(counts),
		"signals", len(signals))

	return signals, nil
}

// HotStocks ranks the n most mentioned stocks of the last 24 hours. n <= 0
// means three.
func (s *AnomalyService) HotStocks(ctx context.Context, n int) ([]domain.HotStock, error) {
	if n <= 0 {
		n = defaultHotStocks
	}
	w := mentions.NewWindows(s.clock.now(), s.loc, s.compareDays)

	idx, err := s.index.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load normalization index: %w", err)
	}

	records, err := s.mentions.ListMentions(ctx, ports.MentionQuery{
		From:          w.RecentStart,
		To:            w.Now,
		Model:         s.extraction.Model,
		PromptVersion: s.extraction.PromptVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("list mentions: %w", err)
	}

	top := mentions.TopMentioned(mentions.Counts(mentions.Aggregate(idx, records, w)), n)
	out := make([]domain.HotStock, 0, len(top))
	for i, c := range top {
		out = append(out, domain.HotStock{
			Rank:      i + 1,
			StockCode: c.StockCode,
			StockName: idx.Name(c.StockCode),
			Count:     c.TodayCount,
		})
	}
	return out, nil
}

// Alert runs Detect and publishes a digest when there are signals and a
// notifier is configured. Publishing failures are logged, not returned.
func (s *AnomalyService) Alert(ctx context.Context) ([]domain.AnomalySignal, error) {
	signals, err := s.Detect(ctx)
	if err != nil {
		return nil, err
	}
	if s.notifier == nil || len(signals) == 0 {
		return signals, nil
	}

	digest := FormatAnomalyDigest(signals, s.clock.now().In(s.loc))
	if err := s.notifier.PublishDigest(ctx, digest); err != nil {
		s.logger.Error("publish anomaly digest", "error", err)
	}
	return signals, nil
}

// FormatAnomalyDigest renders signals as a Telegram Markdown message.
func FormatAnomalyDigest(signals []domain.AnomalySignal, at time.Time) string {
	if len(signals) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Mention spikes* %s\n", at.Format("2006-01-02 15:04 MST"))
	for i, sig := range signals {
		fmt.Fprintf(&b, "%d. %s (%s): today %d, avg %.1f, x%.1f\n",
			i+1, escapeMarkdown(sig.StockName), sig.StockCode, sig.TodayCount, sig.AvgCount, sig.Ratio)
	}
	return strings.TrimRight(b.String(), "\n")
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
