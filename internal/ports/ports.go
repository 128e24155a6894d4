package ports

import (
	"context"
	"time"

	"NewsSignals/internal/domain"
)

// MentionQuery filters extraction rows by publication time and extractor identity.
// Empty Model or PromptVersion disables that filter.
type MentionQuery struct {
	From          time.Time
	To            time.Time
	Model         string
	PromptVersion string
}

// MentionReader lists extracted mention records.
type MentionReader interface {
	ListMentions(ctx context.Context, q MentionQuery) ([]domain.MentionRecord, error)
}

// NormalizationReader loads canonical names, aliases and subsidiary names.
type NormalizationReader interface {
	NormalizationEntries(ctx context.Context) ([]domain.NormalizationEntry, error)
}

// EmbeddingReader returns persisted embedding vectors keyed by article id.
// EmbeddedIDs reports which ids have a vector without reading it.
type EmbeddingReader interface {
	Embeddings(ctx context.Context, ids []int64) (map[int64][]float64, error)
	EmbeddedIDs(ctx context.Context, ids []int64) (map[int64]struct{}, error)
}

// ArticleReader returns raw article rows keyed by id.
type ArticleReader interface {
	Articles(ctx context.Context, ids []int64) (map[int64]domain.Article, error)
}

// PriceReader returns the most recent daily price row, or nil when none exists.
type PriceReader interface {
	LatestPrice(ctx context.Context, stockCode string) (*domain.PriceRow, error)
}

// SnapshotStore persists cluster snapshots append-only.
type SnapshotStore interface {
	LatestInputHash(ctx context.Context, stockCode string) (string, bool, error)
	LatestSnapshot(ctx context.Context, stockCode string) (*domain.ClusterSnapshot, error)
	AppendSnapshot(ctx context.Context, snap domain.ClusterSnapshot) (int64, error)
}

// ClusterStore is everything the clustering use case reads and writes.
type ClusterStore interface {
	MentionReader
	EmbeddingReader
	ArticleReader
	PriceReader
	SnapshotStore
}

// TopicSummarizer turns a topic's titles into a headline and its bodies into a summary.
type TopicSummarizer interface {
	SummarizeTitles(ctx context.Context, titles []string) (string, error)
	SummarizeBodies(ctx context.Context, bodies []string) (string, error)
}

// Notifier streams digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when batch jobs execute.
type Scheduler interface {
	Schedule(spec string, job func(time.Time)) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
