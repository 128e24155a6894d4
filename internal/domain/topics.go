package domain

import "time"

// ArticleView is an ArticleRef enriched with display metadata from news_raw.
type ArticleView struct {
	NewsID      int64      `json:"news_id"`
	Title       string     `json:"title"`
	Press       string     `json:"press"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
}

// ClusterView is a cluster with enriched articles. FirstPublished is the
// earliest publication time among its articles as HH:mm, empty when unknown.
type ClusterView struct {
	Count          int           `json:"count"`
	FirstPublished string        `json:"first_published"`
	Articles       []ArticleView `json:"articles"`
}

// TopicView is the topic cluster in its enriched form.
type TopicView struct {
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
	ClusterView
}

// StockTopics is the read model served for a stock's latest snapshot.
type StockTopics struct {
	StockCode    string        `json:"stock_code"`
	StockName    string        `json:"stock_name"`
	ComputedAt   *time.Time    `json:"computed_at"`
	TotalCount   int           `json:"total_count"`
	StockPrice   *StockPrice   `json:"stock_price"`
	RelatedStock *RelatedStock `json:"related_stock"`
	Topic        *TopicView    `json:"topic"`
	Clusters     []ClusterView `json:"clusters"`
	Noise        []ArticleView `json:"noise"`
}
