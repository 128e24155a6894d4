package domain

import "time"

// Article is the raw news row used for titles, bodies and display metadata.
type Article struct {
	ID          int64
	Title       string
	Body        string
	Press       string
	URL         string
	PublishedAt time.Time
}

// ArticleVector pairs an article with its persisted embedding.
type ArticleVector struct {
	ArticleID int64
	Title     string
	Embedding []float64
}

// ArticleRef is the compact article form stored inside cluster results.
type ArticleRef struct {
	NewsID int64  `json:"news_id"`
	Title  string `json:"title"`
}

// Cluster is a group of semantically close articles.
type Cluster struct {
	Count    int          `json:"count"`
	Articles []ArticleRef `json:"articles"`
}

// Topic is the largest cluster plus its generated headline and summary.
// Title and Summary stay nil when the summarizer was unavailable.
type Topic struct {
	Title    *string      `json:"title"`
	Summary  *string      `json:"summary"`
	Count    int          `json:"count"`
	Articles []ArticleRef `json:"articles"`
}

// StockPrice is the latest daily close for a stock.
type StockPrice struct {
	StockCode string   `json:"stock_code"`
	Date      string   `json:"date"`
	Close     *int64   `json:"close"`
	Diff      *int64   `json:"diff"`
	DiffRate  *float64 `json:"diff_rate"`
}

// RelatedStock is the most co-mentioned other stock among a stock's articles.
type RelatedStock struct {
	StockCode    string   `json:"stock_code"`
	StockName    string   `json:"stock_name"`
	MentionCount int      `json:"mention_count"`
	Close        *int64   `json:"close"`
	Diff         *int64   `json:"diff"`
	DiffRate     *float64 `json:"diff_rate"`
}

// ClusterResult is the output of one clustering pass for a stock.
type ClusterResult struct {
	Keyword      string        `json:"keyword"`
	TotalCount   int           `json:"total_count"`
	StockPrice   *StockPrice   `json:"stock_price"`
	RelatedStock *RelatedStock `json:"related_stock"`
	Topic        *Topic        `json:"topic"`
	Clusters     []Cluster     `json:"clusters"`
	Noise        []ArticleRef  `json:"noise"`
}

// ClusterSnapshot is an append-only persisted ClusterResult.
type ClusterSnapshot struct {
	ID         int64
	StockCode  string
	StockName  string
	TotalCount int
	InputHash  string
	ComputedAt time.Time
	Result     ClusterResult
}

// PriceRow is one daily price record.
type PriceRow struct {
	StockCode string
	TradeDate time.Time
	Close     *int64
	Diff      *int64
	DiffRate  *float64
}

// ToStockPrice converts the row into its presentation form.
func (p *PriceRow) ToStockPrice() *StockPrice {
	if p == nil {
		return nil
	}
	return &StockPrice{
		StockCode: p.StockCode,
		Date:      p.TradeDate.Format("2006-01-02"),
		Close:     p.Close,
		Diff:      p.Diff,
		DiffRate:  p.DiffRate,
	}
}
