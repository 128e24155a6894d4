package domain

import "time"

// MentionRecord is the extraction output for one article: the company keywords an
// upstream LLM pulled out of its text.
type MentionRecord struct {
	ArticleID   int64
	PublishedAt time.Time
	Keywords    []string
}

// EntryKind ranks normalization sources. Lower values win on conflicts.
type EntryKind int

const (
	KindCanonical EntryKind = iota
	KindAlias
	KindSubsidiary
)

func (k EntryKind) String() string {
	switch k {
	case KindCanonical:
		return "canonical"
	case KindAlias:
		return "alias"
	case KindSubsidiary:
		return "subsidiary"
	default:
		return "unknown"
	}
}

// NormalizationEntry maps one free-text name to a stock code.
// StockName is the display name carried by the alias and subsidiary tables.
type NormalizationEntry struct {
	Kind      EntryKind
	Text      string
	StockCode string
	StockName string
}

// StockBaseline holds the deduplicated article ids per window for one stock.
type StockBaseline struct {
	TodayIDs map[int64]struct{}
	PastIDs  map[int64]struct{}
}

// MentionCount is the aggregated view of a StockBaseline.
type MentionCount struct {
	StockCode  string
	TodayCount int
	PastCount  int
}

// AnomalySignal reports a stock whose recent mention volume spiked.
type AnomalySignal struct {
	StockCode  string  `json:"stock_code"`
	StockName  string  `json:"stock_name"`
	TodayCount int     `json:"today_count"`
	AvgCount   float64 `json:"avg_count"`
	Ratio      float64 `json:"ratio"`
}

// HotStock is a stock ranked by recent mention volume.
type HotStock struct {
	Rank      int    `json:"rank"`
	StockCode string `json:"stock_code"`
	StockName string `json:"stock_name"`
	Count     int    `json:"count"`
}
