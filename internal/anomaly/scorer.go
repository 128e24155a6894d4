package anomaly

import (
	"math"
	"sort"

	"NewsSignals/internal/domain"
)

const (
	DefaultMinTodayCount = 10
	DefaultRatio         = 2.0
	DefaultCompareDays   = 5
)

// Config holds the anomaly thresholds.
type Config struct {
	MinTodayCount int
	Ratio         float64
	CompareDays   int
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinTodayCount: DefaultMinTodayCount,
		Ratio:         DefaultRatio,
		CompareDays:   DefaultCompareDays,
	}
}

// Namer returns a display name for a stock code.
type Namer interface {
	Name(code string) string
}

// Scorer compares recent mention counts against the baseline average.
type Scorer struct {
	cfg Config
}

// NewScorer fills zero fields of cfg with defaults.
func NewScorer(cfg Config) *Scorer {
	if cfg.MinTodayCount <= 0 {
		cfg.MinTodayCount = DefaultMinTodayCount
	}
	if cfg.Ratio <= 0 {
		cfg.Ratio = DefaultRatio
	}
	if cfg.CompareDays <= 0 {
		cfg.CompareDays = DefaultCompareDays
	}
	return &Scorer{cfg: cfg}
}

// Score returns signals sorted by ratio descending. A stock with no baseline
// history gets ratio = today_count. Thresholds compare raw values; the
// returned AvgCount and Ratio are rounded to one decimal.
func (s *Scorer) Score(counts []domain.MentionCount, names Namer) []domain.AnomalySignal {
	type scored struct {
		signal domain.AnomalySignal
		ratio  float64
	}

	var kept []scored
	for _, c := range counts {
		if c.TodayCount < s.cfg.MinTodayCount {
			continue
		}

		avg := float64(c.PastCount) / float64(s.cfg.CompareDays)
		ratio := float64(c.TodayCount)
		if avg != 0 {
			ratio = float64(c.TodayCount) / avg
		}
		if ratio < s.cfg.Ratio {
			continue
		}

		name := ""
		if names != nil {
			name = names.Name(c.StockCode)
		}
		kept = append(kept, scored{
			signal: domain.AnomalySignal{
				StockCode:  c.StockCode,
				StockName:  name,
				TodayCount: c.TodayCount,
				AvgCount:   round1(avg),
				Ratio:      round1(ratio),
			},
			ratio: ratio,
		})
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ratio > kept[j].ratio })

	out := make([]domain.AnomalySignal, len(kept))
	for i, k := range kept {
		out[i] = k.signal
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
