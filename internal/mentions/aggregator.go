package mentions

import (
	"sort"
	"time"

	"NewsSignals/internal/domain"
)

// Resolver maps mention text to a stock code.
type Resolver interface {
	Resolve(text string) (string, bool)
}

// Windows holds the recent and baseline ranges of one anomaly run.
//
// Recent is [Now-24h, Now]. Baseline is [BaselineStart, BaselineEnd): the full
// calendar days before yesterday. The part of yesterday before Now-24h falls in
// neither window.
type Windows struct {
	Now           time.Time
	RecentStart   time.Time
	BaselineStart time.Time
	BaselineEnd   time.Time
}

// NewWindows derives the windows for a run at now. baselineDays full days end
// at yesterday 00:00 in loc.
func NewWindows(now time.Time, loc *time.Location, baselineDays int) Windows {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	return Windows{
		Now:           local,
		RecentStart:   local.Add(-24 * time.Hour),
		BaselineStart: today.AddDate(0, 0, -(baselineDays + 1)),
		BaselineEnd:   today.AddDate(0, 0, -1),
	}
}

// InRecent reports whether t falls in the recent window.
func (w Windows) InRecent(t time.Time) bool {
	return !t.Before(w.RecentStart) && !t.After(w.Now)
}

// InBaseline reports whether t falls in the baseline window.
func (w Windows) InBaseline(t time.Time) bool {
	return !t.Before(w.BaselineStart) && t.Before(w.BaselineEnd)
}

// Aggregate buckets each record's resolved stocks into the window its
// publication time falls in. Article ids are deduplicated per stock and window.
func Aggregate(resolver Resolver, records []domain.MentionRecord, w Windows) map[string]*domain.StockBaseline {
	out := make(map[string]*domain.StockBaseline)

	for _, rec := range records {
		recent := w.InRecent(rec.PublishedAt)
		if !recent && !w.InBaseline(rec.PublishedAt) {
			continue
		}

		for _, kw := range rec.Keywords {
			code, ok := resolver.Resolve(kw)
			if !ok {
				continue
			}
			b := out[code]
			if b == nil {
				b = &domain.StockBaseline{
					TodayIDs: map[int64]struct{}{},
					PastIDs:  map[int64]struct{}{},
				}
				out[code] = b
			}
			if recent {
				b.TodayIDs[rec.ArticleID] = struct{}{}
			} else {
				b.PastIDs[rec.ArticleID] = struct{}{}
			}
		}
	}

	return out
}

// Counts flattens baselines into counts ordered by stock code.
func Counts(baselines map[string]*domain.StockBaseline) []domain.MentionCount {
	out := make([]domain.MentionCount, 0, len(baselines))
	for code, b := range baselines {
		out = append(out, domain.MentionCount{
			StockCode:  code,
			TodayCount: len(b.TodayIDs),
			PastCount:  len(b.PastIDs),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StockCode < out[j].StockCode })
	return out
}

// TopMentioned returns up to n counts with the most recent mentions, ties
// broken by stock code. Stocks without recent mentions are left out.
func TopMentioned(counts []domain.MentionCount, n int) []domain.MentionCount {
	ranked := make([]domain.MentionCount, 0, len(counts))
	for _, c := range counts {
		if c.TodayCount > 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TodayCount != ranked[j].TodayCount {
			return ranked[i].TodayCount > ranked[j].TodayCount
		}
		return ranked[i].StockCode < ranked[j].StockCode
	})
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
