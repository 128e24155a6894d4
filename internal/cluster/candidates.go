package cluster

import (
	"sort"
	"time"

	"NewsSignals/internal/domain"
)

// WindowStart returns 00:00 of the first day of a lookback of days calendar
// days ending today. days=2 starts at yesterday 00:00.
func WindowStart(now time.Time, loc *time.Location, days int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	if days < 1 {
		days = 1
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, -(days - 1))
}

// SelectCandidates keeps records published at or after since whose keywords
// intersect keywords. Records are returned in ascending article id order with
// duplicates merged.
func SelectCandidates(records []domain.MentionRecord, keywords []string, since time.Time) []domain.MentionRecord {
	want := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		want[kw] = struct{}{}
	}

	byID := make(map[int64]int)
	var out []domain.MentionRecord
	for _, rec := range records {
		if rec.PublishedAt.Before(since) || !intersects(rec.Keywords, want) {
			continue
		}
		if i, ok := byID[rec.ArticleID]; ok {
			out[i].Keywords = append(out[i].Keywords, rec.Keywords...)
			continue
		}
		byID[rec.ArticleID] = len(out)
		kw := make([]string, len(rec.Keywords))
		copy(kw, rec.Keywords)
		out = append(out, domain.MentionRecord{
			ArticleID:   rec.ArticleID,
			PublishedAt: rec.PublishedAt,
			Keywords:    kw,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ArticleID < out[j].ArticleID })
	return out
}

// KeepEmbedded drops records whose article id is not in embedded.
func KeepEmbedded(records []domain.MentionRecord, embedded map[int64]struct{}) []domain.MentionRecord {
	out := make([]domain.MentionRecord, 0, len(records))
	for _, rec := range records {
		if _, ok := embedded[rec.ArticleID]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// CandidateIDs returns the sorted, deduplicated article ids of records.
func CandidateIDs(records []domain.MentionRecord) []int64 {
	seen := make(map[int64]struct{}, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.ArticleID]; ok {
			continue
		}
		seen[rec.ArticleID] = struct{}{}
		ids = append(ids, rec.ArticleID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func intersects(keywords []string, want map[string]struct{}) bool {
	for _, kw := range keywords {
		if _, ok := want[kw]; ok {
			return true
		}
	}
	return false
}
