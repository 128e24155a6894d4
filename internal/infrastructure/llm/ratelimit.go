package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"NewsSignals/internal/ports"
)

// RateLimited paces calls to a summarizer with a token bucket.
type RateLimited struct {
	next    ports.TopicSummarizer
	limiter *rate.Limiter
}

var _ ports.TopicSummarizer = (*RateLimited)(nil)

// NewRateLimited allows perMinute calls per minute with a burst of one.
// A non-positive rate returns next unchanged.
func NewRateLimited(next ports.TopicSummarizer, perMinute float64) ports.TopicSummarizer {
	if perMinute <= 0 || next == nil {
		return next
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), 1),
	}
}

func (r *RateLimited) SummarizeTitles(ctx context.Context, titles []string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for summarizer slot: %w", err)
	}
	return r.next.SummarizeTitles(ctx, titles)
}

func (r *RateLimited) SummarizeBodies(ctx context.Context, bodies []string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for summarizer slot: %w", err)
	}
	return r.next.SummarizeBodies(ctx, bodies)
}
