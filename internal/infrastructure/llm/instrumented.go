package llm

import (
	"context"
	"time"

	"NewsSignals/internal/ports"
)

// Observer records the outcome of one summarizer call.
type Observer interface {
	ObserveSummarizerCall(kind, outcome string, elapsed time.Duration)
}

// Instrumented reports every call of the wrapped summarizer to an Observer.
type Instrumented struct {
	next     ports.TopicSummarizer
	observer Observer
}

var _ ports.TopicSummarizer = (*Instrumented)(nil)

// NewInstrumented wraps next. A nil observer returns next unchanged.
func NewInstrumented(next ports.TopicSummarizer, observer Observer) ports.TopicSummarizer {
	if next == nil || observer == nil {
		return next
	}
	return &Instrumented{next: next, observer: observer}
}

func (i *Instrumented) SummarizeTitles(ctx context.Context, titles []string) (string, error) {
	start := time.Now()
	out, err := i.next.SummarizeTitles(ctx, titles)
	i.observer.ObserveSummarizerCall("titles", outcome(err), time.Since(start))
	return out, err
}

func (i *Instrumented) SummarizeBodies(ctx context.Context, bodies []string) (string, error) {
	start := time.Now()
	out, err := i.next.SummarizeBodies(ctx, bodies)
	i.observer.ObserveSummarizerCall("bodies", outcome(err), time.Since(start))
	return out, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
