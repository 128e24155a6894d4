package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"NewsSignals/internal/ports"
)

const (
	titlesSystemPrompt = `You are a financial news editor. You receive headlines of articles
that cover the same story about one listed company. Reply with a single headline
of at most 40 characters that captures the shared story. Reply with the headline only.`

	bodiesSystemPrompt = `You are a financial news editor. You receive excerpts of articles
that cover the same story about one listed company. Summarize the story in two or
three sentences in a neutral tone. Reply with the summary only.`
)

// ErrEmptyInput is returned when there is nothing to summarize.
var ErrEmptyInput = errors.New("summarizer input is empty")

// Completer sends one system and user prompt pair to a model and returns its text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Summarizer builds topic prompts and delegates completion to a model backend.
type Summarizer struct {
	completer Completer
}

var _ ports.TopicSummarizer = (*Summarizer)(nil)

// NewSummarizer wraps a completion backend.
func NewSummarizer(c Completer) *Summarizer {
	return &Summarizer{completer: c}
}

// SummarizeTitles produces one headline for the given titles.
func (s *Summarizer) SummarizeTitles(ctx context.Context, titles []string) (string, error) {
	return s.run(ctx, titlesSystemPrompt, titles)
}

// SummarizeBodies produces a short summary of the given bodies.
func (s *Summarizer) SummarizeBodies(ctx context.Context, bodies []string) (string, error) {
	return s.run(ctx, bodiesSystemPrompt, bodies)
}

func (s *Summarizer) run(ctx context.Context, system string, items []string) (string, error) {
	user := numbered(items)
	if user == "" {
		return "", ErrEmptyInput
	}

	out, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return "", err
	}
	out = cleanResponse(out)
	if out == "" {
		return "", fmt.Errorf("model returned an empty response")
	}
	return out, nil
}

func numbered(items []string) string {
	var b strings.Builder
	n := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, item)
	}
	return strings.TrimSpace(b.String())
}

func cleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"“”'`)
	return strings.TrimSpace(s)
}
