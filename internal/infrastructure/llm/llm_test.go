package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsSignals/internal/config"
)

func TestChatGPTSummarizeTitles(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"  \"Samsung wins HBM order\" "}}]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewChatGPTClient(config.SummarizerConfig{Endpoint: srv.URL, APIKey: "sk-test", MaxTokens: 64})
	out, err := NewSummarizer(client).SummarizeTitles(context.Background(), []string{"A wins order", " ", "A lands contract"})
	require.NoError(t, err)
	assert.Equal(t, "Samsung wins HBM order", out)

	assert.Equal(t, defaultChatGPTModel, got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "1. A wins order\n2. A lands contract", got.Messages[1].Content)
}

func TestChatGPTErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewChatGPTClient(config.SummarizerConfig{Endpoint: srv.URL, APIKey: "k"})
	_, err := NewSummarizer(client).SummarizeBodies(context.Background(), []string{"body"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestChatGPTMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewChatGPTClient(config.SummarizerConfig{}).Complete(context.Background(), "s", "u")
	require.Error(t, err)
}

func TestSummarizerRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	s := NewSummarizer(NewChatGPTClient(config.SummarizerConfig{APIKey: "k"}))
	_, err := s.SummarizeTitles(context.Background(), []string{"", "  "})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestAnthropicComplete(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5",
			"content": [{"type": "text", "text": "Two-sentence summary."}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`)
	}))
	t.Cleanup(srv.Close)

	client := NewAnthropicClient(
		config.SummarizerConfig{Endpoint: srv.URL, APIKey: "sk-ant", MaxTokens: 128},
		option.WithMaxRetries(0),
	)
	out, err := NewSummarizer(client).SummarizeBodies(context.Background(), []string{"body one", "body two"})
	require.NoError(t, err)
	assert.Equal(t, "Two-sentence summary.", out)

	assert.EqualValues(t, 128, body["max_tokens"])
	assert.Equal(t, string(anthropic.ModelClaudeHaiku4_5), body["model"])
}

func TestAnthropicErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewAnthropicClient(config.SummarizerConfig{Endpoint: srv.URL, APIKey: "k"}, option.WithMaxRetries(0))
	_, err := client.Complete(context.Background(), "s", "u")
	require.Error(t, err)
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSummarizer) SummarizeTitles(context.Context, []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "t", f.err
}

func (f *fakeSummarizer) SummarizeBodies(context.Context, []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return "b", f.err
}

func TestRateLimitedPassThroughAndCancel(t *testing.T) {
	t.Parallel()

	next := &fakeSummarizer{}
	assert.Same(t, next, NewRateLimited(next, 0))

	limited := NewRateLimited(next, 1)
	_, err := limited.SummarizeTitles(context.Background(), []string{"x"})
	require.NoError(t, err)

	// The bucket is empty for another minute; a short deadline must fail fast.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.SummarizeBodies(ctx, []string{"x"})
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

type recordingObserver struct {
	calls []string
}

func (r *recordingObserver) ObserveSummarizerCall(kind, outcome string, _ time.Duration) {
	r.calls = append(r.calls, kind+":"+outcome)
}

func TestInstrumented(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	ok := NewInstrumented(&fakeSummarizer{}, obs)
	_, _ = ok.SummarizeTitles(context.Background(), nil)

	failing := NewInstrumented(&fakeSummarizer{err: errors.New("boom")}, obs)
	_, _ = failing.SummarizeBodies(context.Background(), nil)

	assert.Equal(t, []string{"titles:ok", "bodies:error"}, obs.calls)
}
