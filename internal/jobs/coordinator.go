package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Kind names a batch job type.
type Kind string

// KindExtraction and KindEmbedding guard jobs run by external drivers and are
// registered only when passed to NewCoordinator.
const (
	KindExtraction Kind = "extraction"
	KindEmbedding  Kind = "embedding"
	KindClustering Kind = "clustering"
	KindAnomaly    Kind = "anomaly"
)

// StartResult reports what a start request did.
type StartResult string

const (
	Started        StartResult = "started"
	AlreadyRunning StartResult = "already_running"
)

// Status is the observable state of one job kind.
type Status struct {
	Running      bool       `json:"running"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastFinished *time.Time `json:"last_finished,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Func is the body of a job.
type Func func(ctx context.Context) error

// Observer receives job outcomes.
type Observer interface {
	ObserveJob(kind, outcome string, elapsed time.Duration)
}

type slot struct {
	sem     *semaphore.Weighted
	running atomic.Bool

	mu           sync.Mutex
	lastStarted  time.Time
	lastFinished time.Time
	lastErr      error
}

// Coordinator allows at most one concurrent run per job kind. Requests to
// start a kind that is already running are refused, never queued.
type Coordinator struct {
	slots    map[Kind]*slot
	wg       sync.WaitGroup
	logger   *slog.Logger
	observer Observer
}

// NewCoordinator registers the given kinds, or the clustering and anomaly kinds
// this service runs when none are given.
func NewCoordinator(logger *slog.Logger, observer Observer, kinds ...Kind) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(kinds) == 0 {
		kinds = []Kind{KindClustering, KindAnomaly}
	}
	slots := make(map[Kind]*slot, len(kinds))
	for _, k := range kinds {
		slots[k] = &slot{sem: semaphore.NewWeighted(1)}
	}
	return &Coordinator{slots: slots, logger: logger, observer: observer}
}

// Start launches fn in the background. The run is detached from ctx
// cancellation and always runs to completion.
func (c *Coordinator) Start(ctx context.Context, kind Kind, fn Func) (StartResult, error) {
	s, err := c.acquire(kind)
	if err != nil || s == nil {
		return AlreadyRunning, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.run(context.WithoutCancel(ctx), kind, s, fn)
	}()
	return Started, nil
}

// Run executes fn on the caller's goroutine under the same guard as Start.
// The returned error is fn's error.
func (c *Coordinator) Run(ctx context.Context, kind Kind, fn Func) (StartResult, error) {
	s, err := c.acquire(kind)
	if err != nil || s == nil {
		return AlreadyRunning, err
	}

	c.wg.Add(1)
	defer c.wg.Done()
	return Started, c.run(ctx, kind, s, fn)
}

// Status reports whether kind is running and how its last run ended.
func (c *Coordinator) Status(kind Kind) (Status, error) {
	s, ok := c.slots[kind]
	if !ok {
		return Status{}, fmt.Errorf("unknown job kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running.Load()}
	if !s.lastStarted.IsZero() {
		t := s.lastStarted
		st.LastStarted = &t
	}
	if !s.lastFinished.IsZero() {
		t := s.lastFinished
		st.LastFinished = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st, nil
}

// Wait blocks until every run started through the coordinator has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// acquire returns a nil slot when kind is already running.
func (c *Coordinator) acquire(kind Kind) (*slot, error) {
	s, ok := c.slots[kind]
	if !ok {
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
	if !s.sem.TryAcquire(1) {
		c.logger.Info("job already running", "kind", kind)
		c.observe(kind, "already_running", 0)
		return nil, nil
	}
	s.running.Store(true)
	return s, nil
}

func (c *Coordinator) run(ctx context.Context, kind Kind, s *slot, fn Func) (err error) {
	start := time.Now()
	s.mu.Lock()
	s.lastStarted = start
	s.mu.Unlock()

	logger := c.logger.With("kind", kind)
	logger.Info("job started")

	defer func() {
		outcome := "ok"
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", kind, r)
			outcome = "panic"
		} else if err != nil {
			outcome = "error"
		}

		elapsed := time.Since(start)
		s.mu.Lock()
		s.lastFinished = time.Now()
		s.lastErr = err
		s.mu.Unlock()

		s.running.Store(false)
		s.sem.Release(1)

		if err != nil {
			logger.Error("job failed", "elapsed", elapsed, "error", err)
		} else {
			logger.Info("job finished", "elapsed", elapsed)
		}
		c.observe(kind, outcome, elapsed)
	}()

	return fn(ctx)
}

func (c *Coordinator) observe(kind Kind, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveJob(string(kind), outcome, elapsed)
	}
}
