package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"NewsSignals/internal/ports"
)

// CronScheduler runs jobs on standard five-field cron expressions.
type CronScheduler struct {
	cron    *cron.Cron
	loc     *time.Location
	mu      sync.Mutex
	running bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler evaluating expressions in loc. Panicking
// jobs are recovered and a job still running at its next tick is skipped.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	adapter := cronLogger{logger: logger}
	return &CronScheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		loc: loc,
	}
}

// Schedule registers job under spec. It may be called before or after Start.
func (c *CronScheduler) Schedule(spec string, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	if _, err := c.cron.AddFunc(spec, func() { job(time.Now().In(c.loc)) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	return nil
}

// Start begins dispatching jobs. Calling it twice is a no-op.
func (c *CronScheduler) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.cron.Start()
	c.running = true
	return nil
}

// Stop halts dispatching and waits for running jobs or ctx, whichever ends first.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	done := c.cron.Stop()
	c.mu.Unlock()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries reports how many jobs are registered.
func (c *CronScheduler) Entries() int {
	return len(c.cron.Entries())
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
