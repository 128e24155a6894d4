package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsSignals/internal/config"
	"NewsSignals/internal/jobs"
	"NewsSignals/internal/ports"
)

// SchedulerDeps wires the cron driver to the batch use cases.
type SchedulerDeps struct {
	Driver     ports.Scheduler
	Jobs       *jobs.Coordinator
	Anomaly    *AnomalyService
	Clustering *ClusteringService
	Config     config.SchedulerConfig
	Logger     *slog.Logger
}

// Scheduler registers the anomaly and clustering batches on the driver.
type Scheduler struct {
	driver     ports.Scheduler
	jobs       *jobs.Coordinator
	anomaly    *AnomalyService
	clustering *ClusteringService
	cfg        config.SchedulerConfig
	logger     *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(deps SchedulerDeps) *Scheduler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:     deps.Driver,
		jobs:       deps.Jobs,
		anomaly:    deps.Anomaly,
		clustering: deps.Clustering,
		cfg:        deps.Config,
		logger:     logger,
	}
}

// Start registers the batches with the driver and starts it. Runs triggered
// by the driver are not cancelled by ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.jobs == nil {
		return nil
	}
	runCtx := context.WithoutCancel(ctx)

	if s.anomaly != nil && s.cfg.AnomalyCron != "" {
		err := s.driver.Schedule(s.cfg.AnomalyCron, s.trigger(runCtx, jobs.KindAnomaly, func(ctx context.Context) error {
			_, err := s.anomaly.Alert(ctx)
			return err
		}))
		if err != nil {
			return fmt.Errorf("schedule anomaly job: %w", err)
		}
	}

	if s.clustering != nil && s.cfg.ClusteringCron != "" {
		err := s.driver.Schedule(s.cfg.ClusteringCron, s.trigger(runCtx, jobs.KindClustering, func(ctx context.Context) error {
			_, err := s.clustering.RunBatch(ctx)
			return err
		}))
		if err != nil {
			return fmt.Errorf("schedule clustering job: %w", err)
		}
	}

	return s.driver.Start(ctx)
}

// Stop tears down the driver and waits for runs in flight.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}
	err := s.driver.Stop(ctx)
	if s.jobs != nil {
		s.jobs.Wait()
	}
	return err
}

func (s *Scheduler) trigger(ctx context.Context, kind jobs.Kind, fn jobs.Func) func(time.Time) {
	return func(at time.Time) {
		res, err := s.jobs.Run(ctx, kind, fn)
		if res == jobs.AlreadyRunning {
			s.logger.Info("scheduled run skipped, previous run still active", "kind", kind, "trigger", at)
			return
		}
		if err != nil {
			s.logger.Error("scheduled run failed", "kind", kind, "trigger", at, "error", err)
		}
	}
}
