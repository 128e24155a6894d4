package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"NewsSignals/internal/config"
	"NewsSignals/internal/domain"
	"NewsSignals/internal/infrastructure/llm"
	"NewsSignals/internal/infrastructure/ml"
	"NewsSignals/internal/infrastructure/parser"
	"NewsSignals/internal/infrastructure/scheduler"
	"NewsSignals/internal/infrastructure/storage"
	"NewsSignals/internal/infrastructure/telegram"
	"NewsSignals/internal/jobs"
	"NewsSignals/internal/logging"
	"NewsSignals/internal/metrics"
	"NewsSignals/internal/normalize"
	"NewsSignals/internal/ports"
	"NewsSignals/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sql.DB
	repo       *storage.Repository
	registry   *prometheus.Registry
	jobs       *jobs.Coordinator
	anomaly    *usecase.AnomalyService
	clustering *usecase.ClusteringService
	topics     *usecase.TopicsService
	scheduler  *usecase.Scheduler
}

// New opens the database and builds every use case. Close releases the
// database handle.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewRepository(db, cfg.Database.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	loc := cfg.Scheduler.Location()
	index := normalize.NewLoader(repo, cfg.Clustering.IndexTTL, baseLogger.With("component", "normalize"))
	coordinator := jobs.NewCoordinator(baseLogger.With("component", "jobs"), m)

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram, baseLogger.With("component", "telegram"))
	}

	anomalySvc := usecase.NewAnomalyService(usecase.AnomalyDeps{
		Mentions:   repo,
		Index:      index,
		Notifier:   notifier,
		Observer:   m,
		Thresholds: cfg.Anomaly,
		Extraction: cfg.Extraction,
		Location:   loc,
		Logger:     baseLogger.With("component", "anomaly"),
	})

	clusteringSvc := usecase.NewClusteringService(usecase.ClusteringDeps{
		Store:         repo,
		Index:         index,
		Summarizer:    newSummarizer(cfg.Summarizer, m, baseLogger),
		Jobs:          coordinator,
		Observer:      m,
		Params:        cfg.Clustering,
		Extraction:    cfg.Extraction,
		BodyFormatter: parser.PlainText,
		Location:      loc,
		Logger:        baseLogger.With("component", "clustering"),
	})

	topicsSvc := usecase.NewTopicsService(usecase.TopicsDeps{
		Store:    repo,
		Index:    index,
		Location: loc,
		Logger:   baseLogger.With("component", "topics"),
	})

	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Driver:     scheduler.NewCronScheduler(loc, baseLogger.With("component", "cron")),
		Jobs:       coordinator,
		Anomaly:    anomalySvc,
		Clustering: clusteringSvc,
		Config:     cfg.Scheduler,
		Logger:     baseLogger.With("component", "scheduler"),
	})

	return &Application{
		cfg:        cfg,
		logger:     baseLogger,
		db:         db,
		repo:       repo,
		registry:   registry,
		jobs:       coordinator,
		anomaly:    anomalySvc,
		clustering: clusteringSvc,
		topics:     topicsSvc,
		scheduler:  sched,
	}, nil
}

// newSummarizer picks the configured provider. Providers that need a key run
// without a summarizer when none is set.
func newSummarizer(cfg config.SummarizerConfig, m *metrics.Metrics, logger *slog.Logger) ports.TopicSummarizer {
	var completer llm.Completer
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey != "" {
			completer = llm.NewChatGPTClient(cfg)
		}
	case config.ProviderAnthropic:
		if cfg.APIKey != "" {
			completer = llm.NewAnthropicClient(cfg)
		}
	case config.ProviderOllama:
		completer = ml.NewClient(cfg)
	}
	if completer == nil {
		logger.Warn("topic summarizer disabled, topics stay untitled", "provider", cfg.Provider)
		return nil
	}

	summarizer := llm.NewRateLimited(llm.NewSummarizer(completer), cfg.RatePerMinute)
	return llm.NewInstrumented(summarizer, m)
}

// Close releases the database handle.
func (a *Application) Close() error {
	return a.db.Close()
}

// Migrate creates the schema.
func (a *Application) Migrate(ctx context.Context) error {
	return storage.Migrate(ctx, a.db, a.cfg.Database.Driver)
}

// Serve runs the scheduler and the metrics listener until ctx is cancelled,
// then waits for runs in flight.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started",
		"anomaly_cron", a.cfg.Scheduler.AnomalyCron,
		"clustering_cron", a.cfg.Scheduler.ClusteringCron,
		"timezone", a.cfg.Scheduler.Timezone)

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, a.cfg.Metrics.ListenAddr, a.registry, a.logger.With("component", "metrics"))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	err := g.Wait()

	if stopErr := a.scheduler.Stop(context.WithoutCancel(ctx)); stopErr != nil {
		a.logger.Error("stop scheduler", "error", stopErr)
	}
	a.logger.Info("scheduler stopped")
	return err
}

// Anomalies detects mention spikes and ranks the hottest stocks.
func (a *Application) Anomalies(ctx context.Context) ([]domain.AnomalySignal, []domain.HotStock, error) {
	signals, err := a.anomaly.Detect(ctx)
	if err != nil {
		return nil, nil, err
	}
	hot, err := a.anomaly.HotStocks(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	return signals, hot, nil
}

// ClusterKeyword runs on-demand clustering for a keyword.
func (a *Application) ClusterKeyword(ctx context.Context, keyword string, days int, eps float64) (domain.ClusterResult, error) {
	return a.clustering.ClusterKeyword(ctx, keyword, days, eps)
}

// ClusterBatch runs the clustering batch in the foreground under the job guard.
func (a *Application) ClusterBatch(ctx context.Context) (usecase.BatchReport, jobs.StartResult, error) {
	var report usecase.BatchReport
	res, err := a.jobs.Run(ctx, jobs.KindClustering, func(ctx context.Context) error {
		var err error
		report, err = a.clustering.RunBatch(ctx)
		return err
	})
	return report, res, err
}

// Topics returns the latest clustering snapshot of a stock.
func (a *Application) Topics(ctx context.Context, stockCode string) (domain.StockTopics, error) {
	return a.topics.Latest(ctx, stockCode)
}
