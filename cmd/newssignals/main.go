package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsSignals/internal/app"
	"NewsSignals/internal/config"
	"NewsSignals/internal/logging"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "newssignals",
		Short:         "Stock mention anomalies and news topic clustering",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config (defaults to $NEWS_SIGNALS_CONFIG)")

	var run runner = func(fn func(ctx context.Context, a *app.Application, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Logging)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Close(); err != nil {
					logger.Error("close database", "error", err)
				}
			}()
			return fn(ctx, application, cmd.OutOrStdout())
		}
	}

	root.AddCommand(
		serveCommand(run),
		migrateCommand(run),
		seedCommand(run),
		anomaliesCommand(run),
		clusterCommand(run),
		clusterBatchCommand(run),
		topicsCommand(run),
	)
	return root
}

type runner func(fn func(ctx context.Context, a *app.Application, out io.Writer) error) func(*cobra.Command, []string) error

func serveCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled anomaly and clustering jobs with a metrics listener",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, _ io.Writer) error {
			return a.Serve(ctx)
		}),
	}
}

func migrateCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, _ io.Writer) error {
			return a.Migrate(ctx)
		}),
	}
}

func seedCommand(run runner) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load stocks, articles and prices from a YAML fixture",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, out io.Writer) error {
			seed, err := app.LoadSeedFile(file)
			if err != nil {
				return err
			}
			if err := a.Migrate(ctx); err != nil {
				return err
			}
			sum, err := a.Seed(ctx, seed)
			if err != nil {
				return err
			}
			return writeJSON(out, sum)
		}),
	}
	cmd.Flags().StringVar(&file, "file", "", "seed fixture path")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func anomaliesCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "anomalies",
		Short: "Detect mention spikes and list the hottest stocks",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, out io.Writer) error {
			signals, hot, err := a.Anomalies(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]any{"signals": signals, "hot_stocks": hot})
		}),
	}
}

func clusterCommand(run runner) *cobra.Command {
	var (
		keyword string
		days    int
		eps     float64
	)
	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster recent articles for a keyword without saving a snapshot",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, out io.Writer) error {
			res, err := a.ClusterKeyword(ctx, keyword, days, eps)
			if err != nil {
				return err
			}
			return writeJSON(out, res)
		}),
	}
	cmd.Flags().StringVar(&keyword, "keyword", "", "company name, alias or subsidiary")
	cmd.Flags().IntVar(&days, "days", 0, "lookback in calendar days (default from config)")
	cmd.Flags().Float64Var(&eps, "eps", 0, "DBSCAN cosine distance radius (default from config)")
	_ = cmd.MarkFlagRequired("keyword")
	return cmd
}

func clusterBatchCommand(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "cluster-batch",
		Short: "Cluster every recently mentioned stock and store snapshots",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, out io.Writer) error {
			report, res, err := a.ClusterBatch(ctx)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]any{"status": res, "report": report})
		}),
	}
}

func topicsCommand(run runner) *cobra.Command {
	var stock string
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "Show the latest clustering snapshot of a stock",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, a *app.Application, out io.Writer) error {
			topics, err := a.Topics(ctx, stock)
			if err != nil {
				return err
			}
			return writeJSON(out, topics)
		}),
	}
	cmd.Flags().StringVar(&stock, "stock", "", "stock code")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
