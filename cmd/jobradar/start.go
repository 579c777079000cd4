package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/ratelimit"
	"github.com/korrio/jobradar/internal/scheduler"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ingestion daemon",
	Long:  "Fetches, classifies, syncs, analyzes and notifies on an interval; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Interval.String(),
		"categories", len(cfg.EnabledCategories()),
		"min_budget", cfg.MinBudget,
		"fetch_limit", cfg.FetchLimit,
		"github_sync", cfg.GitHub.Enabled,
		"analysis", cfg.Analysis.Enabled,
	)

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var syncer model.Syncer
	if cfg.GitHub.Enabled {
		ghClient, err := buildGitHubClient(cfg, httpClient, logger)
		if err != nil {
			logger.Error("failed to build sync client", "error", err)
			os.Exit(1)
		}
		if login, err := ghClient.TestConnection(ctx); err != nil {
			logger.Warn("github connection check failed", "error", err)
		} else {
			logger.Info("github authenticated", "login", login)
		}
		syncer = ratelimit.NewPacedSyncer(ghClient, ratelimit.NewPacer(cfg.GitHub.SyncDelay), "github")
	}

	processor := buildProcessor(cfg, st, syncer, httpClient, logger)
	analyzer := buildAnalyzer(cfg, httpClient, logger)
	analysisPacer := ratelimit.NewPacer(cfg.Analysis.Delay)
	notifier := buildNotifier(cfg, st, httpClient, logger)

	cycle := func(ctx context.Context) error {
		_, _, err := processor.Run(ctx, cfg.FetchLimit)
		if err != nil {
			return err
		}

		if cfg.Analysis.Enabled {
			analyzed, failed, err := analyzer.AnalyzeAllPending(ctx, st, analysisPacer)
			if err != nil {
				logger.Error("analysis pass failed", "error", err)
			} else if analyzed+failed > 0 {
				logger.Info("analysis pass complete", "analyzed", analyzed, "failed", failed)
			}
		}

		if notificationsConfigured(cfg) {
			notified, failed, err := notifier.NotifyAnalyzed(ctx)
			if err != nil {
				logger.Error("notification pass failed", "error", err)
			} else if notified+failed > 0 {
				logger.Info("notification pass complete", "notified", notified, "failed", failed)
			}
		}
		return nil
	}

	sched := scheduler.NewScheduler(cycle, cfg.Interval, logger)
	if err := sched.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}
