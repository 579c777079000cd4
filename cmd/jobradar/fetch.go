package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var fetchLimit int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Run one ingestion cycle and exit",
	Long:  "One-shot cycle: fetch every enabled category, classify, persist and sync, then print a summary.",
	RunE:  runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().IntVar(&fetchLimit, "limit", 0, "max jobs to process this cycle (default: fetch_limit from config)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	syncer, err := buildSyncer(cfg, httpClient, logger)
	if err != nil {
		logger.Error("failed to build sync client", "error", err)
		os.Exit(1)
	}

	limit := fetchLimit
	if limit == 0 {
		limit = cfg.FetchLimit
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor := buildProcessor(cfg, st, syncer, httpClient, logger)
	jobs, stats, err := processor.Run(ctx, limit)
	if err != nil {
		logger.Error("cycle failed", "error", err)
		os.Exit(1)
	}

	for _, job := range jobs {
		logger.Info("processed job",
			"id", job.ID,
			"title", job.Title,
			"budget", job.Budget,
			"category", job.Category,
		)
	}
	logger.Info("fetch complete",
		"fetched", stats.Fetched,
		"eligible", stats.Eligible,
		"persisted", stats.Persisted,
		"synced", stats.Synced,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
	return nil
}
