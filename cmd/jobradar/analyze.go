package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/korrio/jobradar/internal/ratelimit"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze pending high-value jobs",
	Long:  "Sends every pending job above the analysis threshold to Claude and saves the analysis.",
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Analysis.APIKey == "" {
		logger.Error("analysis.api_key is not configured")
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: 60 * time.Second}
	analyzer := buildAnalyzer(cfg, httpClient, logger)
	pacer := ratelimit.NewPacer(cfg.Analysis.Delay)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzed, failed, err := analyzer.AnalyzeAllPending(ctx, st, pacer)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(1)
	}
	logger.Info("analysis complete", "analyzed", analyzed, "failed", failed)
	return nil
}
