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

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Broadcast analyzed jobs to chat channels",
	Long:  "Sends every analyzed-but-not-yet-notified job to the configured Telegram and Facebook channels.",
	RunE:  runNotify,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
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
	notifier := buildNotifier(cfg, st, httpClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notified, failed, err := notifier.NotifyAnalyzed(ctx)
	if err != nil {
		logger.Error("notification run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("notification run complete", "notified", notified, "failed", failed)
	return nil
}
