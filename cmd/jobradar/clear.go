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

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear-project",
	Short: "Delete every item on the GitHub project board",
	Long:  "Administrative sweep: removes all draft items and attached issues from the board. Does not touch the local store.",
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.GitHub.Token == "" {
		logger.Error("github.token is not configured")
		os.Exit(1)
	}

	if !clearYes {
		cmd.Printf("This deletes every item on %s. Re-run with --yes to confirm.\n", cfg.GitHub.ProjectURL)
		return nil
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := buildGitHubClient(cfg, httpClient, logger)
	if err != nil {
		logger.Error("failed to build sync client", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	login, err := client.TestConnection(ctx)
	if err != nil {
		logger.Error("github connection check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("github authenticated", "login", login)

	if err := client.Initialize(ctx); err != nil {
		logger.Error("failed to initialize sync client", "error", err)
		os.Exit(1)
	}

	deleted, total, err := client.ClearProject(ctx)
	if err != nil {
		logger.Error("clear failed", "error", err)
		os.Exit(1)
	}
	logger.Info("project cleared", "deleted", deleted, "total", total)
	return nil
}
