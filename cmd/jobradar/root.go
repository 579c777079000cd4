package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/korrio/jobradar/internal/analyze"
	"github.com/korrio/jobradar/internal/config"
	"github.com/korrio/jobradar/internal/fastwork"
	"github.com/korrio/jobradar/internal/github"
	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/notify"
	"github.com/korrio/jobradar/internal/pipeline"
	"github.com/korrio/jobradar/internal/ratelimit"
	"github.com/korrio/jobradar/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "jobradar",
	Short: "Job radar for Fastwork freelance listings",
	Long:  "jobradar polls the Fastwork job board, classifies new listings and mirrors the interesting ones onto a GitHub project board.",
	// Default to `start` so that `jobradar` with no args runs the daemon.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBRADAR_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > JOBRADAR_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("JOBRADAR_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.DatabasePath)
}

func buildSource(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *fastwork.Client {
	return fastwork.NewClient(cfg.EnabledCategories(), httpClient, logger)
}

func buildGitHubClient(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (*github.Client, error) {
	return github.NewClient(cfg.GitHub.Token, cfg.GitHub.ProjectURL, cfg.GitHub.IssuesRepo, httpClient, logger)
}

// buildSyncer wires the GitHub project client behind a pacer. Returns nil
// when sync is disabled in config.
func buildSyncer(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (model.Syncer, error) {
	if !cfg.GitHub.Enabled {
		return nil, nil
	}

	client, err := buildGitHubClient(cfg, httpClient, logger)
	if err != nil {
		return nil, err
	}
	pacer := ratelimit.NewPacer(cfg.GitHub.SyncDelay)
	return ratelimit.NewPacedSyncer(client, pacer, "github"), nil
}

func buildProcessor(cfg *config.Config, st *store.Store, syncer model.Syncer, httpClient *http.Client, logger *slog.Logger) *pipeline.Processor {
	return pipeline.New(buildSource(cfg, httpClient, logger), st, syncer, pipeline.Config{
		MinBudget:   cfg.MinBudget,
		PageSize:    cfg.PageSize,
		SyncEnabled: cfg.GitHub.Enabled,
	}, logger)
}

func buildAnalyzer(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *analyze.Analyzer {
	return analyze.NewAnalyzer(cfg.Analysis.APIKey, cfg.Analysis.Model, httpClient, logger)
}

func buildNotifier(cfg *config.Config, st *store.Store, httpClient *http.Client, logger *slog.Logger) *notify.Notifier {
	return notify.NewNotifier(
		notify.TelegramConfig{BotToken: cfg.Telegram.BotToken, ChatID: cfg.Telegram.ChatID},
		notify.FacebookConfig{AccessToken: cfg.Facebook.AccessToken, GroupID: cfg.Facebook.GroupID},
		st, httpClient, logger,
	)
}

func notificationsConfigured(cfg *config.Config) bool {
	return (cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "") ||
		(cfg.Facebook.AccessToken != "" && cfg.Facebook.GroupID != "")
}
