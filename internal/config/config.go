package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/korrio/jobradar/internal/model"
)

// Config is the root configuration for the jobradar daemon.
type Config struct {
	Interval     time.Duration
	FetchLimit   int
	PageSize     int
	MinBudget    float64
	DatabasePath string
	Categories   []CategoryConfig
	GitHub       GitHubConfig
	Analysis     AnalysisConfig
	Telegram     TelegramConfig
	Facebook     FacebookConfig
}

// CategoryConfig enables one job-board category partition.
type CategoryConfig struct {
	Name    string `yaml:"name"` // English label stored on records
	ID      string `yaml:"id"`   // Fastwork tag UUID
	Enabled bool   `yaml:"enabled"`
}

// GitHubConfig controls the project-board sync target.
type GitHubConfig struct {
	Enabled    bool
	Token      string // expanded from env var by Load
	ProjectURL string // github.com/users/<owner>/projects/<n>
	IssuesRepo string // "owner/repo" receiving high-value issues
	SyncDelay  time.Duration
}

// AnalysisConfig controls the optional Claude analysis layer.
type AnalysisConfig struct {
	Enabled bool
	APIKey  string
	Model   string
	Delay   time.Duration // gap between consecutive analysis requests
}

// TelegramConfig holds bot credentials for the Telegram channel.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// FacebookConfig holds credentials for posting to a Facebook group feed.
type FacebookConfig struct {
	AccessToken string `yaml:"access_token"`
	GroupID     string `yaml:"group_id"`
}

// EnabledCategories converts the enabled category entries to their model form.
func (c *Config) EnabledCategories() []model.CategoryInfo {
	var out []model.CategoryInfo
	for _, cat := range c.Categories {
		if !cat.Enabled {
			continue
		}
		out = append(out, model.CategoryInfo{ID: cat.ID, NameEn: cat.Name})
	}
	return out
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Interval     string             `yaml:"interval"`
	FetchLimit   int                `yaml:"fetch_limit"`
	PageSize     int                `yaml:"page_size"`
	MinBudget    float64            `yaml:"min_budget"`
	DatabasePath string             `yaml:"database_path"`
	Categories   []CategoryConfig   `yaml:"categories"`
	GitHub       rawGitHubConfig    `yaml:"github"`
	Analysis     rawAnalysisConfig  `yaml:"analysis"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Facebook     FacebookConfig     `yaml:"facebook"`
}

type rawGitHubConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Token      string `yaml:"token"`
	ProjectURL string `yaml:"project_url"`
	IssuesRepo string `yaml:"issues_repo"`
	SyncDelay  string `yaml:"sync_delay"`
}

type rawAnalysisConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Delay   string `yaml:"delay"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	interval := 5 * time.Minute // default
	if raw.Interval != "" {
		interval, err = time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse interval %q: %w", raw.Interval, err)
		}
	}

	syncDelay := 1 * time.Second // default
	if raw.GitHub.SyncDelay != "" {
		syncDelay, err = time.ParseDuration(raw.GitHub.SyncDelay)
		if err != nil {
			return nil, fmt.Errorf("parse github.sync_delay %q: %w", raw.GitHub.SyncDelay, err)
		}
	}

	analysisDelay := 1 * time.Second // default
	if raw.Analysis.Delay != "" {
		analysisDelay, err = time.ParseDuration(raw.Analysis.Delay)
		if err != nil {
			return nil, fmt.Errorf("parse analysis.delay %q: %w", raw.Analysis.Delay, err)
		}
	}

	fetchLimit := raw.FetchLimit
	if fetchLimit == 0 {
		fetchLimit = 30
	}
	pageSize := raw.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	dbPath := raw.DatabasePath
	if dbPath == "" {
		dbPath = "jobradar.db"
	}

	cfg := &Config{
		Interval:     interval,
		FetchLimit:   fetchLimit,
		PageSize:     pageSize,
		MinBudget:    raw.MinBudget,
		DatabasePath: dbPath,
		Categories:   raw.Categories,
		GitHub: GitHubConfig{
			Enabled:    raw.GitHub.Enabled,
			Token:      raw.GitHub.Token,
			ProjectURL: raw.GitHub.ProjectURL,
			IssuesRepo: raw.GitHub.IssuesRepo,
			SyncDelay:  syncDelay,
		},
		Analysis: AnalysisConfig{
			Enabled: raw.Analysis.Enabled,
			APIKey:  raw.Analysis.APIKey,
			Model:   raw.Analysis.Model,
			Delay:   analysisDelay,
		},
		Telegram: raw.Telegram,
		Facebook: raw.Facebook,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", cfg.Interval)
	}
	if cfg.PageSize < 1 || cfg.PageSize > 100 {
		return fmt.Errorf("page_size must be between 1 and 100, got %d", cfg.PageSize)
	}
	if cfg.FetchLimit < 0 {
		return fmt.Errorf("fetch_limit must not be negative, got %d", cfg.FetchLimit)
	}
	if cfg.MinBudget < 0 {
		return fmt.Errorf("min_budget must not be negative, got %v", cfg.MinBudget)
	}

	enabled := 0
	for i, cat := range cfg.Categories {
		if !cat.Enabled {
			continue
		}
		if cat.ID == "" || cat.Name == "" {
			return fmt.Errorf("categories[%d]: name and id are required", i)
		}
		enabled++
	}
	if enabled == 0 {
		return fmt.Errorf("at least one category must be enabled")
	}

	if cfg.GitHub.Enabled {
		if cfg.GitHub.Token == "" {
			return fmt.Errorf("github.token is required when github.enabled is true")
		}
		if !strings.Contains(cfg.GitHub.ProjectURL, "github.com/users/") {
			return fmt.Errorf("github.project_url must look like github.com/users/<owner>/projects/<n>, got %q", cfg.GitHub.ProjectURL)
		}
		if !strings.Contains(cfg.GitHub.IssuesRepo, "/") {
			return fmt.Errorf("github.issues_repo must be \"owner/repo\", got %q", cfg.GitHub.IssuesRepo)
		}
	}

	if cfg.Analysis.Enabled && cfg.Analysis.APIKey == "" {
		return fmt.Errorf("analysis.api_key is required when analysis.enabled is true")
	}

	return nil
}
