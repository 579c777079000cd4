// Package notify broadcasts analyzed jobs to chat channels. Channels without
// credentials are skipped, not errors; one delivered channel is enough to mark
// a job notified.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/store"
)

const (
	defaultTelegramBaseURL = "https://api.telegram.org"
	defaultFacebookBaseURL = "https://graph.facebook.com/v18.0"
)

// sender is one outbound channel. Formatting differs per channel, delivery
// and logging are shared by the Notifier.
type sender interface {
	name() string
	configured() bool
	send(ctx context.Context, job model.JobRecord) error
}

// TelegramConfig holds bot credentials for the Telegram channel.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// FacebookConfig holds credentials for posting to a Facebook group feed.
type FacebookConfig struct {
	AccessToken string
	GroupID     string
}

// Notifier fans one job out to every configured channel and records each
// attempt in the notification log.
type Notifier struct {
	senders []sender
	store   *store.Store
	logger  *slog.Logger
}

// NewNotifier wires up the Telegram and Facebook channels. Either config may
// be empty; the corresponding channel is then skipped at send time.
func NewNotifier(tg TelegramConfig, fb FacebookConfig, st *store.Store, httpClient *http.Client, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: []sender{
			&telegramSender{cfg: tg, baseURL: defaultTelegramBaseURL, httpClient: httpClient},
			&facebookSender{cfg: fb, baseURL: defaultFacebookBaseURL, httpClient: httpClient},
		},
		store:  st,
		logger: logger,
	}
}

// NotifyJob sends one job to every configured channel. The job is marked
// notified when at least one channel delivered.
func (n *Notifier) NotifyJob(ctx context.Context, job model.JobRecord) error {
	delivered := 0
	attempted := 0

	for _, s := range n.senders {
		if !s.configured() {
			n.logger.Debug("channel not configured, skipping", "channel", s.name(), "job_id", job.ID)
			continue
		}
		attempted++

		if err := s.send(ctx, job); err != nil {
			n.logger.Error("notification failed", "channel", s.name(), "job_id", job.ID, "error", err)
			if logErr := n.store.LogNotification(job.ID, s.name(), "failed", err.Error()); logErr != nil {
				n.logger.Error("logging notification failed", "job_id", job.ID, "error", logErr)
			}
			continue
		}

		n.logger.Info("notification sent", "channel", s.name(), "job_id", job.ID)
		if logErr := n.store.LogNotification(job.ID, s.name(), "sent", ""); logErr != nil {
			n.logger.Error("logging notification failed", "job_id", job.ID, "error", logErr)
		}
		delivered++
	}

	if attempted == 0 {
		return fmt.Errorf("no notification channel configured")
	}
	if delivered == 0 {
		return fmt.Errorf("all %d channels failed for job %s", attempted, job.ID)
	}
	return n.store.MarkNotified(job.ID)
}

// NotifyAnalyzed sends every analyzed-but-not-yet-notified job. Per-job
// failures are counted and the rest continue.
func (n *Notifier) NotifyAnalyzed(ctx context.Context) (notified, failed int, err error) {
	configured := 0
	for _, s := range n.senders {
		if s.configured() {
			configured++
		}
	}
	if configured == 0 {
		return 0, 0, fmt.Errorf("no notification channel configured")
	}

	jobs, err := n.store.AnalyzedJobs()
	if err != nil {
		return 0, 0, fmt.Errorf("listing analyzed jobs: %w", err)
	}

	for _, job := range jobs {
		if err := n.NotifyJob(ctx, job); err != nil {
			n.logger.Error("notify failed", "job_id", job.ID, "error", err)
			failed++
			continue
		}
		notified++
	}
	return notified, failed, nil
}

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

// formatMessage renders the shared alert text. Double-star bold is rewritten
// per channel: Telegram's Markdown uses single stars, Facebook has no markup.
func formatMessage(job model.JobRecord, channel string) string {
	analysis := job.Analysis
	if analysis == "" {
		analysis = "Analysis pending..."
	}

	var b strings.Builder
	b.WriteString("🔥 **New High-Value Job Alert!**\n\n")
	fmt.Fprintf(&b, "**%s**\n", job.Title)
	fmt.Fprintf(&b, "💰 Budget: %s %s\n\n", formatBudget(job.Budget), job.Currency)
	fmt.Fprintf(&b, "📋 **Analysis:**\n%s\n\n", analysis)
	fmt.Fprintf(&b, "🔗 View full details: %s\n\n", job.URL)
	b.WriteString("#FastworkJobs #Freelance #HighBudget")

	msg := b.String()
	switch channel {
	case "telegram":
		return boldPattern.ReplaceAllString(msg, "*$1*")
	default:
		return boldPattern.ReplaceAllString(msg, "$1")
	}
}

func formatBudget(budget float64) string {
	s := strconv.FormatInt(int64(budget), 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

type telegramSender struct {
	cfg        TelegramConfig
	baseURL    string
	httpClient *http.Client
}

func (s *telegramSender) name() string { return "telegram" }

func (s *telegramSender) configured() bool {
	return s.cfg.BotToken != "" && s.cfg.ChatID != ""
}

func (s *telegramSender) send(ctx context.Context, job model.JobRecord) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":                  s.cfg.ChatID,
		"text":                     formatMessage(job, "telegram"),
		"parse_mode":               "Markdown",
		"disable_web_page_preview": false,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.cfg.BotToken)
	return postJSON(ctx, s.httpClient, url, body, "telegram")
}

type facebookSender struct {
	cfg        FacebookConfig
	baseURL    string
	httpClient *http.Client
}

func (s *facebookSender) name() string { return "facebook" }

func (s *facebookSender) configured() bool {
	return s.cfg.AccessToken != "" && s.cfg.GroupID != ""
}

func (s *facebookSender) send(ctx context.Context, job model.JobRecord) error {
	body, err := json.Marshal(map[string]any{
		"message":      formatMessage(job, "facebook"),
		"access_token": s.cfg.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("marshal facebook post: %w", err)
	}

	url := fmt.Sprintf("%s/%s/feed", s.baseURL, s.cfg.GroupID)
	return postJSON(ctx, s.httpClient, url, body, "facebook")
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, channel string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned HTTP %d: %s", channel, resp.StatusCode, respBody)
	}
	return nil
}
