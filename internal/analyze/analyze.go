// Package analyze asks Claude for a freelancer-oriented read of high-value
// jobs and persists the result.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/korrio/jobradar/internal/classify"
	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/ratelimit"
	"github.com/korrio/jobradar/internal/store"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-sonnet-20240229"
	maxTokens      = 1000

	apiVersion = "2023-06-01"

	// paceTarget keys the shared pacer so analysis requests are spaced out.
	paceTarget = "claude"
)

// Analyzer calls the Anthropic messages API. Only jobs that are still pending
// and at or above the high-value threshold are eligible; everything else is
// not worth the tokens.
type Analyzer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer. An empty model selects the default.
func NewAnalyzer(apiKey, model string, httpClient *http.Client, logger *slog.Logger) *Analyzer {
	if model == "" {
		model = defaultModel
	}
	return &Analyzer{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

// AnalyzeJob requests an analysis for one job and returns the text.
func (a *Analyzer) AnalyzeJob(ctx context.Context, job model.JobRecord) (string, error) {
	if a.apiKey == "" {
		return "", fmt.Errorf("analysis API key not configured")
	}

	body, err := json.Marshal(messagesRequest{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: buildPrompt(job)}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read analysis response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("analysis API returned HTTP %d: %s", resp.StatusCode, respBody)
	}

	var mr messagesResponse
	if err := json.Unmarshal(respBody, &mr); err != nil {
		return "", fmt.Errorf("parse analysis response: %w", err)
	}
	if len(mr.Content) == 0 || mr.Content[0].Text == "" {
		return "", fmt.Errorf("analysis response contained no text")
	}
	return mr.Content[0].Text, nil
}

// AnalyzeAllPending analyzes every pending job at or above the high-value
// threshold. A failure on one job is logged and the rest continue; the job
// stays pending for the next pass.
func (a *Analyzer) AnalyzeAllPending(ctx context.Context, st *store.Store, pacer *ratelimit.Pacer) (analyzed, failed int, err error) {
	jobs, err := st.PendingAnalysis(classify.HighValueThreshold)
	if err != nil {
		return 0, 0, fmt.Errorf("listing pending jobs: %w", err)
	}
	a.logger.Info("pending analysis", "jobs", len(jobs))

	for _, job := range jobs {
		if err := pacer.Wait(ctx, paceTarget); err != nil {
			return analyzed, failed, err
		}

		analysis, err := a.AnalyzeJob(ctx, job)
		if err != nil {
			a.logger.Error("analysis failed", "job_id", job.ID, "title", job.Title, "error", err)
			failed++
			continue
		}
		if err := st.SaveAnalysis(job.ID, analysis); err != nil {
			a.logger.Error("saving analysis failed", "job_id", job.ID, "error", err)
			failed++
			continue
		}
		a.logger.Info("analyzed job", "job_id", job.ID, "title", job.Title)
		analyzed++
	}
	return analyzed, failed, nil
}

func buildPrompt(job model.JobRecord) string {
	var b strings.Builder
	b.WriteString("Please analyze this job posting from Fastwork.co and provide a concise summary:\n\n")
	fmt.Fprintf(&b, "**Job Title:** %s\n", job.Title)
	fmt.Fprintf(&b, "**Budget:** %.0f %s\n", job.Budget, job.Currency)
	fmt.Fprintf(&b, "**Description:** %s\n\n", job.Description)
	b.WriteString("Please provide:\n")
	b.WriteString("1. A brief summary of what the job entails\n")
	b.WriteString("2. Key requirements or skills needed\n")
	b.WriteString("3. Assessment of the project scope and complexity\n")
	b.WriteString("4. Any red flags or concerns\n")
	b.WriteString("5. Overall recommendation (Good opportunity / Proceed with caution / Avoid)\n\n")
	b.WriteString("Keep the analysis under 200 words and focus on actionable insights for freelancers.")
	return b.String()
}
