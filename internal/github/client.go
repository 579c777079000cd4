// Package github mirrors job records into a GitHub Projects (v2) board,
// promoting high-value jobs to full issues in a companion repository.
package github

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
	"time"

	"github.com/korrio/jobradar/internal/classify"
	"github.com/korrio/jobradar/internal/model"
)

const (
	defaultGraphQLURL = "https://api.github.com/graphql"
	defaultRESTURL    = "https://api.github.com"
)

var projectURLPattern = regexp.MustCompile(`github\.com/users/([^/]+)/projects/(\d+)`)

// fieldRole names the semantic slots matched against the board's field schema.
type fieldRole string

const (
	roleBudget    fieldRole = "budget"
	roleCategory  fieldRole = "category"
	roleTags      fieldRole = "tags"
	roleStatus    fieldRole = "status"
	roleSize      fieldRole = "size"
	roleStartDate fieldRole = "startDate"
	roleEndDate   fieldRole = "endDate"
)

// Client talks to the GitHub GraphQL and REST APIs. Initialize resolves the
// board's node id and field schema once per process; every sync call after a
// failed or missing initialization fails fast.
type Client struct {
	token      string
	owner      string
	projectNum int
	issuesRepo string // "owner/repo" for high-value issue promotion

	graphqlURL string
	restURL    string
	httpClient *http.Client
	logger     *slog.Logger

	initialized   bool
	projectNodeID string
	fieldIDs      map[fieldRole]string
	sizeOptions   map[string]string // lower-cased option name → option id
}

// NewClient creates a sync client for the project behind projectURL
// (github.com/users/<owner>/projects/<n>).
func NewClient(token, projectURL, issuesRepo string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	m := projectURLPattern.FindStringSubmatch(projectURL)
	if m == nil {
		return nil, fmt.Errorf("invalid project URL %q", projectURL)
	}
	num, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("invalid project number in %q: %w", projectURL, err)
	}

	return &Client{
		token:       token,
		owner:       m[1],
		projectNum:  num,
		issuesRepo:  issuesRepo,
		graphqlURL:  defaultGraphQLURL,
		restURL:     defaultRESTURL,
		httpClient:  httpClient,
		logger:      logger,
		fieldIDs:    make(map[fieldRole]string),
		sizeOptions: make(map[string]string),
	}, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// doGraphQL posts one query/mutation and decodes the data block into out.
func (c *Client) doGraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql returned HTTP %d: %s", resp.StatusCode, respBody)
	}

	var gr graphQLResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return fmt.Errorf("parse graphql response: %w", err)
	}
	if len(gr.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", gr.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(gr.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

const projectDetailsQuery = `
query($owner: String!, $projectNumber: Int!) {
  user(login: $owner) {
    projectV2(number: $projectNumber) {
      id
      title
      fields(first: 20) {
        nodes {
          ... on ProjectV2Field { id name dataType }
          ... on ProjectV2SingleSelectField { id name dataType options { id name } }
        }
      }
    }
  }
}`

// Initialize resolves the board's node id and maps its custom fields to
// semantic roles by fuzzy case-insensitive name match. Must succeed before
// CreateItem or ClearProject; repeated calls after success are no-ops.
func (c *Client) Initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	var data struct {
		User struct {
			ProjectV2 *struct {
				ID     string `json:"id"`
				Title  string `json:"title"`
				Fields struct {
					Nodes []struct {
						ID      string `json:"id"`
						Name    string `json:"name"`
						Options []struct {
							ID   string `json:"id"`
							Name string `json:"name"`
						} `json:"options"`
					} `json:"nodes"`
				} `json:"fields"`
			} `json:"projectV2"`
		} `json:"user"`
	}

	err := c.doGraphQL(ctx, projectDetailsQuery, map[string]any{
		"owner":         c.owner,
		"projectNumber": c.projectNum,
	}, &data)
	if err != nil {
		return fmt.Errorf("initialize project client: %w", err)
	}
	if data.User.ProjectV2 == nil {
		return fmt.Errorf("project %d not found for user %s", c.projectNum, c.owner)
	}

	project := data.User.ProjectV2
	c.projectNodeID = project.ID

	for _, field := range project.Fields.Nodes {
		name := strings.ToLower(field.Name)
		switch {
		case strings.Contains(name, "budget"):
			c.fieldIDs[roleBudget] = field.ID
		case strings.Contains(name, "category"):
			c.fieldIDs[roleCategory] = field.ID
		case strings.Contains(name, "tag") || strings.Contains(name, "label"):
			c.fieldIDs[roleTags] = field.ID
		case strings.Contains(name, "status"):
			c.fieldIDs[roleStatus] = field.ID
		case strings.Contains(name, "size"):
			c.fieldIDs[roleSize] = field.ID
			for _, opt := range field.Options {
				c.sizeOptions[strings.ToLower(opt.Name)] = opt.ID
			}
		case strings.Contains(name, "start") && (strings.Contains(name, "date") || strings.Contains(name, "time")):
			c.fieldIDs[roleStartDate] = field.ID
		case strings.Contains(name, "end") && (strings.Contains(name, "date") || strings.Contains(name, "time")):
			c.fieldIDs[roleEndDate] = field.ID
		case strings.Contains(name, "deadline"):
			c.fieldIDs[roleEndDate] = field.ID
		}
	}

	c.initialized = true
	c.logger.Info("github project client initialized",
		"owner", c.owner,
		"project", c.projectNum,
		"title", project.Title,
		"fields_mapped", len(c.fieldIDs),
	)
	return nil
}

// CreateItem mirrors one job onto the board. Jobs above the high-value
// threshold become full issues attached by content reference; everything else
// is a cheap draft item. The caller owns the at-most-once guarantee; this
// client performs no cross-run dedup.
func (c *Client) CreateItem(ctx context.Context, job model.JobRecord) (model.ItemResult, error) {
	if !c.initialized {
		return model.ItemResult{}, fmt.Errorf("github client not initialized")
	}

	title := formatTitle(job)
	body := formatBody(job)

	var result model.ItemResult
	var err error
	if job.Budget > classify.HighValueThreshold {
		result, err = c.createIssueItem(ctx, job, title, body)
	} else {
		result, err = c.createDraftItem(ctx, title, body)
	}
	if err != nil {
		return model.ItemResult{}, err
	}

	// Field population is best effort: one bad field never fails the item.
	c.populateFields(ctx, result.ItemID, job)

	c.logger.Info("created project item",
		"job_id", job.ID,
		"item_id", result.ItemID,
		"kind", result.Kind,
		"budget", job.Budget,
	)
	return result, nil
}

const addDraftMutation = `
mutation($projectId: ID!, $title: String!, $body: String!) {
  addProjectV2DraftIssue(input: {projectId: $projectId, title: $title, body: $body}) {
    projectItem { id }
  }
}`

func (c *Client) createDraftItem(ctx context.Context, title, body string) (model.ItemResult, error) {
	var data struct {
		AddProjectV2DraftIssue struct {
			ProjectItem struct {
				ID string `json:"id"`
			} `json:"projectItem"`
		} `json:"addProjectV2DraftIssue"`
	}

	err := c.doGraphQL(ctx, addDraftMutation, map[string]any{
		"projectId": c.projectNodeID,
		"title":     title,
		"body":      body,
	}, &data)
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("create draft item: %w", err)
	}
	return model.ItemResult{ItemID: data.AddProjectV2DraftIssue.ProjectItem.ID, Kind: model.ItemDraft}, nil
}

const addByContentMutation = `
mutation($projectId: ID!, $contentId: ID!) {
  addProjectV2ItemByContentId(input: {projectId: $projectId, contentId: $contentId}) {
    item { id }
  }
}`

// createIssueItem creates a labeled issue in the companion repository via the
// REST API, then attaches it to the board by content id.
func (c *Client) createIssueItem(ctx context.Context, job model.JobRecord, title, body string) (model.ItemResult, error) {
	labels := make([]string, 0, 8)
	if job.Category != "" {
		labels = append(labels, job.Category)
	}
	labels = append(labels, classify.Tags(job)...)

	issueBody, err := json.Marshal(map[string]any{
		"title":  title,
		"body":   body,
		"labels": labels,
	})
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("marshal issue: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/issues", c.restURL, c.issuesRepo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(issueBody))
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("create issue request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("create issue: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("read issue response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return model.ItemResult{}, fmt.Errorf("create issue: HTTP %d: %s", resp.StatusCode, respBody)
	}

	var issue struct {
		NodeID  string `json:"node_id"`
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return model.ItemResult{}, fmt.Errorf("parse issue response: %w", err)
	}

	var data struct {
		AddProjectV2ItemByContentID struct {
			Item struct {
				ID string `json:"id"`
			} `json:"item"`
		} `json:"addProjectV2ItemByContentId"`
	}
	err = c.doGraphQL(ctx, addByContentMutation, map[string]any{
		"projectId": c.projectNodeID,
		"contentId": issue.NodeID,
	}, &data)
	if err != nil {
		return model.ItemResult{}, fmt.Errorf("attach issue %d to project: %w", issue.Number, err)
	}

	c.logger.Debug("promoted high-value job to issue",
		"job_id", job.ID, "issue", issue.Number, "url", issue.HTMLURL)

	return model.ItemResult{ItemID: data.AddProjectV2ItemByContentID.Item.ID, Kind: model.ItemIssue}, nil
}

const updateFieldMutation = `
mutation($projectId: ID!, $itemId: ID!, $fieldId: ID!, $value: ProjectV2FieldValue!) {
  updateProjectV2ItemFieldValue(input: {projectId: $projectId, itemId: $itemId, fieldId: $fieldId, value: $value}) {
    projectV2Item { id }
  }
}`

// populateFields writes every resolvable custom field on the new item. Each
// update is independent; failures are logged and the rest continue.
func (c *Client) populateFields(ctx context.Context, itemID string, job model.JobRecord) {
	type update struct {
		role  fieldRole
		value FieldValue
	}
	var updates []update

	if id := c.fieldIDs[roleBudget]; id != "" && job.Budget > 0 {
		updates = append(updates, update{roleBudget, TextValue(formatBudget(job.Budget) + " " + job.Currency)})
	}
	if id := c.fieldIDs[roleCategory]; id != "" && job.Category != "" {
		updates = append(updates, update{roleCategory, TextValue(job.Category)})
	}
	if id := c.fieldIDs[roleSize]; id != "" && job.Budget > 0 {
		size := classify.Size(job.Budget)
		if optID, ok := c.sizeOptions[strings.ToLower(string(size))]; ok {
			updates = append(updates, update{roleSize, SingleSelectValue(optID)})
		} else {
			c.logger.Warn("size option not present on board", "size", size)
		}
	}
	if id := c.fieldIDs[roleStartDate]; id != "" {
		if d, ok := isoDate(job.InsertedAt); ok {
			updates = append(updates, update{roleStartDate, DateValue(d)})
		}
	}
	if id := c.fieldIDs[roleEndDate]; id != "" {
		if d, ok := endDate(job); ok {
			updates = append(updates, update{roleEndDate, DateValue(d)})
		}
	}
	if id := c.fieldIDs[roleTags]; id != "" {
		if tags := classify.Tags(job); len(tags) > 0 {
			updates = append(updates, update{roleTags, TextValue(strings.Join(tags, ", "))})
		}
	}

	for _, u := range updates {
		err := c.doGraphQL(ctx, updateFieldMutation, map[string]any{
			"projectId": c.projectNodeID,
			"itemId":    itemID,
			"fieldId":   c.fieldIDs[u.role],
			"value":     u.value.encode(),
		}, nil)
		if err != nil {
			c.logger.Warn("field update failed", "item_id", itemID, "field", u.role, "error", err)
		}
	}
}

const listItemsQuery = `
query($owner: String!, $projectNumber: Int!, $after: String) {
  user(login: $owner) {
    projectV2(number: $projectNumber) {
      items(first: 100, after: $after) {
        pageInfo { hasNextPage endCursor }
        nodes {
          id
          content {
            ... on Issue { title }
            ... on DraftIssue { title }
          }
        }
      }
    }
  }
}`

const deleteItemMutation = `
mutation($projectId: ID!, $itemId: ID!) {
  deleteProjectV2Item(input: {projectId: $projectId, itemId: $itemId}) {
    deletedItemId
  }
}`

// ClearProject deletes every item on the board, paging 100 at a time. An
// administrative sweep, not part of the steady-state pipeline; per-item
// failures are logged without aborting.
func (c *Client) ClearProject(ctx context.Context) (deleted, total int, err error) {
	if !c.initialized {
		return 0, 0, fmt.Errorf("github client not initialized")
	}

	type itemNode struct {
		ID      string `json:"id"`
		Content struct {
			Title string `json:"title"`
		} `json:"content"`
	}

	var items []itemNode
	var cursor *string
	for {
		var data struct {
			User struct {
				ProjectV2 struct {
					Items struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []itemNode `json:"nodes"`
					} `json:"items"`
				} `json:"projectV2"`
			} `json:"user"`
		}
		err := c.doGraphQL(ctx, listItemsQuery, map[string]any{
			"owner":         c.owner,
			"projectNumber": c.projectNum,
			"after":         cursor,
		}, &data)
		if err != nil {
			return 0, 0, fmt.Errorf("listing project items: %w", err)
		}

		page := data.User.ProjectV2.Items
		items = append(items, page.Nodes...)
		if !page.PageInfo.HasNextPage {
			break
		}
		cursor = &page.PageInfo.EndCursor
	}

	for _, item := range items {
		var data struct {
			DeleteProjectV2Item struct {
				DeletedItemID string `json:"deletedItemId"`
			} `json:"deleteProjectV2Item"`
		}
		err := c.doGraphQL(ctx, deleteItemMutation, map[string]any{
			"projectId": c.projectNodeID,
			"itemId":    item.ID,
		}, &data)
		if err != nil {
			c.logger.Error("failed to delete item", "item_id", item.ID, "title", item.Content.Title, "error", err)
			continue
		}
		deleted++
	}

	c.logger.Info("cleared project", "deleted", deleted, "total", len(items))
	return deleted, len(items), nil
}

// TestConnection verifies the token by asking who it authenticates as.
func (c *Client) TestConnection(ctx context.Context) (string, error) {
	var data struct {
		Viewer struct {
			Login string `json:"login"`
		} `json:"viewer"`
	}
	if err := c.doGraphQL(ctx, `query { viewer { login } }`, nil, &data); err != nil {
		return "", fmt.Errorf("github connection test: %w", err)
	}
	return data.Viewer.Login, nil
}

func formatTitle(job model.JobRecord) string {
	if job.Budget > 0 {
		return fmt.Sprintf("[%s %s] %s", formatBudget(job.Budget), job.Currency, job.Title)
	}
	return job.Title
}

func formatBody(job model.JobRecord) string {
	budgetText := "Not specified"
	if job.Budget > 0 {
		budgetText = formatBudget(job.Budget) + " " + job.Currency
	}
	startText := "Not specified"
	if d, ok := isoDate(job.InsertedAt); ok {
		startText = d
	}
	endText := "Not specified"
	if d, ok := endDate(job); ok {
		endText = d
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Job Details\n")
	fmt.Fprintf(&b, "**Title:** %s\n", job.Title)
	fmt.Fprintf(&b, "**Budget:** %s\n", budgetText)
	fmt.Fprintf(&b, "**Size:** %s\n", classify.Size(job.Budget))
	fmt.Fprintf(&b, "**Category:** %s\n", job.Category)
	fmt.Fprintf(&b, "**Start Date:** %s\n", startText)
	fmt.Fprintf(&b, "**End Date:** %s\n", endText)
	fmt.Fprintf(&b, "**Fastwork URL:** [View Job](%s)\n", job.URL)
	fmt.Fprintf(&b, "\n## Description\n%s\n", orDefault(job.Description, "No description provided"))
	fmt.Fprintf(&b, "\n## Additional Information\n")
	fmt.Fprintf(&b, "- **Job ID:** %s\n", job.ID)
	fmt.Fprintf(&b, "- **Inserted:** %s\n", orDefault(job.InsertedAt, "Unknown"))
	fmt.Fprintf(&b, "- **Source:** Fastwork.co\n")

	if tags := classify.Tags(job); len(tags) > 0 {
		quoted := make([]string, len(tags))
		for i, t := range tags {
			quoted[i] = "`" + t + "`"
		}
		fmt.Fprintf(&b, "\n**Tags:** %s\n", strings.Join(quoted, ", "))
	}
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// formatBudget renders a budget with thousands separators, e.g. 12,500.
func formatBudget(budget float64) string {
	n := int64(budget)
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}

// isoDate converts an RFC3339-ish timestamp to the YYYY-MM-DD form the
// date-field mutation expects.
func isoDate(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// endDate picks the listing's explicit deadline or expiry from the raw
// payload, falling back to insertion + 30 days.
func endDate(job model.JobRecord) (string, bool) {
	if job.RawData != "" {
		var raw struct {
			DeadlineAt string `json:"deadline_at"`
			ExpiredAt  string `json:"expired_at"`
		}
		if err := json.Unmarshal([]byte(job.RawData), &raw); err == nil {
			if d, ok := isoDate(raw.DeadlineAt); ok {
				return d, true
			}
			if d, ok := isoDate(raw.ExpiredAt); ok {
				return d, true
			}
		}
	}

	if job.InsertedAt != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, job.InsertedAt); err == nil {
				return t.AddDate(0, 0, 30).Format("2006-01-02"), true
			}
		}
	}
	return "", false
}
