package github

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/korrio/jobradar/internal/model"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const projectDetailsPayload = `{
	"data": {
		"user": {
			"projectV2": {
				"id": "PVT_project",
				"title": "Fastwork Jobs",
				"fields": {
					"nodes": [
						{"id": "F_budget", "name": "Budget", "dataType": "TEXT"},
						{"id": "F_category", "name": "Category", "dataType": "TEXT"},
						{"id": "F_tags", "name": "Tags", "dataType": "TEXT"},
						{"id": "F_size", "name": "Size", "dataType": "SINGLE_SELECT",
							"options": [
								{"id": "OPT_xs", "name": "XS"},
								{"id": "OPT_s", "name": "S"},
								{"id": "OPT_m", "name": "M"},
								{"id": "OPT_l", "name": "L"},
								{"id": "OPT_xl", "name": "XL"}
							]},
						{"id": "F_start", "name": "Start date", "dataType": "DATE"},
						{"id": "F_end", "name": "End date", "dataType": "DATE"}
					]
				}
			}
		}
	}
}`

// fakeGitHub serves both the GraphQL endpoint and the REST issues endpoint,
// recording everything it sees.
type fakeGitHub struct {
	t *testing.T

	graphQLBodies []string
	issueBodies   []string
	failFields    bool
}

func (f *fakeGitHub) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s := string(body)

		if strings.HasPrefix(r.URL.Path, "/repos/") {
			f.issueBodies = append(f.issueBodies, s)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 77, "node_id": "I_node77", "number": 42, "html_url": "https://github.com/korrio/fastwork-kanban/issues/42"}`))
			return
		}

		f.graphQLBodies = append(f.graphQLBodies, s)
		switch {
		case strings.Contains(s, "projectV2(number:") && strings.Contains(s, "fields(first:"):
			w.Write([]byte(projectDetailsPayload))
		case strings.Contains(s, "addProjectV2DraftIssue"):
			w.Write([]byte(`{"data": {"addProjectV2DraftIssue": {"projectItem": {"id": "PVTI_draft1"}}}}`))
		case strings.Contains(s, "addProjectV2ItemByContentId"):
			w.Write([]byte(`{"data": {"addProjectV2ItemByContentId": {"item": {"id": "PVTI_issue1"}}}}`))
		case strings.Contains(s, "updateProjectV2ItemFieldValue"):
			if f.failFields {
				w.Write([]byte(`{"errors": [{"message": "field update rejected"}]}`))
				return
			}
			w.Write([]byte(`{"data": {"updateProjectV2ItemFieldValue": {"projectV2Item": {"id": "PVTI_x"}}}}`))
		case strings.Contains(s, "viewer"):
			w.Write([]byte(`{"data": {"viewer": {"login": "korrio"}}}`))
		default:
			f.t.Errorf("unexpected graphql request: %s", s)
			w.Write([]byte(`{"data": {}}`))
		}
	})
}

func newTestClient(t *testing.T, fake *fakeGitHub) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	c, err := NewClient("token", "https://github.com/users/korrio/projects/4",
		"korrio/fastwork-kanban", srv.Client(), discard())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.graphqlURL = srv.URL + "/graphql"
	c.restURL = srv.URL
	return c
}

func testJob(budget float64) model.JobRecord {
	return model.JobRecord{
		ID:          "job-1",
		Title:       "Build LINE chatbot",
		Description: "Chatbot for a retail shop",
		Budget:      budget,
		Currency:    "THB",
		Category:    "Application Development",
		InsertedAt:  "2026-08-01T10:00:00Z",
		URL:         "https://jobboard.fastwork.co/jobs/job-1",
	}
}

func TestNewClient_RejectsBadProjectURL(t *testing.T) {
	_, err := NewClient("token", "https://github.com/korrio/projects", "o/r", http.DefaultClient, discard())
	if err == nil {
		t.Fatal("expected error for malformed project URL")
	}
}

func TestInitialize_ResolvesSchema(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if c.projectNodeID != "PVT_project" {
		t.Errorf("expected project node id resolved, got %q", c.projectNodeID)
	}
	for _, role := range []fieldRole{roleBudget, roleCategory, roleTags, roleSize, roleStartDate, roleEndDate} {
		if c.fieldIDs[role] == "" {
			t.Errorf("expected field id for role %s", role)
		}
	}
	if c.sizeOptions["m"] != "OPT_m" {
		t.Errorf("expected size options captured, got %v", c.sizeOptions)
	}

	// Second call must not hit the API again.
	calls := len(fake.graphQLBodies)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("repeat Initialize: %v", err)
	}
	if len(fake.graphQLBodies) != calls {
		t.Error("expected repeated Initialize to be a no-op")
	}
}

func TestInitialize_ProjectNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"user": {"projectV2": null}}}`))
	}))
	defer srv.Close()

	c, err := NewClient("token", "https://github.com/users/korrio/projects/4", "o/r", srv.Client(), discard())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.graphqlURL = srv.URL

	if err := c.Initialize(context.Background()); err == nil {
		t.Fatal("expected error for missing project")
	}
}

func TestCreateItem_RequiresInitialize(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)

	if _, err := c.CreateItem(context.Background(), testJob(8000)); err == nil {
		t.Fatal("expected error when creating before Initialize")
	}
}

func TestCreateItem_DraftForModestBudget(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for _, budget := range []float64{8000, 10000} {
		result, err := c.CreateItem(context.Background(), testJob(budget))
		if err != nil {
			t.Fatalf("CreateItem(%v): %v", budget, err)
		}
		if result.Kind != model.ItemDraft {
			t.Errorf("budget %v: expected draft, got %s", budget, result.Kind)
		}
		if result.ItemID != "PVTI_draft1" {
			t.Errorf("budget %v: unexpected item id %q", budget, result.ItemID)
		}
	}
	if len(fake.issueBodies) != 0 {
		t.Error("draft path must not touch the issues API")
	}
}

func TestCreateItem_IssueForHighBudget(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// 10001 is the smallest budget promoted to a full issue.
	if r, err := c.CreateItem(context.Background(), testJob(10001)); err != nil {
		t.Fatalf("CreateItem(10001): %v", err)
	} else if r.Kind != model.ItemIssue {
		t.Errorf("budget 10001: expected issue, got %s", r.Kind)
	}
	fake.issueBodies = nil

	result, err := c.CreateItem(context.Background(), testJob(25000))
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if result.Kind != model.ItemIssue {
		t.Errorf("expected issue, got %s", result.Kind)
	}
	if result.ItemID != "PVTI_issue1" {
		t.Errorf("unexpected item id %q", result.ItemID)
	}
	if len(fake.issueBodies) != 1 {
		t.Fatalf("expected one REST issue creation, got %d", len(fake.issueBodies))
	}

	var issue struct {
		Title  string   `json:"title"`
		Labels []string `json:"labels"`
	}
	if err := json.Unmarshal([]byte(fake.issueBodies[0]), &issue); err != nil {
		t.Fatalf("parse issue body: %v", err)
	}
	if issue.Title != "[25,000 THB] Build LINE chatbot" {
		t.Errorf("unexpected issue title %q", issue.Title)
	}
	found := false
	for _, l := range issue.Labels {
		if l == "medium-budget" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected medium-budget label, got %v", issue.Labels)
	}
}

func TestCreateItem_PopulatesFields(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if _, err := c.CreateItem(context.Background(), testJob(8000)); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	var fieldUpdates []string
	for _, body := range fake.graphQLBodies {
		if strings.Contains(body, "updateProjectV2ItemFieldValue") {
			fieldUpdates = append(fieldUpdates, body)
		}
	}
	// budget, category, size, start date, end date, tags
	if len(fieldUpdates) != 6 {
		t.Fatalf("expected 6 field updates, got %d", len(fieldUpdates))
	}

	all := strings.Join(fieldUpdates, "\n")
	if !strings.Contains(all, `"text":"8,000 THB"`) {
		t.Error("expected formatted budget text update")
	}
	if !strings.Contains(all, `"singleSelectOptionId":"OPT_s"`) {
		t.Error("expected size single-select update by option id")
	}
	if !strings.Contains(all, `"date":"2026-08-01"`) {
		t.Error("expected start date update")
	}
	if !strings.Contains(all, `"date":"2026-08-31"`) {
		t.Error("expected end date defaulted to insertion+30d")
	}
}

func TestCreateItem_FieldFailureDoesNotFailItem(t *testing.T) {
	fake := &fakeGitHub{t: t, failFields: true}
	c := newTestClient(t, fake)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	result, err := c.CreateItem(context.Background(), testJob(8000))
	if err != nil {
		t.Fatalf("CreateItem should tolerate field failures: %v", err)
	}
	if result.ItemID != "PVTI_draft1" {
		t.Errorf("unexpected item id %q", result.ItemID)
	}
}

func TestCreateItem_EndDateFromDeadline(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	job := testJob(8000)
	job.RawData = `{"id": "job-1", "deadline_at": "2026-09-15T00:00:00Z"}`
	if _, err := c.CreateItem(context.Background(), job); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	all := strings.Join(fake.graphQLBodies, "\n")
	if !strings.Contains(all, `"date":"2026-09-15"`) {
		t.Error("expected explicit deadline to win over insertion+30d")
	}
}

func TestClearProject_PaginatesAndToleratesFailures(t *testing.T) {
	page := 0
	var deleted []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s := string(body)
		switch {
		case strings.Contains(s, "fields(first:"):
			w.Write([]byte(projectDetailsPayload))
		case strings.Contains(s, "items(first:"):
			page++
			if page == 1 {
				w.Write([]byte(`{"data": {"user": {"projectV2": {"items": {
					"pageInfo": {"hasNextPage": true, "endCursor": "cur1"},
					"nodes": [{"id": "item-1", "content": {"title": "a"}}, {"id": "item-2", "content": {"title": "b"}}]
				}}}}}`))
				return
			}
			if !strings.Contains(s, "cur1") {
				t.Errorf("expected second page request to carry cursor, got %s", s)
			}
			w.Write([]byte(`{"data": {"user": {"projectV2": {"items": {
				"pageInfo": {"hasNextPage": false, "endCursor": "cur2"},
				"nodes": [{"id": "item-3", "content": {"title": "c"}}]
			}}}}}`))
		case strings.Contains(s, "deleteProjectV2Item"):
			if strings.Contains(s, "item-2") {
				w.Write([]byte(`{"errors": [{"message": "cannot delete"}]}`))
				return
			}
			var req struct {
				Variables struct {
					ItemID string `json:"itemId"`
				} `json:"variables"`
			}
			json.Unmarshal(body, &req)
			deleted = append(deleted, req.Variables.ItemID)
			w.Write([]byte(`{"data": {"deleteProjectV2Item": {"deletedItemId": "x"}}}`))
		default:
			t.Errorf("unexpected request: %s", s)
		}
	}))
	defer srv.Close()

	c, err := NewClient("token", "https://github.com/users/korrio/projects/4", "o/r", srv.Client(), discard())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.graphqlURL = srv.URL

	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	got, total, err := c.ClearProject(context.Background())
	if err != nil {
		t.Fatalf("ClearProject: %v", err)
	}
	if total != 3 {
		t.Errorf("expected 3 items found, got %d", total)
	}
	if got != 2 {
		t.Errorf("expected 2 deleted (one failure tolerated), got %d", got)
	}
	if len(deleted) != 2 || deleted[0] != "item-1" || deleted[1] != "item-3" {
		t.Errorf("unexpected deletions: %v", deleted)
	}
}

func TestTestConnection_ReportsViewerLogin(t *testing.T) {
	fake := &fakeGitHub{t: t}
	c := newTestClient(t, fake)

	login, err := c.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection: %v", err)
	}
	if login != "korrio" {
		t.Errorf("expected viewer login korrio, got %q", login)
	}
}

func TestFormatBudget(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{500, "500"},
		{8000, "8,000"},
		{12500, "12,500"},
		{1250000, "1,250,000"},
	}
	for _, tt := range tests {
		if got := formatBudget(tt.in); got != tt.want {
			t.Errorf("formatBudget(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFieldValueEncodings(t *testing.T) {
	tests := []struct {
		value FieldValue
		key   string
	}{
		{TextValue("x"), "text"},
		{NumberValue(5), "number"},
		{DateValue("2026-08-01"), "date"},
		{SingleSelectValue("OPT_m"), "singleSelectOptionId"},
	}
	for _, tt := range tests {
		enc := tt.value.encode()
		if len(enc) != 1 {
			t.Errorf("%T encoded to %v, want single key", tt.value, enc)
		}
		if _, ok := enc[tt.key]; !ok {
			t.Errorf("%T missing key %q in %v", tt.value, tt.key, enc)
		}
	}
}
