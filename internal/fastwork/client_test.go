package fastwork

import (
	"context"
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

func newTestClient(srv *httptest.Server, categories ...model.CategoryInfo) *Client {
	c := NewClient(categories, srv.Client(), discard())
	c.baseURL = srv.URL
	return c
}

func TestFetchJobs_QueryEncoding(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": [], "meta": {"page": 1}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	_, err := c.FetchJobs(context.Background(), FetchOptions{
		Page:     2,
		PageSize: 30,
		TagIDs:   []string{"tag-a", "tag-b"},
	})
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}

	for _, want := range []string{
		"page=2",
		"page_size=30",
		"order_by%5B%5D=inserted_at",
		"order_directions%5B%5D=desc",
		"filters%5B0%5D%5Bfield%5D=tag_id",
		"filters%5B0%5D%5Bvalue%5D=tag-a",
		"filters%5B1%5D%5Bfield%5D=tag_id",
		"filters%5B1%5D%5Bvalue%5D=tag-b",
	} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestFetchJobs_ParsesListingsAndKeepsRaw(t *testing.T) {
	payload := `{
		"data": [
			{"id": "job-1", "title": "Build LINE bot", "description": "งบ 12,500 บาท", "budget": 12500, "inserted_at": "2026-08-01T10:00:00Z"},
			{"id": "job-2", "name": "Fix webshop", "budget_min": 3000}
		],
		"meta": {"page": 1, "page_size": 20, "total_count": 2}
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	result, err := c.FetchJobs(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}

	if len(result.Listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(result.Listings))
	}
	l := result.Listings[0]
	if l.ID != "job-1" || l.Title != "Build LINE bot" {
		t.Errorf("unexpected first listing: %+v", l)
	}
	if l.Budget == nil || *l.Budget != 12500 {
		t.Errorf("expected budget 12500, got %v", l.Budget)
	}
	if len(l.Raw) == 0 || !strings.Contains(string(l.Raw), `"job-1"`) {
		t.Errorf("expected raw JSON to be preserved, got %q", l.Raw)
	}
	if result.Listings[1].DisplayTitle() != "Fix webshop" {
		t.Errorf("expected name fallback, got %q", result.Listings[1].DisplayTitle())
	}
	if result.Meta.TotalCount != 2 {
		t.Errorf("expected total_count 2, got %d", result.Meta.TotalCount)
	}
}

func TestFetchJobs_MissingDataIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": {"page": 1}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	result, err := c.FetchJobs(context.Background(), FetchOptions{})
	if err != nil {
		t.Fatalf("FetchJobs: %v", err)
	}
	if len(result.Listings) != 0 {
		t.Errorf("expected no listings, got %d", len(result.Listings))
	}
}

func TestFetchJobs_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv)
	if _, err := c.FetchJobs(context.Background(), FetchOptions{}); err == nil {
		t.Fatal("expected error for HTTP 502, got nil")
	}
}

func TestFetchCategory_TagsListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [{"id": "job-9", "title": "IoT sensor"}], "meta": {}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, CategoryIoTWork)
	listings, err := c.FetchCategory(context.Background(), CategoryIoTWork, 20)
	if err != nil {
		t.Fatalf("FetchCategory: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}
	if listings[0].Category != "IoT Work" {
		t.Errorf("expected category label IoT Work, got %q", listings[0].Category)
	}
	if listings[0].TagID != CategoryIoTWork.ID {
		t.Errorf("expected tag id backfilled, got %q", listings[0].TagID)
	}
}

func TestFetchAllCategories_PartialFailure(t *testing.T) {
	// Fail the second category, succeed on the other three.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, CategoryWebDevelopment.ID) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data": [{"id": "x", "title": "ok"}], "meta": {}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv, AllCategories...)
	listings, errs := c.FetchAllCategories(context.Background(), 20)

	if len(listings) != 3 {
		t.Errorf("expected 3 listings from surviving categories, got %d", len(listings))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 category error, got %d", len(errs))
	}
	if !strings.Contains(errs[0].Error(), "Web Development") {
		t.Errorf("expected error to name the failed category, got %v", errs[0])
	}
}

func TestJobURL(t *testing.T) {
	if got := JobURL("abc-123"); got != "https://jobboard.fastwork.co/jobs/abc-123" {
		t.Errorf("JobURL() = %q", got)
	}
}
