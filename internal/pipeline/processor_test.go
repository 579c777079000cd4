package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

var (
	catApp = model.CategoryInfo{ID: "cat-app", NameEn: "Application Development"}
	catWeb = model.CategoryInfo{ID: "cat-web", NameEn: "Web Development"}
)

// fakeSource serves fixed listings per category, with optional failures.
type fakeSource struct {
	categories []model.CategoryInfo
	listings   map[string][]model.Listing // key: category ID
	fail       map[string]bool
}

func (s *fakeSource) Categories() []model.CategoryInfo { return s.categories }

func (s *fakeSource) FetchCategory(_ context.Context, category model.CategoryInfo, _ int) ([]model.Listing, error) {
	if s.fail[category.ID] {
		return nil, fmt.Errorf("category %s: upstream unavailable", category.NameEn)
	}
	out := s.listings[category.ID]
	for i := range out {
		out[i].Category = category.NameEn
	}
	return out, nil
}

// fakeSyncer counts item creations and can fail selected jobs.
type fakeSyncer struct {
	initErr error
	failIDs map[string]bool
	created []string
}

func (s *fakeSyncer) Initialize(_ context.Context) error { return s.initErr }

func (s *fakeSyncer) CreateItem(_ context.Context, job model.JobRecord) (model.ItemResult, error) {
	if s.failIDs[job.ID] {
		return model.ItemResult{}, fmt.Errorf("board rejected job %s", job.ID)
	}
	s.created = append(s.created, job.ID)
	return model.ItemResult{ItemID: "PVTI_" + job.ID, Kind: model.ItemDraft}, nil
}

func listing(id string, budget float64) model.Listing {
	return model.Listing{
		ID:     id,
		Title:  "Job " + id,
		Budget: &budget,
		URL:    "https://jobboard.fastwork.co/jobs/" + id,
	}
}

func TestRun_FiltersByMinBudget(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp},
		listings: map[string][]model.Listing{
			"cat-app": {
				listing("a", 0),
				listing("b", 3000),
				listing("c", 5000),
				listing("d", 20000),
			},
		},
	}
	p := New(source, newTestStore(t), nil, Config{MinBudget: 5000}, discard())

	persisted, stats, err := p.Run(context.Background(), 10)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Fetched != 4 {
		t.Errorf("expected 4 fetched, got %d", stats.Fetched)
	}
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted, got %d", len(persisted))
	}
	if persisted[0].ID != "c" || persisted[1].ID != "d" {
		t.Errorf("unexpected survivors: %v, %v", persisted[0].ID, persisted[1].ID)
	}
	if stats.Eligible != 2 || stats.Persisted != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestRun_ZeroMinBudgetKeepsEverything(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp},
		listings: map[string][]model.Listing{
			"cat-app": {listing("a", 0), listing("b", 100)},
		},
	}
	p := New(source, newTestStore(t), nil, Config{MinBudget: 0}, discard())

	persisted, _, err := p.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("expected 2 persisted with filter disabled, got %d", len(persisted))
	}
}

func TestRun_CapsAtLimit(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp},
		listings: map[string][]model.Listing{
			"cat-app": {
				listing("a", 10000),
				listing("b", 10000),
				listing("c", 10000),
				listing("d", 10000),
			},
		},
	}
	p := New(source, newTestStore(t), nil, Config{}, discard())

	persisted, stats, err := p.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("expected cap of 2, got %d", len(persisted))
	}
	if stats.Fetched != 4 {
		t.Errorf("cap must not hide fetch count, got %d", stats.Fetched)
	}
}

func TestRun_SecondCycleSkipsSyncedJobs(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp},
		listings: map[string][]model.Listing{
			"cat-app": {listing("a", 8000), listing("b", 12000)},
		},
	}
	syncer := &fakeSyncer{}
	p := New(source, newTestStore(t), syncer, Config{SyncEnabled: true}, discard())

	_, stats, err := p.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if stats.Synced != 2 {
		t.Fatalf("expected 2 synced on first run, got %d", stats.Synced)
	}

	_, stats, err = p.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Synced != 0 {
		t.Errorf("expected 0 synced on second run, got %d", stats.Synced)
	}
	if stats.Skipped != 2 {
		t.Errorf("expected 2 skipped on second run, got %d", stats.Skipped)
	}
	if len(syncer.created) != 2 {
		t.Errorf("expected exactly 2 external items ever created, got %d", len(syncer.created))
	}
}

func TestRun_CategoryFailureDoesNotAbortCycle(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp, catWeb},
		listings: map[string][]model.Listing{
			"cat-web": {listing("w1", 9000), listing("w2", 9000)},
		},
		fail: map[string]bool{"cat-app": true},
	}
	p := New(source, newTestStore(t), nil, Config{}, discard())

	persisted, stats, err := p.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("expected surviving category to persist, got %d records", len(persisted))
	}
	if stats.Errors != 1 {
		t.Errorf("expected 1 error counted, got %d", stats.Errors)
	}
	if persisted[0].Category != "Web Development" {
		t.Errorf("unexpected category %q", persisted[0].Category)
	}
}

func TestRun_SyncFailureIsolatedPerJob(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp},
		listings: map[string][]model.Listing{
			"cat-app": {listing("a", 8000), listing("b", 8000), listing("c", 8000)},
		},
	}
	syncer := &fakeSyncer{failIDs: map[string]bool{"b": true}}
	st := newTestStore(t)
	p := New(source, st, syncer, Config{SyncEnabled: true}, discard())

	_, stats, err := p.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Synced != 2 || stats.Errors != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	// The failed job stays unsynced so the next cycle retries it naturally.
	synced, err := st.IsSynced("b")
	if err != nil {
		t.Fatalf("IsSynced: %v", err)
	}
	if synced {
		t.Error("failed job must not be recorded as synced")
	}
}

func TestRun_SyncTargetDownStillPersists(t *testing.T) {
	source := &fakeSource{
		categories: []model.CategoryInfo{catApp},
		listings: map[string][]model.Listing{
			"cat-app": {listing("a", 8000)},
		},
	}
	syncer := &fakeSyncer{initErr: fmt.Errorf("bad credentials")}
	p := New(source, newTestStore(t), syncer, Config{SyncEnabled: true}, discard())

	persisted, stats, err := p.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(persisted) != 1 {
		t.Errorf("expected job persisted despite sync target failure, got %d", len(persisted))
	}
	if stats.Synced != 0 || stats.Errors != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestPageSize_SplitsLimitWithFloor(t *testing.T) {
	p := New(&fakeSource{}, newTestStore(t), nil, Config{PageSize: 20}, discard())

	tests := []struct {
		limit, categories, want int
	}{
		{0, 4, 20},    // no cap falls back to the configured minimum
		{30, 4, 20},   // 8+10 is below the floor
		{100, 4, 35},  // 25+10
		{100, 3, 44},  // ceil(100/3)=34, +10
		{100, 0, 20},  // no categories, nothing to split
	}
	for _, tt := range tests {
		if got := p.pageSize(tt.limit, tt.categories); got != tt.want {
			t.Errorf("pageSize(%d, %d) = %d, want %d", tt.limit, tt.categories, got, tt.want)
		}
	}
}

func TestRun_RejectsOverlappingCycle(t *testing.T) {
	p := New(&fakeSource{}, newTestStore(t), nil, Config{}, discard())
	p.running.Store(true)

	if _, _, err := p.Run(context.Background(), 0); err != ErrAlreadyRunning {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}

	p.running.Store(false)
	if _, _, err := p.Run(context.Background(), 0); err != nil {
		t.Fatalf("expected run to succeed after release, got %v", err)
	}
}
