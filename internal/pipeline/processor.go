// Package pipeline drives one full ingestion cycle: fetch listings across
// category partitions, classify and filter them, persist the survivors and
// mirror the not-yet-synced ones to the external board.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/korrio/jobradar/internal/classify"
	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/store"
)

// ErrAlreadyRunning is returned when a cycle is requested while a previous
// one is still in flight. The caller should skip, not queue.
var ErrAlreadyRunning = errors.New("ingestion cycle already running")

// Config carries the tunables of one processor instance.
type Config struct {
	// MinBudget filters out listings whose derived budget falls below it.
	// Zero disables the filter entirely.
	MinBudget float64

	// PageSize is the minimum number of listings requested per category
	// partition. The fetch stage asks for more when the run cap divided
	// across the categories calls for it.
	PageSize int

	// SyncEnabled gates the external-board stage. Fetch and persist still
	// run when false.
	SyncEnabled bool
}

// Stats summarizes one cycle.
type Stats struct {
	Fetched   int // listings returned by the source
	Eligible  int // survived the budget filter and run cap
	Persisted int // upserted into the store
	Synced    int // new external items created this cycle
	Skipped   int // already synced in an earlier cycle
	Errors    int // per-unit failures (category fetches, persists, syncs)
}

// Processor owns the cycle. Safe for concurrent Run calls: overlapping
// invocations beyond the first fail fast with ErrAlreadyRunning.
type Processor struct {
	source model.Source
	store  *store.Store
	syncer model.Syncer
	cfg    Config
	logger *slog.Logger

	running atomic.Bool
}

// New creates a processor. syncer may be nil when external sync is disabled.
func New(source model.Source, st *store.Store, syncer model.Syncer, cfg Config, logger *slog.Logger) *Processor {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return &Processor{
		source: source,
		store:  st,
		syncer: syncer,
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes one cycle and returns every record it attempted to process,
// capped at limit (0 means no cap), whether or not each one persisted or
// synced. A failing category, persist or sync affects only its own unit; the
// cycle continues and the failure is counted in Stats.
func (p *Processor) Run(ctx context.Context, limit int) ([]model.JobRecord, Stats, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, Stats{}, ErrAlreadyRunning
	}
	defer p.running.Store(false)

	var stats Stats

	// FETCH: one page per category, tolerating partial failure.
	var listings []model.Listing
	categories := p.source.Categories()
	pageSize := p.pageSize(limit, len(categories))
	for _, category := range categories {
		batch, err := p.source.FetchCategory(ctx, category, pageSize)
		if err != nil {
			p.logger.Error("category fetch failed", "category", category.NameEn, "error", err)
			stats.Errors++
			continue
		}
		listings = append(listings, batch...)
	}
	stats.Fetched = len(listings)

	// CLASSIFY + FILTER + CAP.
	var eligible []model.JobRecord
	for _, l := range listings {
		budget := classify.DeriveBudget(l)
		if p.cfg.MinBudget > 0 && budget < p.cfg.MinBudget {
			continue
		}
		eligible = append(eligible, buildRecord(l, budget))
		if limit > 0 && len(eligible) >= limit {
			break
		}
	}
	stats.Eligible = len(eligible)

	// PERSIST.
	persisted := make([]model.JobRecord, 0, len(eligible))
	for _, job := range eligible {
		if err := p.store.UpsertJob(job); err != nil {
			p.logger.Error("persist failed", "job_id", job.ID, "error", err)
			stats.Errors++
			continue
		}
		persisted = append(persisted, job)
	}
	stats.Persisted = len(persisted)

	// SYNC: mirror everything not yet on the board.
	if p.cfg.SyncEnabled && p.syncer != nil && len(persisted) > 0 {
		p.syncJobs(ctx, persisted, &stats)
	}

	p.logger.Info("ingestion cycle complete",
		"fetched", stats.Fetched,
		"eligible", stats.Eligible,
		"persisted", stats.Persisted,
		"synced", stats.Synced,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
	)
	return eligible, stats, nil
}

// pageSize derives how many listings to request per category: the run cap
// split across the categories plus headroom for the budget filter, never less
// than the configured minimum.
func (p *Processor) pageSize(limit, categories int) int {
	if limit <= 0 || categories <= 0 {
		return p.cfg.PageSize
	}
	perCategory := (limit+categories-1)/categories + 10
	if perCategory < p.cfg.PageSize {
		return p.cfg.PageSize
	}
	return perCategory
}

func (p *Processor) syncJobs(ctx context.Context, jobs []model.JobRecord, stats *Stats) {
	if err := p.syncer.Initialize(ctx); err != nil {
		p.logger.Error("sync target unavailable, skipping sync stage", "error", err)
		stats.Errors++
		return
	}

	for _, job := range jobs {
		synced, err := p.store.IsSynced(job.ID)
		if err != nil {
			p.logger.Error("sync check failed", "job_id", job.ID, "error", err)
			stats.Errors++
			continue
		}
		if synced {
			stats.Skipped++
			continue
		}

		result, err := p.syncer.CreateItem(ctx, job)
		if err != nil {
			p.logger.Error("sync failed", "job_id", job.ID, "error", err)
			stats.Errors++
			continue
		}
		if err := p.store.MarkSynced(job.ID, result.ItemID); err != nil {
			p.logger.Error("recording sync failed", "job_id", job.ID, "error", err)
			stats.Errors++
			continue
		}
		stats.Synced++
	}
}

// buildRecord converts an ephemeral listing into its durable form.
func buildRecord(l model.Listing, budget float64) model.JobRecord {
	return model.JobRecord{
		ID:          l.ID,
		Title:       l.DisplayTitle(),
		Description: l.Description,
		Budget:      budget,
		Currency:    "THB",
		TagID:       l.TagID,
		Category:    l.Category,
		CreatedAt:   l.CreatedAt,
		InsertedAt:  l.InsertedAt,
		URL:         l.URL,
		RawData:     string(l.Raw),
	}
}
