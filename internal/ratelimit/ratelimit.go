// Package ratelimit spaces out calls to external services so bursts of jobs
// do not trip provider-side throttling.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/korrio/jobradar/internal/model"
)

// Pacer enforces a minimum delay between consecutive calls to the same target.
type Pacer struct {
	mu       sync.Mutex
	lastCall map[string]time.Time // key: target name
	minDelay time.Duration
}

// NewPacer creates a pacer that enforces minDelay between consecutive calls
// to the same target.
func NewPacer(minDelay time.Duration) *Pacer {
	return &Pacer{
		lastCall: make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until enough time has passed since the last call to the given
// target. Returns an error if the context is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context, target string) error {
	p.mu.Lock()
	last, ok := p.lastCall[target]
	now := time.Now()

	if !ok {
		p.lastCall[target] = now
		p.mu.Unlock()
		return nil
	}

	elapsed := now.Sub(last)
	if elapsed >= p.minDelay {
		p.lastCall[target] = now
		p.mu.Unlock()
		return nil
	}

	remaining := p.minDelay - elapsed
	p.mu.Unlock()

	select {
	case <-ctx.Done():
		return fmt.Errorf("pacer wait for %s: %w", target, ctx.Err())
	case <-time.After(remaining):
	}

	p.mu.Lock()
	p.lastCall[target] = time.Now()
	p.mu.Unlock()

	return nil
}

// PacedSyncer is a decorator that paces item creation before delegating to
// the wrapped Syncer. All callers targeting the same board should share the
// same pacer instance.
type PacedSyncer struct {
	inner  model.Syncer
	pacer  *Pacer
	target string
}

// NewPacedSyncer wraps a Syncer so consecutive CreateItem calls are at least
// the pacer's delay apart.
func NewPacedSyncer(inner model.Syncer, pacer *Pacer, target string) *PacedSyncer {
	return &PacedSyncer{
		inner:  inner,
		pacer:  pacer,
		target: target,
	}
}

func (s *PacedSyncer) Initialize(ctx context.Context) error {
	return s.inner.Initialize(ctx)
}

// CreateItem waits for the pacer to allow a call, then delegates to the
// wrapped syncer.
func (s *PacedSyncer) CreateItem(ctx context.Context, job model.JobRecord) (model.ItemResult, error) {
	if err := s.pacer.Wait(ctx, s.target); err != nil {
		return model.ItemResult{}, err
	}
	return s.inner.CreateItem(ctx, job)
}

var _ model.Syncer = (*PacedSyncer)(nil)
