package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BuildFunc constructs a fresh orchestrator with new remote sessions. The
// ticker calls it after a failed tick so a poisoned HTTP session or stale
// remote handle cannot wedge every following run.
type BuildFunc func(ctx context.Context) (*Orchestrator, error)

// Ticker drives the sync loop: one immediate tick, then a fixed cadence. A
// failed tick comes back after the shorter retry delay instead of waiting out
// the interval.
type Ticker struct {
	log        *zap.Logger
	interval   time.Duration
	retryDelay time.Duration
	build      BuildFunc

	mu      sync.RWMutex
	current *Orchestrator
	lastRun *TickSummary
}

// NewTicker wires the loop around an initial orchestrator.
func NewTicker(initial *Orchestrator, build BuildFunc, interval, retryDelay time.Duration, log *zap.Logger) *Ticker {
	return &Ticker{
		log:        log.Named("ticker"),
		interval:   interval,
		retryDelay: retryDelay,
		build:      build,
		current:    initial,
	}
}

// Current returns the orchestrator in service.
func (t *Ticker) Current() *Orchestrator {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Status reports the live phase plus the last finished tick, surviving
// orchestrator rebuilds.
func (t *Ticker) Status() Status {
	st := t.Current().Status()

	t.mu.RLock()
	defer t.mu.RUnlock()
	if st.LastTick == nil && t.lastRun != nil {
		tick := *t.lastRun
		st.LastTick = &tick
	}
	return st
}

// Run ticks immediately, then re-arms the loop until the context ends:
// interval after a clean tick, retryDelay after a failed one.
func (t *Ticker) Run(ctx context.Context) error {
	t.log.Info("sync loop started",
		zap.Duration("interval", t.interval),
		zap.Duration("retry_delay", t.retryDelay))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("sync loop stopped")
			return ctx.Err()
		case <-timer.C:
			timer.Reset(t.tick(ctx))
		}
	}
}

// tick runs one sync and returns the delay until the next attempt. A failure
// swaps in a rebuilt orchestrator and retries after retryDelay rather than
// the full cadence.
func (t *Ticker) tick(ctx context.Context) time.Duration {
	summary, err := t.Current().Sync(ctx)
	if err != nil {
		if errors.Is(err, ErrSyncInFlight) {
			// A manually triggered sync is running; the cadence stands.
			t.log.Warn("tick skipped, sync already in flight")
			return t.interval
		}

		t.log.Error("tick failed", zap.Error(err), zap.Duration("retry_in", t.retryDelay))
		t.remember(summary)
		t.rebuild(ctx)
		return t.retryDelay
	}
	t.remember(summary)
	return t.interval
}

func (t *Ticker) remember(summary TickSummary) {
	if summary.SyncID == "" {
		return
	}
	t.mu.Lock()
	t.lastRun = &summary
	t.mu.Unlock()
}

// rebuild swaps in a fresh orchestrator. When the factory itself fails the
// previous instance stays in service and the next tick tries again.
func (t *Ticker) rebuild(ctx context.Context) {
	next, err := t.build(ctx)
	if err != nil {
		t.log.Error("orchestrator rebuild failed, keeping previous instance", zap.Error(err))
		return
	}

	t.mu.Lock()
	t.current = next
	t.mu.Unlock()
	t.log.Info("orchestrator rebuilt")
}
