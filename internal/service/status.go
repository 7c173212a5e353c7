package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SyncStatus provides the live pipeline snapshot. Both Orchestrator and
// Ticker satisfy it.
type SyncStatus interface {
	Status() Status
}

// ArtifactLister reports what the vector store actually holds.
type ArtifactLister interface {
	ListArtifacts(ctx context.Context) ([]openai.VectorStoreFile, error)
}

type StatusOptions struct {
	// TTL controls how long we serve the in-memory snapshot.
	TTL time.Duration
	// RefreshTimeout bounds store reads for a single refresh; the vector
	// store listing dominates it. Default 5s.
	RefreshTimeout time.Duration
	// Allow serving stale on refresh error (graceful degrade).
	AllowStaleOnError bool
}

func (o *StatusOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = 250 * time.Millisecond
	}
	if o.RefreshTimeout <= 0 {
		o.RefreshTimeout = 5 * time.Second
	}
}

// StoreCounts sizes the three stores a sync touches.
type StoreCounts struct {
	LockEntries   int `json:"lock_entries"`
	IndexEntries  int `json:"index_entries"`
	ArtifactFiles int `json:"artifact_files"` // -1 when the listing failed
}

// Drift surfaces disagreements between the lock, the index and the store.
// Steady state is all empty.
type Drift struct {
	LockWithoutArtifact []int64 `json:"lock_without_artifact,omitempty"`
	ArtifactWithoutLock []int64 `json:"artifact_without_lock,omitempty"`
	UntrackedFiles      int     `json:"untracked_files"`
}

// StatusReport is the full operator-facing snapshot.
type StatusReport struct {
	Sync              Status      `json:"sync"`
	Counts            StoreCounts `json:"counts"`
	Drift             Drift       `json:"drift"`
	ArtifactListError string      `json:"artifact_list_error,omitempty"`
	GeneratedAt       time.Time   `json:"generated_at"`
}

// StatusResult lets the handler set headers/telemetry.
type StatusResult struct {
	Report   StatusReport
	CacheHit bool
}

// StatusDeps carries the status service's collaborators.
type StatusDeps struct {
	Sync   SyncStatus
	Locks  LockStore
	Index  ArtifactIndex
	Lister ArtifactLister
}

// StatusService builds operator snapshots with a small TTL cache so dashboard
// polling cannot hammer the stores. Concurrent refreshes are coalesced.
type StatusService struct {
	log    *zap.Logger
	sync   SyncStatus
	locks  LockStore
	index  ArtifactIndex
	lister ArtifactLister

	mu      sync.RWMutex
	cache   *StatusReport
	expires time.Time

	opts StatusOptions
	now  func() time.Time

	sg singleflight.Group
}

// NewStatusService wires store access and cache policy.
// Reuse a single instance per process (handlers call Get()).
func NewStatusService(deps StatusDeps, opts StatusOptions, log *zap.Logger) *StatusService {
	opts.setDefaults()

	return &StatusService{
		log:    log.Named("status_service"),
		sync:   deps.Sync,
		locks:  deps.Locks,
		index:  deps.Index,
		lister: deps.Lister,
		opts:   opts,
		now:    time.Now,
	}
}

// Get returns the cached snapshot or refreshes it when expired.
func (s *StatusService) Get(ctx context.Context) (StatusResult, error) {
	// Fast path: fresh cache
	s.mu.RLock()
	if s.cache != nil && s.now().Before(s.expires) {
		out := cloneReport(*s.cache)
		s.mu.RUnlock()
		return StatusResult{Report: out, CacheHit: true}, nil
	}
	s.mu.RUnlock()

	// Slow path: singleflight refresh
	v, err, _ := s.sg.Do("status-refresh", func() (any, error) {
		// Double-check freshness after we won the flight
		s.mu.RLock()
		if s.cache != nil && s.now().Before(s.expires) {
			out := cloneReport(*s.cache)
			s.mu.RUnlock()
			return StatusResult{Report: out, CacheHit: true}, nil
		}
		s.mu.RUnlock()

		ctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
		defer cancel()

		report, err := s.refresh(ctx)
		if err != nil {
			if s.opts.AllowStaleOnError {
				s.mu.RLock()
				if s.cache != nil {
					out := cloneReport(*s.cache)
					s.mu.RUnlock()
					s.log.Warn("status refresh failed; serving stale", zap.Error(err))
					return StatusResult{Report: out, CacheHit: true}, nil
				}
				s.mu.RUnlock()
			}
			return nil, err
		}

		// Publish new snapshot
		s.mu.Lock()
		s.cache = &report
		s.expires = s.now().Add(s.opts.TTL)
		s.mu.Unlock()

		return StatusResult{Report: cloneReport(report), CacheHit: false}, nil
	})
	if err != nil {
		return StatusResult{}, err
	}
	return v.(StatusResult), nil
}

// Invalidate drops the cached snapshot, forcing the next Get to refresh.
func (s *StatusService) Invalidate() {
	s.mu.Lock()
	s.cache = nil
	s.expires = time.Time{}
	s.mu.Unlock()
}

// refresh assembles a fresh report: live phase, store counts, drift. Lock and
// index failures are fatal; a failed artifact listing degrades the report
// instead of killing it.
func (s *StatusService) refresh(ctx context.Context) (StatusReport, error) {
	lock, err := s.locks.Get(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("load lock: %w", err)
	}
	idx, err := s.index.GetAll(ctx)
	if err != nil {
		return StatusReport{}, fmt.Errorf("load artifact index: %w", err)
	}

	report := StatusReport{
		Sync: s.sync.Status(),
		Counts: StoreCounts{
			LockEntries:   len(lock),
			IndexEntries:  len(idx),
			ArtifactFiles: -1,
		},
		GeneratedAt: s.now(),
	}

	for id := range lock {
		if _, ok := idx[id]; !ok {
			report.Drift.LockWithoutArtifact = append(report.Drift.LockWithoutArtifact, id)
		}
	}
	for id := range idx {
		if _, ok := lock[id]; !ok {
			report.Drift.ArtifactWithoutLock = append(report.Drift.ArtifactWithoutLock, id)
		}
	}
	slices.Sort(report.Drift.LockWithoutArtifact)
	slices.Sort(report.Drift.ArtifactWithoutLock)

	files, err := s.lister.ListArtifacts(ctx)
	if err != nil {
		// Non-fatal: still assemble the report
		s.log.Warn("artifact listing failed", zap.Error(err))
		report.ArtifactListError = err.Error()
		return report, nil
	}

	report.Counts.ArtifactFiles = len(files)
	known := make(map[string]bool, len(idx))
	for _, artifactID := range idx {
		known[artifactID] = true
	}
	for _, f := range files {
		if !known[f.ID] {
			report.Drift.UntrackedFiles++
		}
	}
	return report, nil
}

func cloneReport(r StatusReport) StatusReport {
	r.Drift.LockWithoutArtifact = slices.Clone(r.Drift.LockWithoutArtifact)
	r.Drift.ArtifactWithoutLock = slices.Clone(r.Drift.ArtifactWithoutLock)
	if r.Sync.LastTick != nil {
		tick := *r.Sync.LastTick
		r.Sync.LastTick = &tick
	}
	return r
}
