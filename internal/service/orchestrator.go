package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/helpcove/kbsync/internal/contentlock"
	"github.com/helpcove/kbsync/internal/helpcenter"
	"github.com/helpcove/kbsync/internal/metrics"
	"github.com/helpcove/kbsync/internal/uploader"
	"go.uber.org/zap"
)

// ErrSyncInFlight rejects a tick requested while another is still running.
var ErrSyncInFlight = errors.New("sync already in flight")

// Phase names one step of the sync pipeline.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseHarvesting  Phase = "harvesting"
	PhaseStaging     Phase = "staging"
	PhaseHashing     Phase = "hashing"
	PhaseDiffing     Phase = "diffing"
	PhaseDispatching Phase = "dispatching"
	PhaseCommitting  Phase = "committing"
	PhaseFailed      Phase = "failed"
)

// TickSummary reports the outcome of one finished tick.
type TickSummary struct {
	SyncID    string    `json:"sync_id"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
	Harvested int       `json:"harvested"`
	Created   int       `json:"created"`
	Replaced  int       `json:"replaced"`
	Deleted   int       `json:"deleted"`
	Unchanged int       `json:"unchanged"`
	Failed    int       `json:"failed"`
	Err       string    `json:"error,omitempty"`
}

// Status is a point-in-time snapshot of the pipeline.
type Status struct {
	Phase    Phase        `json:"phase"`
	SyncID   string       `json:"sync_id,omitempty"`
	LastTick *TickSummary `json:"last_tick,omitempty"`
}

// Collaborator surfaces, narrowed to what the orchestrator consumes.
type (
	// Harvester walks the remote knowledge base.
	Harvester interface {
		Harvest(ctx context.Context) ([]helpcenter.Article, error)
	}

	// Stager persists article bodies for upload.
	Stager interface {
		StageAll(articles []helpcenter.Article) error
	}

	// ArtifactStore dispatches staged files to the vector store.
	ArtifactStore interface {
		CreateBatch(ctx context.Context, paths []string) (uploader.BatchResult, error)
		ReplaceBatch(ctx context.Context, paths []string, oldIDs []string) (uploader.BatchResult, error)
		DeleteBatch(ctx context.Context, ids []string) (int, error)
	}

	// LockStore persists the content lock between runs.
	LockStore interface {
		Get(ctx context.Context) (contentlock.Lock, error)
		Put(ctx context.Context, lock contentlock.Lock) error
	}

	// ArtifactIndex persists the article-to-artifact mapping.
	ArtifactIndex interface {
		GetAll(ctx context.Context) (map[int64]string, error)
		SetMany(ctx context.Context, entries map[int64]string) error
		RemoveMany(ctx context.Context, ids []int64) error
	}
)

// OrchestratorDeps carries the orchestrator's collaborators.
type OrchestratorDeps struct {
	Harvester Harvester
	Stager    Stager
	Store     ArtifactStore
	Locks     LockStore
	Index     ArtifactIndex
}

// Orchestrator runs the sync pipeline:
//
//   - harvest the knowledge base and stage every rendered body
//   - hash bodies into the current lock, diff against the stored lock
//   - dispatch creates and replacements to the artifact store
//   - commit the lock, minus whatever failed to upload
//
// The lock is written last, so a tick that dies mid-way re-dispatches next
// time. Failed uploads are excluded from both the index write and the lock
// commit, which is what retries them. Disappeared articles are recorded, not
// purged, unless purgeDeleted is set.
type Orchestrator struct {
	log          *zap.Logger
	harvester    Harvester
	stager       Stager
	store        ArtifactStore
	locks        LockStore
	index        ArtifactIndex
	purgeDeleted bool

	running atomic.Bool

	mu       sync.Mutex
	phase    Phase
	syncID   string
	lastTick *TickSummary
}

// NewOrchestrator wires the pipeline.
func NewOrchestrator(deps OrchestratorDeps, purgeDeleted bool, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		log:          log.Named("orchestrator"),
		harvester:    deps.Harvester,
		stager:       deps.Stager,
		store:        deps.Store,
		locks:        deps.Locks,
		index:        deps.Index,
		purgeDeleted: purgeDeleted,
		phase:        PhaseIdle,
	}
}

// Running reports whether a tick is currently in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Status returns a snapshot of the current phase and the last tick summary.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{Phase: o.phase, SyncID: o.syncID}
	if o.lastTick != nil {
		tick := *o.lastTick
		st.LastTick = &tick
	}
	return st
}

// Sync runs one tick. Only one tick runs at a time; a second caller gets
// ErrSyncInFlight immediately.
func (o *Orchestrator) Sync(ctx context.Context) (TickSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return TickSummary{}, ErrSyncInFlight
	}
	defer o.running.Store(false)

	start := time.Now()
	summary := TickSummary{SyncID: uuid.NewString(), StartedAt: start}
	log := o.log.With(zap.String("sync_id", summary.SyncID))
	log.Info("tick started")

	o.setPhase(PhaseHarvesting, summary.SyncID)
	articles, err := o.harvester.Harvest(ctx)
	if err != nil {
		return o.fail(summary, start, fmt.Errorf("harvest: %w", err))
	}
	summary.Harvested = len(articles)
	metrics.ArticlesHarvested.Set(float64(len(articles)))

	o.setPhase(PhaseStaging, summary.SyncID)
	if err := o.stager.StageAll(articles); err != nil {
		return o.fail(summary, start, fmt.Errorf("stage: %w", err))
	}

	o.setPhase(PhaseHashing, summary.SyncID)
	current, err := buildLock(articles)
	if err != nil {
		return o.fail(summary, start, err)
	}

	o.setPhase(PhaseDiffing, summary.SyncID)
	previous, err := o.locks.Get(ctx)
	if err != nil {
		return o.fail(summary, start, fmt.Errorf("load lock: %w", err))
	}
	d := contentlock.Diff(previous, current)
	summary.Unchanged = len(current) - len(d.New) - len(d.Updated)
	log.Info("diff computed",
		zap.Int("new", len(d.New)),
		zap.Int("updated", len(d.Updated)),
		zap.Int("deleted", len(d.Deleted)),
		zap.Int("unchanged", summary.Unchanged),
	)

	o.setPhase(PhaseDispatching, summary.SyncID)
	byID := make(map[int64]*helpcenter.Article, len(articles))
	for i := range articles {
		byID[articles[i].ID] = &articles[i]
	}
	failed := make(map[int64]bool)

	created, err := o.createArticles(ctx, log, byID, d.New, failed)
	if err != nil {
		return o.fail(summary, start, err)
	}

	replaced, demoted, err := o.replaceArticles(ctx, log, byID, d.Updated, failed)
	if err != nil {
		return o.fail(summary, start, err)
	}
	if len(demoted) > 0 {
		// Updated articles with no recorded artifact heal as creates.
		healed, err := o.createArticles(ctx, log, byID, demoted, failed)
		if err != nil {
			return o.fail(summary, start, err)
		}
		created += healed
	}
	summary.Created = created
	summary.Replaced = replaced

	deleted, err := o.handleDeleted(ctx, log, d.Deleted)
	if err != nil {
		return o.fail(summary, start, err)
	}
	summary.Deleted = deleted

	o.setPhase(PhaseCommitting, summary.SyncID)
	for id := range failed {
		delete(current, id) // stays dirty, retried next tick
	}
	summary.Failed = len(failed)
	if err := o.locks.Put(ctx, current); err != nil {
		return o.fail(summary, start, fmt.Errorf("commit lock: %w", err))
	}
	metrics.LockEntries.Set(float64(len(current)))

	summary.Duration = time.Since(start).String()
	o.finish(summary)
	metrics.TicksTotal.WithLabelValues("ok").Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())

	log.Info("tick finished",
		zap.Int("created", summary.Created),
		zap.Int("replaced", summary.Replaced),
		zap.Int("deleted", summary.Deleted),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("failed", summary.Failed),
		zap.String("duration", summary.Duration),
	)
	return summary, nil
}

// createArticles uploads the staged files of the given articles as fresh
// artifacts and records their IDs.
func (o *Orchestrator) createArticles(ctx context.Context, log *zap.Logger, byID map[int64]*helpcenter.Article, ids []int64, failed map[int64]bool) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	paths := make([]string, 0, len(ids))
	selected := make([]*helpcenter.Article, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok || a.StagedPath == "" {
			// StageAll records every path; a hole here is a programming fault.
			failed[id] = true
			log.Error("article has no staged file", zap.Int64("article_id", id))
			continue
		}
		paths = append(paths, a.StagedPath)
		selected = append(selected, a)
	}

	res, err := o.store.CreateBatch(ctx, paths)
	if err != nil {
		return 0, fmt.Errorf("create batch: %w", err)
	}
	return o.recordBatch(ctx, log, "create", selected, res, failed)
}

// replaceArticles swaps the artifacts of updated articles. Articles whose
// artifact ID is missing from the index are returned as demoted; the caller
// re-runs them through the create path.
func (o *Orchestrator) replaceArticles(ctx context.Context, log *zap.Logger, byID map[int64]*helpcenter.Article, ids []int64, failed map[int64]bool) (int, []int64, error) {
	if len(ids) == 0 {
		return 0, nil, nil
	}

	idx, err := o.index.GetAll(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("load artifact index: %w", err)
	}

	var demoted []int64
	paths := make([]string, 0, len(ids))
	oldIDs := make([]string, 0, len(ids))
	selected := make([]*helpcenter.Article, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok || a.StagedPath == "" {
			failed[id] = true
			log.Error("article has no staged file", zap.Int64("article_id", id))
			continue
		}
		artifactID, ok := idx[id]
		if !ok {
			log.Warn("no artifact recorded for updated article, demoting to create",
				zap.Int64("article_id", id))
			demoted = append(demoted, id)
			continue
		}
		paths = append(paths, a.StagedPath)
		oldIDs = append(oldIDs, artifactID)
		selected = append(selected, a)
	}

	if len(selected) == 0 {
		return 0, demoted, nil
	}

	res, err := o.store.ReplaceBatch(ctx, paths, oldIDs)
	if err != nil {
		return 0, nil, fmt.Errorf("replace batch: %w", err)
	}
	replaced, err := o.recordBatch(ctx, log, "replace", selected, res, failed)
	if err != nil {
		return 0, nil, err
	}
	return replaced, demoted, nil
}

// recordBatch maps batch successes back to article IDs, writes the index
// delta, and marks the rest failed.
func (o *Orchestrator) recordBatch(ctx context.Context, log *zap.Logger, op string, selected []*helpcenter.Article, res uploader.BatchResult, failed map[int64]bool) (int, error) {
	entries := make(map[int64]string, len(res.Uploaded))
	for _, a := range selected {
		artifactID, ok := res.Uploaded[a.StagedPath]
		if !ok {
			failed[a.ID] = true
			continue
		}
		a.ArtifactID = artifactID
		entries[a.ID] = artifactID
	}

	if err := o.index.SetMany(ctx, entries); err != nil {
		return 0, fmt.Errorf("record artifact ids: %w", err)
	}

	metrics.ArticlesSynced.WithLabelValues(op).Add(float64(len(entries)))
	metrics.UploadFailures.Add(float64(len(res.Failed)))
	if len(res.Failed) > 0 {
		log.Warn("uploads failed, articles stay dirty until the next tick",
			zap.String("op", op),
			zap.Int("failed", len(res.Failed)),
		)
	}
	return len(entries), nil
}

// handleDeleted reacts to articles that disappeared upstream. The baseline is
// record-only: a warning, nothing destructive. With purgeDeleted set, their
// artifacts are retired and their index entries dropped.
func (o *Orchestrator) handleDeleted(ctx context.Context, log *zap.Logger, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	log.Warn("articles disappeared upstream",
		zap.Int("count", len(ids)),
		zap.Int64s("article_ids", ids),
	)
	if !o.purgeDeleted {
		return 0, nil
	}

	idx, err := o.index.GetAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load artifact index: %w", err)
	}

	artifactIDs := make([]string, 0, len(ids))
	indexed := make([]int64, 0, len(ids))
	for _, id := range ids {
		artifactID, ok := idx[id]
		if !ok {
			log.Warn("deleted article has no artifact entry, skipping", zap.Int64("article_id", id))
			continue
		}
		artifactIDs = append(artifactIDs, artifactID)
		indexed = append(indexed, id)
	}

	deleted, err := o.store.DeleteBatch(ctx, artifactIDs)
	if err != nil {
		return 0, fmt.Errorf("delete batch: %w", err)
	}
	if err := o.index.RemoveMany(ctx, indexed); err != nil {
		return 0, fmt.Errorf("trim artifact index: %w", err)
	}

	metrics.ArticlesSynced.WithLabelValues("delete").Add(float64(deleted))
	return deleted, nil
}

// buildLock hashes every article body into a fresh lock.
func buildLock(articles []helpcenter.Article) (contentlock.Lock, error) {
	lock := make(contentlock.Lock, len(articles))
	for i := range articles {
		h, err := contentlock.Hash(articles[i].Body)
		if err != nil {
			return nil, fmt.Errorf("hash article %d: %w", articles[i].ID, err)
		}
		lock[articles[i].ID] = h
	}
	return lock, nil
}

func (o *Orchestrator) setPhase(p Phase, syncID string) {
	o.mu.Lock()
	o.phase = p
	o.syncID = syncID
	o.mu.Unlock()
}

func (o *Orchestrator) finish(summary TickSummary) {
	o.mu.Lock()
	o.phase = PhaseIdle
	o.syncID = ""
	o.lastTick = &summary
	o.mu.Unlock()
}

func (o *Orchestrator) fail(summary TickSummary, start time.Time, err error) (TickSummary, error) {
	summary.Duration = time.Since(start).String()
	summary.Err = err.Error()

	o.mu.Lock()
	o.phase = PhaseFailed
	o.syncID = ""
	o.lastTick = &summary
	o.mu.Unlock()

	metrics.TicksTotal.WithLabelValues("error").Inc()
	metrics.TickDuration.Observe(time.Since(start).Seconds())
	return summary, err
}
