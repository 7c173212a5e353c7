package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bradleyjkemp/cupaloy"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSync struct{ status Status }

func (f *fakeSync) Status() Status { return f.status }

type fakeLister struct {
	mu    sync.Mutex
	files []openai.VectorStoreFile
	err   error
	delay time.Duration
	calls int
}

func (f *fakeLister) ListArtifacts(context.Context) ([]openai.VectorStoreFile, error) {
	f.mu.Lock()
	f.calls++
	files := f.files
	err := f.err
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type statusFixtures struct {
	sync   *fakeSync
	locks  *fakeLocks
	index  *fakeIndex
	lister *fakeLister
}

func newStatusFixtures() *statusFixtures {
	return &statusFixtures{
		sync:   &fakeSync{status: Status{Phase: PhaseIdle}},
		locks:  newFakeLocks(),
		index:  newFakeIndex(),
		lister: &fakeLister{},
	}
}

func (f *statusFixtures) service(opts StatusOptions) *StatusService {
	return NewStatusService(StatusDeps{
		Sync:   f.sync,
		Locks:  f.locks,
		Index:  f.index,
		Lister: f.lister,
	}, opts, zap.NewNop())
}

func TestStatusReportCountsAndDrift(t *testing.T) {
	f := newStatusFixtures()
	f.locks.lock = map[int64]string{1: "h1", 2: "h2", 3: "h3"}
	f.index.data = map[int64]string{2: "file-b", 3: "file-c", 4: "file-d"}
	f.lister.files = []openai.VectorStoreFile{{ID: "file-b"}, {ID: "file-zzz"}}

	svc := f.service(StatusOptions{})
	res, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.False(t, res.CacheHit)

	require.Equal(t, PhaseIdle, res.Report.Sync.Phase)
	require.Equal(t, StoreCounts{LockEntries: 3, IndexEntries: 3, ArtifactFiles: 2}, res.Report.Counts)
	require.Equal(t, []int64{1}, res.Report.Drift.LockWithoutArtifact)
	require.Equal(t, []int64{4}, res.Report.Drift.ArtifactWithoutLock)
	require.Equal(t, 1, res.Report.Drift.UntrackedFiles)
	require.Empty(t, res.Report.ArtifactListError)
	require.False(t, res.Report.GeneratedAt.IsZero())
}

func TestStatusNoDriftInSteadyState(t *testing.T) {
	f := newStatusFixtures()
	f.locks.lock = map[int64]string{1: "h1", 2: "h2"}
	f.index.data = map[int64]string{1: "file-a", 2: "file-b"}
	f.lister.files = []openai.VectorStoreFile{{ID: "file-a"}, {ID: "file-b"}}

	res, err := f.service(StatusOptions{}).Get(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Report.Drift.LockWithoutArtifact)
	require.Empty(t, res.Report.Drift.ArtifactWithoutLock)
	require.Zero(t, res.Report.Drift.UntrackedFiles)
}

func TestStatusCacheHitWithinTTL(t *testing.T) {
	f := newStatusFixtures()
	svc := f.service(StatusOptions{TTL: time.Minute})
	ctx := context.Background()

	first, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, first.CacheHit)

	second, err := svc.Get(ctx)
	require.NoError(t, err)
	require.True(t, second.CacheHit)
	require.Equal(t, first.Report.GeneratedAt, second.Report.GeneratedAt)
	require.Equal(t, 1, f.lister.callCount())
}

func TestStatusExpiredCacheRefreshes(t *testing.T) {
	f := newStatusFixtures()
	svc := f.service(StatusOptions{TTL: time.Minute})
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	_, err := svc.Get(ctx)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }

	res, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, res.CacheHit)
	require.Equal(t, 2, f.lister.callCount())
}

func TestStatusInvalidateForcesRefresh(t *testing.T) {
	f := newStatusFixtures()
	svc := f.service(StatusOptions{TTL: time.Minute})
	ctx := context.Background()

	_, err := svc.Get(ctx)
	require.NoError(t, err)

	svc.Invalidate()

	res, err := svc.Get(ctx)
	require.NoError(t, err)
	require.False(t, res.CacheHit)
	require.Equal(t, 2, f.lister.callCount())
}

func TestStatusCoalescesConcurrentRefreshes(t *testing.T) {
	f := newStatusFixtures()
	f.lister.delay = 30 * time.Millisecond
	svc := f.service(StatusOptions{TTL: time.Minute})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, f.lister.callCount())
}

func TestStatusListerFailureDegrades(t *testing.T) {
	f := newStatusFixtures()
	f.locks.lock = map[int64]string{1: "h1"}
	f.index.data = map[int64]string{1: "file-a"}
	f.lister.err = errors.New("vector store 500")

	res, err := f.service(StatusOptions{}).Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, -1, res.Report.Counts.ArtifactFiles)
	require.Contains(t, res.Report.ArtifactListError, "vector store 500")

	// Lock and index counts still made it in.
	require.Equal(t, 1, res.Report.Counts.LockEntries)
	require.Equal(t, 1, res.Report.Counts.IndexEntries)
}

func TestStatusLockFailureIsFatal(t *testing.T) {
	f := newStatusFixtures()
	f.locks.getErr = errors.New("redis down")

	_, err := f.service(StatusOptions{}).Get(context.Background())
	require.Error(t, err)
}

func TestStatusServesStaleOnRefreshError(t *testing.T) {
	f := newStatusFixtures()
	f.locks.lock = map[int64]string{1: "h1"}
	svc := f.service(StatusOptions{TTL: time.Minute, AllowStaleOnError: true})
	ctx := context.Background()

	base := time.Now()
	svc.now = func() time.Time { return base }

	first, err := svc.Get(ctx)
	require.NoError(t, err)

	// Cache expired, stores now failing: the stale snapshot is served.
	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	f.locks.getErr = errors.New("redis down")

	res, err := svc.Get(ctx)
	require.NoError(t, err)
	require.True(t, res.CacheHit)
	require.Equal(t, first.Report.GeneratedAt, res.Report.GeneratedAt)
}

func TestStatusReportSnapshot(t *testing.T) {
	f := newStatusFixtures()
	f.locks.lock = map[int64]string{1: "h1", 2: "h2", 3: "h3"}
	f.index.data = map[int64]string{2: "file-b", 3: "file-c", 4: "file-d"}
	f.lister.files = []openai.VectorStoreFile{{ID: "file-b"}, {ID: "file-zzz"}}

	svc := f.service(StatusOptions{})
	svc.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	res, err := svc.Get(context.Background())
	require.NoError(t, err)

	pretty, err := json.MarshalIndent(res.Report, "", "  ")
	require.NoError(t, err)
	cupaloy.SnapshotT(t, string(pretty))
}

func TestStatusRefreshErrorWithoutCacheFails(t *testing.T) {
	f := newStatusFixtures()
	f.locks.getErr = errors.New("redis down")

	svc := f.service(StatusOptions{AllowStaleOnError: true})
	_, err := svc.Get(context.Background())
	require.Error(t, err)
}
