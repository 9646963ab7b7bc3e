package content

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"folio/internal/assets"
	"folio/internal/cache"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
	"folio/internal/metrics"
	"folio/internal/repository/memory"
)

var editor = models.Actor{ID: "editor-1", Name: "Editor"}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingCache stands in for redis and records what the services drop from it
type recordingCache struct {
	mu          sync.Mutex
	entries     map[int64]*models.Snapshot
	invalidated []int64
	flushes     int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[int64]*models.Snapshot)}
}

var _ cache.SnapshotCache = (*recordingCache)(nil)

func (c *recordingCache) IsAvailable() bool { return true }

func (c *recordingCache) Get(_ context.Context, nodeID int64) (*models.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.entries[nodeID]
	if !ok {
		return nil, false
	}
	cp := *snap
	return &cp, true
}

func (c *recordingCache) Set(_ context.Context, snapshot *models.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *snapshot
	c.entries[snapshot.NodeID] = &cp
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, nodeIDs ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range nodeIDs {
		delete(c.entries, id)
	}
	c.invalidated = append(c.invalidated, nodeIDs...)
	return nil
}

func (c *recordingCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int64]*models.Snapshot)
	c.flushes++
	return nil
}

func (c *recordingCache) cached(nodeID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[nodeID]
	return ok
}

func (c *recordingCache) wasInvalidated(nodeID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range c.invalidated {
		if id == nodeID {
			return true
		}
	}
	return false
}

func (c *recordingCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = nil
	c.flushes = 0
}

type testEnv struct {
	ctx         context.Context
	store       *memory.Store
	nodes       contentRepo.NodeRepository
	versions    contentRepo.VersionRepository
	snapshots   contentRepo.SnapshotRepository
	audit       contentRepo.AuditRepository
	bus         *events.Bus
	cache       *StateCache
	redis       *recordingCache
	publication contentSvc.PublicationService
	renderer    contentSvc.SnapshotService
	lifecycle   contentSvc.LifecycleService
	assets      *assets.LocalStore
	assetRoot   string
	metrics     *metrics.Metrics
	clock       *fakeClock
	locks       *OperationLocks
	logger      *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := memory.NewStore()
	env := &testEnv{
		ctx:       context.Background(),
		store:     store,
		nodes:     memory.NewNodeRepository(store),
		versions:  memory.NewVersionRepository(store),
		snapshots: memory.NewSnapshotRepository(store),
		audit:     memory.NewAuditRepository(store),
		bus:       events.NewBus(logger),
		cache:     NewStateCache(),
		redis:     newRecordingCache(),
		metrics:   metrics.NewMetrics(),
		clock:     &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		assetRoot: t.TempDir(),
		logger:    logger,
	}

	var err error
	env.assets, err = assets.NewLocalStore(env.assetRoot)
	require.NoError(t, err)

	env.locks = NewOperationLocks(env.metrics)
	env.publication = NewPublicationService(env.nodes, env.versions, env.cache, logger)
	env.renderer = NewSnapshotService(env.nodes, env.versions, env.snapshots, env.publication, env.redis, env.locks, env.metrics, env.clock.Now, logger)
	env.lifecycle = env.lifecycleWith(env.versions)
	return env
}

// lifecycleWith builds a lifecycle service over the env's stores with versions swapped in
func (e *testEnv) lifecycleWith(versions contentRepo.VersionRepository) contentSvc.LifecycleService {
	return NewLifecycleService(LifecycleDeps{
		Nodes:       e.nodes,
		Versions:    versions,
		Snapshots:   e.snapshots,
		Audit:       e.audit,
		Tx:          memory.NewTransactionManager(e.store),
		Publication: e.publication,
		Renderer:    e.renderer,
		Cache:       e.redis,
		Assets:      e.assets,
		Events:      e.bus,
		Locks:       e.locks,
		Metrics:     e.metrics,
		Now:         e.clock.Now,
		Logger:      e.logger,
	})
}

func (e *testEnv) create(t *testing.T, parentID int64, name string, props ...models.Property) int64 {
	t.Helper()
	record, ok, err := e.lifecycle.Create(e.ctx, editor, &contentSvc.CreateRequest{
		ParentID:    parentID,
		Name:        name,
		ContentType: "textPage",
		Properties:  props,
	})
	require.NoError(t, err)
	require.True(t, ok)
	return record.Node.ID
}

func (e *testEnv) publish(t *testing.T, id int64) {
	t.Helper()
	ok, err := e.lifecycle.Publish(e.ctx, editor, id)
	require.NoError(t, err)
	require.True(t, ok)
}

func (e *testEnv) state(t *testing.T, id int64) *models.PublicationState {
	t.Helper()
	st, err := e.publication.State(e.ctx, id)
	require.NoError(t, err)
	return st
}

func (e *testEnv) node(t *testing.T, id int64) *models.Node {
	t.Helper()
	n, err := e.nodes.GetByID(e.ctx, id)
	require.NoError(t, err)
	return n
}

func (e *testEnv) hasSnapshot(t *testing.T, id int64) bool {
	t.Helper()
	_, err := e.snapshots.Get(e.ctx, id)
	return err == nil
}

// cancelAll vetoes every Before event of kind, optionally only for one node
func (e *testEnv) cancelAll(kind events.Kind, onlyNode int64) {
	e.bus.Register(kind, events.Before, "veto", func(ctx context.Context, ev *events.Event) error {
		if onlyNode == 0 || ev.NodeID == onlyNode {
			ev.Cancel()
		}
		return nil
	}, 0)
}

// publishedChain builds R (published) > A (published) > B (never published)
func publishedChain(t *testing.T, e *testEnv) (r, a, b int64) {
	t.Helper()
	r = e.create(t, models.RootID, "R")
	a = e.create(t, r, "A")
	b = e.create(t, a, "B")
	e.publish(t, r)
	e.publish(t, a)
	return r, a, b
}
