// Package memory holds in-process implementations of the content repositories. They back the
// server when no DATABASE_URL is configured and serve as fakes in service tests.
package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	models "folio/internal/domain/models/content"
	"folio/internal/domain/repositories"
)

// firstNodeID matches the start of the postgres node id sequence
const firstNodeID int64 = 1000

// Store is the shared state behind every memory repository.
type Store struct {
	mu sync.RWMutex

	nodes        map[int64]models.Node
	contentTypes map[int64]string
	versions     map[int64][]models.Version // ascending by creation
	snapshots    map[int64]models.Snapshot
	audit        []models.AuditEntry

	nextNodeID  int64
	nextAuditID int64

	// txMu serializes ExecTx callers
	txMu sync.Mutex
}

// NewStore returns a store seeded with the root and recycle bin nodes.
func NewStore() *Store {
	s := &Store{
		nodes:        make(map[int64]models.Node),
		contentTypes: make(map[int64]string),
		versions:     make(map[int64][]models.Version),
		snapshots:    make(map[int64]models.Snapshot),
		nextNodeID:   firstNodeID,
		nextAuditID:  1,
	}
	s.nodes[models.RootID] = models.Node{
		ID:       models.RootID,
		UniqueID: uuid.New(),
		ParentID: models.RootID,
		Path:     models.RootPath,
		Level:    1,
		Kind:     models.KindSystem,
		Text:     "Root",
	}
	s.nodes[models.RecycleBinID] = models.Node{
		ID:       models.RecycleBinID,
		UniqueID: uuid.New(),
		ParentID: models.RootID,
		Path:     models.RecycleBinPath,
		Level:    2,
		Kind:     models.KindSystem,
		Text:     "Recycle Bin",
	}
	return s
}

type state struct {
	nodes        map[int64]models.Node
	contentTypes map[int64]string
	versions     map[int64][]models.Version
	snapshots    map[int64]models.Snapshot
	audit        []models.AuditEntry
	nextNodeID   int64
	nextAuditID  int64
}

func (s *Store) save() state {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := make(map[int64][]models.Version, len(s.versions))
	for id, list := range s.versions {
		versions[id] = cloneVersions(list)
	}
	return state{
		nodes:        maps.Clone(s.nodes),
		contentTypes: maps.Clone(s.contentTypes),
		versions:     versions,
		snapshots:    maps.Clone(s.snapshots),
		audit:        append([]models.AuditEntry(nil), s.audit...),
		nextNodeID:   s.nextNodeID,
		nextAuditID:  s.nextAuditID,
	}
}

func (s *Store) restore(st state) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = st.nodes
	s.contentTypes = st.contentTypes
	s.versions = st.versions
	s.snapshots = st.snapshots
	s.audit = st.audit
	s.nextNodeID = st.nextNodeID
	s.nextAuditID = st.nextAuditID
}

type txContextKey struct{}

// TransactionManager runs compound writes one at a time and restores the previous state when
// fn fails. Writes made outside ExecTx by other goroutines while a failing transaction runs are
// discarded with it.
type TransactionManager struct {
	store *Store
}

// NewTransactionManager creates a transaction manager over the store
func NewTransactionManager(store *Store) repositories.TransactionManager {
	return &TransactionManager{store: store}
}

// ExecTx executes fn atomically with respect to other ExecTx callers
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	if ctx.Value(txContextKey{}) != nil {
		return fn(ctx)
	}

	tm.store.txMu.Lock()
	defer tm.store.txMu.Unlock()

	saved := tm.store.save()
	if err := fn(context.WithValue(ctx, txContextKey{}, true)); err != nil {
		tm.store.restore(saved)
		return err
	}
	return nil
}

func cloneVersion(v models.Version) models.Version {
	v.Properties = models.CopyProperties(v.Properties)
	if v.TemplateID != nil {
		id := *v.TemplateID
		v.TemplateID = &id
	}
	return v
}

func cloneVersions(list []models.Version) []models.Version {
	out := make([]models.Version, len(list))
	for i, v := range list {
		out[i] = cloneVersion(v)
	}
	return out
}

func cloneNode(n models.Node) models.Node {
	n.Path = append(models.NodePath(nil), n.Path...)
	return n
}

// truncate mirrors the microsecond precision of TIMESTAMPTZ
func truncate(t time.Time) time.Time {
	return t.Truncate(time.Microsecond)
}
