package memory

import (
	"context"
	"fmt"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
)

// SnapshotRepository is the in-memory SnapshotRepository
type SnapshotRepository struct {
	store *Store
}

// NewSnapshotRepository creates a snapshot repository over the store
func NewSnapshotRepository(store *Store) contentRepo.SnapshotRepository {
	return &SnapshotRepository{store: store}
}

func (r *SnapshotRepository) Get(ctx context.Context, nodeID int64) (*models.Snapshot, error) {
	st := r.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	snap, ok := st.snapshots[nodeID]
	if !ok {
		return nil, fmt.Errorf("snapshot of node %d: %w", nodeID, domain.ErrNotFound)
	}
	return &snap, nil
}

func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *models.Snapshot) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.nodes[snapshot.NodeID]; !ok {
		return &domain.NodeNotFoundError{NodeID: snapshot.NodeID}
	}
	snap := *snapshot
	snap.GeneratedAt = truncate(snap.GeneratedAt)
	st.snapshots[snapshot.NodeID] = snap
	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, nodeID int64) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.snapshots, nodeID)
	return nil
}

func (r *SnapshotRepository) DeleteAllDocuments(ctx context.Context) (int64, error) {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	var deleted int64
	for id := range st.snapshots {
		if node, ok := st.nodes[id]; ok && node.Kind == models.KindDocument {
			delete(st.snapshots, id)
			deleted++
		}
	}
	return deleted, nil
}

// AuditRepository is the in-memory AuditRepository
type AuditRepository struct {
	store *Store
}

// NewAuditRepository creates an audit repository over the store
func NewAuditRepository(store *Store) contentRepo.AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	entry.ID = st.nextAuditID
	st.nextAuditID++
	st.audit = append(st.audit, *entry)
	return nil
}

func (r *AuditRepository) ListForNode(ctx context.Context, nodeID int64) ([]models.AuditEntry, error) {
	st := r.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := []models.AuditEntry{}
	for _, e := range st.audit {
		if e.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out, nil
}
