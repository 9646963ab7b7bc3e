package content

import (
	"context"

	models "folio/internal/domain/models/content"
)

// SnapshotRepository persists one XML snapshot row per node.
type SnapshotRepository interface {
	// Get returns the snapshot of a node, wrapping domain.ErrNotFound when absent.
	Get(ctx context.Context, nodeID int64) (*models.Snapshot, error)

	// Upsert inserts or replaces the snapshot of a node
	Upsert(ctx context.Context, snapshot *models.Snapshot) error

	// Delete removes the snapshot of a node. Missing rows are not an error.
	Delete(ctx context.Context, nodeID int64) error

	// DeleteAllDocuments removes every snapshot belonging to a document node.
	DeleteAllDocuments(ctx context.Context) (int64, error)
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error

	// ListForNode returns a node's entries, oldest first.
	ListForNode(ctx context.Context, nodeID int64) ([]models.AuditEntry, error)
}
