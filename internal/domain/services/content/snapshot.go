package content

import (
	"context"

	models "folio/internal/domain/models/content"
)

// SnapshotService maintains the derived XML cache of published versions
type SnapshotService interface {
	// Get returns the snapshot of an effectively published node, generating and persisting it
	// on a miss. Fails with domain.ErrNotFound when the node is not published.
	Get(ctx context.Context, id int64) (*models.Snapshot, error)

	// Regenerate renders the node's published version and stores it. A node without a published
	// version has its snapshot removed.
	Regenerate(ctx context.Context, id int64) (*models.Snapshot, error)

	// RebuildAll deletes every document snapshot and regenerates one per published node
	RebuildAll(ctx context.Context) (*BatchResult, error)
}

// SchedulerService applies scheduled release and expiration dates
type SchedulerService interface {
	// ReleaseDue publishes nodes whose release date has passed, parents first
	ReleaseDue(ctx context.Context) (*BatchResult, error)

	// ExpireDue unpublishes nodes whose expire date has passed
	ExpireDue(ctx context.Context) (*BatchResult, error)
}
