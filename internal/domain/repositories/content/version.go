package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	models "folio/internal/domain/models/content"
)

// VersionRepository owns the append-only version history of documents. It is the only writer of
// the newest and published flags.
type VersionRepository interface {
	// Insert stores the first version of a node as newest and unpublished.
	Insert(ctx context.Context, version *models.Version) error

	// CreateVersion copies the newest version into a new row, demotes the prior newest and
	// returns the new newest version. History is never deleted.
	CreateVersion(ctx context.Context, nodeID int64, writerID string, at time.Time) (*models.Version, error)

	// RestoreFrom creates a new version and overwrites its text, template and properties with
	// those of sourceID. Fails with domain.ErrVersionNotFound when sourceID does not belong to
	// the node.
	RestoreFrom(ctx context.Context, nodeID int64, sourceID uuid.UUID, writerID string, at time.Time) (*models.Version, error)

	// MarkPublished clears the published flag on every other version of the node, then sets it
	// on versionID.
	MarkPublished(ctx context.Context, nodeID int64, versionID uuid.UUID) error

	// MarkUnpublished clears the published flag without touching newest or history.
	MarkUnpublished(ctx context.Context, nodeID int64) error

	// Update writes the editable fields of an existing version.
	Update(ctx context.Context, version *models.Version) error

	// UpdateNewest is Update restricted to the node's newest version. It fails with a
	// ConflictError when a concurrent publish or save demoted the version after it was read.
	UpdateNewest(ctx context.Context, version *models.Version) error

	// Get retrieves a version of a node
	Get(ctx context.Context, nodeID int64, versionID uuid.UUID) (*models.Version, error)

	// Newest retrieves the version currently open for editing
	Newest(ctx context.Context, nodeID int64) (*models.Version, error)

	// PublishedVersion returns the locally published version, or nil when there is none.
	PublishedVersion(ctx context.Context, nodeID int64) (*models.Version, error)

	// ListVersions returns the history ascending by creation time.
	ListVersions(ctx context.Context, nodeID int64) ([]models.Version, error)

	// PublishedNodeIDs returns the subset of ids that have a published version.
	PublishedNodeIDs(ctx context.Context, ids []int64) (map[int64]bool, error)

	// AllPublishedNodeIDs lists every node with a published version.
	AllPublishedNodeIDs(ctx context.Context) ([]int64, error)

	// DueForRelease lists nodes whose newest version has a release date at or before now,
	// ordered by level then sort order.
	DueForRelease(ctx context.Context, now time.Time) ([]int64, error)

	// DueForExpiration lists nodes with a published version whose expire date is at or
	// before now.
	DueForExpiration(ctx context.Context, now time.Time) ([]int64, error)

	// DeleteAllForNode removes the whole history of a node
	DeleteAllForNode(ctx context.Context, nodeID int64) error
}
