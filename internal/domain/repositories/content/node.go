package content

import (
	"context"

	models "folio/internal/domain/models/content"
)

// NodeRepository owns node identity, parent links, materialized paths and sibling order.
type NodeRepository interface {
	// Create inserts the node under node.ParentID. It assigns ID and UniqueID when unset and
	// computes Path, Level and SortOrder from the parent. Fails with domain.ErrNotFound when the
	// parent does not exist.
	Create(ctx context.Context, node *models.Node, info *models.ContentInfo) error

	// GetByID retrieves a node by ID
	GetByID(ctx context.Context, id int64) (*models.Node, error)

	// GetContentInfo returns the content extension of a node, or nil for system nodes.
	GetContentInfo(ctx context.Context, id int64) (*models.ContentInfo, error)

	// GetMany retrieves the nodes with the given ids; missing ids are skipped.
	GetMany(ctx context.Context, ids []int64) ([]models.Node, error)

	// Children lists immediate children ordered by sort order
	Children(ctx context.Context, id int64) ([]models.Node, error)

	// Descendants lists every node whose path contains id (excluding id itself), ordered by
	// level then sort order.
	Descendants(ctx context.Context, id int64) ([]models.Node, error)

	// Move re-parents the node and rewrites path and level for the node and its whole subtree
	// as one unit. The node is appended after its new siblings. Moving a node under itself
	// fails with domain.ErrValidation.
	Move(ctx context.Context, id, newParentID int64) error

	// SetTrashed sets the trashed flag on the node and every descendant.
	SetTrashed(ctx context.Context, id int64, trashed bool) error

	// SetSortOrder updates the position of a node among its siblings
	SetSortOrder(ctx context.Context, id int64, sortOrder int) error

	// UpdateText renames a node
	UpdateText(ctx context.Context, id int64, text string) error

	// Delete removes a single node row. Callers remove children first.
	Delete(ctx context.Context, id int64) error
}
