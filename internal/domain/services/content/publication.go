package content

import (
	"context"

	models "folio/internal/domain/models/content"
)

// PublicationService computes effective visibility from the ancestor chain
type PublicationService interface {
	// State returns the node's publication state, loading its ancestor chain in one fetch
	State(ctx context.Context, id int64) (*models.PublicationState, error)

	// Subtree returns the state of id followed by every descendant, parents before children
	Subtree(ctx context.Context, id int64) ([]models.PublicationState, error)

	// PublishedDescendants lists descendants of id that are effectively published
	PublishedDescendants(ctx context.Context, id int64) ([]int64, error)

	// InvalidateSubtree drops cached states for path and everything below it
	InvalidateSubtree(path models.NodePath)

	// InvalidateAll drops every cached state
	InvalidateAll()
}
