package content

import "time"

// PublicationState is the derived visibility of a node. It is never persisted.
type PublicationState struct {
	NodeID   int64    `json:"node_id"`
	ParentID int64    `json:"parent_id"`
	Path     NodePath `json:"path"`

	// HasPublishedVersion is the local fact: a locally published version exists and the node is
	// not trashed.
	HasPublishedVersion bool `json:"has_published_version"`

	// Published is HasPublishedVersion AND the parent's Published. The root is always Published.
	Published bool `json:"published"`

	// PathPublished is the parent's Published: whether the node would be visible if it had a
	// published version itself.
	PathPublished bool `json:"path_published"`

	// Resolved is false when the parent could not be located while computing the state.
	Resolved bool `json:"resolved"`
}

// RootPublicationState returns the state of the hierarchy root, published by definition.
func RootPublicationState() *PublicationState {
	return &PublicationState{
		NodeID:              RootID,
		Path:                RootPath,
		HasPublishedVersion: true,
		Published:           true,
		PathPublished:       true,
		Resolved:            true,
	}
}

// LifecycleState is the position of a document in its lifecycle.
type LifecycleState string

const (
	StateDraft       LifecycleState = "draft"
	StatePublished   LifecycleState = "published"
	StateUnpublished LifecycleState = "unpublished"
	StateTrashed     LifecycleState = "trashed"
)

// Snapshot is the cached structured rendering of a node's published version.
type Snapshot struct {
	NodeID      int64     `json:"node_id" db:"node_id"`
	VersionID   string    `json:"version_id" db:"version_id"`
	XML         string    `json:"xml" db:"xml"`
	GeneratedAt time.Time `json:"generated_at" db:"generated_at"`
}
