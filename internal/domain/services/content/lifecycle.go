package content

import (
	"context"
	"time"

	"github.com/google/uuid"

	models "folio/internal/domain/models/content"
)

// LifecycleService orchestrates compound operations over the node and version stores.
//
// Every mutating operation fires a Before event first. When a handler cancels, the operation
// returns ok=false with a nil error and nothing has been written.
type LifecycleService interface {
	// Create makes a document under req.ParentID with its first, unpublished version
	Create(ctx context.Context, actor models.Actor, req *CreateRequest) (record *models.Record, ok bool, err error)

	// Get returns the node with its content and document extensions
	Get(ctx context.Context, id int64) (*models.Record, error)

	// Children lists the records directly below id
	Children(ctx context.Context, id int64) ([]models.Record, error)

	// Save edits the newest version in place. If the newest version is the published one, a new
	// version is created first so the published content is never changed.
	Save(ctx context.Context, actor models.Actor, id int64, req *SaveRequest) (ok bool, err error)

	// SendToPublication records a request for review. It only produces audit and events.
	SendToPublication(ctx context.Context, actor models.Actor, id int64) (ok bool, err error)

	// Publish creates a version from the newest, marks it published and regenerates the snapshot
	Publish(ctx context.Context, actor models.Actor, id int64) (ok bool, err error)

	// PublishWithSubs publishes the node and then every descendant, regardless of whether the
	// node's own publish was cancelled.
	PublishWithSubs(ctx context.Context, actor models.Actor, id int64) (*CascadeResult, error)

	// PublishWithChildren publishes the node and recurses into children only when the node's own
	// publish succeeded.
	PublishWithChildren(ctx context.Context, actor models.Actor, id int64) (*CascadeResult, error)

	// Unpublish clears the published flag and drops the snapshot. Calling it twice is harmless.
	Unpublish(ctx context.Context, actor models.Actor, id int64) (ok bool, err error)

	// Rollback creates a new newest version carrying the content of versionID. The publish state is
	// not changed.
	Rollback(ctx context.Context, actor models.Actor, id int64, versionID uuid.UUID) (ok bool, err error)

	// Copy duplicates the node and its subtree under req.DestinationID
	Copy(ctx context.Context, actor models.Actor, id int64, req *CopyRequest) (record *models.Record, ok bool, err error)

	// Move re-parents the node and its subtree
	Move(ctx context.Context, actor models.Actor, id, newParentID int64) (ok bool, err error)

	// MoveToTrash unpublishes the node, then relocates its subtree under the recycle bin
	MoveToTrash(ctx context.Context, actor models.Actor, id int64) (ok bool, err error)

	// Restore moves a trashed node out of the recycle bin under parentID
	Restore(ctx context.Context, actor models.Actor, id, parentID int64) (ok bool, err error)

	// DeletePermanently removes the subtree depth-first: children, then assets, versions,
	// snapshot and node.
	DeletePermanently(ctx context.Context, actor models.Actor, id int64) (ok bool, err error)

	// EmptyRecycleBin permanently deletes everything in the recycle bin. Failures are isolated
	// per top-level item.
	EmptyRecycleBin(ctx context.Context, actor models.Actor) (*BatchResult, error)

	// State reports where the node is in its lifecycle
	State(ctx context.Context, id int64) (models.LifecycleState, error)

	// Versions returns the version history, oldest first
	Versions(ctx context.Context, id int64) ([]models.Version, error)

	// HasPendingChanges reports edits made after the last publish
	HasPendingChanges(ctx context.Context, id int64) (bool, error)

	// Audit returns the node's audit trail
	Audit(ctx context.Context, id int64) ([]models.AuditEntry, error)
}

// CreateRequest represents a document creation request
type CreateRequest struct {
	ParentID    int64             `json:"parent_id"`
	Name        string            `json:"name"`
	ContentType string            `json:"content_type"`
	TemplateID  *int64            `json:"template_id,omitempty"`
	Properties  []models.Property `json:"properties,omitempty"`
	ReleaseDate time.Time         `json:"release_date,omitzero"`
	ExpireDate  time.Time         `json:"expire_date,omitzero"`
}

// SaveRequest carries the fields to change on the newest version. Nil fields are left alone.
// This is transport-agnostic; the handler maps from its optional JSON fields.
type SaveRequest struct {
	Name *string

	TemplateID    *int64
	ClearTemplate bool

	// Properties are merged into the existing set by alias
	Properties []models.Property

	// A pointer to the zero time clears the date
	ReleaseDate *time.Time
	ExpireDate  *time.Time
}

// CopyRequest represents a copy request
type CopyRequest struct {
	DestinationID    int64 `json:"destination_id"`
	RelateToOriginal bool  `json:"relate_to_original"`
}

// CascadeResult lists what a recursive publish did
type CascadeResult struct {
	Published []int64 `json:"published"`
	Cancelled []int64 `json:"cancelled"`
}

// BatchResult summarizes a bulk maintenance job. A failed item never aborts the batch.
type BatchResult struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// ItemError describes one failed item of a batch
type ItemError struct {
	NodeID int64  `json:"node_id"`
	Error  string `json:"error"`
}

// Fail records a failed item
func (r *BatchResult) Fail(nodeID int64, err error) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{NodeID: nodeID, Error: err.Error()})
}
