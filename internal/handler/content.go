package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/httputil"
)

// ContentHandler exposes the content lifecycle over HTTP
type ContentHandler struct {
	lifecycle   contentSvc.LifecycleService
	publication contentSvc.PublicationService
	snapshots   contentSvc.SnapshotService
	logger      *slog.Logger
}

// NewContentHandler creates a new content handler
func NewContentHandler(
	lifecycle contentSvc.LifecycleService,
	publication contentSvc.PublicationService,
	snapshots contentSvc.SnapshotService,
	logger *slog.Logger,
) *ContentHandler {
	return &ContentHandler{
		lifecycle:   lifecycle,
		publication: publication,
		snapshots:   snapshots,
		logger:      logger,
	}
}

// Register mounts the content routes on mux
func (h *ContentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/nodes", h.CreateNode)
	mux.HandleFunc("GET /api/nodes/{id}", h.GetNode)
	mux.HandleFunc("PATCH /api/nodes/{id}", h.SaveNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", h.DeleteNode)
	mux.HandleFunc("GET /api/nodes/{id}/children", h.ListChildren)
	mux.HandleFunc("GET /api/nodes/{id}/versions", h.ListVersions)
	mux.HandleFunc("GET /api/nodes/{id}/audit", h.ListAudit)
	mux.HandleFunc("GET /api/nodes/{id}/state", h.GetState)
	mux.HandleFunc("GET /api/nodes/{id}/publication", h.GetPublication)
	mux.HandleFunc("GET /api/nodes/{id}/xml", h.GetSnapshot)
	mux.HandleFunc("POST /api/nodes/{id}/publish", h.Publish)
	mux.HandleFunc("POST /api/nodes/{id}/unpublish", h.Unpublish)
	mux.HandleFunc("POST /api/nodes/{id}/send-to-publication", h.SendToPublication)
	mux.HandleFunc("POST /api/nodes/{id}/rollback/{versionId}", h.Rollback)
	mux.HandleFunc("POST /api/nodes/{id}/copy", h.Copy)
	mux.HandleFunc("POST /api/nodes/{id}/move", h.Move)
	mux.HandleFunc("POST /api/nodes/{id}/trash", h.MoveToTrash)
	mux.HandleFunc("POST /api/nodes/{id}/restore", h.Restore)
}

// CreateNode creates a document with its first version
// POST /api/nodes
func (h *ContentHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req contentSvc.CreateRequest
	if !parseBody(w, r, &req) {
		return
	}

	record, ok, err := h.lifecycle.Create(r.Context(), httputil.GetActor(r), &req)
	if err != nil {
		handleError(w, err)
		return
	}
	if !ok {
		respondOutcome(w, false)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, record)
}

// GetNode retrieves a node with its extensions
// GET /api/nodes/{id}
func (h *ContentHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	record, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, record)
}

// ListChildren lists the records directly below a node
// GET /api/nodes/{id}/children
func (h *ContentHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	children, err := h.lifecycle.Children(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if children == nil {
		children = []models.Record{}
	}

	httputil.RespondJSON(w, http.StatusOK, children)
}

// saveNodeRequest distinguishes absent fields from explicit nulls.
// A null date or template clears it; a null name is rejected.
type saveNodeRequest struct {
	Name        httputil.Optional[string]    `json:"name"`
	TemplateID  httputil.Optional[int64]     `json:"template_id"`
	Properties  []models.Property            `json:"properties"`
	ReleaseDate httputil.Optional[time.Time] `json:"release_date"`
	ExpireDate  httputil.Optional[time.Time] `json:"expire_date"`
}

func (b *saveNodeRequest) toServiceRequest() *contentSvc.SaveRequest {
	req := &contentSvc.SaveRequest{
		Name:          b.Name.Value,
		TemplateID:    b.TemplateID.Value,
		ClearTemplate: b.TemplateID.IsNull(),
		Properties:    b.Properties,
		ReleaseDate:   optionalDate(b.ReleaseDate),
		ExpireDate:    optionalDate(b.ExpireDate),
	}
	return req
}

func optionalDate(o httputil.Optional[time.Time]) *time.Time {
	if o.IsNull() {
		return &time.Time{}
	}
	return o.Value
}

// SaveNode edits the newest version
// PATCH /api/nodes/{id}
func (h *ContentHandler) SaveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	var body saveNodeRequest
	if !parseBody(w, r, &body) {
		return
	}
	if body.Name.IsNull() {
		httputil.RespondError(w, http.StatusBadRequest, "name cannot be null")
		return
	}

	ok, err := h.lifecycle.Save(r.Context(), httputil.GetActor(r), id, body.toServiceRequest())
	if err != nil {
		handleError(w, err)
		return
	}
	if !ok {
		respondOutcome(w, false)
		return
	}

	record, err := h.lifecycle.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, record)
}

// DeleteNode permanently deletes a node and its subtree
// DELETE /api/nodes/{id}
func (h *ContentHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	ok, err := h.lifecycle.DeletePermanently(r.Context(), httputil.GetActor(r), id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondOutcome(w, ok)
}

// ListVersions returns the version history, oldest first
// GET /api/nodes/{id}/versions
func (h *ContentHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	versions, err := h.lifecycle.Versions(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if versions == nil {
		versions = []models.Version{}
	}

	httputil.RespondJSON(w, http.StatusOK, versions)
}

// ListAudit returns the audit trail
// GET /api/nodes/{id}/audit
func (h *ContentHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	entries, err := h.lifecycle.Audit(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}

	httputil.RespondJSON(w, http.StatusOK, entries)
}

// StateResponse reports a node's lifecycle position
type StateResponse struct {
	State          models.LifecycleState `json:"state"`
	PendingChanges bool                  `json:"pending_changes"`
}

// GetState reports the lifecycle state and whether there are unpublished edits
// GET /api/nodes/{id}/state
func (h *ContentHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	state, err := h.lifecycle.State(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	pending, err := h.lifecycle.HasPendingChanges(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, StateResponse{State: state, PendingChanges: pending})
}

// GetPublication returns the effective publication state
// GET /api/nodes/{id}/publication
func (h *ContentHandler) GetPublication(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	state, err := h.publication.State(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, state)
}

// GetSnapshot serves the cached XML of a published node
// GET /api/nodes/{id}/xml
func (h *ContentHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	snap, err := h.snapshots.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondXML(w, http.StatusOK, snap.XML, snap.GeneratedAt)
}

// Publish publishes a node. ?cascade=subs publishes every descendant as well;
// ?cascade=children only descends below nodes that were published.
// POST /api/nodes/{id}/publish
func (h *ContentHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	actor := httputil.GetActor(r)

	var (
		result *contentSvc.CascadeResult
		err    error
	)
	switch cascade := r.URL.Query().Get("cascade"); cascade {
	case "":
		ok, err := h.lifecycle.Publish(r.Context(), actor, id)
		if err != nil {
			handleError(w, err)
			return
		}
		respondOutcome(w, ok)
		return
	case "subs":
		result, err = h.lifecycle.PublishWithSubs(r.Context(), actor, id)
	case "children":
		result, err = h.lifecycle.PublishWithChildren(r.Context(), actor, id)
	default:
		httputil.RespondError(w, http.StatusBadRequest, "cascade must be subs or children")
		return
	}
	if err != nil {
		h.logger.Warn("cascade publish stopped", "node_id", id, "error", err)
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// Unpublish removes a node from the published tree
// POST /api/nodes/{id}/unpublish
func (h *ContentHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.lifecycle.Unpublish)
}

// SendToPublication records a review request
// POST /api/nodes/{id}/send-to-publication
func (h *ContentHandler) SendToPublication(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.lifecycle.SendToPublication)
}

// MoveToTrash moves a node to the recycle bin
// POST /api/nodes/{id}/trash
func (h *ContentHandler) MoveToTrash(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, h.lifecycle.MoveToTrash)
}

// Rollback makes the content of an older version the newest again
// POST /api/nodes/{id}/rollback/{versionId}
func (h *ContentHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	versionID, err := httputil.PathUUID(r, "versionId")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ok, err = h.lifecycle.Rollback(r.Context(), httputil.GetActor(r), id, versionID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondOutcome(w, ok)
}

// Copy duplicates a node and its subtree
// POST /api/nodes/{id}/copy
func (h *ContentHandler) Copy(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	var req contentSvc.CopyRequest
	if !parseBody(w, r, &req) {
		return
	}

	record, ok, err := h.lifecycle.Copy(r.Context(), httputil.GetActor(r), id, &req)
	if err != nil {
		handleError(w, err)
		return
	}
	if !ok {
		respondOutcome(w, false)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, record)
}

// parentRequest names a destination for move and restore
type parentRequest struct {
	ParentID int64 `json:"parent_id"`
}

// Move re-parents a node
// POST /api/nodes/{id}/move
func (h *ContentHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	var req parentRequest
	if !parseBody(w, r, &req) {
		return
	}

	ok, err := h.lifecycle.Move(r.Context(), httputil.GetActor(r), id, req.ParentID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondOutcome(w, ok)
}

// Restore moves a node out of the recycle bin. An empty body restores under the root.
// POST /api/nodes/{id}/restore
func (h *ContentHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	var req parentRequest
	if r.ContentLength != 0 && !parseBody(w, r, &req) {
		return
	}

	ok, err := h.lifecycle.Restore(r.Context(), httputil.GetActor(r), id, req.ParentID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondOutcome(w, ok)
}

func (h *ContentHandler) simple(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, actor models.Actor, id int64) (bool, error),
) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}

	ok, err := op(r.Context(), httputil.GetActor(r), id)
	if err != nil {
		handleError(w, err)
		return
	}
	respondOutcome(w, ok)
}
