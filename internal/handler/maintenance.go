package handler

import (
	"context"
	"log/slog"
	"net/http"

	"folio/internal/domain/services"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/httputil"
)

// MaintenanceHandler runs site-wide jobs. Each job reports a BatchResult; per-item failures do
// not fail the request.
type MaintenanceHandler struct {
	lifecycle  contentSvc.LifecycleService
	snapshots  contentSvc.SnapshotService
	scheduler  contentSvc.SchedulerService
	authorizer services.MaintenanceAuthorizer
	logger     *slog.Logger
}

// NewMaintenanceHandler creates a new maintenance handler
func NewMaintenanceHandler(
	lifecycle contentSvc.LifecycleService,
	snapshots contentSvc.SnapshotService,
	scheduler contentSvc.SchedulerService,
	authorizer services.MaintenanceAuthorizer,
	logger *slog.Logger,
) *MaintenanceHandler {
	return &MaintenanceHandler{
		lifecycle:  lifecycle,
		snapshots:  snapshots,
		scheduler:  scheduler,
		authorizer: authorizer,
		logger:     logger,
	}
}

// Register mounts the maintenance routes on mux
func (h *MaintenanceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/maintenance/rebuild-xml", h.RebuildSnapshots)
	mux.HandleFunc("POST /api/maintenance/release", h.ReleaseDue)
	mux.HandleFunc("POST /api/maintenance/expire", h.ExpireDue)
	mux.HandleFunc("DELETE /api/recycle-bin", h.EmptyRecycleBin)
}

// HealthCheck returns 200 when the server is up
// GET /health
func (h *MaintenanceHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RebuildSnapshots regenerates every document snapshot
// POST /api/maintenance/rebuild-xml
func (h *MaintenanceHandler) RebuildSnapshots(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "rebuild-xml", h.snapshots.RebuildAll)
}

// ReleaseDue publishes nodes whose release date has passed
// POST /api/maintenance/release
func (h *MaintenanceHandler) ReleaseDue(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "release", h.scheduler.ReleaseDue)
}

// ExpireDue unpublishes nodes whose expire date has passed
// POST /api/maintenance/expire
func (h *MaintenanceHandler) ExpireDue(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, "expire", h.scheduler.ExpireDue)
}

// EmptyRecycleBin permanently deletes everything in the recycle bin
// DELETE /api/recycle-bin
func (h *MaintenanceHandler) EmptyRecycleBin(w http.ResponseWriter, r *http.Request) {
	actor := httputil.GetActor(r)
	h.run(w, r, "empty-recycle-bin", func(ctx context.Context) (*contentSvc.BatchResult, error) {
		return h.lifecycle.EmptyRecycleBin(ctx, actor)
	})
}

func (h *MaintenanceHandler) run(
	w http.ResponseWriter,
	r *http.Request,
	job string,
	fn func(ctx context.Context) (*contentSvc.BatchResult, error),
) {
	actor := httputil.GetActor(r)
	if err := h.authorizer.CanRunMaintenance(r.Context(), actor); err != nil {
		handleError(w, err)
		return
	}

	result, err := fn(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("maintenance job finished",
		"job", job,
		"actor_id", actor.ID,
		"processed", result.Processed,
		"failed", result.Failed,
	)
	httputil.RespondJSON(w, http.StatusOK, result)
}
