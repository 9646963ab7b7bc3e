package services

import (
	"context"

	models "folio/internal/domain/models/content"
)

// MaintenanceAuthorizer checks whether an actor may run site-wide jobs such as a full snapshot
// rebuild or emptying the recycle bin. Per-node editing is not gated here.
type MaintenanceAuthorizer interface {
	// CanRunMaintenance returns domain.ErrForbidden when the actor is not allowed
	CanRunMaintenance(ctx context.Context, actor models.Actor) error
}
