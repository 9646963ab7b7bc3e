package auth

import (
	"context"
	"fmt"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	"folio/internal/domain/services"
)

// AllowListAuthorizer implements MaintenanceAuthorizer with a fixed set of actor ids.
// An empty list allows every authenticated actor; the system actor is always allowed.
type AllowListAuthorizer struct {
	allowed map[string]struct{}
}

// NewAllowListAuthorizer creates an authorizer for the given actor ids
func NewAllowListAuthorizer(actorIDs []string) services.MaintenanceAuthorizer {
	allowed := make(map[string]struct{}, len(actorIDs))
	for _, id := range actorIDs {
		if id != "" {
			allowed[id] = struct{}{}
		}
	}
	return &AllowListAuthorizer{allowed: allowed}
}

// CanRunMaintenance checks the actor against the allow list
func (a *AllowListAuthorizer) CanRunMaintenance(ctx context.Context, actor models.Actor) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if actor.ID == models.SystemActor.ID || len(a.allowed) == 0 {
		return nil
	}
	if _, ok := a.allowed[actor.ID]; !ok {
		return fmt.Errorf("%w: actor %s may not run maintenance jobs", domain.ErrForbidden, actor.ID)
	}
	return nil
}
