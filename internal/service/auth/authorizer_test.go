package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
)

func TestAllowListAuthorizer(t *testing.T) {
	ctx := context.Background()
	ada := models.Actor{ID: "ada", Name: "Ada"}
	bob := models.Actor{ID: "bob", Name: "Bob"}

	open := NewAllowListAuthorizer(nil)
	assert.NoError(t, open.CanRunMaintenance(ctx, bob))
	assert.ErrorIs(t, open.CanRunMaintenance(ctx, models.Actor{}), domain.ErrUnauthorized)

	restricted := NewAllowListAuthorizer([]string{"ada", ""})
	assert.NoError(t, restricted.CanRunMaintenance(ctx, ada))
	assert.NoError(t, restricted.CanRunMaintenance(ctx, models.SystemActor))
	assert.ErrorIs(t, restricted.CanRunMaintenance(ctx, bob), domain.ErrForbidden)
}
