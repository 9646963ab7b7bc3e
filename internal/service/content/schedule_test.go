package content

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
)

func newTestScheduler(env *testEnv) *Scheduler {
	s := NewScheduler(env.versions, env.lifecycle, time.Minute, env.metrics, env.clock.Now, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return s
}

func TestScheduler_ReleaseDue(t *testing.T) {
	env := newTestEnv(t)
	sched := newTestScheduler(env)
	now := env.clock.Now()

	due, _, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{
		Name: "Due", ContentType: "page", ReleaseDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	later, _, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{
		Name: "Later", ContentType: "page", ReleaseDate: now.Add(48 * time.Hour),
	})
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	result, err := sched.ReleaseDue(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Zero(t, result.Failed)

	published, err := env.versions.PublishedVersion(env.ctx, due.Node.ID)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.True(t, published.ReleaseDate.IsZero())
	assert.True(t, env.hasSnapshot(t, due.Node.ID))

	entries, err := env.audit.ListForNode(env.ctx, due.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SystemActor.ID, entries[len(entries)-1].ActorID)

	pv, err := env.versions.PublishedVersion(env.ctx, later.Node.ID)
	require.NoError(t, err)
	assert.Nil(t, pv)

	// nothing is due twice
	result, err = sched.ReleaseDue(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}

func TestScheduler_ReleaseIsolatesFailuresAndVetoes(t *testing.T) {
	env := newTestEnv(t)
	sched := newTestScheduler(env)
	release := env.clock.Now().Add(time.Minute)

	ids := make([]int64, 3)
	for i, name := range []string{"Good", "Broken", "Vetoed"} {
		record, _, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{
			Name: name, ContentType: "page", ReleaseDate: release,
		})
		require.NoError(t, err)
		ids[i] = record.Node.ID
	}

	newest, err := env.versions.Newest(env.ctx, ids[1])
	require.NoError(t, err)
	newest.Properties = append(newest.Properties, models.Property{Alias: "bad alias", Kind: models.PropertyText})
	require.NoError(t, env.versions.Update(env.ctx, newest))
	env.cancelAll(events.Publish, ids[2])

	env.clock.Advance(time.Hour)
	result, err := sched.ReleaseDue(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ids[1], result.Errors[0].NodeID)

	pv, err := env.versions.PublishedVersion(env.ctx, ids[0])
	require.NoError(t, err)
	assert.NotNil(t, pv)
}

func TestScheduler_ExpireDue(t *testing.T) {
	env := newTestEnv(t)
	sched := newTestScheduler(env)
	now := env.clock.Now()

	record, _, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{
		Name: "Campaign", ContentType: "page", ExpireDate: now.Add(time.Hour),
	})
	require.NoError(t, err)
	id := record.Node.ID
	env.publish(t, id)

	result, err := sched.ExpireDue(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed, "not yet expired")

	env.clock.Advance(2 * time.Hour)
	result, err = sched.ExpireDue(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)

	pv, err := env.versions.PublishedVersion(env.ctx, id)
	require.NoError(t, err)
	assert.Nil(t, pv)
	assert.False(t, env.hasSnapshot(t, id))

	newest, err := env.versions.Newest(env.ctx, id)
	require.NoError(t, err)
	assert.True(t, newest.ExpireDate.IsZero())

	// republishing does not expire again
	env.publish(t, id)
	result, err = sched.ExpireDue(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
}
