package content

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
)

func countPublished(list []models.Version) int {
	n := 0
	for _, v := range list {
		if v.Published {
			n++
		}
	}
	return n
}

func TestLifecycle_CreateValidates(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  contentSvc.CreateRequest
	}{
		{"missing name", contentSvc.CreateRequest{ContentType: "page"}},
		{"blank name", contentSvc.CreateRequest{Name: "   ", ContentType: "page"}},
		{"bad content type", contentSvc.CreateRequest{Name: "Home", ContentType: "1page"}},
		{"bad property alias", contentSvc.CreateRequest{Name: "Home", ContentType: "page",
			Properties: []models.Property{{Alias: "body text", Kind: models.PropertyText}}}},
		{"unknown property kind", contentSvc.CreateRequest{Name: "Home", ContentType: "page",
			Properties: []models.Property{{Alias: "body", Kind: "rich"}}}},
		{"duplicate alias", contentSvc.CreateRequest{Name: "Home", ContentType: "page",
			Properties: []models.Property{{Alias: "body", Kind: models.PropertyText}, {Alias: "body", Kind: models.PropertyText}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, _, err := env.lifecycle.Create(env.ctx, editor, &req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, _, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{ParentID: models.RecycleBinID, Name: "Trash", ContentType: "page"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = env.lifecycle.Create(env.ctx, models.Actor{}, &contentSvc.CreateRequest{Name: "Home", ContentType: "page"})
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestLifecycle_CreateComposesRecord(t *testing.T) {
	env := newTestEnv(t)

	record, ok, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{
		Name:        "Home",
		ContentType: "homePage",
		Properties:  []models.Property{{Alias: "title", Kind: models.PropertyText, Value: "Welcome"}},
	})
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, models.RootID, record.Node.ParentID)
	assert.Equal(t, models.NodePath{models.RootID, record.Node.ID}, record.Node.Path)
	assert.Equal(t, editor.ID, record.Node.CreatorID)
	require.NotNil(t, record.Content)
	assert.Equal(t, "homePage", record.Content.ContentType)
	require.True(t, record.IsDocument())
	assert.False(t, record.Document.HasPublishedVersion)
	assert.True(t, record.Document.Current.Newest)
	assert.Equal(t, "Welcome", record.Document.Current.Properties[0].Value)

	state, err := env.lifecycle.State(env.ctx, record.Node.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDraft, state)

	children, err := env.lifecycle.Children(env.ctx, models.RootID)
	require.NoError(t, err)
	require.Len(t, children, 2) // recycle bin and home
	assert.Equal(t, record.Node.ID, children[1].Node.ID)
	assert.Nil(t, children[0].Content)
}

func TestLifecycle_PublishCreatesPublishedVersion(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home")

	var after []events.Event
	env.bus.Register(events.Publish, events.After, "recorder", func(ctx context.Context, e *events.Event) error {
		after = append(after, *e)
		return nil
	}, 0)

	env.publish(t, id)
	env.publish(t, id)

	list, err := env.lifecycle.Versions(env.ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 1, countPublished(list))
	assert.True(t, list[2].Published)
	assert.True(t, list[2].Newest)
	assert.False(t, list[0].Newest)

	snap, err := env.snapshots.Get(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, list[2].ID.String(), snap.VersionID)

	require.Len(t, after, 2)
	assert.Equal(t, list[2].ID, after[1].VersionID)

	state, err := env.lifecycle.State(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatePublished, state)
}

func TestLifecycle_PublishRequiresWriterAndLiveNode(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home")

	_, err := env.lifecycle.Publish(env.ctx, models.Actor{Name: "anonymous"}, id)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = env.lifecycle.Publish(env.ctx, editor, 999999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := env.lifecycle.MoveToTrash(env.ctx, editor, id)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = env.lifecycle.Publish(env.ctx, editor, id)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestLifecycle_CancelledPublishWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home")
	env.cancelAll(events.Publish, 0)

	before, err := env.lifecycle.Versions(env.ctx, id)
	require.NoError(t, err)
	auditBefore, err := env.lifecycle.Audit(env.ctx, id)
	require.NoError(t, err)

	ok, err := env.lifecycle.Publish(env.ctx, editor, id)
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := env.lifecycle.Versions(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	auditAfter, err := env.lifecycle.Audit(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auditBefore, auditAfter)
	assert.False(t, env.hasSnapshot(t, id))
}

func TestLifecycle_PublishCascades(t *testing.T) {
	t.Run("with subs ignores a cancelled parent", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, models.RootID, "R")
		a := env.create(t, r, "A")
		b := env.create(t, a, "B")
		env.cancelAll(events.Publish, a)

		result, err := env.lifecycle.PublishWithSubs(env.ctx, editor, r)
		require.NoError(t, err)
		assert.Equal(t, []int64{r, b}, result.Published)
		assert.Equal(t, []int64{a}, result.Cancelled)

		pv, err := env.versions.PublishedVersion(env.ctx, b)
		require.NoError(t, err)
		assert.NotNil(t, pv)
		assert.False(t, env.state(t, b).Published)
	})

	t.Run("with children stops below a cancelled parent", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, models.RootID, "R")
		a := env.create(t, r, "A")
		b := env.create(t, a, "B")
		c := env.create(t, r, "C")
		env.cancelAll(events.Publish, a)

		result, err := env.lifecycle.PublishWithChildren(env.ctx, editor, r)
		require.NoError(t, err)
		assert.Equal(t, []int64{r, c}, result.Published)
		assert.Equal(t, []int64{a}, result.Cancelled)

		pv, err := env.versions.PublishedVersion(env.ctx, b)
		require.NoError(t, err)
		assert.Nil(t, pv)
	})

	t.Run("failure keeps processed nodes", func(t *testing.T) {
		env := newTestEnv(t)
		r := env.create(t, models.RootID, "R")
		a := env.create(t, r, "A")
		env.create(t, a, "B")

		// a property alias that cannot become an XML element makes the render fail
		newest, err := env.versions.Newest(env.ctx, a)
		require.NoError(t, err)
		newest.Properties = append(newest.Properties, models.Property{Alias: "not valid", Kind: models.PropertyText})
		require.NoError(t, env.versions.Update(env.ctx, newest))

		result, err := env.lifecycle.PublishWithSubs(env.ctx, editor, r)
		require.Error(t, err)
		assert.Equal(t, []int64{r}, result.Published)

		pv, err := env.versions.PublishedVersion(env.ctx, a)
		require.NoError(t, err)
		assert.Nil(t, pv, "failed publish must roll back")
		list, err := env.versions.ListVersions(env.ctx, a)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestLifecycle_UnpublishIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	_, a, _ := publishedChain(t, env)

	ok, err := env.lifecycle.Unpublish(env.ctx, editor, a)
	require.NoError(t, err)
	require.True(t, ok)

	versionsOnce, err := env.lifecycle.Versions(env.ctx, a)
	require.NoError(t, err)
	auditOnce, err := env.lifecycle.Audit(env.ctx, a)
	require.NoError(t, err)
	stateOnce := env.state(t, a)

	ok, err = env.lifecycle.Unpublish(env.ctx, editor, a)
	require.NoError(t, err)
	require.True(t, ok)

	versionsTwice, err := env.lifecycle.Versions(env.ctx, a)
	require.NoError(t, err)
	auditTwice, err := env.lifecycle.Audit(env.ctx, a)
	require.NoError(t, err)

	assert.Equal(t, versionsOnce, versionsTwice)
	assert.Equal(t, auditOnce, auditTwice)
	assert.Equal(t, stateOnce, env.state(t, a))
	assert.Equal(t, 0, countPublished(versionsTwice))
	assert.False(t, env.hasSnapshot(t, a))

	state, err := env.lifecycle.State(env.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, models.StateUnpublished, state)
}

func TestLifecycle_SaveNeverTouchesPublishedVersion(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home", models.Property{Alias: "body", Kind: models.PropertyText, Value: "v1"})
	env.publish(t, id)

	name := "Home page"
	ok, err := env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{
		Name:       &name,
		Properties: []models.Property{{Alias: "body", Kind: models.PropertyText, Value: "v2"}},
	})
	require.NoError(t, err)
	require.True(t, ok)

	published, err := env.versions.PublishedVersion(env.ctx, id)
	require.NoError(t, err)
	newest, err := env.versions.Newest(env.ctx, id)
	require.NoError(t, err)

	assert.NotEqual(t, published.ID, newest.ID)
	assert.Equal(t, "Home", published.Text)
	assert.Equal(t, "v1", published.Properties[0].Value)
	assert.Equal(t, "Home page", newest.Text)
	assert.Equal(t, "v2", newest.Properties[0].Value)
	assert.Equal(t, "Home page", env.node(t, id).Text)

	// a second save edits the same draft in place
	ok, err = env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{
		Properties: []models.Property{{Alias: "summary", Kind: models.PropertyText, Value: "short"}},
	})
	require.NoError(t, err)
	require.True(t, ok)
	list, err := env.versions.ListVersions(env.ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Len(t, list[2].Properties, 2)
}

// demotingVersions creates a newer version right after Save reads the newest one, the way a
// publish committing between the read and the write would.
type demotingVersions struct {
	contentRepo.VersionRepository
	at      time.Time
	demoted bool
}

func (v *demotingVersions) Newest(ctx context.Context, nodeID int64) (*models.Version, error) {
	newest, err := v.VersionRepository.Newest(ctx, nodeID)
	if err != nil || v.demoted {
		return newest, err
	}
	v.demoted = true
	if _, err := v.VersionRepository.CreateVersion(ctx, nodeID, "publisher", v.at); err != nil {
		return nil, err
	}
	return newest, nil
}

func TestLifecycle_SaveRejectsDemotedNewestVersion(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home", models.Property{Alias: "body", Kind: models.PropertyText, Value: "v1"})
	racing := env.lifecycleWith(&demotingVersions{VersionRepository: env.versions, at: env.clock.Now()})

	name := "Renamed"
	ok, err := racing.Save(env.ctx, editor, id, &contentSvc.SaveRequest{
		Name:       &name,
		Properties: []models.Property{{Alias: "body", Kind: models.PropertyText, Value: "lost"}},
	})
	require.Error(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrConflict)

	list, err := env.versions.ListVersions(env.ctx, id)
	require.NoError(t, err)
	require.Len(t, list, 1, "the transaction rolls back the racing version too")
	assert.Equal(t, "Home", list[0].Text)
	assert.Equal(t, "v1", list[0].Properties[0].Value)
	assert.Equal(t, "Home", env.node(t, id).Text)

	// a retry against the current newest version goes through
	ok, err = env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{Name: &name})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Renamed", env.node(t, id).Text)
}

func TestLifecycle_SaveTemplateAndSentinelDates(t *testing.T) {
	env := newTestEnv(t)
	release := env.clock.Now().Add(24 * time.Hour)
	record, _, err := env.lifecycle.Create(env.ctx, editor, &contentSvc.CreateRequest{
		Name:        "Launch",
		ContentType: "page",
		ReleaseDate: release,
		ExpireDate:  release.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	id := record.Node.ID
	assert.True(t, record.Document.Current.ReleaseDate.Equal(release))

	template := int64(1031)
	cleared := time.Time{}
	ok, err := env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{
		TemplateID:  &template,
		ReleaseDate: &cleared,
	})
	require.NoError(t, err)
	require.True(t, ok)

	newest, err := env.versions.Newest(env.ctx, id)
	require.NoError(t, err)
	assert.True(t, newest.ReleaseDate.IsZero())
	assert.False(t, newest.ExpireDate.IsZero(), "untouched date must stay")
	require.NotNil(t, newest.TemplateID)
	assert.Equal(t, template, *newest.TemplateID)

	ok, err = env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{ClearTemplate: true})
	require.NoError(t, err)
	require.True(t, ok)
	newest, err = env.versions.Newest(env.ctx, id)
	require.NoError(t, err)
	assert.Nil(t, newest.TemplateID)

	_, err = env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{ClearTemplate: true, TemplateID: &template})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLifecycle_PendingChangesTolerance(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home")

	save := func(value string) {
		t.Helper()
		ok, err := env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{
			Properties: []models.Property{{Alias: "body", Kind: models.PropertyText, Value: value}},
		})
		require.NoError(t, err)
		require.True(t, ok)
	}
	pending := func() bool {
		t.Helper()
		p, err := env.lifecycle.HasPendingChanges(env.ctx, id)
		require.NoError(t, err)
		return p
	}

	assert.False(t, pending())
	env.clock.Advance(time.Second)
	save("within tolerance")
	assert.False(t, pending())
	env.clock.Advance(2 * time.Second)
	save("past tolerance")
	assert.True(t, pending())

	env.clock.Advance(time.Second)
	env.publish(t, id)
	assert.False(t, pending())

	env.clock.Advance(1500 * time.Millisecond)
	save("right after publish")
	assert.False(t, pending())
	env.clock.Advance(time.Second)
	save("later")
	assert.True(t, pending())
}

func TestLifecycle_RollbackRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home", models.Property{Alias: "body", Kind: models.PropertyText, Value: "first"})
	env.publish(t, id)

	list, err := env.versions.ListVersions(env.ctx, id)
	require.NoError(t, err)
	target := list[0]

	ok, err := env.lifecycle.Save(env.ctx, editor, id, &contentSvc.SaveRequest{
		Properties: []models.Property{{Alias: "body", Kind: models.PropertyText, Value: "second"}},
	})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = env.lifecycle.Rollback(env.ctx, editor, id, target.ID)
	require.NoError(t, err)
	require.True(t, ok)

	newest, err := env.versions.Newest(env.ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, target.ID, newest.ID)
	assert.Equal(t, target.Properties, newest.Properties)
	assert.Equal(t, target.Text, newest.Text)

	// publish state is not touched by a rollback
	published, err := env.versions.PublishedVersion(env.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, list[1].ID, published.ID)

	_, err = env.lifecycle.Rollback(env.ctx, editor, id, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLifecycle_SendToPublicationOnlyAudits(t *testing.T) {
	env := newTestEnv(t)
	id := env.create(t, models.RootID, "Home")

	fired := 0
	env.bus.Register(events.SendToPublish, events.After, "counter", func(ctx context.Context, e *events.Event) error {
		fired++
		return nil
	}, 0)

	ok, err := env.lifecycle.SendToPublication(env.ctx, editor, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, fired)

	entries, err := env.lifecycle.Audit(env.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AuditSendToPublish, entries[len(entries)-1].Action)

	list, err := env.versions.ListVersions(env.ctx, id)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
