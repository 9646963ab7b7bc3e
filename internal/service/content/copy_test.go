package content

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func writeAsset(t *testing.T, root, p string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(p))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(p), 0o644))
}

func saveUpload(alias, value string) *contentSvc.SaveRequest {
	return &contentSvc.SaveRequest{
		Properties: []models.Property{{Alias: alias, Kind: models.PropertyUpload, Value: value}},
	}
}

func TestLifecycle_CopyDuplicatesSubtreeAndAssets(t *testing.T) {
	env := newTestEnv(t)
	src := env.create(t, models.RootID, "Gallery",
		models.Property{Alias: "tags", Kind: models.PropertyTags, Value: "travel,summer"},
	)
	child := env.create(t, src, "Beach")
	dest := env.create(t, models.RootID, "Archive")

	upload := "/media/" + itoa(src) + "-image/photo.jpg"
	writeAsset(t, env.assetRoot, upload)
	writeAsset(t, env.assetRoot, "/media/"+itoa(src)+"-image/photo_thumb.jpg")
	ok, err := env.lifecycle.Save(env.ctx, editor, src, saveUpload("image", upload))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = env.lifecycle.Save(env.ctx, editor, child, saveUpload("image", "/media/gone/missing.jpg"))
	require.NoError(t, err)
	require.True(t, ok)
	env.publish(t, src)

	var copies []events.Event
	env.bus.Register(events.Copy, events.After, "recorder", func(ctx context.Context, e *events.Event) error {
		copies = append(copies, *e)
		return nil
	}, 0)

	record, ok, err := env.lifecycle.Copy(env.ctx, editor, src, &contentSvc.CopyRequest{DestinationID: dest, RelateToOriginal: true})
	require.NoError(t, err)
	require.True(t, ok)

	copyID := record.Node.ID
	assert.NotEqual(t, src, copyID)
	assert.Equal(t, dest, record.Node.ParentID)
	assert.Equal(t, "textPage", record.Content.ContentType)
	assert.False(t, record.Document.HasPublishedVersion, "copies start unpublished")

	image, ok := record.Document.Current.Property("image")
	require.True(t, ok)
	wantUpload := "/media/" + itoa(copyID) + "-image/photo.jpg"
	assert.Equal(t, wantUpload, image.Value)
	assert.FileExists(t, filepath.Join(env.assetRoot, "media", itoa(copyID)+"-image", "photo.jpg"))
	assert.FileExists(t, filepath.Join(env.assetRoot, "media", itoa(copyID)+"-image", "photo_thumb.jpg"))
	assert.FileExists(t, filepath.Join(env.assetRoot, filepath.FromSlash(upload)), "source file is kept")

	tags, ok := record.Document.Current.Property("tags")
	require.True(t, ok)
	assert.Equal(t, "travel,summer", tags.Value)

	children, err := env.lifecycle.Children(env.ctx, copyID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Beach", children[0].Node.Text)
	missing, ok := children[0].Document.Current.Property("image")
	require.True(t, ok)
	assert.Equal(t, "/media/gone/missing.jpg", missing.Value)

	require.Len(t, copies, 2)
	assert.Equal(t, src, copies[0].NodeID)
	assert.Equal(t, copyID, copies[0].CopyID)
	assert.Equal(t, child, copies[1].NodeID)

	entries, err := env.lifecycle.Audit(env.ctx, copyID)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, models.AuditCopy, entries[0].Action)
	assert.Contains(t, entries[0].Detail, "related to original")
}

func TestLifecycle_CopyIntoOwnSubtreeIsRejected(t *testing.T) {
	env := newTestEnv(t)
	src := env.create(t, models.RootID, "Parent")
	child := env.create(t, src, "Child")

	_, _, err := env.lifecycle.Copy(env.ctx, editor, src, &contentSvc.CopyRequest{DestinationID: child})
	assert.ErrorIs(t, err, domain.ErrValidation)

	env.cancelAll(events.Copy, 0)
	record, ok, err := env.lifecycle.Copy(env.ctx, editor, src, &contentSvc.CopyRequest{})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, record)

	children, err := env.nodes.Children(env.ctx, models.RootID)
	require.NoError(t, err)
	assert.Len(t, children, 2) // recycle bin and the source
}

type failingInsertVersions struct {
	contentRepo.VersionRepository
	err error
}

func (v *failingInsertVersions) Insert(context.Context, *models.Version) error {
	return v.err
}

func TestLifecycle_FailedCopyRemovesDuplicatedAssets(t *testing.T) {
	env := newTestEnv(t)
	src := env.create(t, models.RootID, "Gallery")
	upload := "/media/" + itoa(src) + "-image/photo.jpg"
	writeAsset(t, env.assetRoot, upload)
	writeAsset(t, env.assetRoot, "/media/"+itoa(src)+"-image/photo_thumb.jpg")
	ok, err := env.lifecycle.Save(env.ctx, editor, src, saveUpload("image", upload))
	require.NoError(t, err)
	require.True(t, ok)

	boom := errors.New("insert failed")
	failing := env.lifecycleWith(&failingInsertVersions{VersionRepository: env.versions, err: boom})
	_, ok, err = failing.Copy(env.ctx, editor, src, &contentSvc.CopyRequest{})
	require.ErrorIs(t, err, boom)
	assert.False(t, ok)

	var files []string
	require.NoError(t, filepath.WalkDir(filepath.Join(env.assetRoot, "media"), func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			rel, _ := filepath.Rel(env.assetRoot, p)
			files = append(files, filepath.ToSlash(rel))
		}
		return err
	}))
	assert.ElementsMatch(t, []string{
		"media/" + itoa(src) + "-image/photo.jpg",
		"media/" + itoa(src) + "-image/photo_thumb.jpg",
	}, files, "only the source upload remains")

	children, err := env.nodes.Children(env.ctx, models.RootID)
	require.NoError(t, err)
	assert.Len(t, children, 2) // recycle bin and the source
}
