package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, p, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(p))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestDuplicateCopiesThumbnails(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	writeFile(t, root, "media/1050-image/photo.jpg", "original")
	writeFile(t, root, "media/1050-image/photo_thumb.jpg", "thumb")
	writeFile(t, root, "media/1050-image/photo_thumb_200.jpg", "thumb200")
	writeFile(t, root, "media/1050-image/photograph.jpg", "unrelated")

	dst, err := Duplicate(ctx, store, "/media/1050-image/photo.jpg", FolderFor(2001, "image"))
	require.NoError(t, err)
	assert.Equal(t, "media/2001-image/photo.jpg", dst)

	for _, p := range []string{"media/2001-image/photo.jpg", "media/2001-image/photo_thumb.jpg", "media/2001-image/photo_thumb_200.jpg"} {
		ok, err := store.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
	ok, err := store.Exists(ctx, "media/2001-image/photograph.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	data, err := os.ReadFile(filepath.Join(root, "media", "2001-image", "photo.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
}

func TestDuplicateMissingSource(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = Duplicate(context.Background(), store, "media/1/missing.png", "media/2-file")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveDeletesThumbnails(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	writeFile(t, root, "media/7-file/doc.pdf", "pdf")
	writeFile(t, root, "media/7-file/doc_thumb.pdf", "thumb")

	require.NoError(t, Remove(ctx, store, "media/7-file/doc.pdf"))
	require.NoError(t, Remove(ctx, store, "media/7-file/doc.pdf"))

	entries, err := os.ReadDir(filepath.Join(root, "media", "7-file"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "media/1/a.jpg", Normalize("/media/1/a.jpg"))
	assert.Equal(t, "media/1/a.jpg", Normalize("media/1/../1/a.jpg"))
	assert.Equal(t, "etc/passwd", Normalize("../../etc/passwd"))
}
