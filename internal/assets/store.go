// Package assets stores the binary files referenced by upload properties.
package assets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when an asset path does not exist
var ErrNotFound = errors.New("asset not found")

// thumbnailMarker separates a file's base name from its generated thumbnail variants,
// e.g. "media/1050/photo.jpg" has thumbnails "media/1050/photo_thumb.jpg" and
// "media/1050/photo_thumb_200.jpg".
const thumbnailMarker = "_thumb"

// Store is the asset-store collaborator used by Copy and DeletePermanently.
type Store interface {
	Exists(ctx context.Context, p string) (bool, error)
	Copy(ctx context.Context, src, dst string) error
	Delete(ctx context.Context, p string) error

	// Thumbnails lists generated variants stored next to p
	Thumbnails(ctx context.Context, p string) ([]string, error)
}

// FolderFor returns the folder that holds a node's upload for one property alias.
func FolderFor(nodeID int64, alias string) string {
	return fmt.Sprintf("media/%d-%s", nodeID, alias)
}

// Duplicate copies the asset at src and its thumbnails into folder and returns the new path.
// A missing source is reported with ErrNotFound and nothing is copied.
func Duplicate(ctx context.Context, store Store, src, folder string) (string, error) {
	src = Normalize(src)
	ok, err := store.Exists(ctx, src)
	if err != nil {
		return "", fmt.Errorf("check asset %s: %w", src, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", src, ErrNotFound)
	}

	thumbs, err := store.Thumbnails(ctx, src)
	if err != nil {
		return "", fmt.Errorf("list thumbnails of %s: %w", src, err)
	}

	dst := path.Join(folder, path.Base(src))
	if err := store.Copy(ctx, src, dst); err != nil {
		return "", fmt.Errorf("copy asset %s: %w", src, err)
	}
	for _, thumb := range thumbs {
		if err := store.Copy(ctx, thumb, path.Join(folder, path.Base(thumb))); err != nil {
			return "", fmt.Errorf("copy thumbnail %s: %w", thumb, err)
		}
	}
	return dst, nil
}

// Remove deletes the asset at p and its thumbnails. Missing files are ignored.
func Remove(ctx context.Context, store Store, p string) error {
	p = Normalize(p)
	thumbs, err := store.Thumbnails(ctx, p)
	if err != nil {
		return fmt.Errorf("list thumbnails of %s: %w", p, err)
	}
	for _, target := range append(thumbs, p) {
		if err := store.Delete(ctx, target); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete asset %s: %w", target, err)
		}
	}
	return nil
}

// Normalize turns a stored property value ("/media/1050/a.jpg") into a store key.
func Normalize(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

// isThumbnailOf reports whether name is a generated variant of the file named base.
func isThumbnailOf(name, base string) bool {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if !strings.HasPrefix(name, stem+thumbnailMarker) || path.Ext(name) != ext {
		return false
	}
	return name != base
}
