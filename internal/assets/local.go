package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

// LocalStore keeps assets under a directory on the local filesystem
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create asset root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) full(p string) string {
	return filepath.Join(s.root, filepath.FromSlash(Normalize(p)))
}

func (s *LocalStore) Exists(ctx context.Context, p string) (bool, error) {
	info, err := os.Stat(s.full(p))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}

func (s *LocalStore) Copy(ctx context.Context, src, dst string) error {
	in, err := os.Open(s.full(src))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", src, ErrNotFound)
		}
		return err
	}
	defer in.Close()

	target := s.full(dst)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *LocalStore) Delete(ctx context.Context, p string) error {
	err := os.Remove(s.full(p))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, ErrNotFound)
	}
	return err
}

func (s *LocalStore) Thumbnails(ctx context.Context, p string) ([]string, error) {
	p = Normalize(p)
	entries, err := os.ReadDir(filepath.Dir(s.full(p)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var thumbs []string
	base := path.Base(p)
	for _, e := range entries {
		if !e.IsDir() && isThumbnailOf(e.Name(), base) {
			thumbs = append(thumbs, path.Join(path.Dir(p), e.Name()))
		}
	}
	return thumbs, nil
}
