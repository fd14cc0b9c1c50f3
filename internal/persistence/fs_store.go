package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

const metaSuffix = ".meta.json"

// FSStore keeps each object as a file under root, with its metadata in a
// sibling "<name>.meta.json" file.
type FSStore struct {
	fs   afero.Fs
	root string
}

var _ Store = (*FSStore)(nil)

func NewFSStore(fsys afero.Fs, root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("store root is required")
	}
	if err := fsys.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FSStore{fs: fsys, root: root}, nil
}

func (s *FSStore) Close() error { return nil }

func (s *FSStore) objectPath(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.HasSuffix(key, "/") || strings.HasSuffix(clean, metaSuffix) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *FSStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := afero.Walk(s.fs, s.root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if info.IsDir() || strings.HasSuffix(p, metaSuffix) || strings.HasSuffix(p, ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FSStore) Get(_ context.Context, key string) (Object, error) {
	p, err := s.objectPath(key)
	if err != nil {
		return Object{}, err
	}
	info, err := s.fs.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return Object{}, ErrNotFound
	}
	if err != nil {
		return Object{}, err
	}
	data, err := afero.ReadFile(s.fs, p)
	if err != nil {
		return Object{}, err
	}

	obj := Object{Key: key, Data: data, UpdatedAt: info.ModTime().UTC(), Metadata: map[string]string{}}
	raw, err := afero.ReadFile(s.fs, p+metaSuffix)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Object{}, err
	default:
		if err := json.Unmarshal(raw, &obj.Metadata); err != nil {
			return Object{}, fmt.Errorf("decode metadata for %s: %w", key, err)
		}
	}
	return obj, nil
}

// Put writes the metadata first and the data last, each through a rename,
// so a listed key always has complete data.
func (s *FSStore) Put(_ context.Context, key string, data []byte, metadata map[string]string) error {
	p, err := s.objectPath(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	if err := s.writeAtomic(p+metaSuffix, raw); err != nil {
		return err
	}
	return s.writeAtomic(p, data)
}

func (s *FSStore) writeAtomic(p string, data []byte) error {
	tmp := p + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", p, err)
	}
	return nil
}

func (s *FSStore) Delete(_ context.Context, key string) error {
	p, err := s.objectPath(key)
	if err != nil {
		return err
	}
	for _, target := range []string{p, p + metaSuffix} {
		if err := s.fs.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
