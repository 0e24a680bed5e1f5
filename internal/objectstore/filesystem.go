package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilesystemStore maps object keys onto files under root, using the
// same write-to-temp-then-os.Rename swap
// ppriyankuu-godkv/internal/store/snapshot.go uses for its snapshot
// file, generalized from one fixed path to an arbitrary key namespace.
type FilesystemStore struct {
	root string
}

// NewFilesystemStore needs no injected Clock: CreatedAtMs is read back
// from the file's own mtime rather than stamped at write time, so
// there's nothing here for a DST virtual clock to override.
func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: root}
}

func (f *FilesystemStore) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

func (f *FilesystemStore) Put(ctx context.Context, key string, data []byte) error {
	dst := f.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	// Rename swaps the old file for the new one only once the new
	// content is fully on disk, so a reader never observes a
	// partially-written object.
	return os.Rename(tmp, dst)
}

func (f *FilesystemStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (f *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(f.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *FilesystemStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FilesystemStore) List(ctx context.Context, prefix, token string) (ListResult, error) {
	base := f.path(prefix)
	var dir, namePrefix string
	if info, err := os.Stat(base); err == nil && info.IsDir() {
		dir, namePrefix = base, ""
	} else {
		dir, namePrefix = filepath.Dir(base), filepath.Base(base)
	}

	var keys []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(f.root, path)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		if namePrefix != "" && !strings.HasPrefix(d.Name(), namePrefix) {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return ListResult{}, err
	}
	sort.Strings(keys)

	start := 0
	if token != "" {
		for i, k := range keys {
			if k > token {
				start = i
				break
			}
			start = i + 1
		}
	}

	objects := make([]ObjectMeta, 0, len(keys)-start)
	for _, k := range keys[start:] {
		meta, err := f.Head(ctx, k)
		if err != nil {
			continue
		}
		objects = append(objects, meta)
	}
	return ListResult{Objects: objects}, nil
}

func (f *FilesystemStore) Rename(ctx context.Context, from, to string) error {
	dst := f.path(to)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(f.path(from), dst)
}

func (f *FilesystemStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	info, err := os.Stat(f.path(key))
	if os.IsNotExist(err) {
		return ObjectMeta{}, ErrNotFound
	}
	if err != nil {
		return ObjectMeta{}, err
	}
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return ObjectMeta{}, err
	}
	return ObjectMeta{
		Key:         key,
		Size:        info.Size(),
		CreatedAtMs: info.ModTime().UnixMilli(),
		ETag:        etagOf(data),
	}, nil
}
