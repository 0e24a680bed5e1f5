package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shardkv/internal/objectstore"
)

// ErrNotFound mirrors objectstore.ErrNotFound at the manifest level so
// callers don't need to import objectstore just to check this.
var ErrNotFound = errors.New("manifest: not found")

// VersionConflict is returned by Manager.Update when the manifest
// changed between Update's initial load and its re-check, per spec.md
// §4.7's optimistic-locking contract.
type VersionConflict struct {
	Expected uint64
	Actual   uint64
}

func (e *VersionConflict) Error() string {
	return fmt.Sprintf("manifest: version conflict: expected %d, got %d", e.Expected, e.Actual)
}

// Manager persists a Manifest to an objectstore.Store at a well-known
// key, using the write-temp-then-rename swap spec.md §4.7 names and
// ppriyankuu-godkv/internal/store/snapshot.go already uses for its
// single local snapshot file.
type Manager struct {
	store       objectstore.Store
	manifestKey string
	tempKey     string
}

func NewManager(store objectstore.Store, prefix string) *Manager {
	return &Manager{
		store:       store,
		manifestKey: prefix + "/manifest.json",
		tempKey:     prefix + "/manifest.json.tmp",
	}
}

// Load fetches and decodes the manifest, returning ErrNotFound if it
// doesn't exist yet.
func (m *Manager) Load(ctx context.Context) (*Manifest, error) {
	data, err := m.store.Get(ctx, m.manifestKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var man Manifest
	if err := json.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("manifest: decoding: %w", err)
	}
	return &man, nil
}

// LoadOrCreate loads the existing manifest, or returns a fresh empty
// one for replicaID if none is persisted yet.
func (m *Manager) LoadOrCreate(ctx context.Context, replicaID string) (*Manifest, error) {
	man, err := m.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return New(replicaID), nil
	}
	return man, err
}

// Save writes manifest via the temp-key-then-rename pattern so a
// reader never observes a half-written manifest object.
func (m *Manager) Save(ctx context.Context, man *Manifest) error {
	data, err := json.MarshalIndent(man, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: encoding: %w", err)
	}
	if err := m.store.Put(ctx, m.tempKey, data); err != nil {
		return err
	}
	return m.store.Rename(ctx, m.tempKey, m.manifestKey)
}

// Update loads the manifest, captures its version, applies fn, then
// re-reads the manifest to make sure nothing else saved a newer
// version in the meantime before persisting — the optimistic-locking
// protocol spec.md §4.7 requires. On a detected race it returns
// *VersionConflict without saving anything; the caller retries.
func (m *Manager) Update(ctx context.Context, fn func(*Manifest)) (*Manifest, error) {
	man, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	expected := man.Version
	fn(man)

	current, err := m.Load(ctx)
	if err != nil {
		return nil, err
	}
	if current.Version != expected {
		return nil, &VersionConflict{Expected: expected, Actual: current.Version}
	}

	if err := m.Save(ctx, man); err != nil {
		return nil, err
	}
	return man, nil
}

// AddSegment loads the manifest, appends info, and saves — a
// convenience wrapper around Update for the write-buffer flush path
// (§4.6 step 4).
func (m *Manager) AddSegment(ctx context.Context, info SegmentInfo) (*Manifest, error) {
	return m.Update(ctx, func(man *Manifest) { man.AddSegment(info) })
}

// Exists reports whether a manifest has been persisted yet.
func (m *Manager) Exists(ctx context.Context) (bool, error) {
	return m.store.Exists(ctx, m.manifestKey)
}
