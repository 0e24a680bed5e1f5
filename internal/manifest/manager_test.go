package manifest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/objectstore"
)

func testStore() objectstore.Store {
	return objectstore.NewMemoryStore(func() int64 { return 0 })
}

func TestManagerSaveLoad(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testStore(), "test")

	m := New("r1")
	m.AddSegment(makeSegment(0, 100, 1000, 0, 100))
	require.NoError(t, mgr.Save(ctx, m))

	loaded, err := mgr.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)
}

func TestManagerLoadOrCreate(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testStore(), "test")

	m, err := mgr.LoadOrCreate(ctx, "r42")
	require.NoError(t, err)
	assert.Equal(t, "r42", m.ReplicaID)
	assert.Equal(t, uint64(0), m.Version)
}

func TestManagerLoadNotFound(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testStore(), "test")

	_, err := mgr.Load(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestManagerExists(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testStore(), "test")

	ok, err := mgr.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mgr.Save(ctx, New("r1")))

	ok, err = mgr.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManagerAddSegment(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testStore(), "test")
	require.NoError(t, mgr.Save(ctx, New("r1")))

	updated, err := mgr.AddSegment(ctx, makeSegment(0, 100, 1000, 0, 100))
	require.NoError(t, err)
	assert.Len(t, updated.Segments, 1)
	assert.Equal(t, uint64(1), updated.Version)

	persisted, err := mgr.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated, persisted)
}

// raceStore wraps a Store and fires a hook after its first Get, so a
// test can inject a concurrent writer into the window between
// Manager.Update's initial load and its optimistic-locking re-check —
// an interleaving real concurrency would only produce nondeterministically.
type raceStore struct {
	objectstore.Store
	gets   int
	onGets map[int]func()
}

func (r *raceStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.Store.Get(ctx, key)
	r.gets++
	if hook, ok := r.onGets[r.gets]; ok {
		hook()
	}
	return data, err
}

func TestManagerUpdateDetectsVersionConflict(t *testing.T) {
	ctx := context.Background()
	inner := testStore()
	require.NoError(t, NewManager(inner, "test").Save(ctx, New("r1")))

	concurrent := NewManager(inner, "test")
	rs := &raceStore{Store: inner, onGets: map[int]func(){}}
	mgr := NewManager(rs, "test")
	rs.onGets[1] = func() {
		_, err := concurrent.AddSegment(ctx, makeSegment(0, 1, 1, 0, 1))
		require.NoError(t, err)
	}

	_, err := mgr.Update(ctx, func(m *Manifest) {
		m.AddSegment(makeSegment(1, 1, 1, 1, 2))
	})
	var conflict *VersionConflict
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, uint64(0), conflict.Expected)
	assert.Equal(t, uint64(1), conflict.Actual)
}

func TestManagerUpdateSucceedsWithoutConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(testStore(), "test")
	require.NoError(t, mgr.Save(ctx, New("r1")))

	updated, err := mgr.Update(ctx, func(m *Manifest) {
		m.AddSegment(makeSegment(0, 1, 1, 0, 1))
	})
	require.NoError(t, err)
	assert.Len(t, updated.Segments, 1)
}
