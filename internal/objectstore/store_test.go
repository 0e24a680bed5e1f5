package objectstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedClock lets conformance tests assert CreatedAtMs deterministically.
func fixedClock(ms int64) Clock { return func() int64 { return ms } }

func conformanceBackends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory":     NewMemoryStore(fixedClock(1000)),
		"filesystem": NewFilesystemStore(t.TempDir()),
	}
}

func TestStoreConformance(t *testing.T) {
	for name, store := range conformanceBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.Head(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			ok, err := store.Exists(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Delete(ctx, "missing"), "deleting an absent key is not an error")

			require.NoError(t, store.Put(ctx, "segments/segment-000001.seg", []byte("hello")))

			got, err := store.Get(ctx, "segments/segment-000001.seg")
			require.NoError(t, err)
			assert.Equal(t, "hello", string(got))

			ok, err = store.Exists(ctx, "segments/segment-000001.seg")
			require.NoError(t, err)
			assert.True(t, ok)

			meta, err := store.Head(ctx, "segments/segment-000001.seg")
			require.NoError(t, err)
			assert.Equal(t, int64(len("hello")), meta.Size)

			require.NoError(t, store.Put(ctx, "manifest.json.tmp", []byte("v2")))
			require.NoError(t, store.Rename(ctx, "manifest.json.tmp", "manifest.json"))

			_, err = store.Get(ctx, "manifest.json.tmp")
			assert.ErrorIs(t, err, ErrNotFound, "rename must remove the source key")

			got, err = store.Get(ctx, "manifest.json")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))

			listed, err := store.List(ctx, "segments/", "")
			require.NoError(t, err)
			require.Len(t, listed.Objects, 1)
			assert.Equal(t, "segments/segment-000001.seg", listed.Objects[0].Key)

			require.NoError(t, store.Delete(ctx, "segments/segment-000001.seg"))
			ok, err = store.Exists(ctx, "segments/segment-000001.seg")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStorePutIsolatesCallerBuffer(t *testing.T) {
	store := NewMemoryStore(fixedClock(0))
	ctx := context.Background()

	buf := []byte("original")
	require.NoError(t, store.Put(ctx, "k", buf))
	buf[0] = 'X'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got), "Put must copy the caller's slice")
}

func TestListOrdersByKeyAndSupportsPagingToken(t *testing.T) {
	store := NewMemoryStore(fixedClock(0))
	ctx := context.Background()
	for _, k := range []string{"a", "c", "b"} {
		require.NoError(t, store.Put(ctx, k, []byte(k)))
	}

	page, err := store.List(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, page.Objects, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{page.Objects[0].Key, page.Objects[1].Key, page.Objects[2].Key})

	rest, err := store.List(ctx, "", "a")
	require.NoError(t, err)
	require.Len(t, rest.Objects, 2)
	assert.Equal(t, "b", rest.Objects[0].Key)
}
