package objectstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a Store backed by a plain map, guarded by a mutex —
// the substrate for unit tests and internal/dst, where a real
// filesystem or network call would break determinism.
type MemoryStore struct {
	mu    sync.Mutex
	clock Clock
	objs  map[string]memObject
}

type memObject struct {
	data        []byte
	createdAtMs int64
}

func NewMemoryStore(clock Clock) *MemoryStore {
	return &MemoryStore{clock: clock, objs: make(map[string]memObject)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), data...)
	m.objs[key] = memObject{data: cp, createdAtMs: m.clock()}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objs[key]
	return ok, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objs, key)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, prefix, token string) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objs {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
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

	// MemoryStore never paginates internally (it's only ever large
	// enough to matter in property tests, which don't exercise
	// pagination), so every call returns everything from the token on.
	objects := make([]ObjectMeta, 0, len(keys)-start)
	for _, k := range keys[start:] {
		obj := m.objs[k]
		objects = append(objects, ObjectMeta{
			Key:         k,
			Size:        int64(len(obj.data)),
			CreatedAtMs: obj.createdAtMs,
			ETag:        etagOf(obj.data),
		})
	}
	return ListResult{Objects: objects}, nil
}

func (m *MemoryStore) Rename(ctx context.Context, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[from]
	if !ok {
		return ErrNotFound
	}
	m.objs[to] = obj
	delete(m.objs, from)
	return nil
}

func (m *MemoryStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objs[key]
	if !ok {
		return ObjectMeta{}, ErrNotFound
	}
	return ObjectMeta{Key: key, Size: int64(len(obj.data)), CreatedAtMs: obj.createdAtMs, ETag: etagOf(obj.data)}, nil
}

func etagOf(data []byte) string {
	return fmt.Sprintf("%x", simpleChecksum(data))
}

// simpleChecksum is a cheap non-cryptographic fold, good enough for a
// test-only ETag that changes whenever the content does.
func simpleChecksum(data []byte) uint32 {
	var h uint32 = 2166136261
	for _, b := range data {
		h ^= uint32(b)
		h *= 16777619
	}
	return h
}
