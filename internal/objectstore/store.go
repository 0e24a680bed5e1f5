// Package objectstore provides the pluggable persistence backend spec.md
// §4.8 calls out as genuinely open-ended: put/get/exists/delete/list/
// rename/head against whatever blob store backs a deployment. Three
// implementations satisfy Store — in-memory (tests/DST), local
// filesystem (grounded on
// ppriyankuu-godkv/internal/store/snapshot.go's temp-file-then-rename
// pattern), and a hand-rolled S3-compatible client — so
// internal/writebuffer and internal/manifest never know which one they're
// talking to.
package objectstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Head when key does not exist.
// Delete treats it as success rather than an error, per §4.8's
// "delete of a non-existent key is not an error."
var ErrNotFound = errors.New("objectstore: not found")

// ObjectMeta describes a stored object without fetching its bytes.
type ObjectMeta struct {
	Key         string
	Size        int64
	CreatedAtMs int64
	ETag        string
}

// ListResult is one page of a List call. NextToken is empty once the
// listing is exhausted.
type ListResult struct {
	Objects   []ObjectMeta
	NextToken string
}

// Clock returns the current time in milliseconds. Production wiring
// passes time.Now().UnixNano()/1e6; DST wiring passes the virtual
// clock, per spec.md §4.9's "no wall-clock reads on the DST code path."
type Clock func() int64

// Store is the capability set every backend implements. put is
// all-or-nothing at the key; rename makes the destination visible
// before (or atomically with) the source becoming invisible; list is
// eventually complete absent concurrent mutation, per spec.md §4.8.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, token string) (ListResult, error)
	Rename(ctx context.Context, from, to string) error
	Head(ctx context.Context, key string) (ObjectMeta, error)
}
