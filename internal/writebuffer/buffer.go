// Package writebuffer implements spec.md §4.6's write-buffer and
// segment writer: a bounded, backpressure-aware sink that batches
// replicated deltas and periodically flushes them into the object
// store as self-describing segment blobs, registering each with the
// manifest.
//
// The append/fsync-then-rotate discipline is grounded on
// ppriyankuu-godkv/internal/store/wal.go's WAL, generalized from a
// single local append-only file to manifest-tracked object-store
// segments that flush in batches instead of fsync-per-write.
package writebuffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shardkv/internal/manifest"
	"shardkv/internal/objectstore"
	"shardkv/internal/replica"
)

// Config mirrors spec.md §4.6's WriteBufferConfig exactly.
type Config struct {
	MaxBufferBytes             uint64
	MaxDeltasPerSegment        uint32
	BackpressureThresholdBytes uint64
	FlushInterval              time.Duration
}

// ErrBackpressure is returned by Push when accepting delta would push
// the buffer past BackpressureThresholdBytes. The caller already
// applied the mutation in memory; this only means persistence is
// falling behind.
var ErrBackpressure = errors.New("writebuffer: backpressure")

// Buffer accumulates deltas in memory until a flush trigger fires,
// then serializes them into one segment and registers it with the
// manifest.
type Buffer struct {
	mu sync.Mutex
	// flushMu serializes Flush calls end to end (Push's auto-trigger and
	// Tick's interval trigger can otherwise race to flush concurrently),
	// kept separate from mu so a flush's object-store I/O never blocks
	// concurrent Push calls from accumulating the next batch.
	flushMu sync.Mutex

	cfg           Config
	store         objectstore.Store
	manifest      *manifest.Manager
	segmentPrefix string
	log           *logrus.Entry

	deltas      []replica.ReplicationDelta
	sizeBytes   uint64
	lastFlushMs int64

	lagging bool // true once backpressure has been observed since the last successful flush
}

func NewBuffer(cfg Config, store objectstore.Store, mgr *manifest.Manager, segmentPrefix string, log *logrus.Logger) *Buffer {
	return &Buffer{
		cfg:           cfg,
		store:         store,
		manifest:      mgr,
		segmentPrefix: segmentPrefix,
		log:           log.WithField("component", "writebuffer"),
	}
}

// deltaSize is the same length-prefixed-JSON-record size EncodeSegment
// lays onto the wire, so the tracked buffer_size always equals the sum
// of serialized sizes of held deltas per spec.md §4.6's size invariant.
func deltaSize(d replica.ReplicationDelta) (uint64, error) {
	rec, err := json.Marshal(d)
	if err != nil {
		return 0, err
	}
	return uint64(4 + len(rec)), nil
}

// Push appends delta to the buffer, failing with ErrBackpressure
// instead of appending if doing so would exceed
// BackpressureThresholdBytes. A successful push may synchronously
// trigger a flush if MaxBufferBytes or MaxDeltasPerSegment is reached.
func (b *Buffer) Push(ctx context.Context, delta replica.ReplicationDelta) error {
	size, err := deltaSize(delta)
	if err != nil {
		return fmt.Errorf("writebuffer: sizing delta %s: %w", delta.ID, err)
	}

	b.mu.Lock()
	if b.sizeBytes+size > b.cfg.BackpressureThresholdBytes {
		b.lagging = true
		b.mu.Unlock()
		return ErrBackpressure
	}
	b.deltas = append(b.deltas, delta)
	b.sizeBytes += size
	trigger := b.sizeBytes >= b.cfg.MaxBufferBytes || uint32(len(b.deltas)) >= b.cfg.MaxDeltasPerSegment
	b.mu.Unlock()

	if trigger {
		return b.Flush(ctx)
	}
	return nil
}

// Tick checks the virtual-time flush trigger: if FlushInterval has
// elapsed since the last flush and the buffer is non-empty, flush now.
// Driven by internal/server's flusher task in production, and directly
// by internal/dst's scheduler under simulation.
func (b *Buffer) Tick(ctx context.Context, nowMs int64) error {
	b.mu.Lock()
	due := len(b.deltas) > 0 && nowMs-b.lastFlushMs >= b.cfg.FlushInterval.Milliseconds()
	b.mu.Unlock()
	if !due {
		return nil
	}
	return b.Flush(ctx)
}

// Flush serializes every buffered delta into one segment, following
// spec.md §4.6's five-step procedure. Steps 3 and 4 are not atomic
// together: a crash between them leaves an orphan segment object that
// Recover (recovery.go) reconciles on the next startup.
func (b *Buffer) Flush(ctx context.Context) error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.deltas) == 0 {
		b.mu.Unlock()
		return nil
	}
	// Copied rather than sliced: Push keeps appending to b.deltas's
	// backing array, unlocked, while this flush's I/O is in flight.
	deltas := append([]replica.ReplicationDelta(nil), b.deltas...)
	b.mu.Unlock()

	var id uint64
	if _, err := b.manifest.Update(ctx, func(m *manifest.Manifest) { id = m.AllocateSegmentID() }); err != nil {
		return fmt.Errorf("writebuffer: allocating segment id: %w", err)
	}

	blob, meta, err := EncodeSegment(id, deltas)
	if err != nil {
		return fmt.Errorf("writebuffer: encoding segment %d: %w", id, err)
	}
	key := SegmentKey(b.segmentPrefix, id)

	if err := b.store.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("writebuffer: writing segment %d: %w", id, err)
	}

	info := manifest.SegmentInfo{
		ID:           meta.ID,
		Key:          key,
		RecordCount:  meta.RecordCount,
		SizeBytes:    meta.SizeBytes,
		MinTimestamp: meta.MinTimestamp,
		MaxTimestamp: meta.MaxTimestamp,
	}
	if _, err := b.manifest.AddSegment(ctx, info); err != nil {
		// The segment object now exists without a manifest entry —
		// exactly the orphan case spec.md §4.6 documents; recovery
		// reconciles it rather than this call retrying blindly.
		return fmt.Errorf("writebuffer: registering segment %d: %w", id, err)
	}

	b.mu.Lock()
	b.deltas = b.deltas[len(deltas):]
	// lastFlushMs tracks virtual time via the flushed batch's own max
	// delta timestamp rather than an internally read clock, so Tick's
	// flush_interval check stays correct under both production and DST
	// time sources without this package needing its own Clock dependency.
	b.lastFlushMs = meta.MaxTimestamp
	var kept uint64
	for _, d := range b.deltas {
		sz, _ := deltaSize(d)
		kept += sz
	}
	b.sizeBytes = kept
	b.lagging = false
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{"segment_id": id, "records": meta.RecordCount, "bytes": meta.SizeBytes}).Info("flushed write-buffer segment")
	return nil
}

// SegmentKey renders the object store key for segment id under prefix,
// matching spec.md §6's `segments/segment-<zero-padded-id>.seg` layout.
func SegmentKey(prefix string, id uint64) string {
	return fmt.Sprintf("%s/segments/segment-%08d.seg", prefix, id)
}

// Lagging reports whether the buffer has rejected a push with
// ErrBackpressure since its last successful flush, for the
// durability-lag health signal spec.md §5 describes.
func (b *Buffer) Lagging() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lagging
}

// BufferedBytes reports the current tracked buffer size.
func (b *Buffer) BufferedBytes() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sizeBytes
}
