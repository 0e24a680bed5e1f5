package writebuffer

import (
	"context"
	"fmt"

	"shardkv/internal/manifest"
	"shardkv/internal/objectstore"
	"shardkv/internal/replica"
)

// Checkpoint implements spec.md §4.7's periodic, optional compaction
// step: snapshot the replica state, write it as a checkpoint object, and
// compact the manifest so segments it supersedes stop being tracked (and
// are scheduled for best-effort deletion by the caller). Returns a zero
// CheckpointInfo when there was nothing to snapshot.
func Checkpoint(ctx context.Context, store objectstore.Store, mgr *manifest.Manager, checkpointPrefix string, repl *replica.State, nowMs int64) (manifest.CheckpointInfo, error) {
	deltas := repl.Snapshot()
	if len(deltas) == 0 {
		return manifest.CheckpointInfo{}, nil
	}

	blob, _, err := EncodeSegment(0, deltas)
	if err != nil {
		return manifest.CheckpointInfo{}, fmt.Errorf("writebuffer: encoding checkpoint: %w", err)
	}
	key := fmt.Sprintf("%s/checkpoint-%d.chk", checkpointPrefix, nowMs)
	if err := store.Put(ctx, key, blob); err != nil {
		return manifest.CheckpointInfo{}, fmt.Errorf("writebuffer: writing checkpoint %s: %w", key, err)
	}

	var info manifest.CheckpointInfo
	_, err = mgr.Update(ctx, func(m *manifest.Manifest) {
		lastID := m.NextSegmentID
		if lastID > 0 {
			lastID--
		}
		info = manifest.CheckpointInfo{
			Key:           key,
			TimestampMs:   nowMs,
			KeyCount:      uint64(len(deltas)),
			LastSegmentID: lastID,
		}
		m.CompactSegments(info)
	})
	if err != nil {
		return manifest.CheckpointInfo{}, fmt.Errorf("writebuffer: updating manifest with checkpoint: %w", err)
	}
	return info, nil
}

// DeleteCompactedSegments best-effort deletes every segment key no
// longer present in man.Segments but previously in prevSegmentKeys —
// the "schedule their deletion" half of compaction, kept a caller-driven
// step since deletion failures are non-fatal per §4.8's idempotent
// delete contract.
func DeleteCompactedSegments(ctx context.Context, store objectstore.Store, prevSegmentKeys, currentSegmentKeys map[string]bool) {
	for key := range prevSegmentKeys {
		if !currentSegmentKeys[key] {
			_ = store.Delete(ctx, key)
		}
	}
}
