// Package manifest implements spec.md §3/§4.7's manifest: the single
// authoritative record of which segments exist and which checkpoint
// supersedes them, plus the atomic-update protocol and optimistic
// locking that keeps it consistent under concurrent flushers.
//
// The type shapes and invariants are grounded directly on
// original_source/src/streaming/manifest.rs's Manifest/SegmentInfo/
// CheckpointInfo/ManifestManager, translated from Rust's serde +
// async-trait ObjectStore into Go's encoding/json + the
// internal/objectstore.Store interface this repo already has.
package manifest

import (
	"fmt"
	"sort"
)

// SegmentInfo describes one flushed write-buffer segment.
type SegmentInfo struct {
	ID           uint64 `json:"id"`
	Key          string `json:"key"`
	RecordCount  uint32 `json:"record_count"`
	SizeBytes    uint64 `json:"size_bytes"`
	MinTimestamp int64  `json:"min_timestamp"`
	MaxTimestamp int64  `json:"max_timestamp"`
}

// CheckpointInfo describes the most recent checkpoint, which supersedes
// every segment up to and including LastSegmentID.
type CheckpointInfo struct {
	Key           string `json:"key"`
	TimestampMs   int64  `json:"timestamp_ms"`
	KeyCount      uint64 `json:"key_count"`
	LastSegmentID uint64 `json:"last_segment_id"`
}

// Manifest is the persisted metadata object at the well-known manifest
// key. version increments on every mutation so Manager.Update
// can detect concurrent writers.
type Manifest struct {
	Version       uint64          `json:"version"`
	ReplicaID     string          `json:"replica_id"`
	Segments      []SegmentInfo   `json:"segments"`
	Checkpoint    *CheckpointInfo `json:"checkpoint,omitempty"`
	NextSegmentID uint64          `json:"next_segment_id"`
}

// New returns an empty manifest for replicaID.
func New(replicaID string) *Manifest {
	return &Manifest{ReplicaID: replicaID}
}

// AddSegment inserts info keeping Segments sorted by ID, raises
// NextSegmentID above info.ID if it is not already, and bumps Version.
func (m *Manifest) AddSegment(info SegmentInfo) {
	pos := sort.Search(len(m.Segments), func(i int) bool { return m.Segments[i].ID >= info.ID })
	m.Segments = append(m.Segments, SegmentInfo{})
	copy(m.Segments[pos+1:], m.Segments[pos:])
	m.Segments[pos] = info
	if info.ID >= m.NextSegmentID {
		m.NextSegmentID = info.ID + 1
	}
	m.Version++
}

// CompactSegments drops every segment superseded by checkpoint and
// records it as the latest checkpoint, per spec.md §4.7's compaction
// step.
func (m *Manifest) CompactSegments(checkpoint CheckpointInfo) {
	kept := m.Segments[:0]
	for _, s := range m.Segments {
		if s.ID > checkpoint.LastSegmentID {
			kept = append(kept, s)
		}
	}
	m.Segments = kept
	m.Checkpoint = &checkpoint
	m.Version++
}

// SegmentsAfter returns every segment whose range can contain data at
// or after timestamp, for recovery replay.
func (m *Manifest) SegmentsAfter(timestamp int64) []SegmentInfo {
	var out []SegmentInfo
	for _, s := range m.Segments {
		if s.MaxTimestamp >= timestamp {
			out = append(out, s)
		}
	}
	return out
}

// SegmentsAfterID returns every segment with ID strictly greater than
// afterID, in ascending order — the slice recovery replays in order,
// per spec.md §4.7 step 3.
func (m *Manifest) SegmentsAfterID(afterID uint64) []SegmentInfo {
	var out []SegmentInfo
	for _, s := range m.Segments {
		if s.ID > afterID {
			out = append(out, s)
		}
	}
	return out
}

// AllocateSegmentID returns the next monotone segment id and advances
// the counter.
func (m *Manifest) AllocateSegmentID() uint64 {
	id := m.NextSegmentID
	m.NextSegmentID++
	return id
}

// TotalSizeBytes sums every tracked segment's size.
func (m *Manifest) TotalSizeBytes() uint64 {
	var total uint64
	for _, s := range m.Segments {
		total += s.SizeBytes
	}
	return total
}

// TotalRecordCount sums every tracked segment's record count.
func (m *Manifest) TotalRecordCount() uint64 {
	var total uint64
	for _, s := range m.Segments {
		total += uint64(s.RecordCount)
	}
	return total
}

// VerifyInvariants checks the four invariants spec.md §3 lists for a
// manifest: ascending-sorted-by-id segments, next_segment_id above every
// tracked id, no segment at or below the checkpoint's last_segment_id,
// and min_timestamp <= max_timestamp per segment.
func (m *Manifest) VerifyInvariants() error {
	for i := 1; i < len(m.Segments); i++ {
		if m.Segments[i-1].ID >= m.Segments[i].ID {
			return fmt.Errorf("manifest: segments not strictly ascending at index %d (ids %d, %d)", i, m.Segments[i-1].ID, m.Segments[i].ID)
		}
	}
	if len(m.Segments) > 0 {
		last := m.Segments[len(m.Segments)-1]
		if m.NextSegmentID <= last.ID {
			return fmt.Errorf("manifest: next_segment_id %d must exceed max segment id %d", m.NextSegmentID, last.ID)
		}
	}
	if m.Checkpoint != nil {
		for _, s := range m.Segments {
			if s.ID <= m.Checkpoint.LastSegmentID {
				return fmt.Errorf("manifest: segment %d not superseded by checkpoint at %d", s.ID, m.Checkpoint.LastSegmentID)
			}
		}
	}
	for _, s := range m.Segments {
		if s.MinTimestamp > s.MaxTimestamp {
			return fmt.Errorf("manifest: segment %d has min_timestamp %d > max_timestamp %d", s.ID, s.MinTimestamp, s.MaxTimestamp)
		}
	}
	return nil
}
