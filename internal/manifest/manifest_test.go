package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSegment(id uint64, records uint32, size uint64, minTS, maxTS int64) SegmentInfo {
	return SegmentInfo{ID: id, Key: "segments/segment.seg", RecordCount: records, SizeBytes: size, MinTimestamp: minTS, MaxTimestamp: maxTS}
}

func TestNewManifest(t *testing.T) {
	m := New("r1")
	assert.Equal(t, uint64(0), m.Version)
	assert.Equal(t, "r1", m.ReplicaID)
	assert.Empty(t, m.Segments)
	assert.Nil(t, m.Checkpoint)
	assert.Equal(t, uint64(0), m.NextSegmentID)
}

func TestAddSegmentBumpsVersion(t *testing.T) {
	m := New("r1")
	m.AddSegment(makeSegment(0, 100, 1000, 0, 100))
	assert.Len(t, m.Segments, 1)
	assert.Equal(t, uint64(1), m.Version)

	m.AddSegment(makeSegment(1, 200, 2000, 101, 200))
	assert.Len(t, m.Segments, 2)
	assert.Equal(t, uint64(2), m.Version)
}

func TestAddSegmentMaintainsOrder(t *testing.T) {
	m := New("r1")
	m.AddSegment(makeSegment(2, 100, 1000, 200, 300))
	m.AddSegment(makeSegment(0, 100, 1000, 0, 100))
	m.AddSegment(makeSegment(1, 100, 1000, 100, 200))

	require.Len(t, m.Segments, 3)
	assert.Equal(t, uint64(0), m.Segments[0].ID)
	assert.Equal(t, uint64(1), m.Segments[1].ID)
	assert.Equal(t, uint64(2), m.Segments[2].ID)
	require.NoError(t, m.VerifyInvariants())
}

func TestCompactSegments(t *testing.T) {
	m := New("r1")
	m.AddSegment(makeSegment(0, 100, 1000, 0, 100))
	m.AddSegment(makeSegment(1, 100, 1000, 100, 200))
	m.AddSegment(makeSegment(2, 100, 1000, 200, 300))

	checkpoint := CheckpointInfo{Key: "checkpoints/chk-1.chk", TimestampMs: 1000, KeyCount: 500, LastSegmentID: 1}
	m.CompactSegments(checkpoint)

	require.Len(t, m.Segments, 1)
	assert.Equal(t, uint64(2), m.Segments[0].ID)
	require.NotNil(t, m.Checkpoint)
	assert.Equal(t, checkpoint, *m.Checkpoint)
	require.NoError(t, m.VerifyInvariants())
}

func TestSegmentsAfterID(t *testing.T) {
	m := New("r1")
	m.AddSegment(makeSegment(0, 100, 1000, 0, 100))
	m.AddSegment(makeSegment(1, 100, 1000, 100, 200))
	m.AddSegment(makeSegment(2, 100, 1000, 200, 300))

	after := m.SegmentsAfterID(0)
	require.Len(t, after, 2)
	assert.Equal(t, uint64(1), after[0].ID)
	assert.Equal(t, uint64(2), after[1].ID)
}

func TestAllocateSegmentID(t *testing.T) {
	m := New("r1")
	assert.Equal(t, uint64(0), m.AllocateSegmentID())
	assert.Equal(t, uint64(1), m.AllocateSegmentID())
	assert.Equal(t, uint64(2), m.AllocateSegmentID())
	assert.Equal(t, uint64(3), m.NextSegmentID)
}

func TestTotalStats(t *testing.T) {
	m := New("r1")
	m.AddSegment(makeSegment(0, 100, 1000, 0, 100))
	m.AddSegment(makeSegment(1, 200, 2000, 100, 200))
	m.AddSegment(makeSegment(2, 300, 3000, 200, 300))

	assert.Equal(t, uint64(600), m.TotalRecordCount())
	assert.Equal(t, uint64(6000), m.TotalSizeBytes())
}

func TestVerifyInvariantsCatchesOutOfOrderSegments(t *testing.T) {
	m := New("r1")
	m.Segments = []SegmentInfo{makeSegment(1, 1, 1, 0, 1), makeSegment(0, 1, 1, 0, 1)}
	m.NextSegmentID = 2
	assert.Error(t, m.VerifyInvariants())
}

func TestVerifyInvariantsCatchesSegmentBelowCheckpoint(t *testing.T) {
	m := New("r1")
	m.Segments = []SegmentInfo{makeSegment(0, 1, 1, 0, 1)}
	m.NextSegmentID = 1
	m.Checkpoint = &CheckpointInfo{LastSegmentID: 0}
	assert.Error(t, m.VerifyInvariants())
}

func TestVerifyInvariantsCatchesInvertedTimestampRange(t *testing.T) {
	m := New("r1")
	m.Segments = []SegmentInfo{makeSegment(0, 1, 1, 100, 50)}
	m.NextSegmentID = 1
	assert.Error(t, m.VerifyInvariants())
}
