package writebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/replica"
)

func sampleDeltas() []replica.ReplicationDelta {
	return []replica.ReplicationDelta{
		{ID: "a", Key: "k1", Cell: replica.NewLWWCell([]byte("v1"), 10, "r1"), OriginReplicaID: "r1", LocalSeq: 1, Timestamp: 10},
		{ID: "b", Key: "k2", Cell: replica.NewLWWCell([]byte("v2"), 30, "r1"), OriginReplicaID: "r1", LocalSeq: 2, Timestamp: 30},
		{ID: "c", Key: "k3", Cell: replica.NewLWWCell([]byte("v3"), 20, "r1"), OriginReplicaID: "r1", LocalSeq: 3, Timestamp: 20},
	}
}

func TestEncodeDecodeSegmentRoundTrips(t *testing.T) {
	deltas := sampleDeltas()
	blob, meta, err := EncodeSegment(7, deltas)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), meta.ID)
	assert.Equal(t, uint32(3), meta.RecordCount)
	assert.Equal(t, int64(10), meta.MinTimestamp)
	assert.Equal(t, int64(30), meta.MaxTimestamp)
	assert.Equal(t, uint64(len(blob)), meta.SizeBytes)

	decoded, decodedMeta, err := DecodeSegment(blob)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, decodedMeta.ID)
	require.Len(t, decoded, 3)
	for i, d := range deltas {
		assert.Equal(t, d.Key, decoded[i].Key)
		assert.Equal(t, d.Timestamp, decoded[i].Timestamp)
		val, _ := decoded[i].Cell.LWW.Get()
		wantVal, _ := d.Cell.LWW.Get()
		assert.Equal(t, wantVal, val)
	}
}

func TestDecodeSegmentDetectsCorruption(t *testing.T) {
	blob, _, err := EncodeSegment(1, sampleDeltas())
	require.NoError(t, err)

	corrupted := append([]byte(nil), blob...)
	corrupted[10] ^= 0xFF

	_, _, err = DecodeSegment(corrupted)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeSegmentRejectsTruncatedBlob(t *testing.T) {
	blob, _, err := EncodeSegment(1, sampleDeltas())
	require.NoError(t, err)

	_, _, err = DecodeSegment(blob[:5])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestEncodeSegmentRejectsEmptyBatch(t *testing.T) {
	_, _, err := EncodeSegment(1, nil)
	assert.Error(t, err)
}
