package replica

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintDeltaEventual(t *testing.T) {
	s := NewState("r1", Eventual)
	d := s.MintDelta("k", NewLWWCell([]byte("v"), 100, "r1"), 100)
	assert.Equal(t, "k", d.Key)
	assert.Nil(t, d.VectorClock)
	cell, ok := s.Get("k")
	require.True(t, ok)
	v, _ := cell.LWW.Get()
	assert.Equal(t, "v", string(v))
}

func TestApplyRemoteEventualOutOfOrder(t *testing.T) {
	s := NewState("r1", Eventual)
	older := ReplicationDelta{Key: "k", Cell: NewLWWCell([]byte("old"), 1, "r2"), OriginReplicaID: "r2", LocalSeq: 1, Timestamp: 1}
	newer := ReplicationDelta{Key: "k", Cell: NewLWWCell([]byte("new"), 2, "r2"), OriginReplicaID: "r2", LocalSeq: 2, Timestamp: 2}

	// Deliver out of order; LWW still resolves to the higher timestamp.
	s.ApplyRemote(newer)
	s.ApplyRemote(older)

	cell, ok := s.Get("k")
	require.True(t, ok)
	v, _ := cell.LWW.Get()
	assert.Equal(t, "new", string(v))
}

func TestApplyRemoteCausalBuffersUntilDependencyArrives(t *testing.T) {
	s := NewState("r1", Causal)
	first := ReplicationDelta{
		Key: "a", Cell: NewLWWCell([]byte("a1"), 1, "r2"),
		OriginReplicaID: "r2", LocalSeq: 1, Timestamp: 1,
		VectorClock: VectorClock{"r2": 1},
	}
	second := ReplicationDelta{
		Key: "b", Cell: NewLWWCell([]byte("b1"), 2, "r2"),
		OriginReplicaID: "r2", LocalSeq: 2, Timestamp: 2,
		VectorClock: VectorClock{"r2": 2},
	}

	// second depends on first (same origin, seq 2 after seq 1); delivered first.
	s.ApplyRemote(second)
	_, ok := s.Get("b")
	assert.False(t, ok, "delta with unmet causal dependency must not apply yet")

	s.ApplyRemote(first)
	_, ok = s.Get("a")
	assert.True(t, ok)
	_, ok = s.Get("b")
	assert.True(t, ok, "buffered delta must drain once its dependency is satisfied")
}

func TestCausalQueueOverflowDropsOldest(t *testing.T) {
	s := NewState("r1", Causal)
	// Never deliver seq 1, so every delta from r2 stays pending and the
	// queue grows until it overflows.
	for i := uint64(2); i < 2+causalQueueCap+10; i++ {
		s.ApplyRemote(ReplicationDelta{
			Key: "x", Cell: NewLWWCell([]byte("v"), int64(i), "r2"),
			OriginReplicaID: "r2", LocalSeq: i, Timestamp: int64(i),
			VectorClock: VectorClock{"r2": i},
		})
	}
	assert.LessOrEqual(t, s.PendingCount(), causalQueueCap)
	assert.Greater(t, s.DroppedCount()["r2"], uint64(0))
}

func TestGCounterCellMerge(t *testing.T) {
	s := NewState("r1", Eventual)
	c := NewGCounterCell()
	c.GC.Increment("r1", 5)
	s.MintDelta("counter", c, 0)

	remote := NewGCounterCell()
	remote.GC.Increment("r2", 7)
	s.ApplyRemote(ReplicationDelta{Key: "counter", Cell: remote, OriginReplicaID: "r2", LocalSeq: 1, Timestamp: 1})

	cell, ok := s.Get("counter")
	require.True(t, ok)
	assert.EqualValues(t, 12, cell.GC.Value())
}
