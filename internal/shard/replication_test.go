package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/command"
	"shardkv/internal/replica"
	"shardkv/internal/resp"
)

// TestLocalWriteMintsDeltaOnAttachedState checks a SET replicated
// through the actor layer produces an outbox delta carrying the same
// value a direct GET would return.
func TestLocalWriteMintsDeltaOnAttachedState(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	state := replica.NewState("r1", replica.Eventual)
	r.AttachReplication(state, "r1")
	outbox := state.Outbox()

	send(t, r, 0, "SET", "k", "v")

	select {
	case delta := <-outbox:
		require.Equal(t, "k", delta.Key)
		require.Equal(t, replica.CellLWW, delta.Cell.Kind)
		raw, ok := delta.Cell.LWW.Get()
		require.True(t, ok)
		v, err := command.DecodeValue(raw)
		require.NoError(t, err)
		assert.Equal(t, "v", string(v.Str))
	default:
		t.Fatal("expected a delta on the outbox after SET")
	}
}

// TestDeleteMintsTombstone checks DEL produces a tombstoned cell.
func TestDeleteMintsTombstone(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	state := replica.NewState("r1", replica.Eventual)
	r.AttachReplication(state, "r1")
	outbox := state.Outbox()

	send(t, r, 0, "SET", "k", "v")
	<-outbox // drain the SET delta

	send(t, r, 0, "DEL", "k")
	delta := <-outbox
	require.Equal(t, "k", delta.Key)
	_, ok := delta.Cell.LWW.Get()
	assert.False(t, ok, "deleted key must mint a tombstoned cell")
}

// TestApplyRemoteDeltaLandsInOwningShard simulates a two-replica setup:
// replica A mints a delta for a SET, which is fed directly into
// replica B's Router.ApplyRemoteDelta, and B's live table must then
// reflect the write.
func TestApplyRemoteDeltaLandsInOwningShard(t *testing.T) {
	rA := NewRouter()
	defer rA.Stop()
	stateA := replica.NewState("a", replica.Eventual)
	rA.AttachReplication(stateA, "a")
	outboxA := stateA.Outbox()

	rB := NewRouter()
	defer rB.Stop()
	stateB := replica.NewState("b", replica.Eventual)
	rB.AttachReplication(stateB, "b")

	send(t, rA, 0, "SET", "shared-key", "hello")
	delta := <-outboxA

	rB.ApplyRemoteDelta(delta)

	got := send(t, rB, 0, "GET", "shared-key")
	require.Equal(t, resp.Bulk([]byte("hello")), got)
}

// TestApplyRemoteDeltaTombstoneDeletesLocally checks a replicated
// delete removes the key from the receiving replica's live table too.
func TestApplyRemoteDeltaTombstoneDeletesLocally(t *testing.T) {
	rA := NewRouter()
	defer rA.Stop()
	stateA := replica.NewState("a", replica.Eventual)
	rA.AttachReplication(stateA, "a")
	outboxA := stateA.Outbox()

	rB := NewRouter()
	defer rB.Stop()
	stateB := replica.NewState("b", replica.Eventual)
	rB.AttachReplication(stateB, "b")

	send(t, rA, 0, "SET", "shared-key", "hello")
	rB.ApplyRemoteDelta(<-outboxA)
	require.Equal(t, resp.Bulk([]byte("hello")), send(t, rB, 0, "GET", "shared-key"))

	send(t, rA, 0, "DEL", "shared-key")
	rB.ApplyRemoteDelta(<-outboxA)
	assert.True(t, send(t, rB, 0, "GET", "shared-key").IsNil())
}

// TestApplyRemoteDeltaConcurrentWriteLWWResolvesByTimestamp exercises
// the lattice's documented tie-break: the later timestamp wins
// regardless of delivery order.
func TestApplyRemoteDeltaConcurrentWriteLWWResolvesByTimestamp(t *testing.T) {
	rA := NewRouter()
	defer rA.Stop()
	stateA := replica.NewState("a", replica.Eventual)
	rA.AttachReplication(stateA, "a")
	outboxA := stateA.Outbox()

	rB := NewRouter()
	defer rB.Stop()
	stateB := replica.NewState("b", replica.Eventual)
	rB.AttachReplication(stateB, "b")
	outboxB := stateB.Outbox()

	send(t, rA, 100, "SET", "k", "from-a")
	deltaA := <-outboxA
	send(t, rB, 50, "SET", "k", "from-b") // earlier timestamp, loses
	deltaB := <-outboxB

	rA.ApplyRemoteDelta(deltaB)
	rB.ApplyRemoteDelta(deltaA)

	assert.Equal(t, resp.Bulk([]byte("from-a")), send(t, rA, 0, "GET", "k"))
	assert.Equal(t, resp.Bulk([]byte("from-a")), send(t, rB, 0, "GET", "k"))
}
