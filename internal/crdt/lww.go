// Package crdt implements the lattice types shards replicate: a
// last-writer-wins register, grow-only and PN counters, an
// observed-remove set, and a distribution sketch. Every type exposes a
// Merge that is commutative, associative, and idempotent, matching
// spec.md §3's CRDT monotonicity invariant.
//
// The merge-by-dominance texture follows
// ppriyankuu-godkv/internal/store/vector_clock.go; the LWW tie-break
// rule follows original_source/src/stateright/replication.rs.
package crdt

// LwwRegister holds an optional string value with a (timestamp,
// replica) total order used to resolve concurrent writes. A tombstoned
// register still participates in merges (so a delete always wins over
// an older set) but reports no value.
type LwwRegister struct {
	Value     []byte
	Timestamp int64
	ReplicaID string
	Tombstone bool
}

// NewLwwRegister creates a register holding value, stamped at (ts, replica).
func NewLwwRegister(value []byte, ts int64, replica string) LwwRegister {
	return LwwRegister{Value: value, Timestamp: ts, ReplicaID: replica}
}

// Set returns a copy of r updated to value at (ts, replica).
func (r LwwRegister) Set(value []byte, ts int64, replica string) LwwRegister {
	return LwwRegister{Value: value, Timestamp: ts, ReplicaID: replica}
}

// Delete returns a tombstoned copy of r stamped at (ts, replica).
func (r LwwRegister) Delete(ts int64, replica string) LwwRegister {
	return LwwRegister{Timestamp: ts, ReplicaID: replica, Tombstone: true}
}

// dominates reports whether (ts, replica) beats (otherTs, otherReplica):
// later timestamp wins; ties break on replica id, the total order
// spec.md requires so that every replica resolves a tie identically.
func dominates(ts int64, replica string, otherTs int64, otherReplica string) bool {
	if ts != otherTs {
		return ts > otherTs
	}
	return replica > otherReplica
}

// Merge returns the dominant of r and other under the (timestamp,
// replica) order. Commutative, associative, and idempotent by
// construction: the comparison is a strict total order plus a
// deterministic tie-break.
func (r LwwRegister) Merge(other LwwRegister) LwwRegister {
	if dominates(other.Timestamp, other.ReplicaID, r.Timestamp, r.ReplicaID) {
		return other
	}
	return r
}

// Get returns the live value, or (nil, false) if tombstoned.
func (r LwwRegister) Get() ([]byte, bool) {
	if r.Tombstone {
		return nil, false
	}
	return r.Value, true
}
