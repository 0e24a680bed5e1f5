package replica

// VectorClock tracks, per replica id, the highest local_seq that
// replica's deltas have reached here. Only present on deltas in Causal
// mode, per spec.md §3's ReplicationDelta envelope.
type VectorClock map[string]uint64

func (vc VectorClock) Copy() VectorClock {
	out := make(VectorClock, len(vc))
	for k, v := range vc {
		out[k] = v
	}
	return out
}

// Dominates reports whether vc >= other entrywise (vc has seen
// everything other has seen). An incoming delta's vector clock must be
// dominated by the local clock before it is safe to apply in Causal
// mode (spec.md §4.4).
func (vc VectorClock) Dominates(other VectorClock) bool {
	for replica, seq := range other {
		if vc[replica] < seq {
			return false
		}
	}
	return true
}

func (vc VectorClock) Merge(other VectorClock) VectorClock {
	out := vc.Copy()
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

// ReplicationDelta is the wire/gossip envelope for one cell mutation,
// matching spec.md §3 exactly. VectorClock is nil in Eventual mode.
type ReplicationDelta struct {
	ID               string
	Key              string
	Cell             Cell
	OriginReplicaID  string
	LocalSeq         uint64
	Timestamp        int64
	VectorClock      VectorClock
}

// CellPayload exposes the delta's cell in a form suitable for encoding
// onto the wire (the gossip transport's job, not this package's); kept
// here so callers never have to reach into Cell's internals directly.
func (d ReplicationDelta) CellPayload() Cell { return d.Cell }

// lwwDelta is a convenience constructor for the common case of
// replicating a plain KV write.
func lwwDelta(id, key string, value []byte, ts int64, replica string, seq uint64, vc VectorClock) ReplicationDelta {
	return ReplicationDelta{
		ID:              id,
		Key:             key,
		Cell:            NewLWWCell(value, ts, replica),
		OriginReplicaID: replica,
		LocalSeq:        seq,
		Timestamp:       ts,
		VectorClock:     vc,
	}
}
