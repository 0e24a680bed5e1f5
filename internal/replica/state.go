package replica

import (
	"sync"

	"github.com/google/uuid"
)

// Mode selects how incoming deltas are ordered before application,
// per spec.md §4.4.
type Mode int

const (
	Eventual Mode = iota
	Causal
)

// causalQueueCap bounds the per-origin-replica backlog of deltas
// waiting on a causal dependency that hasn't arrived yet. Spec.md §9
// flags this as implementer-defined; DESIGN.md records the decision:
// bounded queue, drop-oldest on overflow, with drops counted per origin.
const causalQueueCap = 1024

// State is one shard's replica table: key -> CRDT cell, plus the
// bookkeeping needed to mint outgoing deltas and admit incoming ones.
type State struct {
	mu sync.Mutex

	replicaID string
	mode      Mode

	cells map[string]Cell
	clock VectorClock
	seq   uint64

	// pending holds causal-mode deltas buffered per origin replica,
	// oldest first, waiting for their vector-clock dependency to be
	// satisfied locally.
	pending map[string][]ReplicationDelta

	dropped map[string]uint64 // overflow-drop counts per origin, for MINFO/metrics

	outbox chan ReplicationDelta
}

// outboxCap bounds the gossip notification channel. A slow gossiper
// drops the oldest pending notification rather than blocking the shard
// actor that owns this State — convergence still happens at the next
// digest exchange even if a push notification is lost.
const outboxCap = 4096

func NewState(replicaID string, mode Mode) *State {
	return &State{
		replicaID: replicaID,
		mode:      mode,
		cells:     make(map[string]Cell),
		clock:     make(VectorClock),
		pending:   make(map[string][]ReplicationDelta),
		dropped:   make(map[string]uint64),
	}
}

// Get returns the live cell for key, if any.
func (s *State) Get(key string) (Cell, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[key]
	return c, ok
}

// MintDelta records a local mutation of key's cell (cell is the
// post-merge value the caller already computed, e.g. the executor
// applying a SET) and returns the ReplicationDelta to fan out via
// gossip. The local clock advances monotonically per spec.md's
// "per-replica logical clock is monotone non-decreasing" invariant.
func (s *State) MintDelta(key string, cell Cell, now int64) ReplicationDelta {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.cells[key]; ok {
		cell = existing.Merge(cell)
	}
	s.cells[key] = cell
	s.seq++
	s.clock[s.replicaID] = s.seq

	var vc VectorClock
	if s.mode == Causal {
		vc = s.clock.Copy()
	}
	delta := ReplicationDelta{
		ID:              uuid.NewString(),
		Key:             key,
		Cell:            cell,
		OriginReplicaID: s.replicaID,
		LocalSeq:        s.seq,
		Timestamp:       now,
		VectorClock:     vc,
	}
	s.publish(delta)
	return delta
}

// ApplyRemote admits an incoming delta from gossip. In Eventual mode the
// cell merges immediately regardless of delivery order (the lattice
// guarantees correctness). In Causal mode the delta is held in the
// per-origin pending queue until its vector clock is dominated by what
// this replica has already observed, then applied — along with any
// now-unblocked deltas queued behind it.
func (s *State) ApplyRemote(delta ReplicationDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == Eventual || delta.VectorClock == nil {
		s.applyLocked(delta)
		return
	}
	s.enqueuePending(delta)
	s.drainPendingLocked(delta.OriginReplicaID)
}

func (s *State) applyLocked(delta ReplicationDelta) {
	if existing, ok := s.cells[delta.Key]; ok {
		s.cells[delta.Key] = existing.Merge(delta.Cell)
	} else {
		s.cells[delta.Key] = delta.Cell
	}
	s.clock = s.clock.Merge(delta.VectorClock)
	if delta.OriginReplicaID != "" && delta.LocalSeq > s.clock[delta.OriginReplicaID] {
		s.clock[delta.OriginReplicaID] = delta.LocalSeq
	}
	// Re-publish so a gossiper forwards rumors it received from one peer
	// on to others, not just its own local writes — this is what lets
	// anti-entropy converge across a cluster larger than the fan-out of
	// any single tick instead of relying on all-pairs exchange.
	s.publish(delta)
}

// publish best-effort notifies the outbox of delta. Called with s.mu
// held; only touches the channel, never re-acquires the lock.
func (s *State) publish(delta ReplicationDelta) {
	if s.outbox == nil {
		return
	}
	select {
	case s.outbox <- delta:
	default:
	}
}

// Outbox returns the channel internal/gossip drains to learn about
// deltas as they're minted or admitted, lazily creating it on first
// use so State stays usable without a gossiper attached (e.g. in
// internal/command tests). A Gossiper calls this once at construction,
// before any delta can be minted, so publish never has to discard a
// notification because the channel didn't exist yet.
func (s *State) Outbox() <-chan ReplicationDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outbox == nil {
		s.outbox = make(chan ReplicationDelta, outboxCap)
	}
	return s.outbox
}

// Cells returns a shallow copy of the live key -> cell table, for
// digest computation and full-state sync responses.
func (s *State) Cells() map[string]Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Cell, len(s.cells))
	for k, v := range s.cells {
		out[k] = v
	}
	return out
}

// Snapshot renders the current cell table as a slice of deltas
// suitable for a full-state SyncRequest reply: each carries this
// replica's id and the local clock's view of it, but no fresh
// timestamp (it restates existing state, it doesn't mint new state).
func (s *State) Snapshot() []ReplicationDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReplicationDelta, 0, len(s.cells))
	for key, cell := range s.cells {
		out = append(out, ReplicationDelta{
			ID:              uuid.NewString(),
			Key:             key,
			Cell:            cell,
			OriginReplicaID: s.replicaID,
			LocalSeq:        s.clock[s.replicaID],
			VectorClock:     s.clock.Copy(),
		})
	}
	return out
}

// ReplicaID returns the id this State was constructed with.
func (s *State) ReplicaID() string { return s.replicaID }

func (s *State) enqueuePending(delta ReplicationDelta) {
	q := s.pending[delta.OriginReplicaID]
	q = append(q, delta)
	if len(q) > causalQueueCap {
		// Drop-oldest on overflow. No log line is written for a drop,
		// here or in internal/gossip; the drop is only counted per
		// origin, surfaced through DroppedCount.
		q = q[1:]
		s.dropped[delta.OriginReplicaID]++
	}
	s.pending[delta.OriginReplicaID] = q
}

func (s *State) drainPendingLocked(origin string) {
	for {
		q := s.pending[origin]
		if len(q) == 0 {
			return
		}
		head := q[0]
		if !s.clock.Dominates(dependenciesOf(head.VectorClock, origin, head.LocalSeq)) {
			return
		}
		s.applyLocked(head)
		s.pending[origin] = q[1:]
	}
}

// dependenciesOf returns the vector clock a delta depends on, excluding
// its own origin/seq entry (a delta always trivially satisfies its own
// causal position once applied — the dependency check is against
// everything *else* it observed).
func dependenciesOf(vc VectorClock, origin string, seq uint64) VectorClock {
	out := vc.Copy()
	if out[origin] == seq {
		delete(out, origin)
	}
	return out
}

// PendingCount reports the total buffered-and-waiting deltas across all
// origins, for health/metrics introspection.
func (s *State) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.pending {
		n += len(q)
	}
	return n
}

// DroppedCount reports overflow drops per origin replica.
func (s *State) DroppedCount() map[string]uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]uint64, len(s.dropped))
	for k, v := range s.dropped {
		out[k] = v
	}
	return out
}
