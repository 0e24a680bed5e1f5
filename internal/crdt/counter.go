package crdt

import "encoding/json"

// GCounter is a grow-only counter: one monotone slot per replica, merged
// by entrywise max, exactly the shape
// ppriyankuu-godkv/internal/store/vector_clock.go uses for vector clocks
// (this is in fact the same lattice, applied to a counter instead of a
// causality marker).
type GCounter struct {
	counts map[string]uint64
}

func NewGCounter() *GCounter {
	return &GCounter{counts: make(map[string]uint64)}
}

// Increment adds delta to replica's own slot. Callers only ever
// increment their own replica's slot; incrementing another replica's
// slot would violate the "per-replica monotone" invariant.
func (g *GCounter) Increment(replica string, delta uint64) {
	g.counts[replica] += delta
}

// Value returns the sum of all replica slots.
func (g *GCounter) Value() uint64 {
	var sum uint64
	for _, v := range g.counts {
		sum += v
	}
	return sum
}

// Merge returns the entrywise-max union of g and other.
func (g *GCounter) Merge(other *GCounter) *GCounter {
	out := NewGCounter()
	for k, v := range g.counts {
		out.counts[k] = v
	}
	for k, v := range other.counts {
		if v > out.counts[k] {
			out.counts[k] = v
		}
	}
	return out
}

func (g *GCounter) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(g.counts))
	for k, v := range g.counts {
		out[k] = v
	}
	return out
}

// MarshalJSON exposes counts for wire transport (gossip, write-buffer
// segments); counts is otherwise unexported to keep Increment/Merge the
// only mutation paths.
func (g *GCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Snapshot())
}

func (g *GCounter) UnmarshalJSON(b []byte) error {
	var counts map[string]uint64
	if err := json.Unmarshal(b, &counts); err != nil {
		return err
	}
	if counts == nil {
		counts = make(map[string]uint64)
	}
	g.counts = counts
	return nil
}

// PNCounter pairs two GCounters (increments, decrements) so the counter
// can move in both directions while staying a join semilattice.
type PNCounter struct {
	inc *GCounter
	dec *GCounter
}

func NewPNCounter() *PNCounter {
	return &PNCounter{inc: NewGCounter(), dec: NewGCounter()}
}

// Add applies a signed delta from replica: positive deltas go to the
// increment counter, negative to the decrement counter (by magnitude).
func (p *PNCounter) Add(replica string, delta int64) {
	if delta >= 0 {
		p.inc.Increment(replica, uint64(delta))
	} else {
		p.dec.Increment(replica, uint64(-delta))
	}
}

func (p *PNCounter) Value() int64 {
	return int64(p.inc.Value()) - int64(p.dec.Value())
}

func (p *PNCounter) Merge(other *PNCounter) *PNCounter {
	return &PNCounter{inc: p.inc.Merge(other.inc), dec: p.dec.Merge(other.dec)}
}

type pnCounterWire struct {
	Inc *GCounter `json:"inc"`
	Dec *GCounter `json:"dec"`
}

func (p *PNCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(pnCounterWire{Inc: p.inc, Dec: p.dec})
}

func (p *PNCounter) UnmarshalJSON(b []byte) error {
	aux := pnCounterWire{Inc: NewGCounter(), Dec: NewGCounter()}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.inc, p.dec = aux.Inc, aux.Dec
	return nil
}
