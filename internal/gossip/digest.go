package gossip

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"

	"shardkv/internal/crdt"
	"shardkv/internal/replica"
)

// ComputeDigest folds a replica's full cell table into one 64-bit value,
// per spec.md §4.5: "XOR over h(key) ⊕ h(cell_bytes)" — fold order
// independent of map traversal order since XOR is commutative and
// associative, so two replicas holding the same state always agree on
// the digest regardless of Go's randomized map iteration.
func ComputeDigest(cells map[string]replica.Cell) uint64 {
	var acc uint64
	for key, cell := range cells {
		acc ^= xxhash.Sum64String(key) ^ cellDigest(cell)
	}
	return acc
}

func cellDigest(c replica.Cell) uint64 {
	switch c.Kind {
	case replica.CellLWW:
		return lwwDigest(c.LWW)
	case replica.CellGCounter:
		return gcounterDigest(c.GC)
	case replica.CellPNCounter:
		return pncounterDigest(c.PNC)
	case replica.CellOrSet:
		return orsetDigest(c.OrSet)
	case replica.CellDistribution:
		return distributionDigest(c.Dist)
	default:
		return 0
	}
}

func lwwDigest(r crdt.LwwRegister) uint64 {
	h := xxhash.New()
	h.Write(r.Value)
	writeUint64(h, uint64(r.Timestamp))
	h.WriteString(r.ReplicaID)
	if r.Tombstone {
		h.Write([]byte{1})
	}
	return h.Sum64()
}

// gcounterDigest folds per-replica slots with XOR so the result doesn't
// depend on map iteration order.
func gcounterDigest(g *crdt.GCounter) uint64 {
	var acc uint64
	for replicaID, count := range g.Snapshot() {
		acc ^= xxhash.Sum64String(replicaID) ^ count
	}
	return acc
}

func pncounterDigest(p *crdt.PNCounter) uint64 {
	// PNCounter exposes no per-replica slots, so the digest hashes only
	// its net Value(). Two replicas whose inc/dec slots differ but net to
	// the same value produce the same digest for this cell and are not
	// reported as divergent by it.
	return uint64(p.Value())
}

func orsetDigest(s *crdt.OrSet) uint64 {
	members := s.Members()
	sort.Strings(members)
	h := xxhash.New()
	for _, m := range members {
		h.WriteString(m)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

func distributionDigest(d *crdt.Distribution) uint64 {
	h := xxhash.New()
	writeUint64(h, d.Count)
	writeFloat64(h, d.Sum)
	writeFloat64(h, d.Min)
	writeFloat64(h, d.Max)
	return h.Sum64()
}

func writeUint64(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeFloat64(h *xxhash.Digest, v float64) {
	writeUint64(h, math.Float64bits(v))
}
