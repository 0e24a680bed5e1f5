// Package replica holds each shard's per-key CRDT replica state: the
// table a local write mints a ReplicationDelta from, and the merge path
// an incoming remote delta is applied through. It sits alongside, but
// separate from, internal/command's live data table — spec.md §4.4
// describes this as "a mapping key -> CRDT cell distinct from, but
// indexed by the same keys as, the live key table."
//
// Grounded on ppriyankuu-godkv/internal/store/store.go's ApplyRemote
// (vector-clock compare -> accept/reject), generalized from one
// string-only Value to the full lattice-typed Cell union described in
// original_source/src/stateright/replication.rs.
package replica

import (
	"fmt"

	"shardkv/internal/crdt"
)

// CellKind tags which lattice type a Cell wraps, mirroring spec.md §3's
// CRDT cell variants.
type CellKind int

const (
	CellLWW CellKind = iota
	CellGCounter
	CellPNCounter
	CellOrSet
	CellDistribution
)

func (k CellKind) String() string {
	switch k {
	case CellLWW:
		return "lww"
	case CellGCounter:
		return "gcounter"
	case CellPNCounter:
		return "pncounter"
	case CellOrSet:
		return "orset"
	case CellDistribution:
		return "distribution"
	default:
		return "unknown"
	}
}

// Cell is the tagged union one replicated key's state is stored as.
// Only the field matching Kind is populated.
type Cell struct {
	Kind  CellKind
	LWW   crdt.LwwRegister
	GC    *crdt.GCounter
	PNC   *crdt.PNCounter
	OrSet *crdt.OrSet
	Dist  *crdt.Distribution
}

// Merge combines two cells of the same kind. Merging cells of different
// kinds is a programmer error (a key's cell kind never changes once
// created in this repo — the metric command family validates kind
// consistency before it ever calls Merge) and panics rather than
// silently picking a side.
func (c Cell) Merge(other Cell) Cell {
	if c.Kind != other.Kind {
		panic(fmt.Sprintf("replica: cannot merge cell kinds %s and %s", c.Kind, other.Kind))
	}
	switch c.Kind {
	case CellLWW:
		return Cell{Kind: CellLWW, LWW: c.LWW.Merge(other.LWW)}
	case CellGCounter:
		return Cell{Kind: CellGCounter, GC: c.GC.Merge(other.GC)}
	case CellPNCounter:
		return Cell{Kind: CellPNCounter, PNC: c.PNC.Merge(other.PNC)}
	case CellOrSet:
		return Cell{Kind: CellOrSet, OrSet: c.OrSet.Merge(other.OrSet)}
	case CellDistribution:
		return Cell{Kind: CellDistribution, Dist: c.Dist.Merge(other.Dist)}
	default:
		panic("replica: unknown cell kind")
	}
}

func NewLWWCell(value []byte, ts int64, replica string) Cell {
	return Cell{Kind: CellLWW, LWW: crdt.NewLwwRegister(value, ts, replica)}
}

// NewLWWTombstoneCell builds a deleted LWW cell, for replicating a
// DEL/UNLINK/expiry the same way a live write is replicated: as a cell
// whose (timestamp, replica) still participates in merges, so a delete
// can beat or lose to a concurrent write under the lattice's normal tie-
// break rule instead of needing special-case delete-wins semantics.
func NewLWWTombstoneCell(ts int64, replica string) Cell {
	var empty crdt.LwwRegister
	return Cell{Kind: CellLWW, LWW: empty.Delete(ts, replica)}
}

func NewGCounterCell() Cell {
	return Cell{Kind: CellGCounter, GC: crdt.NewGCounter()}
}

func NewPNCounterCell() Cell {
	return Cell{Kind: CellPNCounter, PNC: crdt.NewPNCounter()}
}

func NewOrSetCell() Cell {
	return Cell{Kind: CellOrSet, OrSet: crdt.NewOrSet()}
}

func NewDistributionCell() Cell {
	return Cell{Kind: CellDistribution, Dist: crdt.NewDistribution()}
}
