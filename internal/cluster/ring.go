// Package cluster tracks the static peer list (spec.md §6 PEERS) and
// picks extra replication targets for hot keys (§4.5 "hot keys may
// raise their replication fan-out or trigger extra read replicas").
//
// It is not the shard-ownership path: a key's owning shard is always
// hash(key) mod NumShards (internal/shard.HashKey), never a consistent
// hash ring. The ring here is used only to turn a hot key into a stable
// subset of peer replica_ids that internal/metrics annotates onto an
// MHOTKEYS reply — an optimization hint, not a correctness requirement.
package cluster

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// defaultVnodes is how many ring positions one physical node occupies
// when the caller doesn't specify (cfg.VirtualNodesPerPhysical <= 0):
// enough to spread fanout selection evenly across a handful of peers
// without the ring itself becoming a memory-relevant structure.
const defaultVnodes = 150

// Ring is a virtual-node consistent hash ring: each physical node is
// hashed onto the ring at `vnodes` distinct positions so that picking
// the nodes responsible for a key only ever touches a stable, evenly
// distributed subset of peers — the same property that makes consistent
// hashing preferable to hash(key) mod N when the peer set can shrink or
// grow, even though this repo's own shard-ownership path never needs
// that property (NumShards is fixed at 16, never resized).
type Ring struct {
	mu     sync.RWMutex
	vnodes int
	ring   map[uint32]string // ring position -> nodeID
	sorted []uint32          // ring positions, sorted, for binary search
}

// NewRing builds an empty ring with vnodes virtual positions per
// physical node (defaultVnodes if vnodes <= 0).
func NewRing(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = defaultVnodes
	}
	return &Ring{
		vnodes: vnodes,
		ring:   make(map[uint32]string),
	}
}

// AddNode places nodeID's virtual nodes on the ring.
func (r *Ring) AddNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.vnodes; i++ {
		pos := r.hash(fmt.Sprintf("%s#%d", nodeID, i))
		r.ring[pos] = nodeID
	}
	r.rebuild()
}

// RemoveNode drops every virtual node belonging to nodeID.
func (r *Ring) RemoveNode(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < r.vnodes; i++ {
		pos := r.hash(fmt.Sprintf("%s#%d", nodeID, i))
		delete(r.ring, pos)
	}
	r.rebuild()
}

// GetNodes returns up to n distinct physical nodes for key, walking
// clockwise from key's ring position and skipping virtual nodes that
// belong to a physical node already collected.
func (r *Ring) GetNodes(key string, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.sorted) == 0 {
		return nil
	}

	pos := r.hash(key)
	idx := r.search(pos)

	seen := make(map[string]bool)
	var nodes []string
	for i := 0; i < len(r.sorted) && len(nodes) < n; i++ {
		vpos := r.sorted[(idx+i)%len(r.sorted)]
		nodeID := r.ring[vpos]
		if !seen[nodeID] {
			seen[nodeID] = true
			nodes = append(nodes, nodeID)
		}
	}
	return nodes
}

// Nodes returns every distinct physical node currently on the ring,
// sorted by ID.
func (r *Ring) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var nodes []string
	for _, id := range r.ring {
		if !seen[id] {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	sort.Strings(nodes)
	return nodes
}

// NodeCount reports the number of physical nodes, not virtual nodes.
func (r *Ring) NodeCount() int {
	return len(r.Nodes())
}

// hash folds s down to a 32-bit ring position via the low 4 bytes of a
// SHA256 digest — collision-resistant enough for vnode placement, and
// the same primitive internal/objectstore's S3 SigV4 signer already
// pulls in, so no extra hashing dependency is needed here.
func (r *Ring) hash(s string) uint32 {
	h := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(h[:4])
}

// rebuild recomputes the sorted position slice GetNodes binary-searches;
// called after every AddNode/RemoveNode.
func (r *Ring) rebuild() {
	r.sorted = make([]uint32, 0, len(r.ring))
	for pos := range r.ring {
		r.sorted = append(r.sorted, pos)
	}
	slices.Sort(r.sorted)
}

// search returns the index of the first ring position >= pos, wrapping
// to 0 if pos is past every position (the ring's circular lookup).
func (r *Ring) search(pos uint32) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return r.sorted[i] >= pos
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}
