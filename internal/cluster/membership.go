package cluster

import (
	"fmt"
	"sync"
)

// Node is one replica in the static peer list: an ID (matching
// cfg.ReplicaID on that replica), the host:port it listens on, and a
// liveness flag carried for JSON/introspection purposes only — nothing
// in this repo runs failure detection against it, since membership
// autodiscovery and failure-detector gossip are out of scope (spec.md's
// own Non-goals); a node that's actually down is simply unreachable the
// next time gossip or a hot-key fanout read tries to dial it.
type Node struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	IsAlive bool   `json:"is_alive"`
}

// Membership is the static peer list (spec.md §6 PEERS) plus the
// consistent-hash Ring built over it, used only to pick stable extra
// replication targets for hot keys (§4.5) — never for shard ownership,
// which is always hash(key) mod NumShards in internal/shard. Join/Leave
// exist for completeness and tests; internal/server only ever calls
// NewMembership once at startup from cfg.Peers.
type Membership struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	ring  *Ring
}

// NewMembership seeds a Membership with nodes, marking each alive and
// placing it on a fresh Ring with vnodes virtual positions per node.
func NewMembership(nodes []Node, vnodes int) *Membership {
	m := &Membership{
		nodes: make(map[string]*Node),
		ring:  NewRing(vnodes),
	}
	for i := range nodes {
		n := nodes[i]
		n.IsAlive = true
		m.nodes[n.ID] = &n
		m.ring.AddNode(n.ID)
	}
	return m
}

// Join adds node to the cluster, failing if its ID is already present.
func (m *Membership) Join(node Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[node.ID]; ok {
		return fmt.Errorf("node %s already in cluster", node.ID)
	}
	node.IsAlive = true
	m.nodes[node.ID] = &node
	m.ring.AddNode(node.ID)
	return nil
}

// Leave removes nodeID, failing if it isn't present.
func (m *Membership) Leave(nodeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.nodes[nodeID]; !ok {
		return fmt.Errorf("node %s not in cluster", nodeID)
	}
	delete(m.nodes, nodeID)
	m.ring.RemoveNode(nodeID)
	return nil
}

// GetNode looks up one node by ID.
func (m *Membership) GetNode(id string) (*Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// All returns a snapshot of every node, for the /internal/cluster
// introspection endpoint.
func (m *Membership) All() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, *n)
	}
	return out
}

// Ring exposes the underlying consistent-hash ring directly, for
// callers that want node IDs rather than resolved Nodes.
func (m *Membership) Ring() *Ring {
	return m.ring
}

// ReplicaNodes resolves the n ring-selected node IDs for key into full
// Node records — this is the one method internal/metrics.Registry calls
// (via SetReplicaFanout) to annotate a hot key's MHOTKEYS reply with
// extra replica addresses.
func (m *Membership) ReplicaNodes(key string, n int) []*Node {
	ids := m.ring.GetNodes(key, n)
	m.mu.RLock()
	defer m.mu.RUnlock()

	var nodes []*Node
	for _, id := range ids {
		if node, ok := m.nodes[id]; ok {
			nodes = append(nodes, node)
		}
	}
	return nodes
}
