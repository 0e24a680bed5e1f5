package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingGetNodesReturnsDistinctPhysicalNodes(t *testing.T) {
	r := NewRing(50)
	r.AddNode("r1")
	r.AddNode("r2")
	r.AddNode("r3")

	nodes := r.GetNodes("shared-key", 2)
	require.Len(t, nodes, 2)
	assert.NotEqual(t, nodes[0], nodes[1])
}

func TestRingGetNodesStableForSameKey(t *testing.T) {
	r := NewRing(50)
	r.AddNode("r1")
	r.AddNode("r2")
	r.AddNode("r3")

	first := r.GetNodes("hot.metric{host:web01}", 2)
	second := r.GetNodes("hot.metric{host:web01}", 2)
	assert.Equal(t, first, second)
}

func TestRingRemoveNodeDropsItFromLookups(t *testing.T) {
	r := NewRing(20)
	r.AddNode("r1")
	r.AddNode("r2")
	require.Equal(t, 2, r.NodeCount())

	r.RemoveNode("r2")
	assert.Equal(t, 1, r.NodeCount())
	assert.Equal(t, []string{"r1"}, r.Nodes())
}

func TestMembershipReplicaNodesResolvesAddresses(t *testing.T) {
	m := NewMembership([]Node{
		{ID: "r1", Address: "host1:6380"},
		{ID: "r2", Address: "host2:6380"},
	}, 10)

	nodes := m.ReplicaNodes("some-key", 2)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.True(t, n.IsAlive)
		assert.NotEmpty(t, n.Address)
	}
}

func TestMembershipJoinAndLeave(t *testing.T) {
	m := NewMembership(nil, 10)
	require.NoError(t, m.Join(Node{ID: "r1", Address: "host1:6380"}))
	assert.Error(t, m.Join(Node{ID: "r1", Address: "host1:6380"}), "duplicate join should fail")

	_, ok := m.GetNode("r1")
	require.True(t, ok)

	require.NoError(t, m.Leave("r1"))
	_, ok = m.GetNode("r1")
	assert.False(t, ok)
	assert.Error(t, m.Leave("r1"), "leaving twice should fail")
}
