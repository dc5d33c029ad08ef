package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unregisteredFixture returns node 2 of an idle eight-node simulator,
// unregistered at t=100 with empty tables.
func unregisteredFixture(t *testing.T) (*Simulator, *Node) {
	t.Helper()
	s := mustNew(t, lineConfig(8))
	s.Clock = 100
	n := s.Nodes[2]
	n.role = RoleUnregistered
	return s, n
}

func addCandidate(n *Node, e NeighborEntry) {
	e.LastSeen = n.sim.Clock
	n.neighbors[e.ID] = &e
	n.candidates[e.ID] = struct{}{}
}

func TestSelectCandidate_SkipsNeighboursRoutingThroughThisNode(t *testing.T) {
	// GIVEN low-hop candidates that all lead back through node 2, and one that does not
	_, n := unregisteredFixture(t)
	addCandidate(n, NeighborEntry{ID: 3, Role: RoleClusterHead, ClusterHead: ClusterHeadAddress(3), Parent: 2, Hop: 1})
	addCandidate(n, NeighborEntry{ID: 4, Role: RoleClusterHead, ClusterHead: ClusterHeadAddress(4), Parent: 5, Hop: 2, Path: []int{5, 2, 0}})
	addCandidate(n, NeighborEntry{ID: 6, Role: RoleClusterHead, ClusterHead: ClusterHeadAddress(6), Parent: 7, Hop: 5, Path: []int{7, 1, 0}})

	// WHEN the node picks a parent
	cand, ok := n.selectCandidate()

	// THEN the only candidate outside its own subtree wins despite the hop count
	require.True(t, ok)
	assert.Equal(t, 6, cand.ID)
}

func TestSelectCandidate_FormerSubtreeHeldUntilTimeout(t *testing.T) {
	// GIVEN a cluster head with member 3 and child network 4 that resets
	s, n := unregisteredFixture(t)
	n.role = RoleClusterHead
	n.addr = addrPtr(ClusterHeadAddress(2))
	n.parent = 0
	require.NoError(t, n.admitMember(3, RoleRegistered))
	n.mergeChildNetworks(4, []int{4})
	n.resetToUndiscovered("test")
	n.role = RoleUnregistered

	// AND all three still advertise themselves in stale heartbeats
	addCandidate(n, NeighborEntry{ID: 3, Role: RoleRegistered, ClusterHead: ClusterHeadAddress(2), Parent: 2, Hop: 2})
	addCandidate(n, NeighborEntry{ID: 4, Role: RoleClusterHead, ClusterHead: ClusterHeadAddress(4), Parent: 9, Hop: 1})
	addCandidate(n, NeighborEntry{ID: 5, Role: RoleRegistered, ClusterHead: ClusterHeadAddress(4), Parent: 4, Hop: 2})

	// WHEN the node picks a parent right after the reset
	_, ok := n.selectCandidate()

	// THEN none of them qualifies
	assert.False(t, ok)

	// WHEN the hold has run out
	s.Clock += s.Config.NeighborTimeout + s.Config.HeartbeatInterval
	cand, ok := n.selectCandidate()

	// THEN the member of network 4 is acceptable again and wins on role preference
	require.True(t, ok)
	assert.Equal(t, 5, cand.ID)
}

func TestAcceptJoin_AncestorIsRefused(t *testing.T) {
	// GIVEN head [1.254] whose path to the root runs through 0
	s, n := headFixture(t, true, false)
	n.ancestors = []int{0}
	sent := s.Metrics.PacketsSent[PacketJoinReply]

	// WHEN its own parent asks to join it
	err := n.acceptJoin(0)

	// THEN no reply goes out
	assert.ErrorIs(t, err, ErrJoinLoop)
	assert.Equal(t, sent, s.Metrics.PacketsSent[PacketJoinReply])
	assert.ErrorIs(t, n.admitMember(0, RoleRegistered), ErrInvalidMember)
}

func TestHandleJoinRequest_AncestorNeverNominated(t *testing.T) {
	// GIVEN a Router whose grandparent is 0 via head 1
	s, n := unregisteredFixture(t)
	n.role = RoleRouter
	n.addr = addrPtr(MemberAddress(1, 2))
	n.rootAddr = addrPtr(ClusterHeadAddress(0))
	n.parent = 1
	n.parentAddr = addrPtr(ClusterHeadAddress(1))
	n.ancestors = []int{1, 0}

	// WHEN the grandparent asks it for a place
	n.handleJoinRequest(&Packet{SenderID: 0, Body: JoinRequest{}})

	// THEN nothing is nominated or requested
	assert.Empty(t, n.nominations)
	assert.Empty(t, n.pendingJoins)
	assert.Zero(t, s.Metrics.PacketsSent[PacketNetworkRequest])
}

func TestHandleJoinReply_PathThroughSelfIsIgnored(t *testing.T) {
	// GIVEN an unregistered node
	_, n := unregisteredFixture(t)
	head := ClusterHeadAddress(5)

	// WHEN a head whose own path runs through it offers a place
	n.handleJoinReply(&Packet{SenderID: 5, Source: &head}, JoinReply{
		DestID:      2,
		Assigned:    MemberAddress(5, 2),
		ClusterHead: head,
		Root:        ClusterHeadAddress(0),
		Hop:         3,
		Path:        []int{5, 2, 0},
	})

	// THEN the node stays unregistered
	assert.Equal(t, RoleUnregistered, n.Role())
	assert.Equal(t, NoParent, n.ParentID())
}

func TestJoin_AncestorsFollowTheTree(t *testing.T) {
	// GIVEN the five-node line after it settled
	cfg := lineConfig(5)
	s := mustNew(t, cfg)
	s.Run(150)
	assertTreeReachesRoot(t, s)

	// THEN every node's ancestor list is its parent chain
	for _, n := range s.Nodes {
		var want []int
		for p := n.ParentID(); p != NoParent; p = s.Nodes[p].ParentID() {
			want = append(want, p)
		}
		assert.Equal(t, want, n.ancestors, "node %d", n.ID)
	}
}

func TestRefreshFromParent_PathThroughSelfDropsParent(t *testing.T) {
	// GIVEN a Registered node under head 1
	_, n := unregisteredFixture(t)
	n.role = RoleRegistered
	n.addr = addrPtr(MemberAddress(1, 2))
	n.parent = 1
	n.parentAddr = addrPtr(ClusterHeadAddress(1))
	n.hop = 2
	n.ancestors = []int{1, 0}

	// WHEN the parent announces a path that now runs through this node
	n.refreshFromParent(&NeighborEntry{ID: 1, Role: RoleClusterHead, Address: ClusterHeadAddress(1), Parent: 3, Hop: 4, Path: []int{3, 2, 0}})

	// THEN the node gives the parent up instead of adopting the loop
	assert.Equal(t, RoleUndiscovered, n.Role())
	assert.Equal(t, NoParent, n.ParentID())
	assert.Nil(t, n.ancestors)
}

func TestRefreshFromParent_NewPathIsPushedDown(t *testing.T) {
	// GIVEN head 1 under root 0 with a known path
	s, n := headFixture(t, false, false)
	n.ancestors = []int{0}
	sent := s.Metrics.PacketsSent[PacketHeartbeat]
	parent := &NeighborEntry{ID: 0, Role: RoleRoot, Address: ClusterHeadAddress(0), Root: ClusterHeadAddress(0), Parent: NoParent, Hop: 0}

	// WHEN the parent repeats what the node already knows
	n.refreshFromParent(parent)

	// THEN nothing extra is sent
	assert.Equal(t, sent, s.Metrics.PacketsSent[PacketHeartbeat])

	// WHEN the parent moved beneath another node
	moved := *parent
	moved.Role = RoleClusterHead
	moved.Parent = 6
	moved.Hop = 1
	moved.Path = []int{6}
	n.refreshFromParent(&moved)

	// THEN the node adopts the new path and beacons it at once
	assert.Equal(t, []int{0, 6}, n.ancestors)
	assert.Equal(t, 2, n.HopCount())
	assert.Equal(t, sent+1, s.Metrics.PacketsSent[PacketHeartbeat])
}
