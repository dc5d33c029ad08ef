package sim

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsn-sim/wsn-sim/sim/internal/testutil"
)

func TestLineScenario_Golden(t *testing.T) {
	// GIVEN the golden five-node line
	golden := testutil.LoadGoldenScenario(t, "line_scenario.json")
	s := mustNew(t, goldenConfig(golden.Config))

	// WHEN the network self-organizes
	s.Run(golden.RunUntil)

	// THEN every node ends in the recorded role, hop and parent
	require.Len(t, s.Nodes, len(golden.Expected))
	for _, want := range golden.Expected {
		n := s.Nodes[want.ID]
		assert.Equal(t, want.Role, n.Role().String(), "node %d role", want.ID)
		assert.Equal(t, want.Hop, n.HopCount(), "node %d hop", want.ID)
		assert.Equal(t, want.Parent, n.ParentID(), "node %d parent", want.ID)
		assert.Equal(t, want.JoinCount, n.JoinCount, "node %d join count", want.ID)
	}
	assertTreeReachesRoot(t, s)
}

func TestLineScenario_StaticAdjacencyMatchesDiscModel(t *testing.T) {
	golden := testutil.LoadGoldenScenario(t, "line_scenario.json")
	cfg := goldenConfig(golden.Config)
	links := NewStaticAdjacency(testutil.LineAdjacency(cfg.NodeCount))
	s := mustNew(t, cfg, WithTopology(linePositions(cfg.NodeCount), links))

	s.Run(golden.RunUntil)

	for _, want := range golden.Expected {
		assert.Equal(t, want.Role, s.Nodes[want.ID].Role().String(), "node %d role", want.ID)
		assert.Equal(t, want.Hop, s.Nodes[want.ID].HopCount(), "node %d hop", want.ID)
	}
}

func TestLineScenario_Addresses(t *testing.T) {
	golden := testutil.LoadGoldenScenario(t, "line_scenario.json")
	s := mustNew(t, goldenConfig(golden.Config))
	s.Run(golden.RunUntil)

	tests := []struct {
		id   int
		addr Address
		head Address
	}{
		{0, ClusterHeadAddress(0), ClusterHeadAddress(0)},
		{1, MemberAddress(0, 1), ClusterHeadAddress(0)},
		{2, ClusterHeadAddress(2), ClusterHeadAddress(2)},
		{3, MemberAddress(2, 3), ClusterHeadAddress(2)},
		{4, ClusterHeadAddress(4), ClusterHeadAddress(4)},
	}
	for _, tc := range tests {
		addr, ok := s.Nodes[tc.id].Address()
		require.True(t, ok, "node %d has no address", tc.id)
		assert.Equal(t, tc.addr, addr, "node %d address", tc.id)
		head, ok := s.Nodes[tc.id].ClusterHeadAddress()
		require.True(t, ok)
		assert.Equal(t, tc.head, head, "node %d cluster head", tc.id)
	}

	// the routers bridge the heads beneath them
	snap := s.Nodes[1].Snapshot()
	assert.Equal(t, map[int][]int{2: {2, 4}}, snap.ChildNetworks)
	assert.Equal(t, []int{1}, s.Root().Snapshot().Members)
	assert.Equal(t, 2, s.Metrics.NominationsApproved)
}

func TestPacketLoss_Total_OnlyRootElects(t *testing.T) {
	// GIVEN every transmission is lost
	cfg := lineConfig(5)
	cfg.PacketLoss = 1.0

	s := mustNew(t, cfg)
	s.Run(200)

	// THEN root elects itself and nobody else ever hears anything
	assert.Equal(t, RoleRoot, s.Root().Role())
	for _, n := range s.Nodes[1:] {
		assert.Equal(t, RoleUndiscovered, n.Role(), "node %d", n.ID)
		assert.Equal(t, 0, n.JoinCount)
	}
	assert.Equal(t, s.Metrics.TotalPacketsSent(), s.Metrics.PacketsLost)
	assert.Zero(t, s.Metrics.PacketsReceived)
}

func TestBasePromotion_RegisteredNodeBecomesClusterHead(t *testing.T) {
	// GIVEN a line without the router layer
	cfg := lineConfig(3)
	cfg.RouterLayer = false

	s := mustNew(t, cfg)
	s.Run(100)

	// THEN node 1 asked root for a network and heads it, with node 2 beneath
	assert.Equal(t, RoleClusterHead, s.Nodes[1].Role())
	assert.Equal(t, 1, s.Metrics.NetworksGranted)
	addr, ok := s.Nodes[2].Address()
	require.True(t, ok)
	assert.Equal(t, MemberAddress(1, 2), addr)
	assert.Equal(t, 2, s.Nodes[2].HopCount())
	assert.Equal(t, 1, s.Nodes[2].ParentID())
	assertTreeReachesRoot(t, s)
}

func TestJoinReply_Duplicate_IsIgnored(t *testing.T) {
	// GIVEN a node that already joined root
	cfg := lineConfig(2)
	s := mustNew(t, cfg)
	s.Run(50)
	n := s.Nodes[1]
	require.Equal(t, RoleRegistered, n.Role())
	addrBefore, _ := n.Address()
	require.Equal(t, 1, n.JoinAcksSent)

	// WHEN a second JOIN_REPLY for it arrives
	root := ClusterHeadAddress(0)
	s.Schedule(0, &PacketArrivalEvent{Node: 1, Packet: &Packet{
		Dest:     Broadcast,
		Source:   &root,
		SenderID: 0,
		TTL:      cfg.PacketTTL,
		Body:     JoinReply{DestID: 1, Assigned: MemberAddress(0, 1), ClusterHead: root, Root: root, Hop: 0},
	}})
	s.Run(51)

	// THEN nothing about the membership changes
	addrAfter, _ := n.Address()
	assert.Equal(t, addrBefore, addrAfter)
	assert.Equal(t, 0, n.ParentID())
	assert.Equal(t, 1, n.JoinAcksSent)
	assert.Equal(t, 1, n.JoinCount)
	assert.Equal(t, 1, s.Metrics.DuplicateJoinReplies)
}

func TestParentDeath_OrphanResets(t *testing.T) {
	// GIVEN a joined three-node line
	cfg := lineConfig(3)
	cfg.RouterLayer = false
	s := mustNew(t, cfg)
	s.Run(100)
	require.Equal(t, RoleClusterHead, s.Nodes[1].Role())

	// WHEN the middle node dies
	s.Nodes[1].die()
	s.Run(200)

	// THEN its member loses the parent and starts over
	assert.True(t, s.Nodes[1].Dead())
	assert.NotEqual(t, RoleRegistered, s.Nodes[2].Role())
	assert.Equal(t, NoParent, s.Nodes[2].ParentID())
	assert.GreaterOrEqual(t, s.Metrics.Resets, 1)
}

func TestSendData_NotJoined(t *testing.T) {
	s := mustNew(t, lineConfig(2))
	err := s.Nodes[1].SendData(ClusterHeadAddress(0), 1)
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestSensorReadings_ReachRoot(t *testing.T) {
	cfg := lineConfig(3)
	cfg.SensorInterval = 5
	s := mustNew(t, cfg)

	s.Run(120)

	assert.Positive(t, s.Metrics.DataSent)
	assert.Positive(t, s.Root().DataReceived)
	assert.Equal(t, s.Metrics.DataSent, s.Metrics.DataDelivered)
	assert.Positive(t, s.Metrics.MeanDataLatency())
}

func TestReplyDelay_DefersJoinReplyWithoutBreakingTheTree(t *testing.T) {
	// GIVEN the same three-node line with and without a reply delay
	baseline := mustNew(t, lineConfig(3))
	baseline.Run(120)

	cfg := lineConfig(3)
	cfg.ReplyDelay = 0.5
	delayed := mustNew(t, cfg)

	// WHEN both run to the same horizon
	delayed.Run(120)

	// THEN every node still joins, and node 1 registers later by at least the delay
	for _, n := range delayed.Nodes {
		assert.True(t, n.Role().Joined(), "node %d role %s", n.ID, n.Role())
	}
	assertTreeReachesRoot(t, delayed)
	assert.GreaterOrEqual(t, delayed.Nodes[1].JoinTime, baseline.Nodes[1].JoinTime+cfg.ReplyDelay-1e-9)
}

func TestClusterHeadParentLoss_StopsBeaconing(t *testing.T) {
	// GIVEN the golden line with head 2 under router 1
	golden := testutil.LoadGoldenScenario(t, "line_scenario.json")
	s := mustNew(t, goldenConfig(golden.Config))
	s.Run(golden.RunUntil)
	head := s.Nodes[2]
	require.Equal(t, RoleClusterHead, head.Role())
	require.Equal(t, 1, head.ParentID())
	lastHeard := s.Nodes[3].neighbors[2].LastSeen

	// WHEN its parent dies and the head gives it up
	s.Nodes[1].die()
	head.handleParentLoss("parent died")

	// THEN it re-joins as Unregistered with only the join timer running
	require.Equal(t, RoleUnregistered, head.Role())
	assert.False(t, s.TimerArmed(2, TimerHeartbeat))
	assert.False(t, s.TimerArmed(2, TimerNeighborShare))
	assert.True(t, s.TimerArmed(2, TimerJoinRequest))

	// AND its child hears no heartbeat from it during the next interval and a half
	s.Run(golden.RunUntil + 1.5*golden.Config.HeartbeatInterval)
	assert.Equal(t, RoleUnregistered, head.Role(), "no candidate outside its own subtree is alive")
	entry, ok := s.Nodes[3].neighbors[2]
	require.True(t, ok)
	assert.Equal(t, lastHeard, entry.LastSeen)
}

func TestGrid_ConvergesToSingleTree(t *testing.T) {
	for _, seed := range []int64{42, 7} {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			// GIVEN the default jittered 10x10 grid without loss
			cfg := DefaultSimConfig()
			cfg.Seed = seed

			// WHEN it self-organizes
			s := mustNew(t, cfg)
			s.Run(2000)

			// THEN every node joined once, hop counts follow the tree, and there are no loops
			assertConverged(t, s)
			assert.Zero(t, s.Metrics.Deaths)
		})
	}
}

func TestGrid_DepletionChurnNeverFormsParentLoop(t *testing.T) {
	// GIVEN the default grid with batteries that run out while sensors report
	cfg := DefaultSimConfig()
	cfg.Energy.Initial = 3
	cfg.SensorInterval = 10
	s := mustNew(t, cfg)

	// WHEN every event up to t=600 is executed one at a time
	s.Start()
	steps := 0
	for s.Step(600) {
		steps++
		// THEN no state along the way holds a parent loop
		if id, loop := parentCycle(s); loop {
			require.Failf(t, "parent loop", "node %d at t=%.3f after %d events", id, s.Clock, steps)
		}
	}
	require.Positive(t, s.Metrics.Deaths, "the scenario must exercise node deaths")
	require.Positive(t, s.Metrics.Resets)
}
