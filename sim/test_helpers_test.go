package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsn-sim/wsn-sim/sim/internal/testutil"
)

// lineConfig returns a small, fast-converging configuration on a line of n
// nodes where each node only hears its direct neighbours.
func lineConfig(n int) SimConfig {
	cfg := DefaultSimConfig()
	cfg.NodeCount = n
	cfg.Topology.Kind = "line"
	cfg.Topology.Spacing = 60
	cfg.Topology.TxRange = 100
	cfg.ArrivalSpread = 2
	cfg.HeartbeatInterval = 10
	cfg.JoinRequestInterval = 15
	cfg.NeighborTimeout = 30
	cfg.Energy.Enabled = false
	cfg.Maintenance.Enabled = false
	return cfg
}

// goldenConfig applies a golden scenario on top of the defaults.
func goldenConfig(sc testutil.ScenarioConfig) SimConfig {
	cfg := lineConfig(sc.NodeCount)
	cfg.RootID = sc.RootID
	cfg.Seed = sc.Seed
	cfg.Topology.Kind = sc.Topology
	cfg.Topology.Spacing = sc.Spacing
	cfg.Topology.TxRange = sc.TxRange
	cfg.StartupDelay = sc.StartupDelay
	cfg.ArrivalSpread = sc.ArrivalSpread
	cfg.HeartbeatInterval = sc.HeartbeatInterval
	cfg.JoinRequestInterval = sc.JoinRequestInterval
	cfg.NeighborTimeout = sc.NeighborTimeout
	cfg.RouterLayer = sc.RouterLayer
	cfg.Energy.Enabled = sc.Energy
	return cfg
}

func mustNew(t *testing.T, cfg SimConfig, opts ...Option) *Simulator {
	t.Helper()
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	return s
}

// linePositions places n nodes 60 units apart on the x axis.
func linePositions(n int) []Position {
	positions := make([]Position, n)
	for i := range positions {
		positions[i] = Position{X: float64(i) * 60}
	}
	return positions
}

// assertTreeReachesRoot walks every joined node's parent chain and fails on
// a cycle or a chain that does not end at root.
func assertTreeReachesRoot(t *testing.T, s *Simulator) {
	t.Helper()
	for _, n := range s.Nodes {
		if !n.Role().Joined() || n.Role() == RoleRoot {
			continue
		}
		seen := map[int]bool{n.ID: true}
		cur := n
		for cur.Role() != RoleRoot {
			next := cur.ParentID()
			require.NotEqual(t, NoParent, next, "node %d: chain from %d breaks", cur.ID, n.ID)
			require.False(t, seen[next], "node %d: cycle through %d", n.ID, next)
			seen[next] = true
			cur = s.Nodes[next]
		}
		require.Equal(t, s.Config.RootID, cur.ID)
	}
}

// parentCycle follows every node's parent pointer and returns a node that
// lies on a loop, if any.
func parentCycle(s *Simulator) (int, bool) {
	const (
		unvisited = iota
		onWalk
		done
	)
	state := make([]int, len(s.Nodes))
	for _, start := range s.Nodes {
		var walk []int
		cur := start.ID
		for cur != NoParent && state[cur] == unvisited {
			state[cur] = onWalk
			walk = append(walk, cur)
			cur = s.Nodes[cur].ParentID()
		}
		if cur != NoParent && state[cur] == onWalk {
			return cur, true
		}
		for _, id := range walk {
			state[id] = done
		}
	}
	return 0, false
}

// assertConverged requires every node to have joined exactly once, with hop
// counts one above the parent's and a loop-free chain to root.
func assertConverged(t *testing.T, s *Simulator) {
	t.Helper()
	for _, n := range s.Nodes {
		require.True(t, n.Role().Joined(), "node %d still %s", n.ID, n.Role())
		assert.Equal(t, 1, n.JoinCount, "node %d join count", n.ID)
		if n.Role() == RoleRoot {
			continue
		}
		parent := s.Nodes[n.ParentID()]
		assert.Equal(t, parent.HopCount()+1, n.HopCount(), "node %d under %d", n.ID, parent.ID)
	}
	assertTreeReachesRoot(t, s)
}
