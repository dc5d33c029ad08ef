package report

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/wsn-sim/wsn-sim/sim"
)

// Summary aggregates a Report for the console. The role tally is derived
// from the snapshots, never stored separately.
type Summary struct {
	RunID     uuid.UUID
	Clock     float64
	Nodes     int
	Joined    int
	Dead      int
	Roles     map[sim.Role]int
	MaxHop    int
	Routing   sim.RoutingStats
	JoinTimes sim.Distribution // seconds from start to registration

	// Energy fields are zero when the energy model is off.
	EnergyConsumed float64
	EnergyMinLeft  float64
}

// Summarize derives a Summary from r.
func Summarize(r *Report) Summary {
	s := Summary{
		RunID: r.RunID,
		Clock: r.Clock,
		Nodes: len(r.Nodes),
		Roles: make(map[sim.Role]int, len(sim.AllRoles)),
	}
	for _, role := range sim.AllRoles {
		s.Roles[role] = 0
	}

	var joinTimes []float64
	first := true
	for _, n := range r.Nodes {
		s.Roles[n.Role]++
		s.Routing.Add(n.Stats)
		if n.Dead {
			s.Dead++
		}
		if n.Role.Joined() {
			s.Joined++
			if n.HopCount > s.MaxHop {
				s.MaxHop = n.HopCount
			}
		}
		if n.JoinTime >= 0 {
			joinTimes = append(joinTimes, n.JoinTime)
		}
		if r.Energy {
			s.EnergyConsumed += n.Energy.Consumed()
			if first || n.Energy.Remaining < s.EnergyMinLeft {
				s.EnergyMinLeft = n.Energy.Remaining
				first = false
			}
		}
	}
	s.JoinTimes = sim.NewDistribution(joinTimes)
	return s
}

// Print displays the summary in the same layout as the run metrics.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Network Summary ===")
	fmt.Fprintf(w, "Run ID               : %s\n", s.RunID)
	fmt.Fprintf(w, "Virtual Time         : %.2f s\n", s.Clock)
	fmt.Fprintf(w, "Nodes                : %d (%d joined, %d dead)\n", s.Nodes, s.Joined, s.Dead)
	for _, role := range sim.AllRoles {
		fmt.Fprintf(w, "  %-19s: %d\n", role, s.Roles[role])
	}
	fmt.Fprintf(w, "Max Hop Count        : %d\n", s.MaxHop)
	fmt.Fprintf(w, "Routing Decisions    : %d (direct %d, intra %d, multihop %d, down %d, up %d, failures %d)\n",
		s.Routing.Total(), s.Routing.DirectMesh, s.Routing.IntraCluster, s.Routing.MultiHop,
		s.Routing.DownwardTree, s.Routing.UpwardTree, s.Routing.RouteFailures)
	if jt := s.JoinTimes; jt.Count > 0 {
		fmt.Fprintf(w, "Join Time            : min %.2f / avg %.2f / p95 %.2f / max %.2f s\n", jt.Min, jt.Mean, jt.P95, jt.Max)
	}
	if s.EnergyConsumed > 0 {
		fmt.Fprintf(w, "Energy Consumed      : %.4f J (lowest battery %.4f J)\n", s.EnergyConsumed, s.EnergyMinLeft)
	}
}
