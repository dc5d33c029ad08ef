package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	RoleChanges       int
	Deaths            int
	LinksDrawn        int
	LinksErased       int
	TotalRoutings     int
	RouteFailures     int
	FailureRate       float64
	RoleDistribution  map[string]int // target role → number of transitions into it
	DecisionBreakdown map[string]int // routing step → count
	BusiestForwarder  int            // node with the most routing decisions, -1 if none
	BusiestForwarderN int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RoleDistribution:  make(map[string]int),
		DecisionBreakdown: make(map[string]int),
		BusiestForwarder:  -1,
	}
	if st == nil {
		return summary
	}

	for _, r := range st.Roles {
		if r.From == "" {
			summary.Deaths++
			continue
		}
		summary.RoleChanges++
		summary.RoleDistribution[r.To]++
	}

	for _, l := range st.Links {
		if l.Up {
			summary.LinksDrawn++
		} else {
			summary.LinksErased++
		}
	}

	perNode := make(map[int]int)
	for _, r := range st.Routings {
		summary.DecisionBreakdown[r.Decision]++
		if r.Decision == "failure" {
			summary.RouteFailures++
		}
		perNode[r.NodeID]++
	}
	summary.TotalRoutings = len(st.Routings)
	if summary.TotalRoutings > 0 {
		summary.FailureRate = float64(summary.RouteFailures) / float64(summary.TotalRoutings)
	}
	for id, count := range perNode {
		// lowest id wins ties so the result is stable
		if count > summary.BusiestForwarderN || (count == summary.BusiestForwarderN && id < summary.BusiestForwarder) {
			summary.BusiestForwarder = id
			summary.BusiestForwarderN = count
		}
	}

	return summary
}
