package report

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wsn-sim/wsn-sim/sim"
)

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

// optTime renders a time that may still be unset (-1).
func optTime(v float64) string {
	if v < 0 {
		return ""
	}
	return ftoa(v)
}

func addr(a *sim.Address) string {
	if a == nil {
		return ""
	}
	return a.String()
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ";")
}

// writeRows writes header and rows, each prefixed with the run id.
func writeRows(w io.Writer, r *Report, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	run := r.RunID.String()
	if err := cw.Write(append([]string{"run_id"}, header...)); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(append([]string{run}, row...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteNeighbors writes one row per (node, one-hop neighbour) pair.
func WriteNeighbors(w io.Writer, r *Report) error {
	var rows [][]string
	for _, n := range r.Nodes {
		for _, e := range n.Neighbors {
			rows = append(rows, []string{
				strconv.Itoa(n.ID),
				strconv.Itoa(e.ID),
				e.Role.String(),
				e.Address.String(),
				strconv.Itoa(e.Hop),
				ftoa(e.LastSeen),
				ftoa(e.Distance),
			})
		}
	}
	return writeRows(w, r, []string{"node_id", "neighbor_id", "role", "address", "hop", "last_seen", "distance"}, rows)
}

// WriteMembers writes one row per (head, member) pair.
func WriteMembers(w io.Writer, r *Report) error {
	var rows [][]string
	for _, n := range r.Nodes {
		for _, m := range n.Members {
			rows = append(rows, []string{strconv.Itoa(n.ID), addr(n.Address), strconv.Itoa(m)})
		}
	}
	return writeRows(w, r, []string{"head_id", "head_address", "member_id"}, rows)
}

// WriteChildNetworks writes one row per (node, child) entry with the networks
// reachable through that child.
func WriteChildNetworks(w io.Writer, r *Report) error {
	var rows [][]string
	for _, n := range r.Nodes {
		children := make([]int, 0, len(n.ChildNetworks))
		for child := range n.ChildNetworks {
			children = append(children, child)
		}
		sort.Ints(children)
		for _, child := range children {
			rows = append(rows, []string{strconv.Itoa(n.ID), n.Role.String(), strconv.Itoa(child), joinInts(n.ChildNetworks[child])})
		}
	}
	return writeRows(w, r, []string{"node_id", "role", "child_id", "networks"}, rows)
}

// WriteRoutingStats writes each node's routing decision counters.
func WriteRoutingStats(w io.Writer, r *Report) error {
	rows := make([][]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		s := n.Stats
		rows = append(rows, []string{
			strconv.Itoa(n.ID),
			n.Role.String(),
			strconv.Itoa(s.DirectMesh),
			strconv.Itoa(s.IntraCluster),
			strconv.Itoa(s.MultiHop),
			strconv.Itoa(s.DownwardTree),
			strconv.Itoa(s.UpwardTree),
			strconv.Itoa(s.RouteFailures),
		})
	}
	return writeRows(w, r, []string{"node_id", "role", "direct_mesh", "intra_cluster", "multi_hop",
		"downward_tree", "upward_tree", "route_failures"}, rows)
}

// WriteJoinTimes writes wake-up, first-join and death times per node.
func WriteJoinTimes(w io.Writer, r *Report) error {
	rows := make([][]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		delay := ""
		if n.JoinTime >= 0 && n.WakeupTime >= 0 {
			delay = ftoa(n.JoinTime - n.WakeupTime)
		}
		rows = append(rows, []string{
			strconv.Itoa(n.ID),
			n.Role.String(),
			strconv.Itoa(n.HopCount),
			optTime(n.WakeupTime),
			optTime(n.JoinTime),
			delay,
			strconv.Itoa(n.JoinCount),
			optTime(n.DiedAt),
		})
	}
	return writeRows(w, r, []string{"node_id", "role", "hop", "wakeup_time", "join_time", "join_delay",
		"join_count", "died_at"}, rows)
}

// WriteEnergyTimeline writes the Root-driven energy samples.
func WriteEnergyTimeline(w io.Writer, r *Report) error {
	rows := make([][]string, 0, len(r.Timeline))
	for _, s := range r.Timeline {
		rows = append(rows, []string{
			ftoa(s.Time),
			ftoa(s.TotalRemaining),
			ftoa(s.MeanRemaining),
			ftoa(s.MinRemaining),
			strconv.Itoa(s.Alive),
			strconv.Itoa(s.Dead),
		})
	}
	return writeRows(w, r, []string{"time", "total_remaining", "mean_remaining", "min_remaining", "alive", "dead"}, rows)
}

// WriteEnergySummary writes each node's ledger at report time.
func WriteEnergySummary(w io.Writer, r *Report) error {
	rows := make([][]string, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		e := n.Energy
		rows = append(rows, []string{
			strconv.Itoa(n.ID),
			n.Role.String(),
			strconv.FormatBool(n.Dead),
			ftoa(e.Initial),
			ftoa(e.Remaining),
			ftoa(e.Tx),
			ftoa(e.Rx),
			ftoa(e.Idle),
			ftoa(e.Sleep),
		})
	}
	return writeRows(w, r, []string{"node_id", "role", "dead", "initial", "remaining", "tx", "rx", "idle", "sleep"}, rows)
}
