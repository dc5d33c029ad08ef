// Package trace provides protocol-trace recording for post-run analysis.
// This package has no dependencies on sim/ — it stores pure data types.
package trace

// RoleRecord captures a single role transition. From is empty for a death.
type RoleRecord struct {
	NodeID int
	Clock  float64
	From   string
	To     string
	Reason string
}

// LinkRecord captures a parent link being drawn (Up) or erased.
type LinkRecord struct {
	Child  int
	Parent int
	Clock  float64
	Up     bool
}

// RoutingRecord captures a single next-hop decision.
type RoutingRecord struct {
	NodeID     int
	Clock      float64
	PacketType string
	Dest       string
	Decision   string // routing step name, "failure" when no route was found
	NextHop    string // empty on failure
}
