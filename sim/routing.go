package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoute is returned when no routing step yields a next hop.
	ErrNoRoute = errors.New("no route")
	// ErrNotJoined is returned when an unjoined node originates routed traffic.
	ErrNotJoined = errors.New("node has not joined the network")
	// ErrTTLExpired is returned when a forwarded packet runs out of hops.
	ErrTTLExpired = errors.New("ttl expired")
)

// RouteKind names the routing step that produced a next hop.
type RouteKind int

const (
	RouteDirectMesh RouteKind = iota
	RouteIntraCluster
	RouteMultiHop
	RouteDownwardTree
	RouteUpwardTree
	RouteFailure
)

var routeKindNames = map[RouteKind]string{
	RouteDirectMesh:   "direct_mesh",
	RouteIntraCluster: "intra_cluster",
	RouteMultiHop:     "multi_hop",
	RouteDownwardTree: "downward_tree",
	RouteUpwardTree:   "upward_tree",
	RouteFailure:      "failure",
}

func (k RouteKind) String() string {
	if name, ok := routeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// RoutingStats counts routing decisions. Observability only.
type RoutingStats struct {
	DirectMesh    int
	IntraCluster  int
	MultiHop      int
	DownwardTree  int
	UpwardTree    int
	RouteFailures int
}

func (s *RoutingStats) record(kind RouteKind) {
	switch kind {
	case RouteDirectMesh:
		s.DirectMesh++
	case RouteIntraCluster:
		s.IntraCluster++
	case RouteMultiHop:
		s.MultiHop++
	case RouteDownwardTree:
		s.DownwardTree++
	case RouteUpwardTree:
		s.UpwardTree++
	case RouteFailure:
		s.RouteFailures++
	}
}

// Total returns the number of routing decisions, failures included.
func (s RoutingStats) Total() int {
	return s.DirectMesh + s.IntraCluster + s.MultiHop + s.DownwardTree + s.UpwardTree + s.RouteFailures
}

// Add accumulates o into s.
func (s *RoutingStats) Add(o RoutingStats) {
	s.DirectMesh += o.DirectMesh
	s.IntraCluster += o.IntraCluster
	s.MultiHop += o.MultiHop
	s.DownwardTree += o.DownwardTree
	s.UpwardTree += o.UpwardTree
	s.RouteFailures += o.RouteFailures
}

// nextHop tries the routing steps in fixed priority order and stops at the
// first that applies.
func (n *Node) nextHop(dest Address) (Address, RouteKind, error) {
	now := n.sim.Clock

	if n.cfg.HybridRouting {
		for _, id := range sortedKeys(n.neighbors) {
			e := n.neighbors[id]
			if e.Address == dest && now-e.LastSeen <= n.cfg.NeighborTimeout {
				return dest, RouteDirectMesh, nil
			}
		}
	}

	if n.role == RoleClusterHead || n.role == RoleRoot {
		if n.addr != nil && dest.Network == n.addr.Network {
			for _, m := range sortedKeys(n.members) {
				if n.members[m] == dest {
					return dest, RouteIntraCluster, nil
				}
			}
		}
	}

	if n.cfg.MultiHop {
		for _, id := range sortedKeys(n.twoHop) {
			e := n.twoHop[id]
			if e.Address != dest || now-e.LastSeen > 2*n.cfg.NeighborTimeout {
				continue
			}
			if via, ok := n.neighbors[e.Via]; ok && now-via.LastSeen <= n.cfg.NeighborTimeout {
				return via.Address, RouteMultiHop, nil
			}
		}
	}

	for _, child := range sortedKeys(n.childNetworks) {
		if _, ok := n.childNetworks[child][dest.Network]; !ok {
			continue
		}
		if e, ok := n.neighbors[child]; ok {
			return e.Address, RouteDownwardTree, nil
		}
	}

	if n.parent != NoParent && n.parentAddr != nil {
		return *n.parentAddr, RouteUpwardTree, nil
	}
	return Address{}, RouteFailure, fmt.Errorf("node %d to %s: %w", n.ID, dest, ErrNoRoute)
}

// routeAndForward picks the next hop for p and transmits it. A failure is
// counted, nudges neighbour discovery, and aborts only this packet.
func (n *Node) routeAndForward(p *Packet) error {
	if !n.role.Joined() || n.addr == nil {
		return fmt.Errorf("node %d routing %s: %w", n.ID, p.Type(), ErrNotJoined)
	}
	if p.TTL <= 0 {
		return fmt.Errorf("node %d routing %s to %s: %w", n.ID, p.Type(), p.Dest, ErrTTLExpired)
	}
	next, kind, err := n.nextHop(p.Dest)
	n.Stats.record(kind)
	if err != nil {
		n.sim.observers.RouteDecided(n.sim.Clock, n.ID, p, kind, nil)
		n.sendProbe()
		if n.cfg.MultiHop {
			n.sendNeighborShare()
		}
		return fmt.Errorf("routing %s: %w", p.Type(), err)
	}
	n.sim.observers.RouteDecided(n.sim.Clock, n.ID, p, kind, &next)
	p.NextHop = addrPtr(next)
	p.PrevHop = addrPtr(*n.addr)
	n.transmit(p)
	return nil
}

// forward relays a frame addressed through this node.
func (n *Node) forward(p *Packet) {
	if !n.role.Joined() {
		return
	}
	relay := p.Clone()
	relay.TTL--
	if relay.TTL <= 0 {
		n.sim.Metrics.PacketsExpired++
		n.warnf(fmt.Errorf("node %d dropping %s to %s: %w", n.ID, p.Type(), p.Dest, ErrTTLExpired))
		return
	}
	if err := n.routeAndForward(relay); err != nil {
		n.warnf(err)
	}
}
