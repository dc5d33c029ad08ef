package sim

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

var (
	// ErrNoClusterAddress is returned when a head is asked to admit a node
	// before it holds its own address.
	ErrNoClusterAddress = errors.New("cluster head has no address")
	// ErrInvalidMember is returned when a JOIN_ACK fails validation.
	ErrInvalidMember = errors.New("invalid member")
	// ErrJoinLoop is returned when admitting the requester would close a
	// loop through this node's own path to the root.
	ErrJoinLoop = errors.New("requester is an ancestor")
)

// wake handles the arrival timer: the node starts probing.
func (n *Node) wake() {
	if n.awake || n.role != RoleUndiscovered {
		return
	}
	if n.cfg.Energy.Enabled {
		n.energy.accrue(n.sim.Clock, false, n.cfg.Energy)
	}
	n.awake = true
	n.WakeupTime = n.sim.Clock
	n.probeCount = 0
	n.logf("awake")
	n.sendProbe()
	n.setTimer(TimerProbe, n.cfg.ProbeInterval)
}

// onProbeTimer counts unanswered probes. After ProbeThreshold of them the
// root-eligible node elects itself; every other node backs off.
func (n *Node) onProbeTimer() {
	if n.role != RoleUndiscovered {
		return
	}
	n.probeCount++
	if n.probeCount >= n.cfg.ProbeThreshold {
		if n.ID == n.cfg.RootID {
			n.becomeRoot()
			return
		}
		n.probeCount = 0
		n.logf("no answer after %d probes, backing off %.0fs", n.cfg.ProbeThreshold, n.cfg.ProbeBackoff)
		n.setTimer(TimerProbe, n.cfg.ProbeBackoff)
		return
	}
	n.sendProbe()
	n.setTimer(TimerProbe, n.cfg.ProbeInterval)
}

func (n *Node) becomeRoot() {
	addr := ClusterHeadAddress(n.ID)
	n.addr = addrPtr(addr)
	n.chAddr = addrPtr(addr)
	n.rootAddr = addrPtr(addr)
	n.parent = NoParent
	n.parentAddr = nil
	n.hop = 0
	n.ancestors = nil
	n.setRole(RoleRoot, "elected after probe threshold")
	n.startBeaconing()
	if n.cfg.Maintenance.Enabled {
		n.setTimer(TimerMaintenance, n.cfg.Maintenance.Interval)
	}
	if n.cfg.Energy.Enabled {
		n.setTimer(TimerStats, n.cfg.Energy.SampleInterval)
	}
}

func (n *Node) becomeUnregistered(reason string) {
	n.setRole(RoleUnregistered, reason)
	n.sendProbe()
	n.setTimer(TimerJoinRequest, n.cfg.JoinRequestInterval)
}

// onJoinTimer sends a JOIN_REQUEST to the best candidate, or re-probes when
// there is none, and re-arms itself.
func (n *Node) onJoinTimer() {
	if n.role != RoleUnregistered {
		return
	}
	n.evictStale()
	if cand, ok := n.selectCandidate(); ok {
		n.logf("join request to %d %s (%s, hop %d)", cand.ID, cand.Address, cand.Role, cand.Hop)
		n.sim.Metrics.JoinRequests++
		n.sendDirect(cand.Address, JoinRequest{})
	} else {
		n.sendProbe()
	}
	n.setTimer(TimerJoinRequest, n.cfg.JoinRequestInterval)
}

// selectCandidate ranks live candidate parents by role preference, then hop
// count, then id. Neighbours that route through this node, or hung below it
// before its last reset, are skipped.
func (n *Node) selectCandidate() (NeighborEntry, bool) {
	var cands []NeighborEntry
	var own map[int]struct{}
	if n.wasClusterHead {
		own = n.ownNetworkSet()
	}
	for _, id := range sortedKeys(n.candidates) {
		e, ok := n.neighbors[id]
		if !ok || e.Role.joinPreference() < 0 {
			continue
		}
		if e.Parent == n.ID || slices.Contains(e.Path, n.ID) || n.heldBelow(e.ID) {
			continue
		}
		if e.Role != RoleRoot && n.heldBelow(e.ClusterHead.Network) {
			continue
		}
		if own != nil {
			if _, beneath := own[e.ClusterHead.Network]; beneath || e.Parent == n.ID {
				continue
			}
		}
		cands = append(cands, *e)
	}
	if len(cands) == 0 {
		return NeighborEntry{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Role.joinPreference() != b.Role.joinPreference() {
			return a.Role.joinPreference() < b.Role.joinPreference()
		}
		if a.Hop != b.Hop {
			return a.Hop < b.Hop
		}
		return a.ID < b.ID
	})
	return cands[0], true
}

func (n *Node) handleProbe() {
	if !n.role.Joined() || n.addr == nil {
		return
	}
	n.respond(n.newPacket(Broadcast, n.heartbeat()))
}

func (n *Node) handleJoinRequest(p *Packet) {
	requester := p.SenderID
	if n.isAncestor(requester) {
		n.logf("refusing join from %d: %v", requester, ErrJoinLoop)
		return
	}
	switch {
	case n.role.HeadsCluster():
		if err := n.acceptJoin(requester); err != nil {
			n.warnf(err)
		}
	case n.role == RoleRegistered && !n.cfg.RouterLayer:
		n.requestOwnNetwork(requester)
	case (n.role == RoleRegistered || n.role == RoleRouter) && n.cfg.RouterLayer:
		n.nominate(requester)
	}
}

// acceptJoin answers a join with a broadcast JOIN_REPLY naming the requester.
// Membership is only recorded once the JOIN_ACK arrives.
func (n *Node) acceptJoin(requester int) error {
	if n.addr == nil {
		return fmt.Errorf("node %d admitting %d: %w", n.ID, requester, ErrNoClusterAddress)
	}
	if n.isAncestor(requester) {
		return fmt.Errorf("node %d admitting %d: %w", n.ID, requester, ErrJoinLoop)
	}
	root := *n.addr
	if n.rootAddr != nil {
		root = *n.rootAddr
	}
	n.logf("join reply to %d", requester)
	n.respond(n.newPacket(Broadcast, JoinReply{
		DestID:      requester,
		Assigned:    MemberAddress(n.addr.Network, requester),
		ClusterHead: *n.addr,
		Root:        root,
		Hop:         n.hop,
		Path:        n.upwardPath(),
	}))
	return nil
}

// handleJoinReply completes a join. Replies for other nodes, and repeats
// after the node already joined, are ignored.
func (n *Node) handleJoinReply(p *Packet, r JoinReply) {
	if r.DestID != n.ID {
		return
	}
	if n.role.Joined() {
		n.sim.Metrics.DuplicateJoinReplies++
		n.logf("ignoring duplicate join reply from %d", p.SenderID)
		return
	}
	if n.role != RoleUnregistered {
		return
	}
	if slices.Contains(r.Path, n.ID) {
		n.logf("ignoring join reply from %d: path %v runs through this node", p.SenderID, r.Path)
		delete(n.candidates, p.SenderID)
		return
	}
	n.parent = p.SenderID
	n.ancestors = append([]int(nil), r.Path...)
	n.parentAddr = addrPtr(r.ClusterHead)
	n.rootAddr = addrPtr(r.Root)
	n.hop = r.Hop + 1
	delete(n.candidates, n.parent)

	if n.wasClusterHead {
		n.wasClusterHead = false
		addr := ClusterHeadAddress(n.ID)
		n.addr = addrPtr(addr)
		n.chAddr = addrPtr(addr)
		n.setRole(RoleClusterHead, fmt.Sprintf("re-joined under %d", n.parent))
	} else {
		n.addr = addrPtr(r.Assigned)
		n.chAddr = addrPtr(r.ClusterHead)
		n.setRole(RoleRegistered, fmt.Sprintf("joined %d", n.parent))
	}
	n.sim.observers.LinkChanged(n.sim.Clock, n.ID, n.parent, true)

	n.JoinAcksSent++
	n.sendDirect(*n.parentAddr, JoinAck{Role: n.role})
	n.startBeaconing()
	if n.role == RoleClusterHead {
		n.announceNetworks()
	}
}

func (n *Node) handleJoinAck(p *Packet, ack JoinAck) {
	if !n.role.HeadsCluster() {
		return
	}
	if err := n.admitMember(p.SenderID, ack.Role); err != nil {
		n.warnf(err)
	}
}

// admitMember is the only place a member is recorded. A head that re-joins
// under us is recorded as a child network as well.
func (n *Node) admitMember(id int, role Role) error {
	switch {
	case id == n.ID:
		return fmt.Errorf("node %d: %w: cannot admit itself", n.ID, ErrInvalidMember)
	case id == n.parent:
		return fmt.Errorf("node %d: %w: %d is this node's parent", n.ID, ErrInvalidMember, id)
	case role != RoleRegistered && role != RoleClusterHead:
		return fmt.Errorf("node %d: %w: %d acked as %s", n.ID, ErrInvalidMember, id, role)
	case n.isAncestor(id):
		return fmt.Errorf("node %d admitting %d: %w", n.ID, id, ErrJoinLoop)
	case n.addr == nil:
		return fmt.Errorf("node %d admitting %d: %w", n.ID, id, ErrNoClusterAddress)
	}
	addr := MemberAddress(n.addr.Network, id)
	if role == RoleClusterHead {
		addr = ClusterHeadAddress(id)
	}
	if _, ok := n.members[id]; !ok {
		n.sim.Metrics.JoinsAccepted++
		n.logf("member %d admitted (%s)", id, role)
	}
	n.members[id] = addr
	delete(n.candidates, id)
	if role == RoleClusterHead {
		n.mergeChildNetworks(id, []int{id})
	}
	return nil
}

// removeMember drops id from member and child bookkeeping and re-announces
// the reachable networks when they changed.
func (n *Node) removeMember(id int, reason string) {
	_, wasMember := n.members[id]
	_, wasChild := n.childNetworks[id]
	if !wasMember && !wasChild {
		return
	}
	delete(n.members, id)
	delete(n.childNetworks, id)
	n.sim.Metrics.MembersPurged++
	n.logf("removed member %d: %s", id, reason)
	if wasChild {
		n.announceNetworks()
	}
}

// startBeaconing sends the first heartbeat and arms the periodic timers of a
// freshly joined node.
func (n *Node) startBeaconing() {
	n.sendHeartbeat()
	n.setTimer(TimerHeartbeat, n.cfg.HeartbeatInterval)
	if n.cfg.MultiHop {
		n.setTimer(TimerNeighborShare, n.cfg.NeighborShareInterval)
	}
	if n.cfg.SensorInterval > 0 && n.role != RoleRoot {
		n.setTimer(TimerSensor, n.cfg.SensorInterval)
	}
}
