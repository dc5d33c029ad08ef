package sim

import (
	"fmt"
	"slices"
)

// handleHeartbeat refreshes the neighbour table, reconciles child
// bookkeeping, and drives the Undiscovered -> Unregistered transition.
func (n *Node) handleHeartbeat(p *Packet, hb Heartbeat) {
	id := p.SenderID
	entry := &NeighborEntry{
		ID:          id,
		Role:        hb.Role,
		Address:     hb.Address,
		ClusterHead: hb.ClusterHead,
		Root:        hb.Root,
		Parent:      hb.Parent,
		Hop:         hb.Hop,
		Path:        hb.Path,
		LastSeen:    n.sim.Clock,
		Distance:    n.Position.DistanceTo(hb.Position),
	}
	n.neighbors[id] = entry
	delete(n.twoHop, id)

	n.reconcileChild(id, hb.Parent)
	if n.isCandidate(id) {
		n.candidates[id] = struct{}{}
	}

	switch {
	case n.role == RoleUndiscovered:
		n.becomeUnregistered(fmt.Sprintf("heard heartbeat from %d", id))
	case id == n.parent && n.role.Joined():
		n.refreshFromParent(entry)
	}
}

// isCandidate excludes known members and children from candidate parents.
func (n *Node) isCandidate(id int) bool {
	if id == n.parent {
		return true
	}
	if _, ok := n.members[id]; ok {
		return false
	}
	if _, ok := n.childNetworks[id]; ok {
		return false
	}
	return true
}

// reconcileChild drops member or child entries whose own heartbeat names a
// different parent.
func (n *Node) reconcileChild(id, theirParent int) {
	if theirParent == n.ID {
		return
	}
	_, member := n.members[id]
	_, child := n.childNetworks[id]
	if member || child {
		n.removeMember(id, fmt.Sprintf("now reports parent %d", theirParent))
	}
}

// refreshFromParent keeps hop count, ancestor path and upward addresses
// consistent with what the parent currently announces. A changed path is
// pushed down with an immediate heartbeat so descendants learn it before
// they next pick a parent.
func (n *Node) refreshFromParent(e *NeighborEntry) {
	if n.role == RoleRoot {
		return
	}
	if e.Parent == n.ID || slices.Contains(e.Path, n.ID) {
		n.handleParentLoss(fmt.Sprintf("parent %d routes through this node", e.ID))
		return
	}
	hop := e.Hop + 1
	if hop > len(n.sim.Nodes) {
		n.handleParentLoss(fmt.Sprintf("hop count diverged to %d", hop))
		return
	}
	changed := false
	if hop != n.hop {
		n.logf("hop %d -> %d from parent %d", n.hop, hop, e.ID)
		n.hop = hop
		changed = true
	}
	if path := append([]int{e.ID}, e.Path...); !slices.Equal(path, n.ancestors) {
		n.ancestors = path
		changed = true
	}
	n.parentAddr = addrPtr(e.Address)
	n.rootAddr = addrPtr(e.Root)
	if n.role == RoleRegistered || n.role == RoleRouter {
		n.chAddr = addrPtr(e.Address)
	}
	if changed {
		n.sendHeartbeat()
	}
}

// evictStale removes neighbours not heard within NeighborTimeout and 2-hop
// entries older than twice that. Losing the parent starts recovery.
func (n *Node) evictStale() {
	now := n.sim.Clock
	timeout := n.cfg.NeighborTimeout
	parentLost := false
	for _, id := range sortedKeys(n.neighbors) {
		if now-n.neighbors[id].LastSeen <= timeout {
			continue
		}
		delete(n.neighbors, id)
		delete(n.candidates, id)
		n.removeMember(id, "heartbeat timeout")
		if id == n.parent {
			parentLost = true
		}
		n.logf("evicted stale neighbour %d", id)
	}
	for _, id := range sortedKeys(n.twoHop) {
		e := n.twoHop[id]
		if _, viaAlive := n.neighbors[e.Via]; !viaAlive || now-e.LastSeen > 2*timeout {
			delete(n.twoHop, id)
		}
	}
	if parentLost {
		n.handleParentLoss(fmt.Sprintf("parent %d timed out", n.parent))
	}
}

// handleParentLoss resets ordinary nodes. A cluster head keeps its cluster
// and re-joins; it becomes ClusterHead again on the next JOIN_REPLY.
func (n *Node) handleParentLoss(reason string) {
	switch n.role {
	case RoleRegistered, RoleRouter:
		n.resetToUndiscovered(reason)
	case RoleClusterHead:
		n.sim.observers.LinkChanged(n.sim.Clock, n.ID, n.parent, false)
		n.wasClusterHead = true
		n.addr, n.chAddr, n.parentAddr = nil, nil, nil
		n.parent = NoParent
		n.hop = -1
		n.ancestors = nil
		n.nominations = make(map[int]float64)
		n.pendingJoins = make(map[int]struct{})
		n.setRole(RoleUnregistered, reason)
		n.onJoinTimer()
	}
}

func (n *Node) onHeartbeatTimer() {
	if !n.role.Joined() {
		return
	}
	n.evictStale()
	if !n.role.Joined() {
		return
	}
	n.sendHeartbeat()
	n.setTimer(TimerHeartbeat, n.cfg.HeartbeatInterval)
}

func (n *Node) onShareTimer() {
	if !n.role.Joined() || !n.cfg.MultiHop {
		return
	}
	n.sendNeighborShare()
	n.setTimer(TimerNeighborShare, n.cfg.NeighborShareInterval)
}

func (n *Node) sendNeighborShare() {
	now := n.sim.Clock
	share := NeighborShare{}
	for _, id := range sortedKeys(n.neighbors) {
		e := n.neighbors[id]
		if now-e.LastSeen > n.cfg.NeighborTimeout {
			continue
		}
		share.Neighbors = append(share.Neighbors, SharedNeighbor{ID: e.ID, Address: e.Address, Role: e.Role})
	}
	n.broadcast(share)
}

// handleNeighborShare learns 2-hop entries from a live one-hop neighbour.
func (n *Node) handleNeighborShare(p *Packet, share NeighborShare) {
	if !n.cfg.MultiHop {
		return
	}
	via := p.SenderID
	e, ok := n.neighbors[via]
	if !ok || n.sim.Clock-e.LastSeen > n.cfg.NeighborTimeout {
		return
	}
	for _, s := range share.Neighbors {
		if s.ID == n.ID {
			continue
		}
		if _, oneHop := n.neighbors[s.ID]; oneHop {
			continue
		}
		n.twoHop[s.ID] = &TwoHopEntry{ID: s.ID, Via: via, Address: s.Address, Role: s.Role, LastSeen: n.sim.Clock}
	}
}
