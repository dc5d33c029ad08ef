package sim

import (
	"fmt"
	"slices"
)

// requestOwnNetwork is the self-promotion path: a Registered node that is
// asked to admit someone requests a network of its own from Root.
func (n *Node) requestOwnNetwork(requester int) {
	n.pendingJoins[requester] = struct{}{}
	if n.rootAddr == nil {
		n.warnf(fmt.Errorf("node %d requesting a network: %w", n.ID, ErrNoRoute))
		return
	}
	n.logf("requesting own network for joiner %d", requester)
	if err := n.sendRouted(*n.rootAddr, NetworkRequest{Requester: n.ID}); err != nil {
		n.warnf(err)
	}
}

// nominate is the router path: ask the parent head to promote the joiner.
// Repeats for the same nominee are suppressed while a request is in flight.
func (n *Node) nominate(nominee int) {
	if at, ok := n.nominations[nominee]; ok && n.sim.Clock-at < n.cfg.PromotionLockTimeout {
		return
	}
	if n.parentAddr == nil {
		n.warnf(fmt.Errorf("node %d nominating %d: %w", n.ID, nominee, ErrNoRoute))
		return
	}
	n.nominations[nominee] = n.sim.Clock
	n.logf("nominating %d as cluster head", nominee)
	n.sendDirect(*n.parentAddr, NetworkRequest{Requester: n.ID, Nominee: nominee, Nominated: true})
}

func (n *Node) handleNetworkRequest(p *Packet, req NetworkRequest) {
	if req.Nominated {
		n.handleNomination(p, req)
		return
	}
	if n.role != RoleRoot {
		return
	}
	if p.Source == nil {
		n.warnf(fmt.Errorf("root: network request from %d without source address: %w", req.Requester, ErrNoRoute))
		return
	}
	n.sim.Metrics.NetworksGranted++
	n.logf("granting network %d", req.Requester)
	reply := NetworkReply{Requester: req.Requester, Assigned: ClusterHeadAddress(req.Requester)}
	if err := n.sendRouted(*p.Source, reply); err != nil {
		n.warnf(err)
	}
}

// handleNomination approves at most one nomination at a time. The nominee's
// network is recorded beneath the router right away.
func (n *Node) handleNomination(p *Packet, req NetworkRequest) {
	if !n.role.HeadsCluster() || p.Source == nil {
		return
	}
	if n.lock != nil {
		if n.lock.nominee == req.Nominee {
			return
		}
		n.sim.Metrics.NominationsRejected++
		n.logf("rejecting nomination of %d by %d, %d in progress", req.Nominee, req.Requester, n.lock.nominee)
		n.sendDirect(*p.Source, NetworkRequestRejected{Requester: req.Requester, Nominee: req.Nominee})
		return
	}
	n.lock = &promotionLock{nominee: req.Nominee, router: req.Requester}
	n.setTimer(TimerPromotionLock, n.cfg.PromotionLockTimeout)
	n.mergeChildNetworks(req.Requester, []int{req.Nominee})
	n.sim.Metrics.NominationsApproved++
	n.logf("approved nomination of %d via router %d", req.Nominee, req.Requester)
	n.sendDirect(*p.Source, NetworkReply{
		Requester: req.Requester,
		Nominee:   req.Nominee,
		Nominated: true,
		Assigned:  ClusterHeadAddress(req.Nominee),
	})
}

func (n *Node) releasePromotionLock(reason string) {
	if n.lock == nil {
		return
	}
	n.logf("promotion lock for %d released: %s", n.lock.nominee, reason)
	n.lock = nil
	n.killTimer(TimerPromotionLock)
}

func (n *Node) handleNetworkReply(p *Packet, rep NetworkReply) {
	if rep.Requester != n.ID {
		return
	}
	if rep.Nominated {
		n.bridgeNominee(rep)
		return
	}
	if n.role != RoleRegistered {
		return
	}
	n.promoteToClusterHead(rep.Assigned, "network granted by root")
}

// promoteToClusterHead swaps the member address for the head address in
// place; the parent link is kept, not duplicated.
func (n *Node) promoteToClusterHead(assigned Address, reason string) {
	n.addr = addrPtr(assigned)
	n.chAddr = addrPtr(assigned)
	n.setRole(RoleClusterHead, reason)
	n.announceNetworks()
	n.sendHeartbeat()
	for _, id := range sortedKeys(n.pendingJoins) {
		if err := n.acceptJoin(id); err != nil {
			n.warnf(err)
		}
	}
	n.pendingJoins = make(map[int]struct{})
}

// bridgeNominee turns an approved nomination into a BECOME_CH broadcast.
func (n *Node) bridgeNominee(rep NetworkReply) {
	if n.role != RoleRegistered && n.role != RoleRouter {
		return
	}
	delete(n.nominations, rep.Nominee)
	if n.role == RoleRegistered {
		n.setRole(RoleRouter, fmt.Sprintf("bridging nominee %d", rep.Nominee))
	}
	n.mergeChildNetworks(rep.Nominee, []int{rep.Nominee})
	root := Address{}
	if n.rootAddr != nil {
		root = *n.rootAddr
	}
	n.broadcast(BecomeClusterHead{Nominee: rep.Nominee, Assigned: rep.Assigned, Root: root, Hop: n.hop, Path: n.upwardPath()})
}

func (n *Node) handleNetworkRejected(rej NetworkRequestRejected) {
	if rej.Requester != n.ID {
		return
	}
	delete(n.nominations, rej.Nominee)
	n.logf("nomination of %d rejected", rej.Nominee)
}

// handleBecomeClusterHead promotes an Unregistered nominee beneath the router.
func (n *Node) handleBecomeClusterHead(p *Packet, b BecomeClusterHead) {
	if b.Nominee != n.ID || n.role != RoleUnregistered || p.Source == nil {
		return
	}
	if slices.Contains(b.Path, n.ID) {
		n.logf("ignoring promotion from %d: path %v runs through this node", p.SenderID, b.Path)
		return
	}
	n.parent = p.SenderID
	n.ancestors = append([]int(nil), b.Path...)
	n.parentAddr = addrPtr(*p.Source)
	n.rootAddr = addrPtr(b.Root)
	n.hop = b.Hop + 1
	n.addr = addrPtr(b.Assigned)
	n.chAddr = addrPtr(b.Assigned)
	n.wasClusterHead = false
	delete(n.candidates, n.parent)
	n.setRole(RoleClusterHead, fmt.Sprintf("nominated via router %d", n.parent))
	n.sim.observers.LinkChanged(n.sim.Clock, n.ID, n.parent, true)
	n.startBeaconing()
	n.announceNetworks()
}

// handleNetworkUpdate replaces what a child reported and passes the
// aggregate upward.
func (n *Node) handleNetworkUpdate(p *Packet, u NetworkUpdate) {
	child := p.SenderID
	if !n.role.Joined() || child == n.ID || n.isAncestor(child) {
		return
	}
	nets := make(map[int]struct{}, len(u.Networks))
	for _, id := range u.Networks {
		nets[id] = struct{}{}
	}
	n.childNetworks[child] = nets
	delete(n.candidates, child)
	if n.lock != nil {
		if _, ok := nets[n.lock.nominee]; ok {
			n.releasePromotionLock("nominee network announced")
		}
	}
	n.announceNetworks()
}

// announceNetworks reports every network reachable beneath this node to its parent.
func (n *Node) announceNetworks() {
	if n.role == RoleRoot || !n.role.Joined() || n.parentAddr == nil {
		return
	}
	n.sendDirect(*n.parentAddr, NetworkUpdate{Networks: n.ownNetworks()})
}

func (n *Node) ownNetworkSet() map[int]struct{} {
	set := make(map[int]struct{})
	if n.role.HeadsCluster() || n.wasClusterHead {
		set[n.ID] = struct{}{}
	}
	for _, nets := range n.childNetworks {
		for id := range nets {
			set[id] = struct{}{}
		}
	}
	return set
}

func (n *Node) ownNetworks() []int {
	return sortedKeys(n.ownNetworkSet())
}

func (n *Node) mergeChildNetworks(child int, nets []int) {
	set, ok := n.childNetworks[child]
	if !ok {
		set = make(map[int]struct{})
		n.childNetworks[child] = set
	}
	for _, id := range nets {
		set[id] = struct{}{}
	}
}
