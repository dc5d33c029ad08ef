package sim

import (
	"fmt"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"
)

// NoParent marks a node without an upward link.
const NoParent = -1

// NeighborEntry is what a node last heard from a one-hop neighbour.
type NeighborEntry struct {
	ID          int
	Role        Role
	Address     Address
	ClusterHead Address
	Root        Address
	Parent      int
	Hop         int
	Path        []int
	LastSeen    float64
	Distance    float64
}

// TwoHopEntry is a node learned from a neighbour's NeighborShare.
type TwoHopEntry struct {
	ID       int
	Via      int
	Address  Address
	Role     Role
	LastSeen float64
}

type promotionLock struct {
	nominee int
	router  int
}

// Node is one simulated sensor. Its state is only mutated by its own
// handlers (onTimer, onReceive, onControl).
type Node struct {
	ID       int
	Position Position

	sim *Simulator
	cfg *SimConfig

	role  Role
	awake bool
	dead  bool

	addr       *Address
	chAddr     *Address
	rootAddr   *Address
	parentAddr *Address
	parent     int
	hop        int
	ancestors  []int // parent first, root last

	neighbors     map[int]*NeighborEntry
	twoHop        map[int]*TwoHopEntry
	candidates    map[int]struct{}
	members       map[int]Address // member id -> address it acked under
	childNetworks map[int]map[int]struct{}
	formerBelow   map[int]float64 // ids and networks that hung below us before a reset -> expiry

	pendingJoins   map[int]struct{} // requesters waiting for our own promotion
	nominations    map[int]float64  // nominee -> time the request went to the parent head
	lock           *promotionLock   // head side, one nomination at a time
	wasClusterHead bool             // re-joining after parent loss with the cluster retained
	probeCount     int
	unregSince     float64

	energy EnergyLedger
	Stats  RoutingStats

	WakeupTime   float64
	JoinTime     float64
	DiedAt       float64
	JoinCount    int
	DataReceived int
	JoinAcksSent int
}

func newNode(id int, pos Position, sim *Simulator) *Node {
	n := &Node{
		ID:         id,
		Position:   pos,
		sim:        sim,
		cfg:        &sim.Config,
		role:       RoleUndiscovered,
		parent:     NoParent,
		hop:        -1,
		energy:     newEnergyLedger(sim.Config.Energy.Initial),
		WakeupTime: -1,
		JoinTime:   -1,
		DiedAt:     -1,
	}
	n.resetTables()
	n.neighbors = make(map[int]*NeighborEntry)
	n.formerBelow = make(map[int]float64)
	return n
}

// resetTables clears everything learned while joined. One-hop neighbours
// are kept; they expire on their own.
func (n *Node) resetTables() {
	n.twoHop = make(map[int]*TwoHopEntry)
	n.candidates = make(map[int]struct{})
	n.members = make(map[int]Address)
	n.childNetworks = make(map[int]map[int]struct{})
	n.pendingJoins = make(map[int]struct{})
	n.nominations = make(map[int]float64)
	n.lock = nil
}

// Role returns the current protocol role.
func (n *Node) Role() Role { return n.role }

// Dead reports whether the node ran out of energy.
func (n *Node) Dead() bool { return n.dead }

// Awake reports whether the node's arrival timer has fired.
func (n *Node) Awake() bool { return n.awake }

// Address returns the node's network address, if joined.
func (n *Node) Address() (Address, bool) {
	if n.addr == nil {
		return Address{}, false
	}
	return *n.addr, true
}

// ClusterHeadAddress returns the address this node forwards under.
func (n *Node) ClusterHeadAddress() (Address, bool) {
	if n.chAddr == nil {
		return Address{}, false
	}
	return *n.chAddr, true
}

// ParentID returns the upward neighbour, or NoParent.
func (n *Node) ParentID() int { return n.parent }

// HopCount returns the distance to Root, or -1 while not joined.
func (n *Node) HopCount() int { return n.hop }

// roleTimers lists the timers each role may own. Every other timer is
// cancelled on entry to the role.
var roleTimers = map[Role][]TimerName{
	RoleUndiscovered: {TimerArrival, TimerProbe},
	RoleUnregistered: {TimerJoinRequest},
	RoleRegistered:   {TimerHeartbeat, TimerNeighborShare, TimerSensor},
	RoleRouter:       {TimerHeartbeat, TimerNeighborShare, TimerSensor},
	RoleClusterHead:  {TimerHeartbeat, TimerNeighborShare, TimerSensor, TimerPromotionLock},
	RoleRoot:         {TimerHeartbeat, TimerNeighborShare, TimerPromotionLock, TimerMaintenance, TimerStats},
}

var allTimers = []TimerName{
	TimerArrival, TimerProbe, TimerJoinRequest, TimerHeartbeat, TimerNeighborShare,
	TimerPromotionLock, TimerMaintenance, TimerStats, TimerSensor,
}

func roleOwnsTimer(r Role, name TimerName) bool {
	for _, t := range roleTimers[r] {
		if t == name {
			return true
		}
	}
	return false
}

// setRole is the single role mutation point. Timers the new role does not
// own are cancelled before the role changes.
func (n *Node) setRole(to Role, reason string) {
	from := n.role
	if from == to {
		return
	}
	if n.dead && to != RoleUndiscovered {
		return
	}
	for _, name := range allTimers {
		if !roleOwnsTimer(to, name) {
			n.sim.KillTimer(n.ID, name)
		}
	}
	now := n.sim.Clock
	n.role = to
	switch {
	case to == RoleUnregistered:
		n.unregSince = now
	case to.Joined() && !from.Joined():
		n.JoinCount++
		if n.JoinTime < 0 {
			n.JoinTime = now
		}
	}
	if to != RoleClusterHead && to != RoleRoot {
		n.lock = nil
	}
	n.sim.observers.RoleChanged(now, n.ID, from, to, reason)
}

func (n *Node) setTimer(name TimerName, delay float64) {
	if n.dead {
		return
	}
	n.sim.SetTimer(n.ID, name, delay)
}

func (n *Node) killTimer(name TimerName) {
	n.sim.KillTimer(n.ID, name)
}

func (n *Node) logf(format string, args ...any) {
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.Debugf("[t=%9.3f] node %d (%s): %s", n.sim.Clock, n.ID, n.role, fmt.Sprintf(format, args...))
	}
}

func (n *Node) warnf(err error) {
	logrus.WithFields(logrus.Fields{"node": n.ID, "role": n.role.String(), "t": n.sim.Clock}).Warn(err)
}

// === sending ===

func (n *Node) newPacket(dest Address, body Body) *Packet {
	p := &Packet{Dest: dest, SenderID: n.ID, TTL: n.cfg.PacketTTL, Body: body}
	if n.addr != nil {
		p.Source = addrPtr(*n.addr)
	}
	return p
}

// transmit hands p to the radio. Dead nodes stay silent.
func (n *Node) transmit(p *Packet) {
	if n.dead {
		return
	}
	n.sim.transport.Send(n, p)
}

func (n *Node) broadcast(body Body) {
	n.transmit(n.newPacket(Broadcast, body))
}

// sendDirect unicasts to a one-hop neighbour.
func (n *Node) sendDirect(dest Address, body Body) {
	p := n.newPacket(dest, body)
	p.NextHop = addrPtr(dest)
	n.transmit(p)
}

// sendRouted originates a packet through the routing engine.
func (n *Node) sendRouted(dest Address, body Body) error {
	return n.routeAndForward(n.newPacket(dest, body))
}

// respond transmits now, or after ReplyDelay when one is configured.
func (n *Node) respond(p *Packet) {
	if n.cfg.ReplyDelay > 0 {
		n.sim.Schedule(n.cfg.ReplyDelay, &DeferredSendEvent{Node: n.ID, Packet: p})
		return
	}
	n.transmit(p)
}

func (n *Node) sendProbe() {
	n.broadcast(Probe{})
}

func (n *Node) heartbeat() Heartbeat {
	hb := Heartbeat{Role: n.role, Parent: n.parent, Hop: n.hop, Position: n.Position, Path: n.ancestors}
	if n.addr != nil {
		hb.Address = *n.addr
	}
	if n.chAddr != nil {
		hb.ClusterHead = *n.chAddr
	}
	if n.rootAddr != nil {
		hb.Root = *n.rootAddr
	}
	return hb
}

func (n *Node) sendHeartbeat() {
	if n.addr == nil {
		return
	}
	n.broadcast(n.heartbeat())
}

// === dispatch ===

func (n *Node) onTimer(name TimerName) {
	switch name {
	case TimerArrival:
		n.wake()
	case TimerProbe:
		n.onProbeTimer()
	case TimerJoinRequest:
		n.onJoinTimer()
	case TimerHeartbeat:
		n.onHeartbeatTimer()
	case TimerNeighborShare:
		n.onShareTimer()
	case TimerPromotionLock:
		n.releasePromotionLock("lock timed out")
	case TimerMaintenance:
		n.onMaintenanceTimer()
	case TimerStats:
		n.onStatsTimer()
	case TimerSensor:
		n.onSensorTimer()
	}
}

// accepts is the MAC filter: broadcasts, or frames whose next hop (or final
// destination when no next hop is set) is this node's address.
func (n *Node) accepts(p *Packet) bool {
	target := p.Dest
	if p.NextHop != nil {
		target = *p.NextHop
	}
	if target.IsBroadcast() {
		return true
	}
	return n.addr != nil && *n.addr == target
}

func (n *Node) onReceive(p *Packet) {
	if n.dead || !n.awake || !n.accepts(p) {
		return
	}
	if !n.spend(energyRx, p.Size()) {
		return
	}
	n.sim.Metrics.PacketsReceived++
	n.sim.collector.PacketReceived(p.Type())

	if !p.Dest.IsBroadcast() && (n.addr == nil || p.Dest != *n.addr) {
		n.forward(p)
		return
	}

	switch body := p.Body.(type) {
	case Probe:
		n.handleProbe()
	case Heartbeat:
		n.handleHeartbeat(p, body)
	case JoinRequest:
		n.handleJoinRequest(p)
	case JoinReply:
		n.handleJoinReply(p, body)
	case JoinAck:
		n.handleJoinAck(p, body)
	case NetworkRequest:
		n.handleNetworkRequest(p, body)
	case NetworkReply:
		n.handleNetworkReply(p, body)
	case NetworkRequestRejected:
		n.handleNetworkRejected(body)
	case NetworkUpdate:
		n.handleNetworkUpdate(p, body)
	case BecomeClusterHead:
		n.handleBecomeClusterHead(p, body)
	case NeighborShare:
		n.handleNeighborShare(p, body)
	case Data:
		n.handleData(p, body)
	}
}

func (n *Node) onControl(cmd ControlCommand) {
	switch cmd.Kind {
	case ControlReset:
		if n.role == RoleRoot || n.role == RoleUndiscovered {
			return
		}
		n.resetToUndiscovered("maintenance: " + cmd.Reason)
	case ControlDemoteRouter:
		if n.role != RoleRouter {
			return
		}
		n.childNetworks = make(map[int]map[int]struct{})
		n.setRole(RoleRegistered, "maintenance: "+cmd.Reason)
		n.announceNetworks()
	case ControlPurgeMember:
		n.removeMember(cmd.Subject, "maintenance: "+cmd.Reason)
	}
}

// die is the terminal energy transition. It runs at most once.
func (n *Node) die() {
	if n.dead {
		return
	}
	now := n.sim.Clock
	n.dead = true
	n.DiedAt = now
	n.energy.Remaining = 0
	n.sim.KillAllTimers(n.ID)
	if n.parent != NoParent {
		n.sim.observers.LinkChanged(now, n.ID, n.parent, false)
	}
	n.clearJoinState()
	n.setRole(RoleUndiscovered, "energy depleted")
	n.awake = false
	n.sim.Metrics.Deaths++
	n.sim.observers.NodeDied(now, n.ID)
}

func (n *Node) clearJoinState() {
	n.holdBelow()
	n.addr, n.chAddr, n.rootAddr, n.parentAddr = nil, nil, nil, nil
	n.parent = NoParent
	n.hop = -1
	n.ancestors = nil
	n.wasClusterHead = false
	n.resetTables()
}

// holdBelow remembers every member, child and child network so a reset
// node does not re-join inside its own former subtree. Their heartbeats
// keep naming us until they time out.
func (n *Node) holdBelow() {
	until := n.sim.Clock + n.cfg.NeighborTimeout + n.cfg.HeartbeatInterval
	for id := range n.members {
		n.formerBelow[id] = until
	}
	for child, nets := range n.childNetworks {
		n.formerBelow[child] = until
		for net := range nets {
			n.formerBelow[net] = until
		}
	}
}

// heldBelow reports whether id was beneath this node before its last reset
// and the hold has not expired.
func (n *Node) heldBelow(id int) bool {
	until, ok := n.formerBelow[id]
	if !ok {
		return false
	}
	if n.sim.Clock >= until {
		delete(n.formerBelow, id)
		return false
	}
	return true
}

// isAncestor reports whether id sits on this node's path to the root.
func (n *Node) isAncestor(id int) bool {
	return id == n.parent || slices.Contains(n.ancestors, id)
}

// upwardPath is the chain handed to a node joining beneath us.
func (n *Node) upwardPath() []int {
	return append([]int{n.ID}, n.ancestors...)
}

// resetToUndiscovered drops all joined state and resumes probing.
func (n *Node) resetToUndiscovered(reason string) {
	if n.parent != NoParent {
		n.sim.observers.LinkChanged(n.sim.Clock, n.ID, n.parent, false)
	}
	n.clearJoinState()
	n.setRole(RoleUndiscovered, reason)
	n.sim.Metrics.Resets++
	if n.awake && !n.dead {
		n.probeCount = 0
		n.sendProbe()
		n.setTimer(TimerProbe, n.cfg.ProbeInterval)
	}
}

// === snapshots ===

// NodeSnapshot is a read-only copy of a node's state for reporting and
// maintenance. It shares no memory with the node.
type NodeSnapshot struct {
	ID                int
	Position          Position
	Role              Role
	Awake             bool
	Dead              bool
	Address           *Address
	ClusterHead       *Address
	ParentID          int
	HopCount          int
	Neighbors         []NeighborEntry
	TwoHop            []TwoHopEntry
	Members           []int
	ChildNetworks     map[int][]int
	Stats             RoutingStats
	Energy            EnergyLedger
	WakeupTime        float64
	JoinTime          float64
	DiedAt            float64
	UnregisteredSince float64
	JoinCount         int
	DataReceived      int
}

// Snapshot copies the node's current state.
func (n *Node) Snapshot() NodeSnapshot {
	s := NodeSnapshot{
		ID:                n.ID,
		Position:          n.Position,
		Role:              n.role,
		Awake:             n.awake,
		Dead:              n.dead,
		ParentID:          n.parent,
		HopCount:          n.hop,
		Members:           sortedKeys(n.members),
		ChildNetworks:     make(map[int][]int, len(n.childNetworks)),
		Stats:             n.Stats,
		Energy:            n.Energy(),
		WakeupTime:        n.WakeupTime,
		JoinTime:          n.JoinTime,
		DiedAt:            n.DiedAt,
		UnregisteredSince: n.unregSince,
		JoinCount:         n.JoinCount,
		DataReceived:      n.DataReceived,
	}
	if n.addr != nil {
		s.Address = addrPtr(*n.addr)
	}
	if n.chAddr != nil {
		s.ClusterHead = addrPtr(*n.chAddr)
	}
	for _, id := range sortedKeys(n.neighbors) {
		e := *n.neighbors[id]
		e.Path = append([]int(nil), e.Path...)
		s.Neighbors = append(s.Neighbors, e)
	}
	for _, id := range sortedKeys(n.twoHop) {
		s.TwoHop = append(s.TwoHop, *n.twoHop[id])
	}
	for child, nets := range n.childNetworks {
		s.ChildNetworks[child] = sortedKeys(nets)
	}
	return s
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
