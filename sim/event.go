package sim

import (
	"github.com/sirupsen/logrus"
)

// NoTarget marks events that are not addressed to a node.
const NoTarget = -1

// Event is a unit of work dispatched by the Simulator. Target names the node
// the event is addressed to; events for dead nodes are dropped unexecuted.
type Event interface {
	Target() int
	Execute(*Simulator)
}

// TimerName identifies a per-node timer. Re-arming a name cancels the
// previous instance.
type TimerName string

const (
	TimerArrival       TimerName = "arrival"
	TimerProbe         TimerName = "probe"
	TimerJoinRequest   TimerName = "join_request"
	TimerHeartbeat     TimerName = "heartbeat"
	TimerNeighborShare TimerName = "neighbor_share"
	TimerPromotionLock TimerName = "promotion_lock"
	TimerMaintenance   TimerName = "maintenance"
	TimerStats         TimerName = "stats"
	TimerSensor        TimerName = "sensor"
)

// TimerFiredEvent fires a named timer unless it was killed or re-armed since.
type TimerFiredEvent struct {
	Node       int
	Name       TimerName
	generation uint64
}

func (e *TimerFiredEvent) Target() int { return e.Node }

// Execute skips stale generations, then hands the timer to the node.
func (e *TimerFiredEvent) Execute(sim *Simulator) {
	key := timerKey{node: e.Node, name: e.Name}
	if sim.timers[key] != e.generation {
		logrus.Tracef("[t=%9.3f] node %d: dropping cancelled timer %s", sim.Clock, e.Node, e.Name)
		return
	}
	delete(sim.timers, key)
	sim.Nodes[e.Node].onTimer(e.Name)
}

// PacketArrivalEvent delivers one receiver's copy of a packet.
type PacketArrivalEvent struct {
	Node   int
	Packet *Packet
}

func (e *PacketArrivalEvent) Target() int { return e.Node }

func (e *PacketArrivalEvent) Execute(sim *Simulator) {
	sim.Nodes[e.Node].onReceive(e.Packet)
}

// ControlKind enumerates the commands the maintenance controller can issue.
type ControlKind int

const (
	// ControlReset drops the node back to Undiscovered.
	ControlReset ControlKind = iota
	// ControlDemoteRouter turns a Router without a live nominee back into Registered.
	ControlDemoteRouter
	// ControlPurgeMember removes Subject from the head's member bookkeeping.
	ControlPurgeMember
)

func (k ControlKind) String() string {
	switch k {
	case ControlReset:
		return "reset"
	case ControlDemoteRouter:
		return "demote_router"
	case ControlPurgeMember:
		return "purge_member"
	default:
		return "unknown"
	}
}

// ControlCommand is a maintenance instruction addressed to one node.
type ControlCommand struct {
	Node    int
	Kind    ControlKind
	Subject int
	Reason  string
}

// ControlEvent delivers a ControlCommand. The node applies it in its own
// handler so state is only ever mutated by its owner.
type ControlEvent struct {
	Command ControlCommand
}

func (e *ControlEvent) Target() int { return e.Command.Node }

func (e *ControlEvent) Execute(sim *Simulator) {
	sim.Nodes[e.Command.Node].onControl(e.Command)
}

// DeferredSendEvent transmits a packet prepared earlier by the same node.
type DeferredSendEvent struct {
	Node   int
	Packet *Packet
}

func (e *DeferredSendEvent) Target() int { return e.Node }

func (e *DeferredSendEvent) Execute(sim *Simulator) {
	sim.Nodes[e.Node].transmit(e.Packet)
}
