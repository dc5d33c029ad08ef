package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/wsn-sim/wsn-sim/sim/trace"
)

// Observer receives purely observational notifications. Implementations
// must not call back into nodes or the scheduler.
type Observer interface {
	RoleChanged(now float64, node int, from, to Role, reason string)
	LinkChanged(now float64, child, parent int, up bool)
	RouteDecided(now float64, node int, p *Packet, kind RouteKind, next *Address)
	NodeDied(now float64, node int)
}

// Observers fans notifications out in order.
type Observers []Observer

func (os Observers) RoleChanged(now float64, node int, from, to Role, reason string) {
	for _, o := range os {
		o.RoleChanged(now, node, from, to, reason)
	}
}

func (os Observers) LinkChanged(now float64, child, parent int, up bool) {
	for _, o := range os {
		o.LinkChanged(now, child, parent, up)
	}
}

func (os Observers) RouteDecided(now float64, node int, p *Packet, kind RouteKind, next *Address) {
	for _, o := range os {
		o.RouteDecided(now, node, p, kind, next)
	}
}

func (os Observers) NodeDied(now float64, node int) {
	for _, o := range os {
		o.NodeDied(now, node)
	}
}

// LogObserver writes notifications through logrus.
type LogObserver struct{}

func (LogObserver) RoleChanged(now float64, node int, from, to Role, reason string) {
	logrus.WithFields(logrus.Fields{"t": now, "node": node, "from": from.String(), "to": to.String()}).
		Info("role change: " + reason)
}

func (LogObserver) LinkChanged(now float64, child, parent int, up bool) {
	if up {
		logrus.Debugf("[t=%9.3f] link %d -> %d drawn", now, child, parent)
		return
	}
	logrus.Debugf("[t=%9.3f] link %d -> %d erased", now, child, parent)
}

func (LogObserver) RouteDecided(now float64, node int, p *Packet, kind RouteKind, next *Address) {
	if kind == RouteFailure {
		logrus.Debugf("[t=%9.3f] node %d: no route for %s to %s", now, node, p.Type(), p.Dest)
		return
	}
	logrus.Tracef("[t=%9.3f] node %d: %s to %s via %s (%s)", now, node, p.Type(), p.Dest, next, kind)
}

func (LogObserver) NodeDied(now float64, node int) {
	logrus.WithFields(logrus.Fields{"t": now, "node": node}).Info("node out of energy")
}

// TraceObserver records decisions into a SimulationTrace.
type TraceObserver struct {
	Trace *trace.SimulationTrace
}

func (t *TraceObserver) RoleChanged(now float64, node int, from, to Role, reason string) {
	if !t.Trace.Config.Level.RecordsRoles() {
		return
	}
	t.Trace.RecordRole(trace.RoleRecord{NodeID: node, Clock: now, From: from.String(), To: to.String(), Reason: reason})
}

func (t *TraceObserver) LinkChanged(now float64, child, parent int, up bool) {
	if !t.Trace.Config.Level.RecordsRoles() {
		return
	}
	t.Trace.RecordLink(trace.LinkRecord{Child: child, Parent: parent, Clock: now, Up: up})
}

func (t *TraceObserver) RouteDecided(now float64, node int, p *Packet, kind RouteKind, next *Address) {
	if !t.Trace.Config.Level.RecordsRouting() {
		return
	}
	t.Trace.RecordRouting(trace.RoutingRecord{
		NodeID:     node,
		Clock:      now,
		PacketType: p.Type().String(),
		Dest:       p.Dest.String(),
		Decision:   kind.String(),
		NextHop:    addrString(next),
	})
}

func (t *TraceObserver) NodeDied(now float64, node int) {
	if !t.Trace.Config.Level.RecordsRoles() {
		return
	}
	t.Trace.RecordRole(trace.RoleRecord{NodeID: node, Clock: now, To: "dead", Reason: "energy depleted"})
}
