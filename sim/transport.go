package sim

import (
	"math/rand"

	"github.com/sirupsen/logrus"
)

// Transport turns one transmission into per-receiver arrival events.
// Loss is decided once per transmission, after the sender has paid for it.
type Transport struct {
	sim      *Simulator
	ranges   RangeProvider
	lossRate float64
	rng      *rand.Rand
	delay    float64
}

func newTransport(sim *Simulator, ranges RangeProvider, lossRate float64, rng *rand.Rand, delay float64) *Transport {
	return &Transport{sim: sim, ranges: ranges, lossRate: lossRate, rng: rng, delay: delay}
}

// Send transmits p from sender to every live node in range. The receivers'
// MAC filter decides who keeps it.
func (t *Transport) Send(sender *Node, p *Packet) {
	if !sender.spend(energyTx, p.Size()) {
		return
	}
	t.sim.Metrics.recordSent(p.Type())
	t.sim.collector.PacketSent(p.Type())

	if t.lossRate > 0 && t.rng.Float64() < t.lossRate {
		t.sim.Metrics.PacketsLost++
		t.sim.collector.PacketLost()
		logrus.Tracef("[t=%9.3f] node %d: %s lost", t.sim.Clock, sender.ID, p.Type())
		return
	}

	for _, id := range t.ranges.InRange(sender.ID, t.sim.Clock) {
		if id == sender.ID || id < 0 || id >= len(t.sim.Nodes) || t.sim.Nodes[id].Dead() {
			continue
		}
		t.sim.Schedule(t.delay, &PacketArrivalEvent{Node: id, Packet: p.Clone()})
	}
}
