package sim

import "fmt"

// SendData originates an application reading to dest through the routing engine.
func (n *Node) SendData(dest Address, value float64) error {
	if n.dead || !n.role.Joined() || n.addr == nil {
		return fmt.Errorf("node %d sending data: %w", n.ID, ErrNotJoined)
	}
	n.sim.Metrics.DataSent++
	if dest == *n.addr {
		n.deliverData(Data{Value: value, CreatedAt: n.sim.Clock})
		return nil
	}
	return n.sendRouted(dest, Data{Value: value, CreatedAt: n.sim.Clock})
}

func (n *Node) onSensorTimer() {
	if !n.role.Joined() || n.role == RoleRoot || n.cfg.SensorInterval <= 0 {
		return
	}
	if n.rootAddr != nil {
		reading := n.sim.rng.ForSubsystem(SubsystemSensor).Float64()
		if err := n.SendData(*n.rootAddr, reading); err != nil {
			n.warnf(err)
		}
	}
	n.setTimer(TimerSensor, n.cfg.SensorInterval)
}

func (n *Node) handleData(p *Packet, d Data) {
	n.logf("data %.3f from %d, age %.3fs", d.Value, p.SenderID, n.sim.Clock-d.CreatedAt)
	n.deliverData(d)
}

func (n *Node) deliverData(d Data) {
	n.DataReceived++
	latency := n.sim.Clock - d.CreatedAt
	n.sim.Metrics.DataDelivered++
	n.sim.Metrics.DataLatencies = append(n.sim.Metrics.DataLatencies, latency)
	n.sim.collector.DataDelivered(latency)
}
