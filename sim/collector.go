package sim

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes protocol counters as Prometheus metrics. It also
// observes role, link, routing and death notifications. A nil *Collector
// is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	PacketsLost     prometheus.Counter
	RoleTransitions *prometheus.CounterVec
	LinkChanges     *prometheus.CounterVec
	RouteDecisions  *prometheus.CounterVec
	Deaths          prometheus.Counter
	DataLatency     prometheus.Histogram
	NodesByRole     *prometheus.GaugeVec
}

// NewCollector registers the simulator metrics against the provided registerer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.PacketsSent, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wsn_packets_sent_total",
		Help: "Transmissions by packet type, including those later lost.",
	}, []string{"type"}), "wsn_packets_sent_total"); err != nil {
		return nil, err
	}
	if c.PacketsReceived, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wsn_packets_received_total",
		Help: "Frames accepted by a receiver's MAC filter, by packet type.",
	}, []string{"type"}), "wsn_packets_received_total"); err != nil {
		return nil, err
	}
	if c.PacketsLost, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wsn_packets_lost_total",
		Help: "Transmissions dropped by the loss model.",
	}), "wsn_packets_lost_total"); err != nil {
		return nil, err
	}
	if c.RoleTransitions, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wsn_role_transitions_total",
		Help: "Role transitions by destination role.",
	}, []string{"role"}), "wsn_role_transitions_total"); err != nil {
		return nil, err
	}
	if c.LinkChanges, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wsn_parent_link_changes_total",
		Help: "Parent links drawn (up) and erased (down).",
	}, []string{"direction"}), "wsn_parent_link_changes_total"); err != nil {
		return nil, err
	}
	if c.RouteDecisions, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wsn_route_decisions_total",
		Help: "Next-hop decisions by routing step.",
	}, []string{"kind"}), "wsn_route_decisions_total"); err != nil {
		return nil, err
	}
	if c.Deaths, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wsn_node_deaths_total",
		Help: "Nodes that ran out of energy.",
	}), "wsn_node_deaths_total"); err != nil {
		return nil, err
	}
	if c.DataLatency, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wsn_data_latency_seconds",
		Help:    "Virtual time from data origination to delivery.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}), "wsn_data_latency_seconds"); err != nil {
		return nil, err
	}
	if c.NodesByRole, err = registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wsn_nodes_by_role",
		Help: "Live nodes per role at the end of the run.",
	}, []string{"role"}), "wsn_nodes_by_role"); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// PacketSent counts one transmission of type t.
func (c *Collector) PacketSent(t PacketType) {
	if c == nil || c.PacketsSent == nil {
		return
	}
	c.PacketsSent.WithLabelValues(t.String()).Inc()
}

// PacketReceived counts one accepted frame of type t.
func (c *Collector) PacketReceived(t PacketType) {
	if c == nil || c.PacketsReceived == nil {
		return
	}
	c.PacketsReceived.WithLabelValues(t.String()).Inc()
}

// PacketLost counts one transmission dropped by the loss model.
func (c *Collector) PacketLost() {
	if c == nil || c.PacketsLost == nil {
		return
	}
	c.PacketsLost.Inc()
}

// DataDelivered observes the latency of one delivered data reading.
func (c *Collector) DataDelivered(latency float64) {
	if c == nil || c.DataLatency == nil {
		return
	}
	c.DataLatency.Observe(latency)
}

// SetRoleCounts publishes the per-role population. Roles absent from counts are set to zero.
func (c *Collector) SetRoleCounts(counts map[Role]int) {
	if c == nil || c.NodesByRole == nil {
		return
	}
	for _, r := range AllRoles {
		c.NodesByRole.WithLabelValues(r.String()).Set(float64(counts[r]))
	}
}

func (c *Collector) RoleChanged(_ float64, _ int, _, to Role, _ string) {
	if c == nil || c.RoleTransitions == nil {
		return
	}
	c.RoleTransitions.WithLabelValues(to.String()).Inc()
}

func (c *Collector) LinkChanged(_ float64, _, _ int, up bool) {
	if c == nil || c.LinkChanges == nil {
		return
	}
	direction := "down"
	if up {
		direction = "up"
	}
	c.LinkChanges.WithLabelValues(direction).Inc()
}

func (c *Collector) RouteDecided(_ float64, _ int, _ *Packet, kind RouteKind, _ *Address) {
	if c == nil || c.RouteDecisions == nil {
		return
	}
	c.RouteDecisions.WithLabelValues(kind.String()).Inc()
}

func (c *Collector) NodeDied(float64, int) {
	if c == nil || c.Deaths == nil {
		return
	}
	c.Deaths.Inc()
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
