// Tracks simulation-wide protocol counters such as packets per type,
// join and promotion outcomes, maintenance actions and data delivery.

package sim

import (
	"fmt"
	"io"
	"sort"
)

// Metrics aggregates statistics about the simulation
// for final reporting. Per-node routing counters live on Node.Stats.
type Metrics struct {
	EventsProcessed int64 // events executed by the scheduler
	EventsDropped   int64 // events whose target node was dead

	PacketsSent     map[PacketType]int // transmissions by packet type, lost ones included
	PacketsReceived int                // frames accepted by the MAC filter
	PacketsLost     int                // transmissions dropped by the loss model
	PacketsExpired  int                // relays dropped on TTL

	JoinRequests         int
	JoinsAccepted        int // members admitted on JOIN_ACK
	DuplicateJoinReplies int
	NetworksGranted      int // root-granted networks
	NominationsApproved  int
	NominationsRejected  int
	MembersPurged        int
	MaintenanceActions   int
	Resets               int
	Deaths               int

	DataSent      int
	DataDelivered int
	DataLatencies []float64 // origin-to-root seconds per delivered reading

	SimEndedTime float64 // virtual seconds at which Run returned
}

// NewMetrics returns an empty Metrics ready for recording.
func NewMetrics() *Metrics {
	return &Metrics{PacketsSent: make(map[PacketType]int)}
}

func (m *Metrics) recordSent(t PacketType) {
	m.PacketsSent[t]++
}

// TotalPacketsSent sums transmissions over every packet type.
func (m *Metrics) TotalPacketsSent() int {
	total := 0
	for _, c := range m.PacketsSent {
		total += c
	}
	return total
}

// MeanDataLatency is the mean origin-to-delivery time of data readings in seconds.
func (m *Metrics) MeanDataLatency() float64 {
	return CalculateMean(m.DataLatencies)
}

// DeliveryRatio is DataDelivered / DataSent, 0 when nothing was sent.
func (m *Metrics) DeliveryRatio() float64 {
	if m.DataSent == 0 {
		return 0
	}
	return float64(m.DataDelivered) / float64(m.DataSent)
}

// Print displays aggregated metrics at the end of the simulation.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %.2f s\n", m.SimEndedTime)
	fmt.Fprintf(w, "Events Processed     : %d (%d dropped)\n", m.EventsProcessed, m.EventsDropped)
	fmt.Fprintf(w, "Packets Sent         : %d\n", m.TotalPacketsSent())

	types := make([]PacketType, 0, len(m.PacketsSent))
	for t := range m.PacketsSent {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		fmt.Fprintf(w, "  %-24s: %d\n", t, m.PacketsSent[t])
	}

	fmt.Fprintf(w, "Packets Received     : %d\n", m.PacketsReceived)
	fmt.Fprintf(w, "Packets Lost         : %d\n", m.PacketsLost)
	fmt.Fprintf(w, "Packets Expired      : %d\n", m.PacketsExpired)
	fmt.Fprintf(w, "Join Requests        : %d (%d accepted, %d duplicate replies)\n",
		m.JoinRequests, m.JoinsAccepted, m.DuplicateJoinReplies)
	fmt.Fprintf(w, "Networks Granted     : %d\n", m.NetworksGranted)
	fmt.Fprintf(w, "Nominations          : %d approved, %d rejected\n", m.NominationsApproved, m.NominationsRejected)
	fmt.Fprintf(w, "Maintenance Actions  : %d (%d resets, %d members purged)\n",
		m.MaintenanceActions, m.Resets, m.MembersPurged)
	fmt.Fprintf(w, "Deaths               : %d\n", m.Deaths)
	if m.DataSent > 0 {
		fmt.Fprintf(w, "Data Delivered       : %d / %d (%.1f%%)\n", m.DataDelivered, m.DataSent, 100*m.DeliveryRatio())
		fmt.Fprintf(w, "Mean Data Latency    : %.4f s\n", m.MeanDataLatency())
		if d := NewDistribution(m.DataLatencies); d.Count > 0 {
			fmt.Fprintf(w, "Data Latency p50/p95/p99 : %.4f / %.4f / %.4f s\n", d.P50, d.P95, d.P99)
		}
	}
}
