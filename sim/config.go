package sim

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// TopologyConfig selects node placement and the disc radio range.
type TopologyConfig struct {
	Kind    string  // grid, line or random
	TxRange float64 // disc range in placement units (must be > 0)
	Spacing float64 // grid/line pitch
	Jitter  float64 // max grid offset per axis
	Width   float64 // random placement area
	Height  float64
}

// ValidTopologies is the set of recognized placement kinds.
var ValidTopologies = map[string]bool{"grid": true, "line": true, "random": true}

// EnergyConfig parameterizes the per-node energy ledger.
type EnergyConfig struct {
	Enabled        bool
	Initial        float64 // joules per node at build time
	TxPerByte      float64
	RxPerByte      float64
	IdlePerSecond  float64 // drain while awake
	SleepPerSecond float64 // drain before wake-up
	SampleInterval float64 // Root-driven energy timeline sampling
}

// MaintenanceConfig parameterizes the Root-driven maintenance sweep.
type MaintenanceConfig struct {
	Enabled        bool
	Interval       float64
	StuckThreshold float64 // max seconds a node may stay Unregistered
}

// SimConfig is the flat, immutable-for-the-run parameter set.
type SimConfig struct {
	NodeCount int
	RootID    int
	Duration  float64
	Seed      int64

	Topology TopologyConfig

	StartupDelay          float64 // Root wakes exactly at this time
	ArrivalSpread         float64 // other nodes wake uniformly in [StartupDelay, StartupDelay+spread)
	ProbeInterval         float64
	ProbeThreshold        int     // probes before Root election / backoff
	ProbeBackoff          float64 // wait after an unanswered probe round
	HeartbeatInterval     float64
	JoinRequestInterval   float64
	NeighborTimeout       float64
	NeighborShareInterval float64
	PromotionLockTimeout  float64
	PropagationDelay      float64
	ReplyDelay            float64 // deferral for probe answers and join replies
	PacketTTL             int
	SensorInterval        float64 // 0 disables periodic data reports

	HybridRouting bool // direct-mesh step of the routing engine
	MultiHop      bool // 2-hop discovery and the multi-hop routing step
	RouterLayer   bool // router nomination instead of self-promotion
	PacketLoss    float64

	Energy      EnergyConfig
	Maintenance MaintenanceConfig
}

// DefaultSimConfig returns the protocol defaults.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		NodeCount: 100,
		RootID:    0,
		Duration:  5000,
		Seed:      42,
		Topology: TopologyConfig{
			Kind:    "grid",
			TxRange: 100,
			Spacing: 60,
			Jitter:  10,
			Width:   600,
			Height:  600,
		},
		StartupDelay:          0,
		ArrivalSpread:         10,
		ProbeInterval:         1,
		ProbeThreshold:        10,
		ProbeBackoff:          30,
		HeartbeatInterval:     15,
		JoinRequestInterval:   15,
		NeighborTimeout:       30,
		NeighborShareInterval: 30,
		PromotionLockTimeout:  2,
		PropagationDelay:      0.01,
		ReplyDelay:            0,
		PacketTTL:             32,
		SensorInterval:        0,
		HybridRouting:         true,
		MultiHop:              true,
		RouterLayer:           true,
		PacketLoss:            0,
		Energy: EnergyConfig{
			Enabled:        true,
			Initial:        10000,
			TxPerByte:      1e-4,
			RxPerByte:      5e-5,
			IdlePerSecond:  1e-5,
			SleepPerSecond: 1e-6,
			SampleInterval: 100,
		},
		Maintenance: MaintenanceConfig{
			Enabled:        true,
			Interval:       100,
			StuckThreshold: 1000,
		},
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate rejects bad parameters and bad parameter combinations.
// A config that passes runs to completion.
func (c SimConfig) Validate() error {
	if c.NodeCount <= 0 {
		return invalid("node_count must be > 0, got %d", c.NodeCount)
	}
	if c.RootID < 0 || c.RootID >= c.NodeCount {
		return invalid("root_id %d out of range [0, %d)", c.RootID, c.NodeCount)
	}
	if c.Duration <= 0 {
		return invalid("duration must be > 0, got %v", c.Duration)
	}
	if !ValidTopologies[c.Topology.Kind] {
		return invalid("unknown topology %q", c.Topology.Kind)
	}
	if c.Topology.TxRange <= 0 {
		return invalid("tx_range must be > 0, got %v", c.Topology.TxRange)
	}
	if c.Topology.Kind == "random" && (c.Topology.Width <= 0 || c.Topology.Height <= 0) {
		return invalid("random topology needs a positive area, got %vx%v", c.Topology.Width, c.Topology.Height)
	}
	if c.Topology.Kind != "random" && c.Topology.Spacing <= 0 {
		return invalid("spacing must be > 0, got %v", c.Topology.Spacing)
	}
	if c.Topology.Jitter < 0 {
		return invalid("jitter must be >= 0, got %v", c.Topology.Jitter)
	}
	if c.StartupDelay < 0 || c.ArrivalSpread < 0 {
		return invalid("startup_delay and arrival_spread must be >= 0")
	}
	positive := []struct {
		name  string
		value float64
	}{
		{"probe_interval", c.ProbeInterval},
		{"probe_backoff", c.ProbeBackoff},
		{"heartbeat_interval", c.HeartbeatInterval},
		{"join_request_interval", c.JoinRequestInterval},
		{"neighbor_timeout", c.NeighborTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return invalid("%s must be > 0, got %v", p.name, p.value)
		}
	}
	if c.ProbeThreshold < 1 {
		return invalid("probe_threshold must be >= 1, got %d", c.ProbeThreshold)
	}
	if c.NeighborTimeout <= c.HeartbeatInterval {
		return invalid("neighbor_timeout (%v) must exceed heartbeat_interval (%v)", c.NeighborTimeout, c.HeartbeatInterval)
	}
	if c.PropagationDelay < 0 || c.ReplyDelay < 0 {
		return invalid("propagation_delay and reply_delay must be >= 0")
	}
	if c.PacketTTL < 1 {
		return invalid("packet_ttl must be >= 1, got %d", c.PacketTTL)
	}
	if c.SensorInterval < 0 {
		return invalid("sensor_interval must be >= 0, got %v", c.SensorInterval)
	}
	if c.MultiHop && !c.HybridRouting {
		return invalid("multihop requires hybrid_routing")
	}
	if c.MultiHop && c.NeighborShareInterval <= 0 {
		return invalid("neighbor_share_interval must be > 0 when multihop is enabled")
	}
	if c.RouterLayer && c.PromotionLockTimeout <= 0 {
		return invalid("promotion_lock_timeout must be > 0 when router_layer is enabled")
	}
	if c.PacketLoss < 0 || c.PacketLoss > 1 {
		return invalid("packet_loss must be in [0, 1], got %v", c.PacketLoss)
	}
	if c.Energy.Enabled {
		if c.Energy.Initial <= 0 {
			return invalid("energy.initial must be > 0, got %v", c.Energy.Initial)
		}
		if c.Energy.TxPerByte < 0 || c.Energy.RxPerByte < 0 || c.Energy.IdlePerSecond < 0 || c.Energy.SleepPerSecond < 0 {
			return invalid("energy rates must be >= 0")
		}
		if c.Energy.SampleInterval <= 0 {
			return invalid("energy.sample_interval must be > 0, got %v", c.Energy.SampleInterval)
		}
	}
	if c.Maintenance.Enabled {
		if c.Maintenance.Interval <= 0 {
			return invalid("maintenance.interval must be > 0, got %v", c.Maintenance.Interval)
		}
		if c.Maintenance.StuckThreshold <= 0 {
			return invalid("maintenance.stuck_threshold must be > 0, got %v", c.Maintenance.StuckThreshold)
		}
	}
	return nil
}
