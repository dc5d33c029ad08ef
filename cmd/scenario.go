package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wsn-sim/wsn-sim/sim"
)

// Scenario mirrors a scenario YAML file. Every leaf is a pointer so that a
// key left out of the file keeps the simulator default.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Seed        *int64             `yaml:"seed"`
	Network     NetworkSection     `yaml:"network"`
	Timing      TimingSection      `yaml:"timing"`
	Features    FeatureSection     `yaml:"features"`
	Energy      EnergySection      `yaml:"energy"`
	Loss        LossSection        `yaml:"loss"`
	Maintenance MaintenanceSection `yaml:"maintenance"`
	Output      OutputSection      `yaml:"output"`
}

type NetworkSection struct {
	Nodes    *int     `yaml:"nodes"`
	Root     *int     `yaml:"root"`
	Topology *string  `yaml:"topology"`
	TxRange  *float64 `yaml:"tx_range"`
	Spacing  *float64 `yaml:"spacing"`
	Jitter   *float64 `yaml:"jitter"`
	Width    *float64 `yaml:"width"`
	Height   *float64 `yaml:"height"`
}

type TimingSection struct {
	Duration              *float64 `yaml:"duration"`
	StartupDelay          *float64 `yaml:"startup_delay"`
	ArrivalSpread         *float64 `yaml:"arrival_spread"`
	ProbeInterval         *float64 `yaml:"probe_interval"`
	ProbeThreshold        *int     `yaml:"probe_threshold"`
	ProbeBackoff          *float64 `yaml:"probe_backoff"`
	HeartbeatInterval     *float64 `yaml:"heartbeat_interval"`
	JoinRequestInterval   *float64 `yaml:"join_request_interval"`
	NeighborTimeout       *float64 `yaml:"neighbor_timeout"`
	NeighborShareInterval *float64 `yaml:"neighbor_share_interval"`
	PromotionLockTimeout  *float64 `yaml:"promotion_lock_timeout"`
	PropagationDelay      *float64 `yaml:"propagation_delay"`
	ReplyDelay            *float64 `yaml:"reply_delay"`
	SensorInterval        *float64 `yaml:"sensor_interval"`
	PacketTTL             *int     `yaml:"packet_ttl"`
}

type FeatureSection struct {
	HybridRouting *bool `yaml:"hybrid_routing"`
	MultiHop      *bool `yaml:"multihop"`
	RouterLayer   *bool `yaml:"router_layer"`
}

type EnergySection struct {
	Enabled        *bool    `yaml:"enabled"`
	Initial        *float64 `yaml:"initial"`
	TxPerByte      *float64 `yaml:"tx_per_byte"`
	RxPerByte      *float64 `yaml:"rx_per_byte"`
	IdlePerSecond  *float64 `yaml:"idle_per_second"`
	SleepPerSecond *float64 `yaml:"sleep_per_second"`
	SampleInterval *float64 `yaml:"sample_interval"`
}

type LossSection struct {
	Rate *float64 `yaml:"rate"`
}

type MaintenanceSection struct {
	Enabled        *bool    `yaml:"enabled"`
	Interval       *float64 `yaml:"interval"`
	StuckThreshold *float64 `yaml:"stuck_threshold"`
}

// OutputSection holds run outputs. These never reach SimConfig.
type OutputSection struct {
	ReportDir  string `yaml:"report_dir"`
	TraceLevel string `yaml:"trace_level"`
	MetricsOut string `yaml:"metrics_out"`
}

// LoadScenario parses a scenario file with strict field checking: typos are errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return &sc, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// Apply overlays every value present in the scenario onto cfg.
func (sc *Scenario) Apply(cfg *sim.SimConfig) {
	set(&cfg.Seed, sc.Seed)

	n := sc.Network
	set(&cfg.NodeCount, n.Nodes)
	set(&cfg.RootID, n.Root)
	set(&cfg.Topology.Kind, n.Topology)
	set(&cfg.Topology.TxRange, n.TxRange)
	set(&cfg.Topology.Spacing, n.Spacing)
	set(&cfg.Topology.Jitter, n.Jitter)
	set(&cfg.Topology.Width, n.Width)
	set(&cfg.Topology.Height, n.Height)

	tm := sc.Timing
	set(&cfg.Duration, tm.Duration)
	set(&cfg.StartupDelay, tm.StartupDelay)
	set(&cfg.ArrivalSpread, tm.ArrivalSpread)
	set(&cfg.ProbeInterval, tm.ProbeInterval)
	set(&cfg.ProbeThreshold, tm.ProbeThreshold)
	set(&cfg.ProbeBackoff, tm.ProbeBackoff)
	set(&cfg.HeartbeatInterval, tm.HeartbeatInterval)
	set(&cfg.JoinRequestInterval, tm.JoinRequestInterval)
	set(&cfg.NeighborTimeout, tm.NeighborTimeout)
	set(&cfg.NeighborShareInterval, tm.NeighborShareInterval)
	set(&cfg.PromotionLockTimeout, tm.PromotionLockTimeout)
	set(&cfg.PropagationDelay, tm.PropagationDelay)
	set(&cfg.ReplyDelay, tm.ReplyDelay)
	set(&cfg.SensorInterval, tm.SensorInterval)
	set(&cfg.PacketTTL, tm.PacketTTL)

	set(&cfg.HybridRouting, sc.Features.HybridRouting)
	set(&cfg.MultiHop, sc.Features.MultiHop)
	set(&cfg.RouterLayer, sc.Features.RouterLayer)

	e := sc.Energy
	set(&cfg.Energy.Enabled, e.Enabled)
	set(&cfg.Energy.Initial, e.Initial)
	set(&cfg.Energy.TxPerByte, e.TxPerByte)
	set(&cfg.Energy.RxPerByte, e.RxPerByte)
	set(&cfg.Energy.IdlePerSecond, e.IdlePerSecond)
	set(&cfg.Energy.SleepPerSecond, e.SleepPerSecond)
	set(&cfg.Energy.SampleInterval, e.SampleInterval)

	set(&cfg.PacketLoss, sc.Loss.Rate)

	set(&cfg.Maintenance.Enabled, sc.Maintenance.Enabled)
	set(&cfg.Maintenance.Interval, sc.Maintenance.Interval)
	set(&cfg.Maintenance.StuckThreshold, sc.Maintenance.StuckThreshold)
}
