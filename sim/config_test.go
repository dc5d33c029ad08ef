package sim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSimConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultSimConfig().Validate())
}

func TestSimConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *SimConfig)
		wantMsg string
	}{
		{"zero nodes", func(c *SimConfig) { c.NodeCount = 0 }, "node_count"},
		{"root out of range", func(c *SimConfig) { c.RootID = 100 }, "root_id"},
		{"negative root", func(c *SimConfig) { c.RootID = -1 }, "root_id"},
		{"zero duration", func(c *SimConfig) { c.Duration = 0 }, "duration"},
		{"unknown topology", func(c *SimConfig) { c.Topology.Kind = "torus" }, "unknown topology"},
		{"zero tx range", func(c *SimConfig) { c.Topology.TxRange = 0 }, "tx_range"},
		{"random without area", func(c *SimConfig) { c.Topology.Kind = "random"; c.Topology.Width = 0 }, "positive area"},
		{"zero heartbeat", func(c *SimConfig) { c.HeartbeatInterval = 0 }, "heartbeat_interval"},
		{"timeout not above heartbeat", func(c *SimConfig) { c.NeighborTimeout = c.HeartbeatInterval }, "neighbor_timeout"},
		{"zero probe threshold", func(c *SimConfig) { c.ProbeThreshold = 0 }, "probe_threshold"},
		{"zero ttl", func(c *SimConfig) { c.PacketTTL = 0 }, "packet_ttl"},
		{"multihop without hybrid", func(c *SimConfig) { c.HybridRouting = false }, "multihop requires hybrid_routing"},
		{"loss above one", func(c *SimConfig) { c.PacketLoss = 1.5 }, "packet_loss"},
		{"negative loss", func(c *SimConfig) { c.PacketLoss = -0.1 }, "packet_loss"},
		{"empty battery", func(c *SimConfig) { c.Energy.Initial = 0 }, "energy.initial"},
		{"negative energy rate", func(c *SimConfig) { c.Energy.RxPerByte = -1 }, "energy rates"},
		{"zero maintenance interval", func(c *SimConfig) { c.Maintenance.Interval = 0 }, "maintenance.interval"},
		{"negative sensor interval", func(c *SimConfig) { c.SensorInterval = -1 }, "sensor_interval"},
		{"zero lock timeout", func(c *SimConfig) { c.PromotionLockTimeout = 0 }, "promotion_lock_timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultSimConfig()
			tc.mutate(&cfg)

			err := cfg.Validate()

			if assert.Error(t, err) {
				assert.True(t, errors.Is(err, ErrInvalidConfig))
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestSimConfig_Validate_DisabledSectionsSkipChecks(t *testing.T) {
	cfg := DefaultSimConfig()
	cfg.Energy.Enabled = false
	cfg.Energy.Initial = 0
	cfg.Maintenance.Enabled = false
	cfg.Maintenance.Interval = 0
	cfg.MultiHop = false
	cfg.HybridRouting = false
	assert.NoError(t, cfg.Validate())
}
