package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wsn-sim/wsn-sim/sim"
)

// resetFlags restores every flag of cmd to its default after the test.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	t.Cleanup(func() {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		})
	})
}

func smallLineConfig() sim.SimConfig {
	cfg := sim.DefaultSimConfig()
	cfg.NodeCount = 5
	cfg.Topology.Kind = "line"
	cfg.Duration = 300
	cfg.ArrivalSpread = 2
	cfg.HeartbeatInterval = 10
	cfg.NeighborTimeout = 30
	cfg.SensorInterval = 20
	cfg.Energy.SampleInterval = 50
	cfg.Maintenance.Enabled = false
	return cfg
}

func TestBuildConfig_FlagsOverrideScenario(t *testing.T) {
	resetFlags(t, validateCmd)

	// GIVEN a scenario with 25 nodes and a flag asking for 9
	path := writeScenario(t, "network:\n  nodes: 25\n  topology: line\nloss:\n  rate: 0.2\n")
	require.NoError(t, validateCmd.Flags().Set("config", path))
	require.NoError(t, validateCmd.Flags().Set("nodes", "9"))

	// WHEN the config is resolved
	cfg, out, err := buildConfig(validateCmd)

	// THEN the flag wins, the scenario fills the rest
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.NodeCount)
	assert.Equal(t, "line", cfg.Topology.Kind)
	assert.Equal(t, 0.2, cfg.PacketLoss)
	assert.Equal(t, "none", out.TraceLevel)
}

func TestBuildConfig_UnchangedFlagsDoNotClobberScenario(t *testing.T) {
	resetFlags(t, validateCmd)

	// GIVEN a scenario disabling energy and no --energy flag
	path := writeScenario(t, "energy:\n  enabled: false\n")
	require.NoError(t, validateCmd.Flags().Set("config", path))

	cfg, _, err := buildConfig(validateCmd)

	// THEN the flag default (true) does not overwrite the scenario
	require.NoError(t, err)
	assert.False(t, cfg.Energy.Enabled)
}

func TestBuildConfig_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
		want  string
	}{
		{"bad trace level", map[string]string{"trace-level": "verbose"}, "unknown trace level"},
		{"root out of range", map[string]string{"nodes": "3", "root": "5"}, "root_id"},
		{"loss above one", map[string]string{"loss": "1.5"}, "packet_loss"},
		{"multihop without hybrid", map[string]string{"hybrid": "false"}, "multihop requires hybrid_routing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resetFlags(t, validateCmd)
			for k, v := range tc.flags {
				require.NoError(t, validateCmd.Flags().Set(k, v))
			}

			_, _, err := buildConfig(validateCmd)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateCmd_PrintsResolvedConfig(t *testing.T) {
	resetFlags(t, validateCmd)

	// GIVEN the validate subcommand with a few overrides
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"validate", "--nodes", "16", "--topology", "random", "--router-layer=false"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	// WHEN executed
	require.NoError(t, rootCmd.Execute())

	// THEN the resolved values are echoed
	output := buf.String()
	assert.Contains(t, output, "configuration valid")
	assert.Contains(t, output, "nodes=16")
	assert.Contains(t, output, "topology=random")
	assert.Contains(t, output, "router_layer=false")
}

func TestRunSimulation_WritesAllOutputs(t *testing.T) {
	// GIVEN a small line network with reports, metrics and routing trace requested
	dir := t.TempDir()
	out := OutputSection{
		ReportDir:  filepath.Join(dir, "reports"),
		TraceLevel: "routing",
		MetricsOut: filepath.Join(dir, "metrics.prom"),
	}
	var buf bytes.Buffer

	// WHEN the run completes
	require.NoError(t, runSimulation(smallLineConfig(), out, &buf))

	// THEN the console carries the metrics, network and trace summaries
	output := buf.String()
	assert.Contains(t, output, "=== Simulation Metrics ===")
	assert.Contains(t, output, "=== Network Summary ===")
	assert.Contains(t, output, "=== Trace Summary ===")
	assert.Contains(t, output, "Routing Decisions")

	// AND the CSV reports and the Prometheus textfile exist
	for _, name := range []string{"neighbors.csv", "members.csv", "join_times.csv", "energy_timeline.csv"} {
		_, err := os.Stat(filepath.Join(out.ReportDir, name))
		assert.NoError(t, err, name)
	}
	prom, err := os.ReadFile(out.MetricsOut)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "wsn_packets_sent_total")
	assert.Contains(t, string(prom), "wsn_data_latency_seconds")
}

func TestRunSimulation_NoOutputsRequested_OnlyConsole(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, runSimulation(smallLineConfig(), OutputSection{TraceLevel: "none"}, &buf))

	assert.Contains(t, buf.String(), "=== Network Summary ===")
	assert.NotContains(t, buf.String(), "=== Trace Summary ===")
}

func TestRunSimulation_InvalidConfig_Errors(t *testing.T) {
	cfg := smallLineConfig()
	cfg.NodeCount = 0

	err := runSimulation(cfg, OutputSection{}, &bytes.Buffer{})

	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}
