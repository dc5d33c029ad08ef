package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wsn-sim/wsn-sim/sim"
	"github.com/wsn-sim/wsn-sim/sim/report"
	"github.com/wsn-sim/wsn-sim/sim/trace"
)

var (
	// Scenario and run control
	configPath string  // Scenario YAML; flags override it
	seed       int64   // Seed for placement, arrivals and loss
	nodeCount  int     // Number of sensor nodes
	duration   float64 // Simulated seconds
	rootID     int     // Node that elects itself Root
	logLevel   string  // Log verbosity level

	// Network shape and protocol features
	txRange        float64 // Disc radio range
	topologyKind   string  // grid, line or random
	lossRate       float64 // Per-transmission drop probability
	sensorInterval float64 // Seconds between data readings, 0 disables
	energyOn       bool    // Energy ledger and node death
	routerLayer    bool    // Router nomination instead of CH self-promotion
	multiHop       bool    // 2-hop neighbour sharing and multi-hop routing
	hybridRouting  bool    // Direct mesh routing step

	// Outputs
	traceLevel string // none, roles or routing
	reportDir  string // Directory for CSV reports
	metricsOut string // Prometheus text exposition file
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "wsn-sim",
	Short: "Discrete-event simulator for self-organizing wireless sensor networks",
}

// buildConfig resolves defaults, then the scenario file, then explicitly set flags.
func buildConfig(cmd *cobra.Command) (sim.SimConfig, OutputSection, error) {
	cfg := sim.DefaultSimConfig()
	out := OutputSection{TraceLevel: string(trace.TraceLevelNone)}

	if configPath != "" {
		sc, err := LoadScenario(configPath)
		if err != nil {
			return cfg, out, err
		}
		sc.Apply(&cfg)
		if sc.Output.TraceLevel != "" {
			out.TraceLevel = sc.Output.TraceLevel
		}
		out.ReportDir = sc.Output.ReportDir
		out.MetricsOut = sc.Output.MetricsOut
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("nodes") {
		cfg.NodeCount = nodeCount
	}
	if flags.Changed("duration") {
		cfg.Duration = duration
	}
	if flags.Changed("root") {
		cfg.RootID = rootID
	}
	if flags.Changed("tx-range") {
		cfg.Topology.TxRange = txRange
	}
	if flags.Changed("topology") {
		cfg.Topology.Kind = topologyKind
	}
	if flags.Changed("loss") {
		cfg.PacketLoss = lossRate
	}
	if flags.Changed("sensor-interval") {
		cfg.SensorInterval = sensorInterval
	}
	if flags.Changed("energy") {
		cfg.Energy.Enabled = energyOn
	}
	if flags.Changed("router-layer") {
		cfg.RouterLayer = routerLayer
	}
	if flags.Changed("multihop") {
		cfg.MultiHop = multiHop
	}
	if flags.Changed("hybrid") {
		cfg.HybridRouting = hybridRouting
	}
	if flags.Changed("trace-level") {
		out.TraceLevel = traceLevel
	}
	if flags.Changed("report-dir") {
		out.ReportDir = reportDir
	}
	if flags.Changed("metrics-out") {
		out.MetricsOut = metricsOut
	}

	if !trace.IsValidTraceLevel(out.TraceLevel) {
		return cfg, out, fmt.Errorf("unknown trace level %q (want none, roles or routing)", out.TraceLevel)
	}
	return cfg, out, cfg.Validate()
}

// runSimulation executes one run and writes every requested output.
func runSimulation(cfg sim.SimConfig, out OutputSection, w io.Writer) error {
	var opts []sim.Option

	var registry *prometheus.Registry
	if out.MetricsOut != "" {
		registry = prometheus.NewRegistry()
		collector, err := sim.NewCollector(registry)
		if err != nil {
			return fmt.Errorf("registering metrics: %w", err)
		}
		opts = append(opts, sim.WithCollector(collector))
	}

	var st *trace.SimulationTrace
	if level := trace.TraceLevel(out.TraceLevel); level.RecordsRoles() {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: level})
		opts = append(opts, sim.WithTrace(st))
	}

	s, err := sim.New(cfg, opts...)
	if err != nil {
		return err
	}

	logrus.Infof("Starting simulation: %d nodes, %s topology, duration=%vs, seed=%d",
		cfg.NodeCount, cfg.Topology.Kind, cfg.Duration, cfg.Seed)
	startTime := time.Now()
	s.Run(cfg.Duration)
	logrus.Infof("Wall time: %s", time.Since(startTime))

	s.Metrics.Print(w)
	r := report.FromSimulator(s)
	report.Summarize(r).Print(w)
	if st != nil {
		printTraceSummary(w, trace.Summarize(st))
	}

	if out.ReportDir != "" {
		if err := report.WriteAll(out.ReportDir, r); err != nil {
			return err
		}
	}
	if registry != nil {
		if err := prometheus.WriteToTextfile(out.MetricsOut, registry); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
		logrus.Infof("Metrics written to %s", out.MetricsOut)
	}
	return nil
}

func printTraceSummary(w io.Writer, ts *trace.TraceSummary) {
	_, _ = fmt.Fprintln(w, "=== Trace Summary ===")
	_, _ = fmt.Fprintf(w, "Role Changes         : %d\n", ts.RoleChanges)
	_, _ = fmt.Fprintf(w, "Deaths               : %d\n", ts.Deaths)
	_, _ = fmt.Fprintf(w, "Links Drawn/Erased   : %d / %d\n", ts.LinksDrawn, ts.LinksErased)
	if ts.TotalRoutings == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Routing Decisions    : %d (%.1f%% failed)\n", ts.TotalRoutings, ts.FailureRate*100)
	kinds := make([]string, 0, len(ts.DecisionBreakdown))
	for k := range ts.DecisionBreakdown {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		_, _ = fmt.Fprintf(w, "  %-18s : %d\n", k, ts.DecisionBreakdown[k])
	}
	if ts.BusiestForwarder >= 0 {
		_, _ = fmt.Fprintf(w, "Busiest Forwarder    : node %d (%d decisions)\n", ts.BusiestForwarder, ts.BusiestForwarderN)
	}
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runCmd executes the simulation using the scenario file and CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sensor network simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, out, err := buildConfig(cmd)
		if err != nil {
			logrus.Fatalf("Bad configuration: %v", err)
		}
		if err := runSimulation(cfg, out, os.Stdout); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// validateCmd checks a scenario without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario and print the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()

		cfg, out, err := buildConfig(cmd)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintln(w, "configuration valid")
		_, _ = fmt.Fprintf(w, "  nodes=%d root=%d topology=%s tx_range=%v seed=%d duration=%v\n",
			cfg.NodeCount, cfg.RootID, cfg.Topology.Kind, cfg.Topology.TxRange, cfg.Seed, cfg.Duration)
		_, _ = fmt.Fprintf(w, "  router_layer=%t multihop=%t hybrid=%t loss=%v energy=%t maintenance=%t\n",
			cfg.RouterLayer, cfg.MultiHop, cfg.HybridRouting, cfg.PacketLoss, cfg.Energy.Enabled, cfg.Maintenance.Enabled)
		_, _ = fmt.Fprintf(w, "  trace=%s report_dir=%q metrics_out=%q\n", out.TraceLevel, out.ReportDir, out.MetricsOut)
		return nil
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	defaults := sim.DefaultSimConfig()
	f := cmd.Flags()

	f.StringVar(&configPath, "config", "", "Scenario YAML file")
	f.Int64Var(&seed, "seed", defaults.Seed, "Seed for placement, arrivals and packet loss")
	f.IntVar(&nodeCount, "nodes", defaults.NodeCount, "Number of sensor nodes")
	f.Float64Var(&duration, "duration", defaults.Duration, "Simulated seconds")
	f.IntVar(&rootID, "root", defaults.RootID, "ID of the node that becomes Root")
	f.StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	f.Float64Var(&txRange, "tx-range", defaults.Topology.TxRange, "Radio range")
	f.StringVar(&topologyKind, "topology", defaults.Topology.Kind, "Node placement (grid, line, random)")
	f.Float64Var(&lossRate, "loss", defaults.PacketLoss, "Per-transmission packet loss probability [0, 1]")
	f.Float64Var(&sensorInterval, "sensor-interval", defaults.SensorInterval, "Seconds between sensor readings (0 disables)")
	f.BoolVar(&energyOn, "energy", defaults.Energy.Enabled, "Enable the energy model")
	f.BoolVar(&routerLayer, "router-layer", defaults.RouterLayer, "Nominate routers instead of self-promoting cluster heads")
	f.BoolVar(&multiHop, "multihop", defaults.MultiHop, "Enable 2-hop neighbour sharing and multi-hop routing")
	f.BoolVar(&hybridRouting, "hybrid", defaults.HybridRouting, "Enable direct mesh routing")

	f.StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Decision trace (none, roles, routing)")
	f.StringVar(&reportDir, "report-dir", "", "Write CSV reports to this directory")
	f.StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics to this file")
}

// init sets up CLI flags and subcommands
func init() {
	addConfigFlags(runCmd)
	addConfigFlags(validateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
