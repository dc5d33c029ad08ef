// Package report exports read-only statistics over simulator snapshots:
// CSV tables for offline analysis and a console summary.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wsn-sim/wsn-sim/sim"
)

// Report is a point-in-time copy of everything the exporters read. It shares
// no memory with the simulator.
type Report struct {
	RunID    uuid.UUID
	Clock    float64
	Nodes    []sim.NodeSnapshot
	Timeline []sim.EnergySample
	Energy   bool // energy columns are meaningful
}

// FromSimulator snapshots s at its current clock.
func FromSimulator(s *sim.Simulator) *Report {
	return &Report{
		RunID:    s.RunID,
		Clock:    s.Clock,
		Nodes:    s.Snapshots(),
		Timeline: append([]sim.EnergySample(nil), s.EnergyTimeline...),
		Energy:   s.Config.Energy.Enabled,
	}
}

// tables maps each output file to its writer.
var tables = []struct {
	file  string
	write func(*os.File, *Report) error
}{
	{"neighbors.csv", func(f *os.File, r *Report) error { return WriteNeighbors(f, r) }},
	{"members.csv", func(f *os.File, r *Report) error { return WriteMembers(f, r) }},
	{"child_networks.csv", func(f *os.File, r *Report) error { return WriteChildNetworks(f, r) }},
	{"routing_stats.csv", func(f *os.File, r *Report) error { return WriteRoutingStats(f, r) }},
	{"join_times.csv", func(f *os.File, r *Report) error { return WriteJoinTimes(f, r) }},
	{"energy_timeline.csv", func(f *os.File, r *Report) error { return WriteEnergyTimeline(f, r) }},
	{"energy_summary.csv", func(f *os.File, r *Report) error { return WriteEnergySummary(f, r) }},
}

// WriteAll writes every CSV table into dir, creating it if needed.
func WriteAll(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}
	for _, t := range tables {
		path := filepath.Join(dir, t.file)
		if err := writeFile(path, r, t.write); err != nil {
			return err
		}
		logrus.Debugf("report written: %s", path)
	}
	logrus.Infof("run %s: %d report tables written to %s", r.RunID, len(tables), dir)
	return nil
}

func writeFile(path string, r *Report, write func(*os.File, *Report) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	if err := write(f, r); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
