// Package testutil provides shared test infrastructure for the sensor network
// simulator. It holds golden scenario types and assertion helpers used across
// sim/ and sim/report/ test packages.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenScenario represents the structure of testdata/line_scenario.json.
type GoldenScenario struct {
	Name     string         `json:"name"`
	Config   ScenarioConfig `json:"config"`
	RunUntil float64        `json:"run_until"`
	Expected []GoldenNode   `json:"expected"`
}

// ScenarioConfig carries the parameters a golden scenario overrides on top of
// the simulator defaults. Kept free of sim types so sim tests can import it.
type ScenarioConfig struct {
	NodeCount           int     `json:"node_count"`
	RootID              int     `json:"root_id"`
	Seed                int64   `json:"seed"`
	Topology            string  `json:"topology"`
	Spacing             float64 `json:"spacing"`
	TxRange             float64 `json:"tx_range"`
	StartupDelay        float64 `json:"startup_delay"`
	ArrivalSpread       float64 `json:"arrival_spread"`
	HeartbeatInterval   float64 `json:"heartbeat_interval"`
	JoinRequestInterval float64 `json:"join_request_interval"`
	NeighborTimeout     float64 `json:"neighbor_timeout"`
	RouterLayer         bool    `json:"router_layer"`
	Energy              bool    `json:"energy"`
}

// GoldenNode is the expected end state of one node.
type GoldenNode struct {
	ID        int    `json:"id"`
	Role      string `json:"role"`
	Hop       int    `json:"hop"`
	Parent    int    `json:"parent"`
	JoinCount int    `json:"join_count"`
}

// LoadGoldenScenario loads a golden scenario from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func LoadGoldenScenario(t *testing.T, name string) *GoldenScenario {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	// Navigate from sim/internal/testutil/ to repo root testdata/
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden scenario: %v", err)
	}

	var scenario GoldenScenario
	if err := json.Unmarshal(data, &scenario); err != nil {
		t.Fatalf("Failed to parse golden scenario: %v", err)
	}

	return &scenario
}

// LineAdjacency returns the links of an n-node chain: i hears only i-1 and i+1.
func LineAdjacency(n int) map[int][]int {
	links := make(map[int][]int, n)
	for i := 0; i < n; i++ {
		if i > 0 {
			links[i] = append(links[i], i-1)
		}
		if i < n-1 {
			links[i] = append(links[i], i+1)
		}
	}
	return links
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
