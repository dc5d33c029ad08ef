package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Position is a fixed 2-D coordinate set once at build time.
type Position struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance between p and o.
func (p Position) DistanceTo(o Position) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// RangeProvider answers which node ids can hear sender at a given time.
// Implementations must return ids in ascending order for deterministic delivery.
type RangeProvider interface {
	InRange(sender int, now float64) []int
}

// DiscRange is the ideal disc model: two nodes hear each other iff their
// distance is at most the transmission range. Adjacency is precomputed.
type DiscRange struct {
	adjacency [][]int
}

// NewDiscRange builds the symmetric adjacency for positions under txRange.
func NewDiscRange(positions []Position, txRange float64) *DiscRange {
	adj := make([][]int, len(positions))
	for i := range positions {
		for j := i + 1; j < len(positions); j++ {
			if positions[i].DistanceTo(positions[j]) <= txRange {
				adj[i] = append(adj[i], j)
				adj[j] = append(adj[j], i)
			}
		}
	}
	for i := range adj {
		sort.Ints(adj[i])
	}
	return &DiscRange{adjacency: adj}
}

// InRange implements RangeProvider.
func (d *DiscRange) InRange(sender int, _ float64) []int {
	if sender < 0 || sender >= len(d.adjacency) {
		return nil
	}
	return d.adjacency[sender]
}

// StaticAdjacency is an explicit, symmetric adjacency list.
type StaticAdjacency map[int][]int

// NewStaticAdjacency closes links under symmetry and sorts each list.
func NewStaticAdjacency(links map[int][]int) StaticAdjacency {
	sets := make(map[int]map[int]struct{})
	add := func(a, b int) {
		if sets[a] == nil {
			sets[a] = make(map[int]struct{})
		}
		sets[a][b] = struct{}{}
	}
	for a, peers := range links {
		for _, b := range peers {
			if a == b {
				continue
			}
			add(a, b)
			add(b, a)
		}
	}
	adj := make(StaticAdjacency, len(sets))
	for a, set := range sets {
		adj[a] = sortedKeys(set)
	}
	return adj
}

// InRange implements RangeProvider.
func (s StaticAdjacency) InRange(sender int, _ float64) []int {
	return s[sender]
}

// PlaceNodes lays out count nodes according to cfg.
func PlaceNodes(cfg TopologyConfig, count int, rng *rand.Rand) ([]Position, error) {
	positions := make([]Position, count)
	switch cfg.Kind {
	case "line":
		for i := range positions {
			positions[i] = Position{X: float64(i) * cfg.Spacing}
		}
	case "grid":
		cols := int(math.Ceil(math.Sqrt(float64(count))))
		for i := range positions {
			row, col := i/cols, i%cols
			positions[i] = Position{
				X: float64(col)*cfg.Spacing + jitter(rng, cfg.Jitter),
				Y: float64(row)*cfg.Spacing + jitter(rng, cfg.Jitter),
			}
		}
	case "random":
		for i := range positions {
			positions[i] = Position{X: rng.Float64() * cfg.Width, Y: rng.Float64() * cfg.Height}
		}
	default:
		return nil, fmt.Errorf("%w: unknown topology %q", ErrInvalidConfig, cfg.Kind)
	}
	return positions, nil
}

func jitter(rng *rand.Rand, limit float64) float64 {
	if limit == 0 {
		return 0
	}
	return (rng.Float64()*2 - 1) * limit
}
