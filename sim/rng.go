package sim

import (
	"hash/fnv"
	"math/rand"
)

// Subsystem names an independent random stream.
type Subsystem string

const (
	SubsystemPlacement Subsystem = "placement" // node positions
	SubsystemArrival   Subsystem = "arrival"   // wake-up offsets
	SubsystemLoss      Subsystem = "loss"      // one draw per transmission
	SubsystemRunID     Subsystem = "run_id"    // bytes for the run uuid
	SubsystemSensor    Subsystem = "sensor"    // application readings
)

// PartitionedRNG hands out one seeded stream per subsystem. Streams never
// share state, so turning on packet loss does not move a single node or
// shift a single wake-up time.
//
// Each stream is seeded with seed XOR fnv1a64(subsystem). Not safe for
// concurrent use; the engine is single-threaded.
type PartitionedRNG struct {
	seed    int64
	streams map[Subsystem]*rand.Rand
}

func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, streams: make(map[Subsystem]*rand.Rand)}
}

// ForSubsystem returns the stream for s, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(s Subsystem) *rand.Rand {
	if r, ok := p.streams[s]; ok {
		return r
	}
	r := rand.New(rand.NewSource(p.seed ^ fnv1a64(string(s))))
	p.streams[s] = r
	return r
}

// Seed returns the run seed every stream derives from.
func (p *PartitionedRNG) Seed() int64 { return p.seed }

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
