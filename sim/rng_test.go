package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionedRNG_SameSeedSameStream(t *testing.T) {
	for _, seed := range []int64{0, 42, -1, math.MaxInt64, math.MinInt64} {
		a := NewPartitionedRNG(seed)
		b := NewPartitionedRNG(seed)
		for i := 0; i < 3; i++ {
			assert.Equal(t, a.ForSubsystem(SubsystemLoss).Float64(), b.ForSubsystem(SubsystemLoss).Float64(), "seed %d draw %d", seed, i)
		}
		assert.Equal(t, seed, a.Seed())
	}
}

func TestPartitionedRNG_LossDrawsDoNotMovePlacement(t *testing.T) {
	// GIVEN one generator that has already drawn heavily for packet loss
	lossy := NewPartitionedRNG(42)
	for i := 0; i < 100; i++ {
		lossy.ForSubsystem(SubsystemLoss).Float64()
	}
	clean := NewPartitionedRNG(42)

	// WHEN both place nodes
	cfg := TopologyConfig{Kind: "random", Width: 500, Height: 500}
	a, errA := PlaceNodes(cfg, 10, lossy.ForSubsystem(SubsystemPlacement))
	b, errB := PlaceNodes(cfg, 10, clean.ForSubsystem(SubsystemPlacement))

	// THEN the layouts are identical
	assert.NoError(t, errA)
	assert.NoError(t, errB)
	assert.Equal(t, b, a)
}

func TestPartitionedRNG_SubsystemsDiffer(t *testing.T) {
	rng := NewPartitionedRNG(7)
	assert.NotEqual(t, rng.ForSubsystem(SubsystemArrival).Int63(), rng.ForSubsystem(SubsystemLoss).Int63())
}

func TestPartitionedRNG_ForSubsystem_ReturnsSameStream(t *testing.T) {
	rng := NewPartitionedRNG(1)
	assert.Same(t, rng.ForSubsystem(SubsystemArrival), rng.ForSubsystem(SubsystemArrival))
}
