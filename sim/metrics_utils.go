// sim/metrics_utils.go
package sim

import (
	"math"
	"sort"
)

type IntOrFloat64 interface {
	int | int64 | float64
}

// CalculatePercentile returns the p-th percentile of data using linear
// interpolation between closest ranks. data must be sorted ascending; an
// empty slice yields 0.
func CalculatePercentile[T IntOrFloat64](data []T, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}

	rank := p / 100.0 * float64(n-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if upperIdx >= n {
		return float64(data[n-1])
	}
	if lowerIdx == upperIdx {
		return float64(data[lowerIdx])
	}
	lowerVal := float64(data[lowerIdx])
	upperVal := float64(data[upperIdx])
	return lowerVal + (upperVal-lowerVal)*(rank-float64(lowerIdx))
}

// CalculateMean returns the arithmetic mean, 0 for an empty slice.
func CalculateMean[T IntOrFloat64](numbers []T) float64 {
	if len(numbers) == 0 {
		return 0.0
	}

	sum := 0.0
	for _, number := range numbers {
		sum += float64(number)
	}
	return sum / float64(len(numbers))
}

// Distribution summarizes a sample of durations in seconds.
type Distribution struct {
	Count int
	Min   float64
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
	Max   float64
}

// NewDistribution sorts a copy of samples and computes its summary.
func NewDistribution(samples []float64) Distribution {
	if len(samples) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	return Distribution{
		Count: len(sorted),
		Min:   sorted[0],
		Mean:  CalculateMean(sorted),
		P50:   CalculatePercentile(sorted, 50),
		P95:   CalculatePercentile(sorted, 95),
		P99:   CalculatePercentile(sorted, 99),
		Max:   sorted[len(sorted)-1],
	}
}
