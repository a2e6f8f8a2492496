// Package stats provides summary statistics used to report benchmark results,
// e.g. how evenly throughput was spread across concurrent echo connections.
package stats

import (
	"math"
)

// Stats summarizes a set of samples
type Stats struct {
	StdDeviation float64 `json:"std_deviation"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Mean         float64 `json:"mean"`
	MinMaxRatio  float64 `json:"min_max_ratio"`
}

// NewStats computes mean, population standard deviation, min and max of values
func NewStats(values []float64) Stats {
	if len(values) == 0 {
		return Stats{}
	}

	lo, hi := values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(len(values))

	var sumSquaredDiffs float64
	for _, v := range values {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}

	minMaxRatio := 1.0
	if hi > 0 {
		minMaxRatio = lo / hi
	}

	return Stats{
		StdDeviation: math.Sqrt(sumSquaredDiffs / float64(len(values))),
		Min:          lo,
		Max:          hi,
		Mean:         mean,
		MinMaxRatio:  minMaxRatio,
	}
}

// FairnessStats rates how evenly a quantity is spread across participants
type FairnessStats struct {
	Stats
	// Fairness is 1 for a perfectly even distribution and approaches 0 when
	// single participants get (almost) everything
	Fairness float64 `json:"fairness"`
}

// NewFairnessStats combines the coefficient of variation and the min/max ratio of values
func NewFairnessStats(values []float64) FairnessStats {
	s := NewStats(values)

	var cv float64
	if s.Mean > 0 {
		cv = s.StdDeviation / s.Mean
	}

	// lower CV and higher min/max ratio mean a fairer distribution
	fairness := (1.0-math.Min(1.0, cv))*0.5 + s.MinMaxRatio*0.5

	return FairnessStats{
		Stats:    s,
		Fairness: fairness,
	}
}
