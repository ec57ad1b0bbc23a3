package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated flock statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// Population at window end
	Agents    int `csv:"agents"`
	PreyCount int `csv:"prey"`
	PredCount int `csv:"pred"`
	Orphans   int `csv:"orphans"`

	// Speed distribution (sampled at window end)
	SpeedMean float64 `csv:"speed_mean"`
	SpeedStd  float64 `csv:"speed_std"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	// Flock structure (sampled at window end)
	Polarization float64 `csv:"polarization"` // |mean unit heading| of prey, 0..1
	NearestMean  float64 `csv:"nn_dist_mean"`
	NearestP50   float64 `csv:"nn_dist_p50"`

	// Behavior states, summed over every agent-tick in the window
	FlockingTicks int `csv:"flocking_ticks"`
	FleeingTicks  int `csv:"fleeing_ticks"`
	HuntingTicks  int `csv:"hunting_ticks"`
	TargetedTicks int `csv:"targeted_ticks"` // hunting ticks with a prey in range
	Violations    int `csv:"violations"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistributionStats calculates mean, sample std and percentiles.
func ComputeDistributionStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}
	if n == 1 {
		return values[0], 0, values[0], values[0], values[0]
	}

	mean, std = stat.MeanStdDev(values, nil)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("tick", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("prey", s.PreyCount),
		slog.Int("pred", s.PredCount),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("polarization", s.Polarization),
		slog.Float64("nn_dist_mean", s.NearestMean),
		slog.Int("fleeing_ticks", s.FleeingTicks),
		slog.Int("targeted_ticks", s.TargetedTicks),
		slog.Int("violations", s.Violations),
	)
}
