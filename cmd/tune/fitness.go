package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/world"
)

// Targets are the flock shape the tuner steers toward.
type Targets struct {
	Polarization float64 // mean prey polarization, 0..1
	Spacing      float64 // mean prey nearest-neighbor distance
	SpacingScale float64 // weight of the spacing term relative to polarization
}

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params      *ParamVector
	ticks       int32
	warmupTicks int32
	seeds       []int64
	baseConfig  *config.Config
	targets     Targets

	mu          sync.Mutex
	lastMetrics flockMetrics
}

// flockMetrics is the averaged post-warmup flock shape of one or more runs.
type flockMetrics struct {
	Polarization float64
	Spacing      float64
}

// NewFitnessEvaluator creates a new evaluator. Windows that close before
// warmupTicks are ignored.
func NewFitnessEvaluator(params *ParamVector, ticks, warmupTicks int32, seeds []int64, baseCfg *config.Config, targets Targets) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		ticks:       ticks,
		warmupTicks: warmupTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		targets:     targets,
	}
}

// LastMetrics returns the averaged metrics of the most recent evaluation.
func (fe *FitnessEvaluator) LastMetrics() flockMetrics {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMetrics
}

// Evaluate computes fitness for a parameter vector (lower = better): the
// squared distance of the flock's polarization and relative spacing from
// their targets, averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	results := make([]flockMetrics, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx], errs[idx] = fe.runSimulation(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	var avg flockMetrics
	for i, r := range results {
		if errs[i] != nil {
			return math.Inf(1)
		}
		avg.Polarization += r.Polarization
		avg.Spacing += r.Spacing
	}
	n := float64(len(results))
	avg.Polarization /= n
	avg.Spacing /= n

	fe.mu.Lock()
	fe.lastMetrics = avg
	fe.mu.Unlock()

	return fe.computeFitness(avg)
}

func (fe *FitnessEvaluator) computeFitness(m flockMetrics) float64 {
	pol := m.Polarization - fe.targets.Polarization
	fitness := pol * pol
	if fe.targets.Spacing > 0 {
		sp := (m.Spacing - fe.targets.Spacing) / fe.targets.Spacing
		fitness += fe.targets.SpacingScale * sp * sp
	}
	return fitness
}

// runSimulation runs one seed and averages the windows after warmup.
func (fe *FitnessEvaluator) runSimulation(cfg *config.Config, seed int64) (flockMetrics, error) {
	w, err := world.New(cfg, world.Options{Seed: seed, Workers: 1})
	if err != nil {
		return flockMetrics{}, err
	}
	defer w.Close()

	var windows []telemetry.WindowStats
	for w.TickCount() < fe.ticks {
		w.Tick(cfg.Physics.DT)
		if stats, ok := w.FlushStats(); ok && stats.WindowEndTick > fe.warmupTicks {
			windows = append(windows, stats)
		}
	}
	if len(windows) == 0 {
		s := w.Sample()
		spacing, _, _, _, _ := telemetry.ComputeDistributionStats(s.Nearest)
		return flockMetrics{Polarization: s.Polarization, Spacing: spacing}, nil
	}

	var m flockMetrics
	for _, s := range windows {
		m.Polarization += s.Polarization
		m.Spacing += s.NearestMean
	}
	m.Polarization /= float64(len(windows))
	m.Spacing /= float64(len(windows))
	return m, nil
}

// copyConfig returns a deep copy of the base config.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	params, err := fe.baseConfig.SpeciesParams()
	if err != nil {
		panic(err)
	}
	cfg.SetSpecies(params)
	return &cfg
}
