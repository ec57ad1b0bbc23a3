// Package telemetry provides flock health tracking, performance timing and
// CSV output for headless runs.
package telemetry

// Sample is the end-of-window state handed to Flush by the world.
type Sample struct {
	PreyCount, PredCount, Orphans int

	Speeds       []float64 // |v| for every resolved agent
	Polarization float64
	Nearest      []float64 // nearest-neighbor distance per prey with a neighbor
}

// Collector accumulates per-tick behavior counts within time windows and
// produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int32
	dt                  float64

	// Current window tracking
	windowStartTick int32

	// Counters for current window
	flocking   int
	fleeing    int
	hunting    int
	targeted   int
	violations int
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec float64, dt float64) *Collector {
	ticksPerWindow := int32(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
	}
}

// TickCounts holds the number of agents in each behavior state for one tick.
type TickCounts struct {
	Flocking, Fleeing, Hunting, Targeted, Invalid int
}

// RecordTick adds one tick's state counts to the window.
func (c *Collector) RecordTick(tc TickCounts) {
	c.flocking += tc.Flocking
	c.fleeing += tc.Fleeing
	c.hunting += tc.Hunting
	c.targeted += tc.Targeted
	c.violations += tc.Invalid
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int32, s Sample) WindowStats {
	speedMean, speedStd, speedP10, speedP50, speedP90 := ComputeDistributionStats(s.Speeds)
	nnMean, _, _, nnP50, _ := ComputeDistributionStats(s.Nearest)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Agents:    s.PreyCount + s.PredCount + s.Orphans,
		PreyCount: s.PreyCount,
		PredCount: s.PredCount,
		Orphans:   s.Orphans,

		SpeedMean: speedMean,
		SpeedStd:  speedStd,
		SpeedP10:  speedP10,
		SpeedP50:  speedP50,
		SpeedP90:  speedP90,

		Polarization: s.Polarization,
		NearestMean:  nnMean,
		NearestP50:   nnP50,

		FlockingTicks: c.flocking,
		FleeingTicks:  c.fleeing,
		HuntingTicks:  c.hunting,
		TargetedTicks: c.targeted,
		Violations:    c.violations,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.flocking = 0
	c.fleeing = 0
	c.hunting = 0
	c.targeted = 0
	c.violations = 0

	return stats
}

// Reset starts a fresh window at tick 0.
func (c *Collector) Reset() {
	c.Flush(0, Sample{})
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int32 {
	return c.windowDurationTicks
}
