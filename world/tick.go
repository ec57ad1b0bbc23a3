package world

import (
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/vecmath"
)

// InvariantViolation is reported on the diagnostics sink, never returned
// from Tick, when an agent's species does not resolve.
type InvariantViolation = telemetry.Violation

const reasonUnresolvedSpecies = "species does not resolve"

// Tick advances the simulation by dt. Every acceleration is computed from
// the state captured at tick start; integration happens after all of them
// are known.
func (w *World) Tick(dt float64) {
	w.perf.StartTick()

	w.perf.StartPhase(telemetry.PhaseSnapshot)
	w.captureViews()

	w.perf.StartPhase(telemetry.PhaseSpatialGrid)
	w.grid.Rebuild(w.parallel.points)

	w.perf.StartPhase(telemetry.PhaseSteering)
	w.computeIntents()

	w.perf.StartPhase(telemetry.PhaseIntegrate)
	w.applyIntents(dt)
	w.tick++

	w.perf.StartPhase(telemetry.PhaseTelemetry)
	w.recordTick()

	w.perf.EndTick()
}

// captureViews copies every agent into the read-only view slice.
func (w *World) captureViews() {
	p := w.parallel
	p.views = p.views[:0]
	p.points = p.points[:0]

	query := w.filter.Query()
	for query.Next() {
		pos, vel, _, agent, lim := query.Get()
		p.views = append(p.views, systems.AgentView{
			ID:      agent.ID,
			Species: agent.Species,
			Pos:     pos.Vec,
			Vel:     vel.Vec,
			Limits:  *lim,
		})
		p.points = append(p.points, systems.Point{ID: agent.ID, Pos: pos.Vec})
	}
}

// computeChunk runs the read phase for views [i0, i1).
func (w *World) computeChunk(i0, i1 int, scratch *workerScratch) {
	views := w.parallel.views
	intents := w.parallel.intents
	for i := i0; i < i1; i++ {
		acc, state, buf := systems.Behave(&views[i], views, w.grid, w.table, w.behavior, scratch.Neighbors)
		scratch.Neighbors = buf
		intents[i] = intent{Acc: acc, State: state}
	}
}

// applyIntents integrates every agent with its computed acceleration. The
// query visits agents in the same order as captureViews.
func (w *World) applyIntents(dt float64) {
	p := w.parallel
	w.counts = telemetry.TickCounts{}

	i := 0
	query := w.filter.Query()
	for query.Next() {
		pos, vel, acc, agent, lim := query.Get()
		in := &p.intents[i]
		i++

		acc.Vec = in.Acc
		w.countState(in, agent)
		systems.Integrate(pos, vel, acc, lim, dt, w.policy, w.bounds)
	}
}

func (w *World) countState(in *intent, agent *components.Agent) {
	switch in.State {
	case systems.StateFlocking:
		w.counts.Flocking++
	case systems.StateFleeing:
		w.counts.Fleeing++
	case systems.StateHunting:
		w.counts.Hunting++
		if !vecmath.IsZero(in.Acc) {
			w.counts.Targeted++
		}
	case systems.StateInvalid:
		w.counts.Invalid++
		w.diag.Report(InvariantViolation{
			Tick:    w.tick,
			AgentID: agent.ID,
			Species: agent.Species,
			Reason:  reasonUnresolvedSpecies,
		})
	}
}

func (w *World) recordTick() {
	w.collector.RecordTick(w.counts)
}

// LastTickCounts returns the behavior state counts of the last tick.
func (w *World) LastTickCounts() telemetry.TickCounts { return w.counts }

// FlushStats returns the window stats when a telemetry window has closed.
func (w *World) FlushStats() (telemetry.WindowStats, bool) {
	if !w.collector.ShouldFlush(w.tick) {
		return telemetry.WindowStats{}, false
	}
	return w.collector.Flush(w.tick, w.Sample()), true
}
