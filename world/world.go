// Package world runs the flock: it owns every agent plus the species table
// and exposes the tick entrypoint and snapshot accessors.
package world

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/species"
	"github.com/pthm-cable/flock/systems"
	"github.com/pthm-cable/flock/telemetry"
	"github.com/pthm-cable/flock/vecmath"
)

// ErrInvalidBounds is returned when the world box has a non-positive width
// or height, or a negative depth.
var ErrInvalidBounds = errors.New("invalid world bounds")

// Options holds construction settings that are not part of the config file.
type Options struct {
	Seed    int64 // seed for spawn positions and velocities
	Workers int   // read-phase workers; 0 = GOMAXPROCS
}

// AgentState is a value copy of one agent, as handed out by Snapshot.
type AgentState struct {
	ID       uint32
	Species  int
	Position vecmath.Vec3
	Velocity vecmath.Vec3
}

// World is the simulation world. It is not safe for concurrent use; the
// caller drives it from a single goroutine.
type World struct {
	ecs *ecs.World

	mapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Acceleration,
		components.Agent,
		components.Limits,
	]
	filter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Acceleration,
		components.Agent,
		components.Limits,
	]

	table    *species.Table
	bounds   systems.Bounds
	grid     *systems.SpatialGrid
	cellSize float64 // configured grid cell size, 0 = derive from the table

	behavior      systems.BehaviorParams
	policy        systems.BoundaryPolicy
	defaultWeight float64

	rng    *rand.Rand
	nextID uint32
	tick   int32
	count  int

	parallel  *parallelState
	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	diag      *telemetry.Diagnostics
	counts    telemetry.TickCounts
}

// New builds a world from cfg and spawns the configured population.
func New(cfg *config.Config, opts Options) (*World, error) {
	params, err := cfg.SpeciesParams()
	if err != nil {
		return nil, err
	}
	policy, err := systems.NewBoundaryPolicy(cfg.Physics.Boundary, cfg.Physics.NudgeMargin, cfg.Physics.NudgeTurnFactor)
	if err != nil {
		return nil, err
	}

	w := &World{
		cellSize: cfg.Physics.GridCellSize,
		behavior: systems.BehaviorParams{
			PursuitGain:     cfg.Behavior.PursuitGain,
			FleeGain:        cfg.Behavior.FleeGain,
			FleeRangeFactor: cfg.Behavior.FleeRangeFactor,
		},
		policy:        policy,
		defaultWeight: cfg.Behavior.DefaultWeight,
		rng:           rand.New(rand.NewSource(opts.Seed)),
		parallel:      newParallelState(opts.Workers, cfg.Parallel.Enabled, cfg.Parallel.Threshold),
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Physics.DT),
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		diag:          telemetry.NewDiagnostics(256),
	}

	bounds := systems.Bounds{Width: cfg.World.Width, Height: cfg.World.Height, Depth: cfg.World.Depth}
	if err := w.ResetWorld(bounds, params); err != nil {
		return nil, err
	}
	return w, nil
}

// Close stops the read-phase workers. The world must not be ticked after
// Close.
func (w *World) Close() {
	w.parallel.stopWorkers()
}

// Seed reseeds the spawn generator. The next ResetWorld is fully determined
// by seed.
func (w *World) Seed(seed int64) {
	w.rng = rand.New(rand.NewSource(seed))
}

// ConfigureSpecies validates params and replaces the species table. Live
// agents keep their ids and cached limits; agents whose species no longer
// resolves are reported on every tick until the next reset.
func (w *World) ConfigureSpecies(params []species.Params) error {
	table, err := species.NewTable(params)
	if err != nil {
		return err
	}
	w.table = table
	w.rebuildGrid()
	slog.Info("species configured", "count", table.Len())
	return nil
}

// AddSpecies appends p to the table and returns its id. Agents of the new
// species appear at the next reset.
func (w *World) AddSpecies(p species.Params) (int, error) {
	id, err := w.table.Add(p, w.defaultWeight)
	if err != nil {
		return species.NoSpecies, err
	}
	w.rebuildGrid()
	slog.Info("species added", "id", id, "name", p.Name)
	return id, nil
}

// RemoveSpecies removes species id and renumbers the rest. The same remap
// is applied to every live agent; agents of the removed species become
// orphans.
func (w *World) RemoveSpecies(id int) error {
	remap, err := w.table.Remove(id)
	if err != nil {
		return err
	}

	orphaned := 0
	query := w.filter.Query()
	for query.Next() {
		_, _, _, agent, _ := query.Get()
		agent.Species = remap.Apply(agent.Species)
		if agent.Orphaned() {
			orphaned++
		}
	}

	w.rebuildGrid()
	slog.Info("species removed", "id", id, "orphaned", orphaned)
	return nil
}

// ResetWorld destroys all agents and respawns Quantity agents per species
// with positions uniform in bounds and velocity components uniform in
// [-1, 1]. Agent ids restart at 0 and the tick counter at 0.
func (w *World) ResetWorld(bounds systems.Bounds, params []species.Params) error {
	if !(bounds.Width > 0) || !(bounds.Height > 0) || !(bounds.Depth >= 0) ||
		math.IsInf(bounds.Width+bounds.Height+bounds.Depth, 0) {
		return fmt.Errorf("%w: %+v", ErrInvalidBounds, bounds)
	}
	table, err := species.NewTable(params)
	if err != nil {
		return err
	}

	w.table = table
	w.bounds = bounds
	w.ecs = ecs.NewWorld()
	w.mapper = ecs.NewMap5[
		components.Position,
		components.Velocity,
		components.Acceleration,
		components.Agent,
		components.Limits,
	](w.ecs)
	w.filter = ecs.NewFilter5[
		components.Position,
		components.Velocity,
		components.Acceleration,
		components.Agent,
		components.Limits,
	](w.ecs)
	w.nextID = 0
	w.tick = 0
	w.count = 0
	w.collector.Reset()
	w.diag.Reset()
	w.rebuildGrid()

	for id := 0; id < table.Len(); id++ {
		p := table.Get(id)
		for range p.Quantity {
			w.spawn(id, p)
		}
	}

	slog.Info("world reset",
		"agents", w.count,
		"species", table.Len(),
		"width", bounds.Width,
		"height", bounds.Height,
		"depth", bounds.Depth,
	)
	return nil
}

func (w *World) spawn(speciesID int, p *species.Params) {
	pos := components.Position{Vec: vecmath.Vec3{
		X: (w.rng.Float64() - 0.5) * w.bounds.Width,
		Y: (w.rng.Float64() - 0.5) * w.bounds.Height,
	}}
	vel := components.Velocity{Vec: vecmath.Vec3{
		X: w.rng.Float64()*2 - 1,
		Y: w.rng.Float64()*2 - 1,
	}}
	if !w.bounds.Is2D() {
		pos.Z = (w.rng.Float64() - 0.5) * w.bounds.Depth
		vel.Z = w.rng.Float64()*2 - 1
	}
	acc := components.Acceleration{}
	agent := components.Agent{ID: w.nextID, Species: speciesID}
	lim := components.LimitsFromSpecies(p)

	w.mapper.NewEntity(&pos, &vel, &acc, &agent, &lim)
	w.nextID++
	w.count++
}

// rebuildGrid sizes a fresh spatial grid for the current bounds and table.
func (w *World) rebuildGrid() {
	cell := w.cellSize
	if cell <= 0 {
		cell = w.table.MaxRadius()
	}
	if cell <= 0 {
		cell = 1
	}
	w.grid = systems.NewSpatialGrid(w.bounds, cell)
}

// Snapshot returns a lazy sequence of value copies of every agent. The
// world must not be mutated while the sequence is being ranged over.
func (w *World) Snapshot() iter.Seq[AgentState] {
	return func(yield func(AgentState) bool) {
		query := w.filter.Query()
		for query.Next() {
			pos, vel, _, agent, _ := query.Get()
			s := AgentState{
				ID:       agent.ID,
				Species:  agent.Species,
				Position: pos.Vec,
				Velocity: vel.Vec,
			}
			if !yield(s) {
				query.Close()
				return
			}
		}
	}
}

// Species returns a deep copy of the species table.
func (w *World) Species() []species.Params { return w.table.Params() }

// Bounds returns the world box.
func (w *World) Bounds() systems.Bounds { return w.bounds }

// TickCount returns the number of ticks since the last reset.
func (w *World) TickCount() int32 { return w.tick }

// AgentCount returns the number of live agents.
func (w *World) AgentCount() int { return w.count }

// Diagnostics returns the out-of-band invariant violation sink.
func (w *World) Diagnostics() *telemetry.Diagnostics { return w.diag }

// PerfStats returns tick timing over the perf window.
func (w *World) PerfStats() telemetry.PerfStats { return w.perf.Stats() }
