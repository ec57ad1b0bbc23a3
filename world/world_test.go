package world

import (
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/pthm-cable/flock/config"
	"github.com/pthm-cable/flock/species"
	"github.com/pthm-cable/flock/systems"
)

// testConfig returns the defaults with a small population: 20 sparrows,
// 20 starlings and 2 hawks.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	for i := range cfg.Species {
		cfg.Species[i].Quantity = 20
		if cfg.Species[i].Predator {
			cfg.Species[i].Quantity = 2
		}
	}
	return cfg
}

func newTestWorld(t *testing.T, cfg *config.Config, seed int64) *World {
	t.Helper()
	w, err := New(cfg, Options{Seed: seed})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func collect(w *World) []AgentState {
	return slices.Collect(w.Snapshot())
}

func run(w *World, ticks int, dt float64) {
	for range ticks {
		w.Tick(dt)
	}
}

func TestNew_SpawnsConfiguredQuantities(t *testing.T) {
	w := newTestWorld(t, testConfig(t), 1)

	if w.AgentCount() != 42 {
		t.Fatalf("AgentCount = %d, want 42", w.AgentCount())
	}
	perSpecies := map[int]int{}
	seen := map[uint32]bool{}
	b := w.Bounds()
	for _, a := range collect(w) {
		perSpecies[a.Species]++
		if seen[a.ID] {
			t.Errorf("duplicate id %d", a.ID)
		}
		seen[a.ID] = true
		if math.Abs(a.Position.X) > b.Width/2 || math.Abs(a.Position.Y) > b.Height/2 {
			t.Errorf("agent %d spawned outside bounds: %v", a.ID, a.Position)
		}
		if a.Position.Z != 0 || a.Velocity.Z != 0 {
			t.Errorf("agent %d has z in a 2-D world: %v %v", a.ID, a.Position, a.Velocity)
		}
		if math.Abs(a.Velocity.X) > 1 || math.Abs(a.Velocity.Y) > 1 {
			t.Errorf("agent %d spawn velocity out of range: %v", a.ID, a.Velocity)
		}
	}
	if perSpecies[0] != 20 || perSpecies[1] != 20 || perSpecies[2] != 2 {
		t.Errorf("per species = %v", perSpecies)
	}
	for id := uint32(0); id < 42; id++ {
		if !seen[id] {
			t.Errorf("id %d missing; ids must start at 0 and be dense after reset", id)
		}
	}
}

func TestTick_Deterministic(t *testing.T) {
	cfg := testConfig(t)
	a := newTestWorld(t, cfg, 7)
	b := newTestWorld(t, cfg, 7)

	for tick := 0; tick < 60; tick++ {
		a.Tick(cfg.Physics.DT)
		b.Tick(cfg.Physics.DT)
		if !slices.Equal(collect(a), collect(b)) {
			t.Fatalf("snapshots diverged at tick %d", tick)
		}
	}
	if a.TickCount() != 60 {
		t.Errorf("TickCount = %d, want 60", a.TickCount())
	}
}

func TestTick_ParallelMatchesSerial(t *testing.T) {
	serialCfg := testConfig(t)
	serialCfg.Parallel.Enabled = false

	parCfg := testConfig(t)
	parCfg.Parallel.Enabled = true
	parCfg.Parallel.Threshold = 1

	serial := newTestWorld(t, serialCfg, 3)
	par, err := New(parCfg, Options{Seed: 3, Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer par.Close()

	for tick := 0; tick < 30; tick++ {
		serial.Tick(serialCfg.Physics.DT)
		par.Tick(parCfg.Physics.DT)
	}
	if !slices.Equal(collect(serial), collect(par)) {
		t.Error("parallel read phase produced a different state than the serial one")
	}
}

func TestTick_SpeedNeverExceedsLimit(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWorld(t, cfg, 11)
	params := w.Species()

	for range 120 {
		w.Tick(cfg.Physics.DT)
		for _, a := range collect(w) {
			maxSpeed := params[a.Species].MaxSpeed
			if speed := math.Hypot(a.Velocity.X, a.Velocity.Y); speed > maxSpeed*(1+1e-12) {
				t.Fatalf("agent %d speed %v > %v", a.ID, speed, maxSpeed)
			}
		}
	}
}

// Under the default nudge boundary no agent ever leaves the box, whatever
// the flocking and pursuit forces do over a long run.
func TestTick_NudgeKeepsAgentsInBounds(t *testing.T) {
	if testing.Short() {
		t.Skip("long run")
	}
	cfg := config.Default()
	w := newTestWorld(t, cfg, 5)
	b := w.Bounds()
	margin := cfg.Physics.NudgeMargin

	for tick := 1; tick <= 3600; tick++ {
		w.Tick(cfg.Physics.DT)
		if tick%30 != 0 {
			continue
		}
		for _, a := range collect(w) {
			if math.Abs(a.Position.X) > b.Width/2-margin/2+1e-9 ||
				math.Abs(a.Position.Y) > b.Height/2-margin/2+1e-9 {
				t.Fatalf("tick %d: agent %d left the box: %v", tick, a.ID, a.Position)
			}
		}
	}
}

func TestTick_NudgeKeepsAgentsInBounds3D(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWorld(t, cfg, 8)
	b := systems.Bounds{Width: 200, Height: 150, Depth: 100}
	if err := w.ResetWorld(b, w.Species()); err != nil {
		t.Fatal(err)
	}

	for range 600 {
		w.Tick(cfg.Physics.DT)
	}
	for _, a := range collect(w) {
		if math.Abs(a.Position.X) > b.Width/2 ||
			math.Abs(a.Position.Y) > b.Height/2 ||
			math.Abs(a.Position.Z) > b.Depth/2 {
			t.Errorf("agent %d left the box: %v", a.ID, a.Position)
		}
	}
}

func TestTick_LoneAgentMovesAtConstantVelocity(t *testing.T) {
	cfg := testConfig(t)
	cfg.World.Width, cfg.World.Height = 1e6, 1e6
	cfg.Physics.Boundary = systems.BoundaryWrap
	cfg.Physics.GridCellSize = 1e5
	cfg.Species = cfg.Species[:1]
	cfg.Species[0].Quantity = 1
	cfg.Species[0].Cohesion = []float64{1}
	cfg.Species[0].Separation = []float64{1}
	cfg.Species[0].Alignment = []float64{1}
	w := newTestWorld(t, cfg, 5)

	before := collect(w)[0]
	const dt = 0.5
	w.Tick(dt)
	after := collect(w)[0]

	if after.Velocity != before.Velocity {
		t.Errorf("velocity changed: %v -> %v", before.Velocity, after.Velocity)
	}
	wantX := before.Position.X + before.Velocity.X*dt
	wantY := before.Position.Y + before.Velocity.Y*dt
	if math.Abs(after.Position.X-wantX) > 1e-9 || math.Abs(after.Position.Y-wantY) > 1e-9 {
		t.Errorf("position = %v, want (%v, %v)", after.Position, wantX, wantY)
	}
}

func TestRemoveSpecies_RemapsAgents(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWorld(t, cfg, 2)

	bySpecies := map[uint32]int{}
	for _, a := range collect(w) {
		bySpecies[a.ID] = a.Species
	}

	if err := w.RemoveSpecies(0); err != nil {
		t.Fatal(err)
	}
	if got := len(w.Species()); got != 2 {
		t.Fatalf("species count = %d, want 2", got)
	}

	for _, a := range collect(w) {
		want := bySpecies[a.ID] - 1
		if bySpecies[a.ID] == 0 {
			want = species.NoSpecies
		}
		if a.Species != want {
			t.Errorf("agent %d species = %d, want %d", a.ID, a.Species, want)
		}
	}

	w.Tick(cfg.Physics.DT)
	if got := w.LastTickCounts().Invalid; got != 20 {
		t.Errorf("invalid agents = %d, want 20", got)
	}
	if got := w.Diagnostics().Total(); got != 20 {
		t.Errorf("violations reported = %d, want 20", got)
	}
	for _, v := range w.Diagnostics().Recent() {
		if v.Species != species.NoSpecies || v.Reason != reasonUnresolvedSpecies {
			t.Errorf("unexpected violation %v", v)
		}
	}

	if err := w.RemoveSpecies(5); !errors.Is(err, species.ErrConfiguration) {
		t.Errorf("RemoveSpecies(5) error = %v, want ErrConfiguration", err)
	}
}

func TestAddSpecies_SpawnsOnReset(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWorld(t, cfg, 4)

	id, err := w.AddSpecies(species.Params{
		Name:             "swift",
		Quantity:         5,
		MaxSpeed:         3,
		MaxForce:         0.1,
		PerceptionRadius: 40,
		SeparationRadius: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != 3 {
		t.Errorf("id = %d, want 3", id)
	}
	if w.AgentCount() != 42 {
		t.Errorf("AddSpecies spawned agents: count = %d", w.AgentCount())
	}

	params := w.Species()
	for _, p := range params {
		if len(p.CohesionWeights) != 4 || len(p.SeparationWeights) != 4 || len(p.AlignmentWeights) != 4 {
			t.Errorf("species %q has stale row lengths", p.Name)
		}
	}

	if err := w.ResetWorld(w.Bounds(), params); err != nil {
		t.Fatal(err)
	}
	if w.AgentCount() != 47 {
		t.Errorf("AgentCount after reset = %d, want 47", w.AgentCount())
	}
	if w.TickCount() != 0 {
		t.Errorf("TickCount after reset = %d", w.TickCount())
	}
}

func TestResetWorld_Errors(t *testing.T) {
	w := newTestWorld(t, testConfig(t), 1)
	params := w.Species()

	tests := []struct {
		name   string
		bounds systems.Bounds
		params []species.Params
		want   error
	}{
		{"zero width", systems.Bounds{Width: 0, Height: 10}, params, ErrInvalidBounds},
		{"negative depth", systems.Bounds{Width: 10, Height: 10, Depth: -1}, params, ErrInvalidBounds},
		{"nan height", systems.Bounds{Width: 10, Height: math.NaN()}, params, ErrInvalidBounds},
		{"bad species", systems.Bounds{Width: 10, Height: 10}, func() []species.Params {
			bad := w.Species()
			bad[0].MaxSpeed = 0
			return bad
		}(), species.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.ResetWorld(tt.bounds, tt.params); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	// Failed resets leave the world untouched.
	if w.AgentCount() != 42 {
		t.Errorf("AgentCount = %d after failed resets", w.AgentCount())
	}
}

func TestSeed_ResetReproducesPopulation(t *testing.T) {
	w := newTestWorld(t, testConfig(t), 1)
	reset := func(seed int64) []AgentState {
		t.Helper()
		w.Seed(seed)
		if err := w.ResetWorld(w.Bounds(), w.Species()); err != nil {
			t.Fatal(err)
		}
		return collect(w)
	}

	first := reset(99)
	run(w, 20, 1.0/60)
	if again := reset(99); !slices.Equal(first, again) {
		t.Error("same seed produced a different population")
	}
	if other := reset(100); slices.Equal(first, other) {
		t.Error("different seeds produced the same population")
	}
	if w.TickCount() != 0 {
		t.Errorf("TickCount after reset = %d, want 0", w.TickCount())
	}
}

func TestResetWorld_ClearsDiagnostics(t *testing.T) {
	cfg := testConfig(t)
	w := newTestWorld(t, cfg, 4)
	if err := w.RemoveSpecies(1); err != nil {
		t.Fatal(err)
	}
	w.Tick(cfg.Physics.DT)
	if w.Diagnostics().Total() == 0 {
		t.Fatal("expected violations for orphaned agents")
	}

	if err := w.ResetWorld(w.Bounds(), w.Species()); err != nil {
		t.Fatal(err)
	}
	d := w.Diagnostics()
	if d.Total() != 0 || len(d.Recent()) != 0 {
		t.Errorf("diagnostics after reset: total %d, recent %d", d.Total(), len(d.Recent()))
	}

	w.Tick(cfg.Physics.DT)
	if got := w.Diagnostics().Total(); got != 0 {
		t.Errorf("violations after reset = %d, want 0", got)
	}
}

func TestResetWorld_ThreeDimensional(t *testing.T) {
	w := newTestWorld(t, testConfig(t), 9)
	if err := w.ResetWorld(systems.Bounds{Width: 200, Height: 200, Depth: 200}, w.Species()); err != nil {
		t.Fatal(err)
	}
	moved := false
	for _, a := range collect(w) {
		if a.Position.Z != 0 {
			moved = true
		}
		if math.Abs(a.Position.Z) > 100 {
			t.Errorf("agent %d z = %v outside depth", a.ID, a.Position.Z)
		}
	}
	if !moved {
		t.Error("no agent has a non-zero z in a 3-D world")
	}
	run(w, 10, 1)
}

func TestSnapshot_ValueCopies(t *testing.T) {
	w := newTestWorld(t, testConfig(t), 6)

	for a := range w.Snapshot() {
		a.Position.X = 1e9
		a.Velocity.X = 1e9
	}
	for _, a := range collect(w) {
		if a.Position.X == 1e9 || a.Velocity.X == 1e9 {
			t.Fatal("mutating a snapshot value changed the world")
		}
	}

	n := 0
	for range w.Snapshot() {
		n++
		if n == 3 {
			break
		}
	}
	// An early break must release the query so the world can mutate again.
	if err := w.ResetWorld(w.Bounds(), w.Species()); err != nil {
		t.Fatal(err)
	}
	w.Tick(0.1)
}

func TestConfigureSpecies_RevalidatesMatrix(t *testing.T) {
	w := newTestWorld(t, testConfig(t), 8)

	bad := w.Species()
	bad[1].AlignmentWeights = bad[1].AlignmentWeights[:2]
	if err := w.ConfigureSpecies(bad); !errors.Is(err, species.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}

	good := w.Species()[:2]
	for i := range good {
		good[i].CohesionWeights = good[i].CohesionWeights[:2]
		good[i].SeparationWeights = good[i].SeparationWeights[:2]
		good[i].AlignmentWeights = good[i].AlignmentWeights[:2]
	}
	if err := w.ConfigureSpecies(good); err != nil {
		t.Fatal(err)
	}

	// The hawks now reference a species id that no longer exists.
	w.Tick(0.1)
	if got := w.LastTickCounts().Invalid; got != 2 {
		t.Errorf("invalid agents = %d, want 2", got)
	}
}

func TestFlushStats(t *testing.T) {
	cfg := testConfig(t)
	cfg.Physics.DT = 0.1
	cfg.Telemetry.StatsWindow = 1
	w := newTestWorld(t, cfg, 12)

	flushed := 0
	for range 25 {
		w.Tick(cfg.Physics.DT)
		if stats, ok := w.FlushStats(); ok {
			flushed++
			if stats.Agents != 42 || stats.PreyCount != 40 || stats.PredCount != 2 {
				t.Errorf("population = %d/%d/%d", stats.Agents, stats.PreyCount, stats.PredCount)
			}
			if stats.Polarization < 0 || stats.Polarization > 1+1e-12 {
				t.Errorf("polarization = %v", stats.Polarization)
			}
			total := stats.FlockingTicks + stats.FleeingTicks + stats.HuntingTicks
			if total != 42*10 {
				t.Errorf("state ticks = %d, want %d", total, 42*10)
			}
		}
	}
	if flushed != 2 {
		t.Errorf("flushed %d windows, want 2", flushed)
	}
}

func BenchmarkTick(b *testing.B) {
	cfg := config.Default()
	w, err := New(cfg, Options{Seed: 1})
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Tick(cfg.Physics.DT)
	}
}
