// Package components defines ECS components for the simulation.
package components

import "github.com/pthm-cable/flock/species"

// Agent holds identity and species membership.
type Agent struct {
	ID      uint32 // stable for the agent's lifetime, never reused within a run
	Species int    // index into the species table, species.NoSpecies if orphaned
}

// Orphaned reports whether the agent's species was removed.
func (a *Agent) Orphaned() bool {
	return a.Species == species.NoSpecies
}

// Limits are physical limits copied from the species at spawn time.
// Later species edits do not reach already-spawned agents.
type Limits struct {
	MaxSpeed         float64
	MaxForce         float64
	PerceptionRadius float64
}

// LimitsFromSpecies returns a snapshot of p's physical limits.
func LimitsFromSpecies(p *species.Params) Limits {
	return Limits{
		MaxSpeed:         p.MaxSpeed,
		MaxForce:         p.MaxForce,
		PerceptionRadius: p.PerceptionRadius,
	}
}
