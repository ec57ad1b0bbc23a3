package systems

import (
	"github.com/pthm-cable/flock/species"
	"github.com/pthm-cable/flock/vecmath"
)

// State is the behavior an agent ran in a tick.
type State uint8

const (
	StateFlocking State = iota // prey, no predator in range
	StateFleeing               // prey with a predator in extended range
	StateHunting               // predator (with or without a target)
	StateInvalid               // species did not resolve; no force applied
)

// String returns a short name for the state.
func (s State) String() string {
	switch s {
	case StateFlocking:
		return "flocking"
	case StateFleeing:
		return "fleeing"
	case StateHunting:
		return "hunting"
	default:
		return "invalid"
	}
}

// StateCount is the number of states.
const StateCount = 4

// BehaviorParams holds the predator/prey gains.
type BehaviorParams struct {
	PursuitGain     float64 // predator: acceleration per unit offset toward prey, unclamped
	FleeGain        float64 // prey: acceleration per unit mean offset from predators, clamped to MaxForce
	FleeRangeFactor float64 // prey flee range as a multiple of perception radius
}

// DefaultBehaviorParams returns the standard gains.
func DefaultBehaviorParams() BehaviorParams {
	return BehaviorParams{
		PursuitGain:     0.1,
		FleeGain:        0.5,
		FleeRangeFactor: 1.5,
	}
}

// QueryRadius returns the neighbor search radius needed for an agent of
// species p with the given cached perception radius.
func (b BehaviorParams) QueryRadius(p *species.Params, perception float64) float64 {
	if p.IsPredator {
		return perception
	}
	return max(perception, p.SeparationRadius, perception*b.FleeRangeFactor)
}

// PursuitForce steers a predator straight at the nearest prey inside its
// perception radius. Ties on distance go to the lowest agent id. Returns
// false when no prey is in range.
func PursuitForce(self *AgentView, views []AgentView, neighbors []Neighbor, table *species.Table, gain float64) (vecmath.Vec3, bool) {
	percSq := self.Limits.PerceptionRadius * self.Limits.PerceptionRadius

	best := -1
	var bestDistSq float64
	var bestID uint32
	for i := range neighbors {
		n := &neighbors[i]
		if n.DistSq >= percSq {
			continue
		}
		p := table.Get(views[n.Index].Species)
		if p == nil || p.IsPredator {
			continue
		}
		if best < 0 || n.DistSq < bestDistSq || (n.DistSq == bestDistSq && n.ID < bestID) {
			best = i
			bestDistSq = n.DistSq
			bestID = n.ID
		}
	}
	if best < 0 {
		return vecmath.Zero, false
	}
	return vecmath.Scale(neighbors[best].Delta, gain), true
}

// FleeForce steers prey away from every predator within rangeFactor times its
// perception radius. The mean offset is scaled by gain and clamped to
// MaxForce. Returns false when no predator is in range.
func FleeForce(self *AgentView, views []AgentView, neighbors []Neighbor, table *species.Table, gain, rangeFactor float64) (vecmath.Vec3, bool) {
	r := self.Limits.PerceptionRadius * rangeFactor
	rSq := r * r

	var away ruleSums
	for i := range neighbors {
		n := &neighbors[i]
		if n.DistSq >= rSq {
			continue
		}
		p := table.Get(views[n.Index].Species)
		if p == nil || !p.IsPredator {
			continue
		}
		away.add(vecmath.Scale(n.Delta, -1))
	}
	if away.count == 0 {
		return vecmath.Zero, false
	}
	return vecmath.ClampLen(vecmath.Scale(away.mean(), gain), self.Limits.MaxForce), true
}

// FilterPrey keeps the neighbors that take part in flocking: agents whose
// species resolves and is not a predator. Filtering is in place.
func FilterPrey(neighbors []Neighbor, views []AgentView, table *species.Table) []Neighbor {
	out := neighbors[:0]
	for _, n := range neighbors {
		p := table.Get(views[n.Index].Species)
		if p == nil || p.IsPredator {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Behave selects the agent's state in priority order (predator, fleeing,
// flocking) and returns the acceleration it produces. The neighbor buffer is
// reused and returned.
func Behave(self *AgentView, views []AgentView, grid *SpatialGrid, table *species.Table, params BehaviorParams, buf []Neighbor) (vecmath.Vec3, State, []Neighbor) {
	p := table.Get(self.Species)
	if p == nil {
		return vecmath.Zero, StateInvalid, buf
	}

	buf = grid.QueryRadiusInto(buf[:0], self.Pos, params.QueryRadius(p, self.Limits.PerceptionRadius), self.ID)

	if p.IsPredator {
		acc, _ := PursuitForce(self, views, buf, table, params.PursuitGain)
		return acc, StateHunting, buf
	}

	if acc, ok := FleeForce(self, views, buf, table, params.FleeGain, params.FleeRangeFactor); ok {
		return acc, StateFleeing, buf
	}

	buf = FilterPrey(buf, views, table)
	return SteeringForce(self, p, views, buf), StateFlocking, buf
}
