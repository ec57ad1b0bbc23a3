package systems

import (
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/species"
	"github.com/pthm-cable/flock/vecmath"
)

// AgentView is the read-only state of one agent captured at tick start.
// Every force in a tick is computed from views, never from live components.
type AgentView struct {
	ID      uint32
	Species int
	Pos     vecmath.Vec3
	Vel     vecmath.Vec3
	Limits  components.Limits
}

// ruleSums accumulates one steering rule over a neighbor pass.
type ruleSums struct {
	sum   vecmath.Vec3
	count int
}

func (s *ruleSums) add(v vecmath.Vec3) {
	s.sum = vecmath.Add(s.sum, v)
	s.count++
}

func (s *ruleSums) mean() vecmath.Vec3 {
	return vecmath.Scale(s.sum, 1/float64(s.count))
}

// SteeringForce computes the weighted separation, alignment and cohesion
// acceleration for self. neighbors must already exclude predators and agents
// whose species does not resolve.
//
// Each rule is gated per neighbor on the weight toward that neighbor's
// species, averaged, turned into a desired velocity of length MaxSpeed,
// converted to a steering delta clamped to MaxForce, and finally scaled by the
// species' self weight for that rule. Rules with no contributors add nothing.
func SteeringForce(self *AgentView, p *species.Params, views []AgentView, neighbors []Neighbor) vecmath.Vec3 {
	percSq := self.Limits.PerceptionRadius * self.Limits.PerceptionRadius
	sepSq := p.SeparationRadius * p.SeparationRadius

	var sep, ali, coh ruleSums
	for i := range neighbors {
		n := &neighbors[i]
		other := &views[n.Index]

		if n.DistSq < sepSq && p.SeparationWeights[other.Species] > 0 {
			if n.DistSq > 0 {
				// (self - other) / d^2
				sep.add(vecmath.Scale(n.Delta, -1/n.DistSq))
			} else {
				// Coincident: direction undefined, counts with zero contribution.
				sep.count++
			}
		}
		if n.DistSq < percSq {
			if p.AlignmentWeights[other.Species] > 0 {
				ali.add(other.Vel)
			}
			if p.CohesionWeights[other.Species] > 0 {
				coh.add(other.Pos)
			}
		}
	}

	var acc vecmath.Vec3
	if sep.count > 0 {
		acc = vecmath.Add(acc, steer(sep.mean(), self, p.SelfWeight(species.Separation)))
	}
	if ali.count > 0 {
		acc = vecmath.Add(acc, steer(ali.mean(), self, p.SelfWeight(species.Alignment)))
	}
	if coh.count > 0 {
		offset := vecmath.Sub(coh.mean(), self.Pos)
		acc = vecmath.Add(acc, steer(offset, self, p.SelfWeight(species.Cohesion)))
	}
	return acc
}

// steer turns a rule direction into a clamped, weighted steering delta.
// A zero-length direction contributes nothing.
func steer(dir vecmath.Vec3, self *AgentView, weight float64) vecmath.Vec3 {
	if vecmath.IsZero(dir) {
		return vecmath.Zero
	}
	desired := vecmath.WithLen(dir, self.Limits.MaxSpeed)
	delta := vecmath.ClampLen(vecmath.Sub(desired, self.Vel), self.Limits.MaxForce)
	return vecmath.Scale(delta, weight)
}
