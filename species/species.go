// Package species holds per-species physical limits and the cohesion,
// separation and alignment interaction matrices.
//
// Species ids are dense and zero-based and index the matrices directly. Every
// structural change (add, remove) is applied as a single transaction so the
// table never holds a row whose length differs from the species count.
package species

import "slices"

// Rule selects one of the three interaction matrices.
type Rule uint8

const (
	Cohesion Rule = iota
	Separation
	Alignment
)

// String returns the config name of the rule.
func (r Rule) String() string {
	switch r {
	case Cohesion:
		return "cohesion"
	case Separation:
		return "separation"
	case Alignment:
		return "alignment"
	default:
		return "unknown"
	}
}

// Rules lists the matrices in a fixed order.
var Rules = [...]Rule{Cohesion, Separation, Alignment}

// NoSpecies marks an agent whose species was removed.
const NoSpecies = -1

// Params describes one species. The weight rows map target species id to a
// non-negative weight; the diagonal entry is the species' self weight.
type Params struct {
	ID               int
	Name             string
	Quantity         int
	MaxSpeed         float64
	MaxForce         float64
	PerceptionRadius float64
	SeparationRadius float64
	IsPredator       bool

	CohesionWeights   []float64
	SeparationWeights []float64
	AlignmentWeights  []float64
}

// Weights returns the row for the given rule.
func (p *Params) Weights(r Rule) []float64 {
	switch r {
	case Cohesion:
		return p.CohesionWeights
	case Separation:
		return p.SeparationWeights
	default:
		return p.AlignmentWeights
	}
}

func (p *Params) setWeights(r Rule, row []float64) {
	switch r {
	case Cohesion:
		p.CohesionWeights = row
	case Separation:
		p.SeparationWeights = row
	default:
		p.AlignmentWeights = row
	}
}

// SelfWeight returns the diagonal weight of the given rule.
func (p *Params) SelfWeight(r Rule) float64 {
	return p.Weights(r)[p.ID]
}

// MaxRadius returns the larger of the perception and separation radii.
func (p *Params) MaxRadius() float64 {
	return max(p.PerceptionRadius, p.SeparationRadius)
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	p.CohesionWeights = slices.Clone(p.CohesionWeights)
	p.SeparationWeights = slices.Clone(p.SeparationWeights)
	p.AlignmentWeights = slices.Clone(p.AlignmentWeights)
	return p
}
