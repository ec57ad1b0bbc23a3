package species

import (
	"math"
	"slices"
)

// Table is a validated species table.
type Table struct {
	params []Params
}

// NewTable validates params and returns a table holding deep copies.
func NewTable(params []Params) (*Table, error) {
	t := &Table{params: make([]Params, len(params))}
	for i := range params {
		t.params[i] = params[i].Clone()
	}
	if err := Validate(t.params); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks id density and matrix dimensions and limits.
func Validate(params []Params) error {
	n := len(params)
	for i := range params {
		p := &params[i]
		if p.ID != i {
			return configErr(i, "id", "got %d, ids must be dense and zero-based", p.ID)
		}
		if !(p.MaxSpeed > 0) {
			return configErr(i, "max_speed", "must be > 0, got %v", p.MaxSpeed)
		}
		if !(p.MaxForce > 0) {
			return configErr(i, "max_force", "must be > 0, got %v", p.MaxForce)
		}
		if p.PerceptionRadius < 0 || math.IsNaN(p.PerceptionRadius) {
			return configErr(i, "perception_radius", "must be >= 0, got %v", p.PerceptionRadius)
		}
		if p.SeparationRadius < 0 || math.IsNaN(p.SeparationRadius) {
			return configErr(i, "separation_radius", "must be >= 0, got %v", p.SeparationRadius)
		}
		if p.Quantity < 0 {
			return configErr(i, "quantity", "must be >= 0, got %d", p.Quantity)
		}
		for _, r := range Rules {
			row := p.Weights(r)
			if len(row) != n {
				return configErr(i, r.String(), "row has %d entries, want %d", len(row), n)
			}
			for j, w := range row {
				if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
					return configErr(i, r.String(), "weight toward species %d is %v, must be finite and >= 0", j, w)
				}
			}
		}
	}
	return nil
}

// Len returns the species count.
func (t *Table) Len() int { return len(t.params) }

// Get returns the species with the given id, or nil if the id does not resolve.
// The returned pointer must be treated as read-only.
func (t *Table) Get(id int) *Params {
	if id < 0 || id >= len(t.params) {
		return nil
	}
	return &t.params[id]
}

// Params returns a deep copy of the table.
func (t *Table) Params() []Params {
	out := make([]Params, len(t.params))
	for i := range t.params {
		out[i] = t.params[i].Clone()
	}
	return out
}

// Weight returns the weight of rule r from species src toward species dst.
func (t *Table) Weight(r Rule, src, dst int) float64 {
	return t.params[src].Weights(r)[dst]
}

// MaxRadius returns the largest interaction radius across all species.
func (t *Table) MaxRadius() float64 {
	var m float64
	for i := range t.params {
		m = max(m, t.params[i].MaxRadius())
	}
	return m
}

// Add appends a species. Every existing row gains one column of
// defaultWeight; rows of p shorter than the new species count are padded with
// defaultWeight. The assigned id is returned and p.ID is ignored.
func (t *Table) Add(p Params, defaultWeight float64) (int, error) {
	n := len(t.params) + 1
	next := make([]Params, 0, n)
	for i := range t.params {
		q := t.params[i].Clone()
		for _, r := range Rules {
			q.setWeights(r, append(q.Weights(r), defaultWeight))
		}
		next = append(next, q)
	}

	p = p.Clone()
	p.ID = n - 1
	for _, r := range Rules {
		row := p.Weights(r)
		for len(row) < n {
			row = append(row, defaultWeight)
		}
		p.setWeights(r, row)
	}
	next = append(next, p)

	if err := Validate(next); err != nil {
		return NoSpecies, err
	}
	t.params = next
	return p.ID, nil
}

// Remap translates old species ids to new ones after a removal.
// Removed ids map to NoSpecies.
type Remap []int

// Apply returns the new id for old. Ids outside the table map to NoSpecies.
func (m Remap) Apply(old int) int {
	if old < 0 || old >= len(m) {
		return NoSpecies
	}
	return m[old]
}

// Remove deletes species id, renumbering every id above it and dropping the
// matching column from all surviving rows. The remap used is returned so the
// caller can apply the same translation to agents.
func (t *Table) Remove(id int) (Remap, error) {
	if id < 0 || id >= len(t.params) {
		return nil, configErr(id, "id", "no such species (have %d)", len(t.params))
	}

	remap := make(Remap, len(t.params))
	next := 0
	for old := range remap {
		if old == id {
			remap[old] = NoSpecies
			continue
		}
		remap[old] = next
		next++
	}

	t.params = remapParams(t.params, remap, next)
	return remap, nil
}

// remapParams builds a fresh table in which row and column old moves to
// remap[old]; entries mapping to NoSpecies are dropped.
func remapParams(params []Params, remap Remap, n int) []Params {
	out := make([]Params, n)
	for old := range params {
		nid := remap[old]
		if nid == NoSpecies {
			continue
		}
		p := params[old].Clone()
		p.ID = nid
		for _, r := range Rules {
			src := p.Weights(r)
			row := make([]float64, n)
			for oldCol, w := range src {
				if nc := remap.Apply(oldCol); nc != NoSpecies {
					row[nc] = w
				}
			}
			p.setWeights(r, row)
		}
		out[nid] = p
	}
	return slices.Clip(out)
}
