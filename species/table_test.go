package species

import (
	"errors"
	"testing"
)

func uniform(n int, w float64) []float64 {
	row := make([]float64, n)
	for i := range row {
		row[i] = w
	}
	return row
}

func makeParams(n int) []Params {
	params := make([]Params, n)
	for i := range params {
		params[i] = Params{
			ID:                i,
			Name:              string(rune('a' + i)),
			Quantity:          10,
			MaxSpeed:          4,
			MaxForce:          0.1,
			PerceptionRadius:  50,
			SeparationRadius:  20,
			CohesionWeights:   uniform(n, float64(i+1)),
			SeparationWeights: uniform(n, float64(i+1)*10),
			AlignmentWeights:  uniform(n, float64(i+1)*100),
		}
	}
	return params
}

func assertDims(t *testing.T, tbl *Table) {
	t.Helper()
	n := tbl.Len()
	for i := 0; i < n; i++ {
		p := tbl.Get(i)
		if p.ID != i {
			t.Fatalf("species at index %d has id %d", i, p.ID)
		}
		for _, r := range Rules {
			if got := len(p.Weights(r)); got != n {
				t.Fatalf("species %d %s row has %d entries, want %d", i, r, got, n)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]Params)
		field  string
	}{
		{"valid", func([]Params) {}, ""},
		{"sparse ids", func(p []Params) { p[1].ID = 5 }, "id"},
		{"zero max speed", func(p []Params) { p[0].MaxSpeed = 0 }, "max_speed"},
		{"negative max force", func(p []Params) { p[2].MaxForce = -1 }, "max_force"},
		{"short row", func(p []Params) { p[1].CohesionWeights = p[1].CohesionWeights[:2] }, "cohesion"},
		{"negative weight", func(p []Params) { p[0].AlignmentWeights[1] = -0.5 }, "alignment"},
		{"negative radius", func(p []Params) { p[0].SeparationRadius = -1 }, "separation_radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := makeParams(3)
			tt.mutate(params)
			err := Validate(params)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) || cerr.Field != tt.field {
				t.Errorf("err = %v, want field %q", err, tt.field)
			}
		})
	}
}

func TestNewTableCopiesInput(t *testing.T) {
	params := makeParams(2)
	tbl, err := NewTable(params)
	if err != nil {
		t.Fatal(err)
	}
	params[0].CohesionWeights[0] = 99
	if w := tbl.Weight(Cohesion, 0, 0); w != 1 {
		t.Errorf("table shares storage with caller: weight = %v", w)
	}
}

func TestAddAppendsColumn(t *testing.T) {
	tbl, err := NewTable(makeParams(2))
	if err != nil {
		t.Fatal(err)
	}

	id, err := tbl.Add(Params{Name: "new", MaxSpeed: 1, MaxForce: 1, SeparationWeights: []float64{7}}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Fatalf("id = %d, want 2", id)
	}
	assertDims(t, tbl)

	for src := 0; src < 2; src++ {
		for _, r := range Rules {
			if w := tbl.Weight(r, src, 2); w != 0.5 {
				t.Errorf("species %d %s toward new = %v, want 0.5", src, r, w)
			}
		}
	}
	// Existing entries of the new row are kept, the rest padded.
	if w := tbl.Weight(Separation, 2, 0); w != 7 {
		t.Errorf("new separation[0] = %v, want 7", w)
	}
	if w := tbl.Weight(Separation, 2, 2); w != 0.5 {
		t.Errorf("new separation[2] = %v, want 0.5", w)
	}
}

func TestAddRejectsInvalidLeavesTable(t *testing.T) {
	tbl, _ := NewTable(makeParams(2))
	if _, err := tbl.Add(Params{MaxSpeed: 0, MaxForce: 1}, 1); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("Len = %d after failed add, want 2", tbl.Len())
	}
	assertDims(t, tbl)
}

func TestRemoveRenumbers(t *testing.T) {
	params := makeParams(4)
	// Give every cell a unique value so column moves are observable.
	for i := range params {
		for j := range params[i].CohesionWeights {
			params[i].CohesionWeights[j] = float64(i*10 + j)
		}
	}
	tbl, err := NewTable(params)
	if err != nil {
		t.Fatal(err)
	}

	remap, err := tbl.Remove(1)
	if err != nil {
		t.Fatal(err)
	}

	wantRemap := Remap{0, NoSpecies, 1, 2}
	for i, w := range wantRemap {
		if remap[i] != w {
			t.Errorf("remap[%d] = %d, want %d", i, remap[i], w)
		}
	}

	assertDims(t, tbl)
	if tbl.Len() != 3 {
		t.Fatalf("Len = %d, want 3", tbl.Len())
	}
	if name := tbl.Get(1).Name; name != "c" {
		t.Errorf("species 1 name = %q, want c (old species 2)", name)
	}

	// old (2,3) -> new (1,2)
	if w := tbl.Weight(Cohesion, 1, 2); w != 23 {
		t.Errorf("cohesion[1][2] = %v, want 23", w)
	}
	// old (0,2) -> new (0,1)
	if w := tbl.Weight(Cohesion, 0, 1); w != 2 {
		t.Errorf("cohesion[0][1] = %v, want 2", w)
	}
}

func TestRemoveThenAddKeepsDense(t *testing.T) {
	tbl, _ := NewTable(makeParams(3))
	if _, err := tbl.Remove(0); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Add(Params{MaxSpeed: 1, MaxForce: 1}, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Remove(2); err != nil {
		t.Fatal(err)
	}
	assertDims(t, tbl)
	if tbl.Len() != 2 {
		t.Errorf("Len = %d, want 2", tbl.Len())
	}
}

func TestRemoveUnknown(t *testing.T) {
	tbl, _ := NewTable(makeParams(1))
	if _, err := tbl.Remove(3); !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}

func TestRemapApply(t *testing.T) {
	m := Remap{0, NoSpecies, 1}
	if got := m.Apply(2); got != 1 {
		t.Errorf("Apply(2) = %d", got)
	}
	if got := m.Apply(1); got != NoSpecies {
		t.Errorf("Apply(1) = %d", got)
	}
	if got := m.Apply(9); got != NoSpecies {
		t.Errorf("Apply(9) = %d", got)
	}
}
