package main

import (
	"fmt"

	"github.com/pthm-cable/flock/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Value in the base config

	get func(cfg *config.Config) float64
	set func(cfg *config.Config, v float64)
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector builds the tunable set from base: the three self weights
// of every prey species plus the flee gain. Predator rows and cross-species
// weights are left as configured.
func NewParamVector(base *config.Config) *ParamVector {
	pv := &ParamVector{}
	for s, sp := range base.Species {
		if sp.Predator {
			continue
		}
		pv.addWeight(base, s, "cohesion", func(c *config.SpeciesConfig) []float64 { return c.Cohesion })
		pv.addWeight(base, s, "separation", func(c *config.SpeciesConfig) []float64 { return c.Separation })
		pv.addWeight(base, s, "alignment", func(c *config.SpeciesConfig) []float64 { return c.Alignment })
	}
	pv.Specs = append(pv.Specs, ParamSpec{
		Name:    "flee_gain",
		Min:     0.01,
		Max:     2,
		Default: base.Behavior.FleeGain,
		get:     func(cfg *config.Config) float64 { return cfg.Behavior.FleeGain },
		set:     func(cfg *config.Config, v float64) { cfg.Behavior.FleeGain = v },
	})
	return pv
}

func (pv *ParamVector) addWeight(base *config.Config, s int, rule string, row func(*config.SpeciesConfig) []float64) {
	pv.Specs = append(pv.Specs, ParamSpec{
		Name:    fmt.Sprintf("%s_%s", base.Species[s].Name, rule),
		Min:     0,
		Max:     3,
		Default: row(&base.Species[s])[s],
		get:     func(cfg *config.Config) float64 { return row(&cfg.Species[s])[s] },
		set:     func(cfg *config.Config, v float64) { row(&cfg.Species[s])[s] = v },
	})
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped values into cfg. cfg must have the same
// species list as the base config the vector was built from.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.get(cfg)
	}
	return out
}
