// Package config provides configuration loading and access for the simulation.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/flock/species"
)

//go:embed defaults.yaml
var defaultsYAML []byte

//go:embed schema.json
var schemaJSON string

// Config holds all simulation configuration parameters.
type Config struct {
	World     WorldConfig     `yaml:"world"`
	Physics   PhysicsConfig   `yaml:"physics"`
	Behavior  BehaviorConfig  `yaml:"behavior"`
	Parallel  ParallelConfig  `yaml:"parallel"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Species   []SpeciesConfig `yaml:"species"`
}

// WorldConfig holds the world box dimensions. The box is centered on the
// origin; depth 0 selects a 2-D world.
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Depth  float64 `yaml:"depth"`
}

// PhysicsConfig holds integration and neighbor-search parameters.
type PhysicsConfig struct {
	DT              float64 `yaml:"dt"`
	GridCellSize    float64 `yaml:"grid_cell_size"` // 0 = largest species radius
	Boundary        string  `yaml:"boundary"`       // nudge | wrap
	NudgeMargin     float64 `yaml:"nudge_margin"`
	NudgeTurnFactor float64 `yaml:"nudge_turn_factor"`
}

// BehaviorConfig holds the predator/prey gains.
type BehaviorConfig struct {
	PursuitGain     float64 `yaml:"pursuit_gain"`
	FleeGain        float64 `yaml:"flee_gain"`
	FleeRangeFactor float64 `yaml:"flee_range_factor"`
	DefaultWeight   float64 `yaml:"default_weight"` // weight for matrix columns added at runtime
}

// ParallelConfig controls the worker pool used for the read phase of a tick.
type ParallelConfig struct {
	Enabled   bool `yaml:"enabled"`
	Threshold int  `yaml:"threshold"` // minimum agent count before going parallel
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"`
	PerfWindow  int     `yaml:"perf_window"`
}

// SpeciesConfig is one species entry. Weight rows are indexed by the
// position of the target species in the list.
type SpeciesConfig struct {
	Name             string    `yaml:"name"`
	Quantity         int       `yaml:"quantity"`
	MaxSpeed         float64   `yaml:"max_speed"`
	MaxForce         float64   `yaml:"max_force"`
	PerceptionRadius float64   `yaml:"perception_radius"`
	SeparationRadius float64   `yaml:"separation_radius"`
	Predator         bool      `yaml:"predator"`
	Cohesion         []float64 `yaml:"cohesion"`
	Separation       []float64 `yaml:"separation"`
	Alignment        []float64 `yaml:"alignment"`
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return Parse(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse merges data over the embedded defaults. Both documents are checked
// against the embedded schema before decoding.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := decode(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if len(data) > 0 {
		// Unmarshal into same struct - only overwrites fields present in file
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if _, err := cfg.SpeciesParams(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if err := validateSchema(data); err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var loadSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("config.schema.json", schemaJSON)
})

// validateSchema checks a YAML document against schema.json. The document is
// round-tripped through JSON so the validator sees JSON numbers.
func validateSchema(data []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("converting config to JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("converting config to JSON: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SpeciesParams converts the species list to a validated parameter table.
func (c *Config) SpeciesParams() ([]species.Params, error) {
	params := make([]species.Params, len(c.Species))
	for i, s := range c.Species {
		params[i] = species.Params{
			ID:                i,
			Name:              s.Name,
			Quantity:          s.Quantity,
			MaxSpeed:          s.MaxSpeed,
			MaxForce:          s.MaxForce,
			PerceptionRadius:  s.PerceptionRadius,
			SeparationRadius:  s.SeparationRadius,
			IsPredator:        s.Predator,
			CohesionWeights:   append([]float64(nil), s.Cohesion...),
			SeparationWeights: append([]float64(nil), s.Separation...),
			AlignmentWeights:  append([]float64(nil), s.Alignment...),
		}
	}
	if err := species.Validate(params); err != nil {
		return nil, err
	}
	return params, nil
}

// SetSpecies replaces the species list from a parameter table.
func (c *Config) SetSpecies(params []species.Params) {
	c.Species = make([]SpeciesConfig, len(params))
	for i, p := range params {
		c.Species[i] = SpeciesConfig{
			Name:             p.Name,
			Quantity:         p.Quantity,
			MaxSpeed:         p.MaxSpeed,
			MaxForce:         p.MaxForce,
			PerceptionRadius: p.PerceptionRadius,
			SeparationRadius: p.SeparationRadius,
			Predator:         p.IsPredator,
			Cohesion:         append([]float64(nil), p.CohesionWeights...),
			Separation:       append([]float64(nil), p.SeparationWeights...),
			Alignment:        append([]float64(nil), p.AlignmentWeights...),
		}
	}
}

// Encode writes the configuration as YAML to w.
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
