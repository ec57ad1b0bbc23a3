package species

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("species configuration error")

// ConfigurationError describes an invalid species table. The simulation must
// not run until it is resolved.
type ConfigurationError struct {
	SpeciesID int    // offending species, -1 when table-wide
	Field     string // e.g. "max_speed", "cohesion"
	Reason    string
}

func (e *ConfigurationError) Error() string {
	if e.SpeciesID < 0 {
		return fmt.Sprintf("species: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("species %d: %s: %s", e.SpeciesID, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) succeed.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(id int, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{SpeciesID: id, Field: field, Reason: fmt.Sprintf(format, args...)}
}
