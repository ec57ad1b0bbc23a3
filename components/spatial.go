package components

import "gonum.org/v1/gonum/spatial/r3"

// Position represents an agent's world position.
type Position struct {
	r3.Vec
}

// Velocity represents an agent's velocity in world units per second.
type Velocity struct {
	r3.Vec
}

// Acceleration is the steering accumulated for the current tick.
// It is zeroed after integration.
type Acceleration struct {
	r3.Vec
}
