package systems

import (
	"fmt"
	"math"

	"github.com/pthm-cable/flock/vecmath"
)

// BoundaryPolicy keeps agents inside the world box. Steer runs on the velocity
// before the speed clamp; Constrain runs on the position after it moves.
type BoundaryPolicy interface {
	Steer(pos vecmath.Vec3, vel *vecmath.Vec3, b Bounds)
	Constrain(pos *vecmath.Vec3, b Bounds)
}

// Boundary policy names used in config.
const (
	BoundaryNudge = "nudge"
	BoundaryWrap  = "wrap"
)

// NewBoundaryPolicy returns the policy registered under name.
func NewBoundaryPolicy(name string, margin, turnFactor float64) (BoundaryPolicy, error) {
	switch name {
	case BoundaryNudge:
		return NudgePolicy{Margin: margin, TurnFactor: turnFactor}, nil
	case BoundaryWrap:
		return WrapPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown boundary policy %q", name)
	}
}

// NudgePolicy pushes velocity back toward the interior while an agent is
// within Margin of an edge, and clamps positions to the inner band.
type NudgePolicy struct {
	Margin     float64
	TurnFactor float64
}

func (n NudgePolicy) Steer(pos vecmath.Vec3, vel *vecmath.Vec3, b Bounds) {
	vel.X += n.axis(pos.X, b.Width)
	vel.Y += n.axis(pos.Y, b.Height)
	if !b.Is2D() {
		vel.Z += n.axis(pos.Z, b.Depth)
	}
}

func (n NudgePolicy) axis(p, size float64) float64 {
	half := size / 2
	switch {
	case p < -half+n.Margin:
		return n.TurnFactor
	case p > half-n.Margin:
		return -n.TurnFactor
	}
	return 0
}

// Constrain holds positions inside the box, Margin/2 away from each edge.
func (n NudgePolicy) Constrain(pos *vecmath.Vec3, b Bounds) {
	pos.X = n.clampAxis(pos.X, b.Width)
	pos.Y = n.clampAxis(pos.Y, b.Height)
	if !b.Is2D() {
		pos.Z = n.clampAxis(pos.Z, b.Depth)
	}
}

func (n NudgePolicy) clampAxis(p, size float64) float64 {
	half := size / 2
	inset := min(max(n.Margin/2, 0), half)
	return min(max(p, -half+inset), half-inset)
}

// WrapPolicy teleports agents that leave the box to the opposite edge.
type WrapPolicy struct{}

func (WrapPolicy) Steer(vecmath.Vec3, *vecmath.Vec3, Bounds) {}

func (WrapPolicy) Constrain(pos *vecmath.Vec3, b Bounds) {
	pos.X = wrap(pos.X, b.Width)
	pos.Y = wrap(pos.Y, b.Height)
	if !b.Is2D() {
		pos.Z = wrap(pos.Z, b.Depth)
	}
}

// wrap maps v into [-size/2, size/2).
func wrap(v, size float64) float64 {
	if size <= 0 {
		return v
	}
	half := size / 2
	if v >= -half && v < half {
		return v
	}
	m := math.Mod(v+half, size)
	if m < 0 {
		m += size
	}
	return m - half
}
