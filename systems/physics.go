package systems

import (
	"github.com/pthm-cable/flock/components"
	"github.com/pthm-cable/flock/vecmath"
)

// Integrate advances one agent by dt: v += a, boundary steer, clamp |v| to
// MaxSpeed, p += v*dt, boundary constrain, a = 0.
func Integrate(pos *components.Position, vel *components.Velocity, acc *components.Acceleration, lim *components.Limits, dt float64, policy BoundaryPolicy, bounds Bounds) {
	v := vecmath.Add(vel.Vec, acc.Vec)
	if policy != nil {
		policy.Steer(pos.Vec, &v, bounds)
	}
	v = vecmath.ClampLen(v, lim.MaxSpeed)

	p := vecmath.Add(pos.Vec, vecmath.Scale(v, dt))
	if policy != nil {
		policy.Constrain(&p, bounds)
	}
	if bounds.Is2D() {
		p.Z = 0
		v.Z = 0
	}

	pos.Vec = p
	vel.Vec = v
	acc.Vec = vecmath.Zero
}
