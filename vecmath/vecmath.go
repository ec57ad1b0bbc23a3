// Package vecmath provides the small set of 3-D vector helpers used by the
// flocking systems. Vectors are gonum r3.Vec values and are always copied.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a 3-component vector.
type Vec3 = r3.Vec

// Zero is the zero vector.
var Zero = Vec3{}

// Add returns a+b.
func Add(a, b Vec3) Vec3 { return r3.Add(a, b) }

// Sub returns a-b.
func Sub(a, b Vec3) Vec3 { return r3.Sub(a, b) }

// Scale returns v*f.
func Scale(v Vec3, f float64) Vec3 { return r3.Scale(f, v) }

// Len returns the Euclidean length of v.
func Len(v Vec3) float64 { return r3.Norm(v) }

// LenSq returns the squared length of v.
func LenSq(v Vec3) float64 { return r3.Norm2(v) }

// DistSq returns the squared distance between a and b.
func DistSq(a, b Vec3) float64 { return r3.Norm2(r3.Sub(a, b)) }

// IsZero reports whether all components are exactly zero.
func IsZero(v Vec3) bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// ClampLen limits the length of v to [0, maxLen].
func ClampLen(v Vec3, maxLen float64) Vec3 {
	if maxLen <= 0 {
		return Zero
	}
	lsq := r3.Norm2(v)
	if lsq <= maxLen*maxLen {
		return v
	}
	return r3.Scale(maxLen/math.Sqrt(lsq), v)
}

// WithLen rescales v to exactly length l. The zero vector has no direction
// and is returned unchanged.
func WithLen(v Vec3, l float64) Vec3 {
	lsq := r3.Norm2(v)
	if lsq == 0 {
		return Zero
	}
	return r3.Scale(l/math.Sqrt(lsq), v)
}
