package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// QuatFromSmallestThree rebuilds w from the unit-norm constraint and
// normalizes the result. Degenerate input collapses to identity.
func QuatFromSmallestThree(x, y, z float32) mgl32.Quat {
	w2 := 1 - float64(x)*float64(x) - float64(y)*float64(y) - float64(z)*float64(z)
	if w2 < 0 {
		w2 = 0
	}
	q := mgl32.Quat{W: float32(math.Sqrt(w2)), V: mgl32.Vec3{x, y, z}}

	length := q.Len()
	if length < 1e-6 {
		return mgl32.QuatIdent()
	}
	return q.Scale(1 / length)
}
