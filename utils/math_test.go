package utils

import (
	"math"
	"testing"
)

var smallestThreeTests = []struct {
	in_x, in_y, in_z float32
	out_w            float32
}{
	{0, 0, 0, 1},
	{1, 0, 0, 0},
	{0.5, 0.5, 0.5, 0.5},
	{0.7071068, 0, 0.7071068, 0},
	// stored components slightly above unit length must not produce NaN
	{0.8, 0.8, 0.8, 0},
}

func TestQuatFromSmallestThree(t *testing.T) {
	for _, test := range smallestThreeTests {
		q := QuatFromSmallestThree(test.in_x, test.in_y, test.in_z)

		length := q.Len()
		if length < 0.999 || length > 1.001 {
			t.Errorf("QuatFromSmallestThree(%v,%v,%v) norm=%v; expected 1",
				test.in_x, test.in_y, test.in_z, length)
		}
		if math.IsNaN(float64(q.W)) {
			t.Errorf("QuatFromSmallestThree(%v,%v,%v) produced NaN w",
				test.in_x, test.in_y, test.in_z)
		}
		if math.Abs(float64(q.W-test.out_w)) > 1e-3 {
			t.Errorf("QuatFromSmallestThree(%v,%v,%v) w=%v; expected %v",
				test.in_x, test.in_y, test.in_z, q.W, test.out_w)
		}
	}
}

func TestQuatFromSmallestThreeDegenerate(t *testing.T) {
	q := QuatFromSmallestThree(0, 0, 0)
	if q.W != 1 || q.V[0] != 0 || q.V[1] != 0 || q.V[2] != 0 {
		t.Errorf("zero vector: got %+v; expected identity", q)
	}
}
