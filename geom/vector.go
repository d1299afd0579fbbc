// Package geom provides the 3-vector, box-key and directional-key
// primitives shared by the rest of the engine.
package geom

import "math"

// Vec is a 3D vector.
type Vec [3]float64

func (p Vec) X() float64 { return p[0] }
func (p Vec) Y() float64 { return p[1] }
func (p Vec) Z() float64 { return p[2] }

// Add returns the vector sum of p and q.
func (p Vec) Add(q Vec) Vec {
	p[0] += q[0]
	p[1] += q[1]
	p[2] += q[2]
	return p
}

// Sub returns the vector sum of p and -q.
func (p Vec) Sub(q Vec) Vec {
	p[0] -= q[0]
	p[1] -= q[1]
	p[2] -= q[2]
	return p
}

// Scale returns the vector p scaled by f.
func (p Vec) Scale(f float64) Vec {
	p[0] *= f
	p[1] *= f
	p[2] *= f
	return p
}

// Dot returns the dot product of p and q.
func (p Vec) Dot(q Vec) float64 {
	return p[0]*q[0] + p[1]*q[1] + p[2]*q[2]
}

// Norm returns the Euclidean length of p.
func (p Vec) Norm() float64 {
	return math.Sqrt(p.Dot(p))
}

// Unit returns p scaled to unit length. Unit panics if p is the zero
// vector; callers must not invoke direction() on coincident centers.
func (p Vec) Unit() Vec {
	n := p.Norm()
	if n == 0 {
		panic("geom: unit of zero vector")
	}
	return p.Scale(1 / n)
}

// Box is an axis-aligned 3D bounding box.
type Box struct {
	Min, Max Vec
}

// Center returns the center of the Box.
func (b Box) Center() Vec {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the per-axis extent of the Box.
func (b Box) Size() Vec {
	return b.Max.Sub(b.Min)
}
