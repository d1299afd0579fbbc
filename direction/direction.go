// Package direction implements the wedge quantization used by the
// high-frequency pass: mapping a continuous center-separation unit
// vector onto a level-width-dependent tiling of the sphere, and
// computing the parent wedge of a child wedge (spec.md §4.4).
package direction

import (
	"math"

	"github.com/ddfmm-go/ddfmm/geom"
)

// cube faces, encoded as axis*2+sign (sign 0 = positive, 1 = negative).
const (
	faceXPos = 0
	faceXNeg = 1
	faceYPos = 2
	faceYNeg = 3
	faceZPos = 4
	faceZNeg = 5
)

// numBins returns the per-axis bin count for box width W, chosen so
// the total wedge count 6*n² is O(W²), the accuracy requirement of
// spec.md §4.4.
func numBins(w float64) int {
	n := int(math.Ceil(w))
	if n < 1 {
		n = 1
	}
	return n
}

// Direction projects the unit center-separation vector d onto the
// cube-face wedge grid determined by box width w and returns its
// canonical Dir label. d need not be pre-normalized.
func Direction(d geom.Vec, w float64) geom.Dir {
	d = d.Unit()
	n := numBins(w)

	ax, ay, az := math.Abs(d[0]), math.Abs(d[1]), math.Abs(d[2])
	var face int
	var u, v float64 // the two non-dominant, face-local coordinates
	switch {
	case ax >= ay && ax >= az:
		if d[0] >= 0 {
			face = faceXPos
		} else {
			face = faceXNeg
		}
		u, v = d[1]/ax, d[2]/ax
	case ay >= ax && ay >= az:
		if d[1] >= 0 {
			face = faceYPos
		} else {
			face = faceYNeg
		}
		u, v = d[0]/ay, d[2]/ay
	default:
		if d[2] >= 0 {
			face = faceZPos
		} else {
			face = faceZNeg
		}
		u, v = d[0]/az, d[1]/az
	}
	return geom.Dir{face, bin(u, n), bin(v, n)}
}

// bin quantizes x in [-1,1] into one of n equal bins, clamped.
func bin(x float64, n int) int {
	i := int(math.Floor((x + 1) / 2 * float64(n)))
	if i < 0 {
		i = 0
	}
	if i >= n {
		i = n - 1
	}
	return i
}

// Center returns a representative unit vector strictly inside wedge
// dir on the grid for width w — the geometric center of the wedge.
func Center(dir geom.Dir, w float64) geom.Vec {
	n := numBins(w)
	face, i, j := dir[0], dir[1], dir[2]
	u := (float64(i)+0.5)/float64(n)*2 - 1
	v := (float64(j)+0.5)/float64(n)*2 - 1

	var p geom.Vec
	switch face {
	case faceXPos:
		p = geom.Vec{1, u, v}
	case faceXNeg:
		p = geom.Vec{-1, u, v}
	case faceYPos:
		p = geom.Vec{u, 1, v}
	case faceYNeg:
		p = geom.Vec{u, -1, v}
	case faceZPos:
		p = geom.Vec{u, v, 1}
	case faceZNeg:
		p = geom.Vec{u, v, -1}
	default:
		panic("direction: invalid face in Dir")
	}
	return p.Unit()
}

// Parent returns the direction at width 2*childW (the next coarser
// box-tree level) that geometrically contains the child direction d,
// i.e. it re-quantizes d's representative vector against the wider
// level's grid. This is always single-valued regardless of whether
// the wider grid has more or fewer total wedges than the child's.
func Parent(d geom.Dir, childW float64) geom.Dir {
	return Direction(Center(d, childW), 2*childW)
}
