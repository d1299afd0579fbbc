package direction

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ddfmm-go/ddfmm/geom"
)

func randomUnit(r *rand.Rand) geom.Vec {
	for {
		v := geom.Vec{2*r.Float64() - 1, 2*r.Float64() - 1, 2*r.Float64() - 1}
		if n := v.Norm(); n > 1e-6 && n <= 1 {
			return v.Scale(1 / n)
		}
	}
}

func TestCenterLiesInOwnWedge(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, w := range []float64{1, 2, 4, 8, 16} {
		for i := 0; i < 200; i++ {
			d := randomUnit(r)
			dir := Direction(d, w)
			c := Center(dir, w)
			if got := Direction(c, w); got != dir {
				t.Fatalf("w=%v: Direction(Center(dir)) = %v, want %v", w, got, dir)
			}
		}
	}
}

func TestParentContainsChild(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for _, w := range []float64{1, 2, 4, 8} {
		for i := 0; i < 200; i++ {
			d := randomUnit(r)
			childDir := Direction(d, w)
			parentDir := Parent(childDir, w)

			// d_c ∈ parent_direction(d_c) geometrically: the child's
			// representative vector must land in the parent wedge.
			childCenter := Center(childDir, w)
			if got := Direction(childCenter, 2*w); got != parentDir {
				t.Fatalf("w=%v: child center does not land in its own parent wedge", w)
			}
		}
	}
}

func TestNumBinsGrowsWithWidth(t *testing.T) {
	if numBins(1) > numBins(8) {
		t.Fatal("expected more bins at larger width")
	}
	if math.Abs(float64(numBins(8))-8) > 1 {
		t.Fatalf("numBins(8) = %d, want close to 8", numBins(8))
	}
}
