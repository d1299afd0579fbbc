package kernel

import (
	"math"
	"testing"

	"github.com/ddfmm-go/ddfmm/geom"
)

func TestHelmholtzSymmetric(t *testing.T) {
	h := Helmholtz{Wavenumber: 4.0}
	pts := []geom.Vec{{0, 0, 0}, {1, 0, 0}, {0, 2, 0}}
	m := h.Eval(pts, pts, nil)
	for i := range pts {
		for j := range pts {
			d := m[i][j] - m[j][i]
			if math.Hypot(real(d), imag(d)) > 1e-12 {
				t.Fatalf("kernel not symmetric at (%d,%d): %v vs %v", i, j, m[i][j], m[j][i])
			}
		}
	}
}

func TestHelmholtzDiagonalZero(t *testing.T) {
	h := Helmholtz{Wavenumber: 1.5}
	pts := []geom.Vec{{1, 1, 1}}
	m := h.Eval(pts, pts, nil)
	if m[0][0] != 0 {
		t.Fatalf("self-interaction should be 0, got %v", m[0][0])
	}
}

func TestHelmholtzMagnitudeDecaysWithDistance(t *testing.T) {
	h := Helmholtz{Wavenumber: 2.0}
	targets := []geom.Vec{{0, 0, 0}}
	sources := []geom.Vec{{1, 0, 0}, {10, 0, 0}}
	m := h.Eval(targets, sources, nil)
	near, far := m[0][0], m[0][1]
	if mag := abs(near); mag <= abs(far) {
		t.Fatalf("expected near field %v to exceed far field %v", near, far)
	}
}

func abs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }

func TestEvalFlatRowMajor(t *testing.T) {
	h := Helmholtz{Wavenumber: 1.0}
	targets := []geom.Vec{{0, 0, 0}, {1, 1, 1}}
	sources := []geom.Vec{{2, 0, 0}}
	flat := EvalFlat(h, targets, sources, nil)
	if len(flat) != len(targets)*len(sources) {
		t.Fatalf("flat length = %d, want %d", len(flat), len(targets)*len(sources))
	}
	rows := h.Eval(targets, sources, nil)
	k := 0
	for i := range rows {
		for j := range rows[i] {
			if flat[k] != rows[i][j] {
				t.Fatalf("flat[%d] = %v, want %v", k, flat[k], rows[i][j])
			}
			k++
		}
	}
}
