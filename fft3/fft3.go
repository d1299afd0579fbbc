// Package fft3 provides the fixed-plan forward/backward 3D complex
// transform spec.md §6 names as an external collaborator, used by the
// V-list FFT acceleration of spec.md §4.5. It composes three 1-D
// transforms — one per axis — using gonum.org/v1/gonum/fourier, the
// row-column-tube algorithm fourier.go itself documents for rfft/cfft.
package fft3

import (
	"gonum.org/v1/gonum/fourier"

	"github.com/ddfmm-go/ddfmm/geom"
)

// Grid is a cubic N×N×N complex grid, stored row-major with z fastest
// ((i*n+j)*n+k indexes element (i,j,k)).
type Grid struct {
	N    int
	Data []complex128

	fft *fourier.CmplxFFT
}

// NewGrid allocates a zeroed N×N×N grid. For the V-list (spec.md
// §4.5), N is 2*P where P is the quadrature order of the translation
// matrix library.
func NewGrid(n int) *Grid {
	return &Grid{N: n, Data: make([]complex128, n*n*n), fft: fourier.NewCmplxFFT(n)}
}

func (g *Grid) idx(i, j, k int) int { return (i*g.N+j)*g.N + k }

// At returns the value at (i,j,k).
func (g *Grid) At(i, j, k int) complex128 { return g.Data[g.idx(i, j, k)] }

// Set stores v at (i,j,k).
func (g *Grid) Set(i, j, k int, v complex128) { g.Data[g.idx(i, j, k)] = v }

// Reset zeroes the grid in place so it can be reused across V-list
// sweeps without reallocating (spec.md §5 "process-local scratch
// grids _denfft and _valfft").
func (g *Grid) Reset() {
	for i := range g.Data {
		g.Data[i] = 0
	}
}

// Forward transforms g in place along z, then y, then x.
func (g *Grid) Forward() { g.transform(g.fft.FFT) }

// Backward inverse-transforms g in place along z, then y, then x. The
// result is unnormalized, as gonum's fourier.CmplxFFT itself documents;
// callers scale by 1/N³ per spec.md §4.5.
func (g *Grid) Backward() { g.transform(g.fft.IFFT) }

func (g *Grid) transform(step func(dst, src []complex128) []complex128) {
	n := g.N
	line := make([]complex128, n)

	// axis z (contiguous, fastest-varying): transform each row in place.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			base := g.idx(i, j, 0)
			copy(line, g.Data[base:base+n])
			step(line, line)
			copy(g.Data[base:base+n], line)
		}
	}
	// axis y: gather, transform, scatter.
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			for j := 0; j < n; j++ {
				line[j] = g.At(i, j, k)
			}
			step(line, line)
			for j := 0; j < n; j++ {
				g.Set(i, j, k, line[j])
			}
		}
	}
	// axis x: gather, transform, scatter.
	for j := 0; j < n; j++ {
		for k := 0; k < n; k++ {
			for i := 0; i < n; i++ {
				line[i] = g.At(i, j, k)
			}
			step(line, line)
			for i := 0; i < n; i++ {
				g.Set(i, j, k, line[i])
			}
		}
	}
}

// ScaleInv multiplies every element by 1/N³, the normalization the
// backward transform needs (spec.md §4.5 "scaled by 1/(2P)³").
func (g *Grid) ScaleInv() {
	n3 := complex(float64(g.N*g.N*g.N), 0)
	for i := range g.Data {
		g.Data[i] /= n3
	}
}

// cell returns the grid cell nearest p, where p is a local coordinate
// within [-half, half)^3 (spec.md §4.5 "positions derived from uep
// rounded to (2P) resolution").
func (g *Grid) cell(p geom.Vec, half float64) (int, int, int) {
	step := 2 * half / float64(g.N)
	idx := func(x float64) int {
		i := int((x+half)/step + 0.5)
		if i < 0 {
			i = 0
		}
		if i >= g.N {
			i = g.N - 1
		}
		return i
	}
	return idx(p[0]), idx(p[1]), idx(p[2])
}

// Stamp adds vals[i] into the grid cell nearest pts[i], the V-list
// density-scatter step of spec.md §4.5 ("stamped onto the grid").
func (g *Grid) Stamp(pts []geom.Vec, vals []complex128, half float64) {
	for i, p := range pts {
		x, y, z := g.cell(p, half)
		g.Data[g.idx(x, y, z)] += vals[i]
	}
}

// Sample reads the grid cell nearest each of pts, the V-list
// check-value gather step of spec.md §4.5 ("sampled at dcp
// positions").
func (g *Grid) Sample(pts []geom.Vec, half float64) []complex128 {
	out := make([]complex128, len(pts))
	for i, p := range pts {
		x, y, z := g.cell(p, half)
		out[i] = g.At(x, y, z)
	}
	return out
}
