// Package kernel defines the oscillatory kernel contract spec.md §6
// names as an external collaborator, plus a reference free-space
// Helmholtz single-layer implementation used by the package tests and
// cmd/ddfmm-solve. A real acoustic front-end would supply its own
// Kernel (single-layer, double-layer, or mixed) built from its own
// quadrature-corrected Green's function; the core only depends on the
// interface.
package kernel

import (
	"math/cmplx"

	"github.com/ddfmm-go/ddfmm/geom"
)

// Kernel fills a dense m×n interaction matrix between m targets and n
// sources, optionally using source normals for a double-layer or mixed
// potential. Kernel must be deterministic for a fixed configuration.
type Kernel interface {
	Eval(targets, sources, normals []geom.Vec) [][]complex128
}

// Helmholtz is a reference free-space single-layer Helmholtz kernel,
// G(x,y) = exp(i*Wavenumber*|x-y|) / (4*pi*|x-y|). Normals are
// accepted to satisfy the Kernel interface and ignored (single-layer).
type Helmholtz struct {
	Wavenumber float64
}

func (h Helmholtz) Eval(targets, sources, _ []geom.Vec) [][]complex128 {
	m := make([][]complex128, len(targets))
	for i, t := range targets {
		row := make([]complex128, len(sources))
		for j, s := range sources {
			d := t.Sub(s).Norm()
			if d == 0 {
				row[j] = 0
				continue
			}
			row[j] = cmplx.Exp(complex(0, h.Wavenumber*d)) / complex(4*3.141592653589793*d, 0)
		}
		m[i] = row
	}
	return m
}

// EvalFlat evaluates the kernel and flattens the result row-major,
// matching the layout gemv/linalg.NewDense expects.
func EvalFlat(k Kernel, targets, sources, normals []geom.Vec) []complex128 {
	rows := k.Eval(targets, sources, normals)
	out := make([]complex128, 0, len(targets)*len(sources))
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}
