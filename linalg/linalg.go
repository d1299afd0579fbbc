// Package linalg wraps the dense complex linear algebra spec.md §6
// names as an external collaborator ("gemv"). Matrices are the
// teacher's own gonum.org/v1/gonum/mat complex dense type; Gemv itself
// is a direct loop over the matrix's At method, not a BLAS call.
package linalg

import "gonum.org/v1/gonum/mat"

// Gemv computes y := alpha*A*x + beta*y in place, the §6 gemv contract
// used throughout M2M/M2L/L2L and near-field list evaluation.
func Gemv(alpha complex128, a mat.CMatrix, x []complex128, beta complex128, y []complex128) {
	r, c := a.Dims()
	if len(x) != c {
		panic("linalg: gemv: x length mismatch")
	}
	if len(y) != r {
		panic("linalg: gemv: y length mismatch")
	}
	for i := 0; i < r; i++ {
		var acc complex128
		for j := 0; j < c; j++ {
			acc += a.At(i, j) * x[j]
		}
		y[i] = alpha*acc + beta*y[i]
	}
}

// ThreeFactor holds the V*diag(S)*U decomposition spec.md §4.5 uses to
// convert check values to equivalent densities (uc2ue / dc2de):
// equiv = V * diag(S) * (U * check).
type ThreeFactor struct {
	V, U *mat.CDense
	S    []complex128
}

// Apply computes equiv = V * diag(S) * U * check, the conversion M2M
// applies to its accumulated check value (uc2ue) and L2L applies to
// the check value M2L accumulated (dc2de).
func (f ThreeFactor) Apply(check []complex128) []complex128 {
	ur, uc := f.U.Dims()
	if uc != len(check) {
		panic("linalg: ThreeFactor: check length mismatch")
	}
	if ur != len(f.S) {
		panic("linalg: ThreeFactor: singular value count mismatch")
	}
	tmp := make([]complex128, ur)
	Gemv(1, f.U, check, 0, tmp)
	for i := range tmp {
		tmp[i] *= f.S[i]
	}
	vr, _ := f.V.Dims()
	out := make([]complex128, vr)
	Gemv(1, f.V, tmp, 0, out)
	return out
}

// NewDense constructs a row-major complex dense matrix, a thin alias
// kept so callers building reference matrices (mlib, tests) need only
// import linalg, not mat directly.
func NewDense(r, c int, data []complex128) *mat.CDense {
	return mat.NewCDense(r, c, data)
}
