// Package mlib is the translation matrix library contract spec.md §6
// names as an external collaborator and §4.5/§4.6 consume: given a
// level (or a level and a translation direction), it hands back the
// four conversions every M2M/M2L/L2L step is built from — check-to-
// equivalent and equivalent-to-check operators on both the upward and
// downward sides. The core (hierarchy, lowfreq, highfreq) only ever
// calls through the Provider interface; SurfaceProvider is one
// concrete reference built on kernel and linalg.
package mlib

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ddfmm-go/ddfmm/fft3"
	"github.com/ddfmm-go/ddfmm/geom"
	"github.com/ddfmm-go/ddfmm/kernel"
	"github.com/ddfmm-go/ddfmm/linalg"
)

// Provider hands back the translation operators a level needs.
// UC2UE and DC2DE convert a check potential into the equivalent
// density that reproduces it outside the check surface; UE2UC and
// DE2DC are the dense point-to-point maps (M2M / L2L) between a
// child's equivalent surface and a parent's check surface, or vice
// versa, for the given lattice shift.
type Provider interface {
	UC2UE(level int) linalg.ThreeFactor
	DC2DE(level int) linalg.ThreeFactor
	UE2UC(level int, shift geom.Vec) *mat.CDense
	DE2DC(level int, shift geom.Vec) *mat.CDense

	// CheckSurface and EquivSurface expose the level's quadrature
	// points directly (centered at the origin; callers translate to a
	// box's actual center), for the terminal-box kernel evaluations
	// lowfreq/highfreq need alongside the dense translation operators.
	CheckSurface(level int) []geom.Vec
	EquivSurface(level int) []geom.Vec

	// GridSize and GridHalf fix the resolution and world-space extent
	// of the V-list FFT grid at level (spec.md §4.5 "a global FFT
	// grid of size (2P)³"); GridSize returns 2P.
	GridSize(level int) int
	GridHalf(level int) float64

	// UE2DC returns the precomputed frequency-domain interaction
	// tensor for a V-list translation at level between two boxes
	// whose lattice indices differ by sep (source minus target),
	// spec.md §4.5 "a precomputed interaction tensor ue2dc(i,j,k)
	// indexed by the integer center-separation".
	UE2DC(level int, sep geom.Index3) *fft3.Grid
}

// SurfaceProvider is a reference Provider built from equivalent/check
// point surfaces (scaled cubes, one per octree level) and a Kernel.
// It is the Provider cmd/ddfmm-solve and the package tests pass to the
// lowfreq/highfreq passes and the engine.
type SurfaceProvider struct {
	Kernel   kernel.Kernel
	NPQ      int     // quadrature points per surface edge
	C0       geom.Vec
	K        float64 // root box width, matches geom.Width's k
	EquivRatio float64 // equivalent surface radius, as a fraction of half box width
	CheckRatio float64 // check surface radius, as a fraction of half box width

	cache      map[int]cachedLevel
	ue2dcCache map[ue2dcKey]*fft3.Grid
}

// ue2dcKey identifies one precomputed V-list interaction tensor: a
// level and the integer lattice separation (source minus target) it
// was built for.
type ue2dcKey struct {
	level int
	sep   geom.Index3
}

type cachedLevel struct {
	equiv, check []geom.Vec
	uc2ue, dc2de linalg.ThreeFactor
}

// NewSurfaceProvider constructs a SurfaceProvider with the equivalent
// surface at 1.5 and the check surface at 2.9 times the box half-width:
// both lie outside the box, the equivalent surface inside the check
// surface.
func NewSurfaceProvider(k kernel.Kernel, npq int, c0 geom.Vec, boxK float64) *SurfaceProvider {
	return &SurfaceProvider{
		Kernel:     k,
		NPQ:        npq,
		C0:         c0,
		K:          boxK,
		EquivRatio: 1.5,
		CheckRatio: 2.9,
		cache:      make(map[int]cachedLevel),
	}
}

func (p *SurfaceProvider) levelWidth(level int) float64 { return geom.Width(p.K, level) }

// CheckSurface returns level's check-surface points, centered at the
// origin.
func (p *SurfaceProvider) CheckSurface(level int) []geom.Vec { return p.level(level).check }

// EquivSurface returns level's equivalent-surface points, centered at
// the origin.
func (p *SurfaceProvider) EquivSurface(level int) []geom.Vec { return p.level(level).equiv }

// cubeSurface returns NPQ^2*6 points tiling the surface of a cube of
// the given half-width centered at the origin, one quadrature node
// per face cell — a coarse but serviceable equivalent/check surface.
func cubeSurface(halfWidth float64, npq int) []geom.Vec {
	if npq < 1 {
		npq = 1
	}
	pts := make([]geom.Vec, 0, 6*npq*npq)
	step := 2 * halfWidth / float64(npq)
	faceAxis := func(u, v float64, face int) geom.Vec {
		switch face {
		case 0:
			return geom.Vec{halfWidth, u, v}
		case 1:
			return geom.Vec{-halfWidth, u, v}
		case 2:
			return geom.Vec{u, halfWidth, v}
		case 3:
			return geom.Vec{u, -halfWidth, v}
		case 4:
			return geom.Vec{u, v, halfWidth}
		default:
			return geom.Vec{u, v, -halfWidth}
		}
	}
	for face := 0; face < 6; face++ {
		for i := 0; i < npq; i++ {
			u := -halfWidth + (float64(i)+0.5)*step
			for j := 0; j < npq; j++ {
				v := -halfWidth + (float64(j)+0.5)*step
				pts = append(pts, faceAxis(u, v, face))
			}
		}
	}
	return pts
}

func translate(pts []geom.Vec, c geom.Vec) []geom.Vec {
	out := make([]geom.Vec, len(pts))
	for i, p := range pts {
		out[i] = p.Add(c)
	}
	return out
}

func (p *SurfaceProvider) level(level int) cachedLevel {
	if c, ok := p.cache[level]; ok {
		return c
	}
	half := p.levelWidth(level) / 2
	equiv := cubeSurface(half*p.EquivRatio, p.NPQ)
	check := cubeSurface(half*p.CheckRatio, p.NPQ)
	c := cachedLevel{
		equiv: equiv,
		check: check,
		uc2ue: pseudoInverseFactor(p.Kernel, check, equiv),
		dc2de: pseudoInverseFactor(p.Kernel, check, equiv),
	}
	p.cache[level] = c
	return c
}

// UC2UE returns the check-to-equivalent conversion for a level's
// upward pass.
func (p *SurfaceProvider) UC2UE(level int) linalg.ThreeFactor { return p.level(level).uc2ue }

// DC2DE returns the check-to-equivalent conversion for a level's
// downward pass. The reference implementation shares geometry between
// the upward and downward surfaces; a problem with distinct upward and
// downward check radii would override DC2DE independently.
func (p *SurfaceProvider) DC2DE(level int) linalg.ThreeFactor { return p.level(level).dc2de }

// UE2UC returns the dense child-equivalent-to-parent-check map for an
// M2M step, where shift is the vector from the parent box center to
// the child box center.
func (p *SurfaceProvider) UE2UC(level int, shift geom.Vec) *mat.CDense {
	child := p.level(level)
	parent := p.level(level - 1)
	sources := translate(child.equiv, shift)
	return linalg.NewDense(len(parent.check), len(sources), kernel.EvalFlat(p.Kernel, parent.check, sources, nil))
}

// DE2DC returns the dense parent-equivalent-to-child-check map for an
// L2L step, where shift is the vector from the parent box center to
// the child box center.
func (p *SurfaceProvider) DE2DC(level int, shift geom.Vec) *mat.CDense {
	child := p.level(level)
	parent := p.level(level - 1)
	sources := translate(parent.equiv, negate(shift))
	return linalg.NewDense(len(child.check), len(sources), kernel.EvalFlat(p.Kernel, child.check, sources, nil))
}

func negate(v geom.Vec) geom.Vec { return geom.Vec{-v[0], -v[1], -v[2]} }

// GridSize returns the V-list FFT grid resolution 2P for level, P
// being the provider's quadrature order NPQ.
func (p *SurfaceProvider) GridSize(level int) int { return 2 * p.NPQ }

// GridHalf returns the half-extent, in world units, the V-list FFT
// grid spans at level: the check-surface radius, wide enough to hold
// both a box's stamped equivalent density (EquivRatio < CheckRatio)
// and its sampled check positions within the same local frame.
func (p *SurfaceProvider) GridHalf(level int) float64 {
	return p.CheckRatio * p.levelWidth(level) / 2
}

// UE2DC builds (and caches) the frequency-domain interaction tensor
// for the V-list translation at level between a source box and a
// target box whose lattice indices differ by sep = source - target,
// per spec.md §4.5. Each grid cell (i,j,k) holds the free-space kernel
// value G(x - shift) at the grid's local coordinate x, where shift is
// the world-space vector from target center to source center implied
// by sep; forward-transforming this stencil once makes the V-list
// translation for every source at this separation a single pointwise
// multiply against that source's own cached density transform
// (convolution theorem), instead of a dense Gemv per pair.
func (p *SurfaceProvider) UE2DC(level int, sep geom.Index3) *fft3.Grid {
	if p.ue2dcCache == nil {
		p.ue2dcCache = make(map[ue2dcKey]*fft3.Grid)
	}
	key := ue2dcKey{level: level, sep: sep}
	if g, ok := p.ue2dcCache[key]; ok {
		return g
	}

	n := p.GridSize(level)
	half := p.GridHalf(level)
	w := p.levelWidth(level)
	shift := geom.Vec{float64(sep[0]) * w, float64(sep[1]) * w, float64(sep[2]) * w}
	step := 2 * half / float64(n)
	zero := geom.Vec{}

	grid := fft3.NewGrid(n)
	for i := 0; i < n; i++ {
		x := -half + (float64(i)+0.5)*step
		for j := 0; j < n; j++ {
			y := -half + (float64(j)+0.5)*step
			for k := 0; k < n; k++ {
				z := -half + (float64(k)+0.5)*step
				u := geom.Vec{x, y, z}.Sub(shift)
				grid.Set(i, j, k, kernel.EvalFlat(p.Kernel, []geom.Vec{u}, []geom.Vec{zero}, nil)[0])
			}
		}
	}
	grid.Forward()
	p.ue2dcCache[key] = grid
	return grid
}

// pseudoInverseFactor builds the V*diag(S)*U decomposition spec.md
// §4.5 uses to turn a check potential into the equivalent density
// that reproduces it, as a Tikhonov-regularized conjugate-transpose
// inverse of the check/equivalent kernel matrix: with G the check-by-
// equivalent kernel matrix, U = G^H, S = 1/(diag(G^H G) + eps), V =
// identity. gonum's complex dense type (mat.CDense) exposes
// arithmetic and the conjugate transpose (H) but no complex SVD or
// linear solve, so the regularized normal-equations approximation
// below is what the reference provider uses instead of a literal SVD.
func pseudoInverseFactor(k kernel.Kernel, check, equiv []geom.Vec) linalg.ThreeFactor {
	g := linalg.NewDense(len(check), len(equiv), kernel.EvalFlat(k, check, equiv, nil))
	gh := cdenseH(g)
	gram := make([]complex128, len(equiv))
	for i := 0; i < len(equiv); i++ {
		var acc complex128
		for j := 0; j < len(check); j++ {
			v := g.At(j, i)
			acc += v * cmplxConj(v)
		}
		gram[i] = acc
	}
	const eps = 1e-6
	s := make([]complex128, len(equiv))
	for i := range s {
		denom := real(gram[i]) + eps
		s[i] = complex(1/denom, 0)
	}
	identity := identityDense(len(equiv))
	return linalg.ThreeFactor{V: identity, U: gh, S: s}
}

func identityDense(n int) *mat.CDense {
	data := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return linalg.NewDense(n, n, data)
}

func cdenseH(m *mat.CDense) *mat.CDense {
	r, c := m.Dims()
	data := make([]complex128, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[j*r+i] = cmplxConj(m.At(i, j))
		}
	}
	return linalg.NewDense(c, r, data)
}

func cmplxConj(c complex128) complex128 { return complex(real(c), -imag(c)) }
