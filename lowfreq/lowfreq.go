// Package lowfreq implements the low-frequency translation pass
// spec.md §4.5 describes — L-M2M, L-M2L (via the U/V/W/X near- and
// far-field lists, with an FFT-accelerated V-list), and L-L2L — for
// every occupied box at level >= the unit level. It is built entirely
// on the mlib.Provider / kernel.Kernel contracts plus linalg and
// fft3, never on a concrete translation-matrix or kernel
// implementation, per spec.md §6's "external collaborator" framing.
package lowfreq

import (
	"gonum.org/v1/gonum/cmplxs"

	"github.com/ddfmm-go/ddfmm/fft3"
	"github.com/ddfmm-go/ddfmm/geom"
	"github.com/ddfmm-go/ddfmm/hierarchy"
	"github.com/ddfmm-go/ddfmm/kernel"
	"github.com/ddfmm-go/ddfmm/linalg"
	"github.com/ddfmm-go/ddfmm/mlib"
)

// Pass holds everything the low-frequency translations need: the
// octree, the translation and kernel providers, and the per-point
// source densities / target accumulators. Per-box upward-equivalent
// and downward-check vectors live in Equiv/Check, keyed by BoxKey.
// The engine package keeps these maps on every rank and exchanges only
// the unit-level entries of Check through a dav.DAV, merging the
// result back into Check.
type Pass struct {
	Tree     *hierarchy.Tree
	Provider mlib.Provider
	Kernel   kernel.Kernel

	SourceDensity []complex128 // parallel to Tree.Sources
	TargetValue   []complex128 // parallel to Tree.Targets, accumulated in place

	Equiv map[geom.BoxKey][]complex128 // upward equivalent density
	Check map[geom.BoxKey][]complex128 // downward check value
}

// NewPass allocates a Pass over tree with zeroed target values.
func NewPass(tree *hierarchy.Tree, provider mlib.Provider, k kernel.Kernel, density []complex128) *Pass {
	return &Pass{
		Tree:          tree,
		Provider:      provider,
		Kernel:        k,
		SourceDensity: density,
		TargetValue:   make([]complex128, len(tree.Targets)),
		Equiv:         make(map[geom.BoxKey][]complex128),
		Check:         make(map[geom.BoxKey][]complex128),
	}
}

func (p *Pass) boxesAtLevel(level int) []*hierarchy.Box {
	var out []*hierarchy.Box
	for key, b := range p.Tree.Boxes {
		if key.Level == level {
			out = append(out, b)
		}
	}
	return out
}

func (p *Pass) box(key geom.BoxKey) *hierarchy.Box { return p.Tree.Boxes[key] }

func translated(pts []geom.Vec, center geom.Vec) []geom.Vec {
	out := make([]geom.Vec, len(pts))
	for i, v := range pts {
		out[i] = v.Add(center)
	}
	return out
}

func dims(m interface{ Dims() (int, int) }) (int, int) { return m.Dims() }

// M2M computes the upward equivalent density of every occupied box at
// level by applying the kernel from its attached sources (terminal
// boxes) or accumulating its occupied children's equivalent densities
// through ue2uc (internal boxes), per spec.md §4.5 "L-M2M".
func (p *Pass) M2M(level int) {
	uc2ue := p.Provider.UC2UE(level)
	checkSurface := p.Provider.CheckSurface(level)
	checkPts := translatedTemplate(checkSurface)

	for _, b := range p.boxesAtLevel(level) {
		check := make([]complex128, len(checkSurface))

		if b.Terminal {
			sources := selectPoints(p.Tree.Sources, b.SourceIdx)
			density := selectComplex(p.SourceDensity, b.SourceIdx)
			g := kernel.EvalFlat(p.Kernel, checkPts(b.Center), sources, nil)
			m := linalg.NewDense(len(check), len(sources), g)
			linalg.Gemv(1, m, density, 0, check)
		} else {
			for _, c := range b.Children {
				if c == nil {
					continue
				}
				childEquiv, ok := p.Equiv[c.Key]
				if !ok {
					continue
				}
				op := p.Provider.UE2UC(c.Key.Level, c.Center.Sub(b.Center))
				contrib := make([]complex128, len(check))
				linalg.Gemv(1, op, childEquiv, 0, contrib)
				cmplxs.Add(check, contrib)
			}
		}

		p.Equiv[b.Key] = uc2ue.Apply(check)
	}
}

// translatedTemplate precomputes a translator from a fixed origin-
// centered surface template to any box center, avoiding reallocating
// the per-level surface on every box.
func translatedTemplate(template []geom.Vec) func(center geom.Vec) []geom.Vec {
	return func(center geom.Vec) []geom.Vec { return translated(template, center) }
}

// M2L accumulates the downward check value of every occupied box at
// level from its U/V/W/X lists, per spec.md §4.5 "L-M2L". The V-list
// is FFT-accelerated (see vListContribution); all other lists evaluate
// the kernel directly between the relevant point sets.
func (p *Pass) M2L(level int) {
	checkSurface := p.Provider.CheckSurface(level)
	equivSurface := p.Provider.EquivSurface(level)
	checkTemplate := translatedTemplate(checkSurface)
	gridN := p.Provider.GridSize(level)
	gridHalf := p.Provider.GridHalf(level)

	for _, b := range p.boxesAtLevel(level) {
		check := p.Check[b.Key]
		if check == nil {
			check = make([]complex128, len(checkTemplate(geom.Vec{})))
			p.Check[b.Key] = check
		}

		// U-list: direct source-particle to target-particle evaluation.
		if b.Terminal {
			targets := selectPoints(p.Tree.Targets, b.TargetIdx)
			for _, srcKey := range b.U {
				src := p.box(srcKey)
				if src == nil || !src.Terminal {
					continue
				}
				sources := selectPoints(p.Tree.Sources, src.SourceIdx)
				density := selectComplex(p.SourceDensity, src.SourceIdx)
				g := kernel.EvalFlat(p.Kernel, targets, sources, nil)
				m := linalg.NewDense(len(targets), len(sources), g)
				contrib := make([]complex128, len(targets))
				linalg.Gemv(1, m, density, 0, contrib)
				for i, idx := range b.TargetIdx {
					p.TargetValue[idx] += contrib[i]
				}
			}
		}

		// V-list: FFT-accelerated translation, per spec.md §4.5. Each
		// source's upward equivalent density is stamped onto a
		// box-local (2P)³ grid and forward-transformed once, reused via
		// the box's own fftcnt/fftnum cache for every target that lists
		// it (vListSourceFFT/releaseVListSourceFFT); each contribution
		// is the pointwise product of that cached transform with the
		// precomputed per-separation interaction tensor ue2dc,
		// accumulated into a working grid that is inverse-transformed
		// once after the whole V-list and sampled at the check-surface
		// positions, scaled by 1/(2P)³.
		if len(b.V) > 0 {
			sampled := p.vListContribution(level, b, gridN, gridHalf, equivSurface, checkSurface)
			if sampled != nil {
				cmplxs.Add(check, sampled)
			}
		}

		// W-list: coarser near-source, evaluated directly if the
		// source is a sparse terminal, else from its equivalent
		// surface.
		for _, srcKey := range b.W {
			src := p.box(srcKey)
			if src == nil {
				continue
			}
			if src.Terminal {
				sources := selectPoints(p.Tree.Sources, src.SourceIdx)
				density := selectComplex(p.SourceDensity, src.SourceIdx)
				g := kernel.EvalFlat(p.Kernel, checkTemplate(b.Center), sources, nil)
				m := linalg.NewDense(len(check), len(sources), g)
				contrib := make([]complex128, len(check))
				linalg.Gemv(1, m, density, 0, contrib)
				cmplxs.Add(check, contrib)
				continue
			}
			equiv, ok := p.Equiv[srcKey]
			if !ok {
				continue
			}
			srcEquiv := translated(p.Provider.EquivSurface(srcKey.Level), src.Center)
			g := kernel.EvalFlat(p.Kernel, checkTemplate(b.Center), srcEquiv, nil)
			m := linalg.NewDense(len(check), len(equiv), g)
			contrib := make([]complex128, len(check))
			linalg.Gemv(1, m, equiv, 0, contrib)
			cmplxs.Add(check, contrib)
		}

		// X-list: finer near-source, evaluated directly into target
		// particle values if the target is a sparse terminal, else
		// into the target's downward check positions.
		for _, srcKey := range b.X {
			src := p.box(srcKey)
			if src == nil || !src.Terminal {
				continue
			}
			sources := selectPoints(p.Tree.Sources, src.SourceIdx)
			density := selectComplex(p.SourceDensity, src.SourceIdx)
			if b.Terminal {
				targets := selectPoints(p.Tree.Targets, b.TargetIdx)
				g := kernel.EvalFlat(p.Kernel, targets, sources, nil)
				m := linalg.NewDense(len(targets), len(sources), g)
				contrib := make([]complex128, len(targets))
				linalg.Gemv(1, m, density, 0, contrib)
				for i, idx := range b.TargetIdx {
					p.TargetValue[idx] += contrib[i]
				}
				continue
			}
			g := kernel.EvalFlat(p.Kernel, checkTemplate(b.Center), sources, nil)
			m := linalg.NewDense(len(check), len(sources), g)
			contrib := make([]complex128, len(check))
			linalg.Gemv(1, m, density, 0, contrib)
			cmplxs.Add(check, contrib)
		}
	}
}

// vListContribution computes b's V-list FFT contribution at level: the
// working grid accumulates, for every V-list source, the pointwise
// product of that source's cached density transform with the
// per-separation interaction tensor; after the whole V-list it is
// inverse-transformed once and sampled at the check surface, per
// spec.md §4.5. It returns nil if no V-list neighbor currently has an
// upward equivalent density (e.g. not yet produced by this level's
// M2M), leaving check untouched.
func (p *Pass) vListContribution(level int, b *hierarchy.Box, n int, half float64, equivSurface, checkSurface []geom.Vec) []complex128 {
	working := fft3.NewGrid(n)
	any := false
	for _, srcKey := range b.V {
		if _, ok := p.Equiv[srcKey]; !ok {
			continue
		}
		den := p.vListSourceFFT(srcKey, equivSurface, n, half)
		sep := geom.Index3{
			srcKey.Index[0] - b.Key.Index[0],
			srcKey.Index[1] - b.Key.Index[1],
			srcKey.Index[2] - b.Key.Index[2],
		}
		op := p.Provider.UE2DC(level, sep)
		for i := range working.Data {
			working.Data[i] += den.Data[i] * op.Data[i]
		}
		p.releaseVListSourceFFT(srcKey)
		any = true
	}
	if !any {
		return nil
	}
	working.Backward()
	working.ScaleInv()
	return working.Sample(checkSurface, half)
}

// vListSourceFFT returns the forward-transformed grid of src's upward
// equivalent density, stamping and transforming it on first use and
// caching the result on the box itself (spec.md §3 "the FFT of the
// upward equivalent density ... materialized lazily when the first
// V-list neighbor references it").
func (p *Pass) vListSourceFFT(key geom.BoxKey, equivSurface []geom.Vec, n int, half float64) *fft3.Grid {
	src := p.box(key)
	if src.FFTDen == nil {
		g := fft3.NewGrid(n)
		g.Stamp(equivSurface, p.Equiv[key], half)
		g.Forward()
		src.FFTDen = g
	}
	return src.FFTDen
}

// releaseVListSourceFFT records one more V-list consumer of src's
// cached transform, freeing it once every expected consumer (fftnum)
// has used it, per spec.md §3/§5 ("this bounds peak memory").
func (p *Pass) releaseVListSourceFFT(key geom.BoxKey) {
	src := p.box(key)
	src.FFTCount++
	if src.FFTCount >= src.FFTNum {
		src.FFTDen = nil
		src.FFTCount = 0
	}
}

// L2L distributes the downward equivalent density of every occupied
// box at level into its targets (terminal boxes) or its occupied
// children's downward check values (internal boxes), per spec.md
// §4.5 "L-L2L".
func (p *Pass) L2L(level int) {
	dc2de := p.Provider.DC2DE(level)
	equivTemplate := translatedTemplate(p.Provider.EquivSurface(level))

	for _, b := range p.boxesAtLevel(level) {
		check, ok := p.Check[b.Key]
		if !ok {
			continue
		}
		equiv := dc2de.Apply(check)

		if b.Terminal {
			targets := selectPoints(p.Tree.Targets, b.TargetIdx)
			g := kernel.EvalFlat(p.Kernel, targets, equivTemplate(b.Center), nil)
			m := linalg.NewDense(len(targets), len(equiv), g)
			contrib := make([]complex128, len(targets))
			linalg.Gemv(1, m, equiv, 0, contrib)
			for i, idx := range b.TargetIdx {
				p.TargetValue[idx] += contrib[i]
			}
			continue
		}
		for _, c := range b.Children {
			if c == nil {
				continue
			}
			op := p.Provider.DE2DC(c.Key.Level, c.Center.Sub(b.Center))
			r, _ := dims(op)
			contrib := make([]complex128, r)
			linalg.Gemv(1, op, equiv, 0, contrib)
			existing := p.Check[c.Key]
			if existing == nil {
				existing = make([]complex128, len(contrib))
			}
			cmplxs.Add(existing, contrib)
			p.Check[c.Key] = existing
		}
	}
}

// selectPoints gathers pts[idx] for idx in indices.
func selectPoints(pts []geom.Vec, indices []int) []geom.Vec {
	out := make([]geom.Vec, len(indices))
	for i, idx := range indices {
		out[i] = pts[idx]
	}
	return out
}

func selectComplex(vals []complex128, indices []int) []complex128 {
	out := make([]complex128, len(indices))
	for i, idx := range indices {
		out[i] = vals[idx]
	}
	return out
}
