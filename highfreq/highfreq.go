// Package highfreq implements the high-frequency directional
// translation pass spec.md §4.6 describes — HF-M2M, HF-M2L, HF-L2L —
// operating on (box, direction) keys for every occupied box at level
// below the unit level. Its M2M/M2L/L2L shape mirrors
// lowfreq.Pass directly (the same Provider/Kernel/linalg contracts,
// the same boxesAtLevel/box helpers), generalized from plain BoxKey
// data to geom.BoxDirKey data and the directional E-list in place of
// U/V/W/X.
package highfreq

import (
	"fmt"

	"gonum.org/v1/gonum/cmplxs"

	"github.com/ddfmm-go/ddfmm/direction"
	"github.com/ddfmm-go/ddfmm/geom"
	"github.com/ddfmm-go/ddfmm/hierarchy"
	"github.com/ddfmm-go/ddfmm/kernel"
	"github.com/ddfmm-go/ddfmm/linalg"
	"github.com/ddfmm-go/ddfmm/mlib"
)

// Pass holds everything the high-frequency translations need. Equiv
// and Check are keyed by (box, direction), per spec.md §3; LFEquiv and
// LFCheck are the unit-level, non-directional maps the low-frequency
// pass owns — HF-M2M reads the former at its finest step (level U-1,
// whose children are unit-level boxes with no direction of their own)
// and HF-L2L writes
// the latter at its finest step, the cross-level handoff spec.md §2
// describes.
type Pass struct {
	Tree     *hierarchy.Tree
	Provider mlib.Provider
	Kernel   kernel.Kernel

	Equiv map[geom.BoxDirKey][]complex128 // outgoing directional upward equivalent density
	Check map[geom.BoxDirKey][]complex128 // incoming directional downward check value

	LFEquiv map[geom.BoxKey][]complex128 // unit-level upward equivalent density (read by M2M)
	LFCheck map[geom.BoxKey][]complex128 // unit-level downward check value (written by L2L)

	// childDirs holds, for each occupied box at the level most recently
	// processed by M2M, the set of directions an equivalent density was
	// just produced for — the reverse lookup M2M's next (coarser) call
	// needs to find which child directions map onto a given parent
	// direction, since geom.Dir carries no back-pointer to its parent
	// (spec.md §9 "Cyclic references").
	childDirs map[geom.BoxKey][]geom.Dir
}

// NewPass allocates a Pass over tree, sharing the low-frequency pass's
// unit-level equivalent/check maps for the cross-level handoff.
func NewPass(tree *hierarchy.Tree, provider mlib.Provider, k kernel.Kernel, lfEquiv, lfCheck map[geom.BoxKey][]complex128) *Pass {
	return &Pass{
		Tree:      tree,
		Provider:  provider,
		Kernel:    k,
		Equiv:     make(map[geom.BoxDirKey][]complex128),
		Check:     make(map[geom.BoxDirKey][]complex128),
		LFEquiv:   lfEquiv,
		LFCheck:   lfCheck,
		childDirs: make(map[geom.BoxKey][]geom.Dir),
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

// levelDirs is the per-level direction bookkeeping spec.md §3's
// (box,direction) existence invariant describes directly: a box has an
// outgoing entry for direction d iff some other box's E-list at this
// level names it under d, and an incoming entry for d iff its own
// E-list has a nonempty bucket under d.
type levelDirs struct {
	outgoing map[geom.BoxKey]map[geom.Dir]bool
	incoming map[geom.BoxKey]map[geom.Dir]bool
}

func (p *Pass) directionsAtLevel(level int) levelDirs {
	ld := levelDirs{outgoing: make(map[geom.BoxKey]map[geom.Dir]bool), incoming: make(map[geom.BoxKey]map[geom.Dir]bool)}
	for _, b := range p.boxesAtLevel(level) {
		if len(b.E) == 0 {
			continue
		}
		for dir, srcs := range b.E {
			if len(srcs) == 0 {
				continue
			}
			if ld.incoming[b.Key] == nil {
				ld.incoming[b.Key] = make(map[geom.Dir]bool)
			}
			ld.incoming[b.Key][dir] = true
			for _, srcKey := range srcs {
				if ld.outgoing[srcKey] == nil {
					ld.outgoing[srcKey] = make(map[geom.Dir]bool)
				}
				ld.outgoing[srcKey][dir] = true
			}
		}
	}
	return ld
}

// M2M computes the outgoing directional upward equivalent density of
// every occupied box at level that some target box's E-list requires,
// per spec.md §4.6 "HF-M2M". At the first high-frequency level (the
// unit level's parent, W=1 seen from above) children contribute their
// plain, non-directional upward equivalent density; at every coarser
// level each occupied child contributes through its own (child, pdir)
// density, where pdir = parent_direction(childDir).
func (p *Pass) M2M(level int) {
	u := p.Tree.UnitLevel
	ld := p.directionsAtLevel(level)
	checkLen := len(p.Provider.CheckSurface(level))
	childW := geom.Width(p.Tree.K, level+1)

	produced := make(map[geom.BoxKey][]geom.Dir)
	for _, b := range p.boxesAtLevel(level) {
		dirs := ld.outgoing[b.Key]
		if len(dirs) == 0 {
			continue
		}
		for dir := range dirs {
			check := make([]complex128, checkLen)

			for _, c := range b.Children {
				if c == nil {
					continue
				}
				op := p.Provider.UE2UC(c.Key.Level, c.Center.Sub(b.Center))

				if level == u-1 {
					childEquiv, ok := p.LFEquiv[c.Key]
					if !ok {
						continue
					}
					contrib := make([]complex128, checkLen)
					linalg.Gemv(1, op, childEquiv, 0, contrib)
					cmplxs.Add(check, contrib)
					continue
				}

				for _, cdir := range p.childDirs[c.Key] {
					if direction.Parent(cdir, childW) != dir {
						continue
					}
					childEquiv, ok := p.Equiv[geom.BoxDirKey{Box: c.Key, Dir: cdir}]
					if !ok {
						continue
					}
					contrib := make([]complex128, checkLen)
					linalg.Gemv(1, op, childEquiv, 0, contrib)
					cmplxs.Add(check, contrib)
				}
			}

			p.Check[geom.BoxDirKey{Box: b.Key, Dir: dir}] = check
			p.Equiv[geom.BoxDirKey{Box: b.Key, Dir: dir}] = p.Provider.UC2UE(level).Apply(check)
			produced[b.Key] = append(produced[b.Key], dir)
		}
	}
	p.childDirs = produced
}

// M2L accumulates the incoming directional downward check value of
// every occupied (box, direction) from its E-list, per spec.md §4.6
// "HF-M2L": for a target (trgkey, dir), every source box in
// fndeidxvec[dir] contributes the kernel evaluated between the
// source's directional equivalent surface and the target's directional
// check surface, after asserting the stored direction matches the one
// the center-separation vector itself quantizes to (spec.md §4.6, and
// the consistency check original_source/src/translations.cpp's
// HighFrequencyM2L performs before every translation).
func (p *Pass) M2L(level int) {
	checkTemplate := translatedTemplate(p.Provider.CheckSurface(level))
	equivTemplate := translatedTemplate(p.Provider.EquivSurface(level))
	w := geom.Width(p.Tree.K, level)

	for _, b := range p.boxesAtLevel(level) {
		for dir, srcs := range b.E {
			if len(srcs) == 0 {
				continue
			}
			key := geom.BoxDirKey{Box: b.Key, Dir: dir}
			check := p.Check[key]
			if check == nil {
				check = make([]complex128, len(checkTemplate(geom.Vec{})))
			}

			for _, srcKey := range srcs {
				src := p.box(srcKey)
				if src == nil {
					continue
				}
				sep := src.Center.Sub(b.Center)
				got := direction.Direction(sep, w)
				if got != dir {
					panic(fmt.Sprintf("highfreq: M2L: directional consistency failure: box %v src %v stored dir %v, computed %v", b.Key, srcKey, dir, got))
				}

				equiv, ok := p.Equiv[geom.BoxDirKey{Box: srcKey, Dir: dir}]
				if !ok {
					continue
				}
				g := kernel.EvalFlat(p.Kernel, checkTemplate(b.Center), equivTemplate(src.Center), nil)
				m := linalg.NewDense(len(check), len(equiv), g)
				contrib := make([]complex128, len(check))
				linalg.Gemv(1, m, equiv, 0, contrib)
				cmplxs.Add(check, contrib)
			}

			p.Check[key] = check
		}
	}
}

// L2L converts every occupied (box, direction)'s incoming check value
// to a directional downward equivalent density, then distributes it
// into each occupied child's incoming check value — at direction
// pdir = parent_direction(dir) when the child is itself a
// high-frequency (box,direction) box, or into the plain unit-level
// check value when the child is at the unit level (spec.md §4.6
// "HF-L2L").
func (p *Pass) L2L(level int) {
	u := p.Tree.UnitLevel
	dc2de := p.Provider.DC2DE(level)
	ld := p.directionsAtLevel(level)

	var childLd levelDirs
	if level+1 < u {
		childLd = p.directionsAtLevel(level + 1)
	}
	childW := geom.Width(p.Tree.K, level+1)

	for _, b := range p.boxesAtLevel(level) {
		for dir := range ld.incoming[b.Key] {
			check, ok := p.Check[geom.BoxDirKey{Box: b.Key, Dir: dir}]
			if !ok {
				continue
			}
			equiv := dc2de.Apply(check)

			for _, c := range b.Children {
				if c == nil {
					continue
				}
				op := p.Provider.DE2DC(c.Key.Level, c.Center.Sub(b.Center))
				r, _ := op.Dims()

				if level+1 == u {
					contrib := make([]complex128, r)
					linalg.Gemv(1, op, equiv, 0, contrib)
					existing := p.LFCheck[c.Key]
					if existing == nil {
						existing = make([]complex128, len(contrib))
					}
					cmplxs.Add(existing, contrib)
					p.LFCheck[c.Key] = existing
					continue
				}

				for cdir := range childLd.incoming[c.Key] {
					if direction.Parent(cdir, childW) != dir {
						continue
					}
					contrib := make([]complex128, r)
					linalg.Gemv(1, op, equiv, 0, contrib)
					ckey := geom.BoxDirKey{Box: c.Key, Dir: cdir}
					existing := p.Check[ckey]
					if existing == nil {
						existing = make([]complex128, len(contrib))
					}
					cmplxs.Add(existing, contrib)
					p.Check[ckey] = existing
				}
			}
		}
	}
}

func translated(pts []geom.Vec, center geom.Vec) []geom.Vec {
	out := make([]geom.Vec, len(pts))
	for i, v := range pts {
		out[i] = v.Add(center)
	}
	return out
}

func translatedTemplate(template []geom.Vec) func(center geom.Vec) []geom.Vec {
	return func(center geom.Vec) []geom.Vec { return translated(template, center) }
}
