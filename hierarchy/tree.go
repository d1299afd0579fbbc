// Package hierarchy builds the adaptive octree spec.md §4.3 describes
// and computes, for every occupied box, the near- and far-field
// interaction lists (U, V, W, X) and, at high-frequency levels, the
// directional E-list. It generalizes the quadtree insert/passDown/
// summarize recursion of
// _examples/gonum-gonum/spatial/barneshut/barneshut2.go from a 2-D,
// 4-child Barnes-Hut tree to a 3-D, 8-child occupancy tree with a
// ptsmax/maxlevel subdivision rule in place of a theta criterion, and
// keyed by geom.BoxKey instead of back-pointers (spec.md §9 "Cyclic
// references": box nodes do not need parent pointers).
package hierarchy

import (
	"github.com/ddfmm-go/ddfmm/fft3"
	"github.com/ddfmm-go/ddfmm/geom"
)

// Box is one occupied node of the octree: either terminal, carrying
// the indices of the source/target points attached to it, or
// internal, carrying only its occupied children.
type Box struct {
	Key      geom.BoxKey
	Center   geom.Vec
	Terminal bool

	Children [8]*Box // nil where the octant is unoccupied

	SourceIdx []int // indices into Tree.Sources, terminal boxes only
	TargetIdx []int // indices into Tree.Targets, terminal boxes only

	U, V, W, X []geom.BoxKey
	E          map[geom.Dir][]geom.BoxKey // high-frequency levels only

	// FFTDen caches the forward transform of this box's upward
	// equivalent density for the low-frequency V-list FFT
	// acceleration (spec.md §3 "the FFT of the upward equivalent
	// density with a reference count fftcnt/fftnum"). It is
	// materialized lazily by the first V-list consumer and freed once
	// FFTCount reaches FFTNum, bounding peak memory per spec.md §5.
	FFTDen   *fft3.Grid
	FFTCount int // fftcnt: V-list consumers that have used FFTDen so far
	FFTNum   int // fftnum: total V-list consumers expected, set once by computeLists
}

// Tree is the sparse octree spanning a set of source and target
// points, plus its per-level occupied-box index and unit level.
type Tree struct {
	Sources, Targets []geom.Vec
	PtsMax           int
	MaxLevel         int
	K                float64
	C0               geom.Vec

	Root      *Box
	Boxes     map[geom.BoxKey]*Box
	UnitLevel int
}

type point struct {
	idx      int
	isSource bool
	pos      geom.Vec
}

// Build constructs the octree from sources and targets, subdividing
// any box holding more than ptsMax points down to maxLevel, and then
// computes every occupied box's U/V/W/X/E lists.
func Build(sources, targets []geom.Vec, ptsMax, maxLevel int, k float64, c0 geom.Vec) *Tree {
	t := &Tree{
		Sources:   sources,
		Targets:   targets,
		PtsMax:    ptsMax,
		MaxLevel:  maxLevel,
		K:         k,
		C0:        c0,
		Boxes:     make(map[geom.BoxKey]*Box),
		UnitLevel: geom.UnitLevel(k),
	}

	pts := make([]point, 0, len(sources)+len(targets))
	for i, p := range sources {
		pts = append(pts, point{idx: i, isSource: true, pos: p})
	}
	for i, p := range targets {
		pts = append(pts, point{idx: i, isSource: false, pos: p})
	}

	root := geom.BoxKey{Level: 0, Index: geom.Index3{0, 0, 0}}
	t.Root = t.build(root, pts)
	t.computeLists()
	return t
}

// octant returns which of the 8 children of a box centered at c
// contains p (bit i of the result selects the +axis-i half).
func octant(c, p geom.Vec) int {
	oct := 0
	if p[0] >= c[0] {
		oct |= 1
	}
	if p[1] >= c[1] {
		oct |= 2
	}
	if p[2] >= c[2] {
		oct |= 4
	}
	return oct
}

func (t *Tree) build(key geom.BoxKey, pts []point) *Box {
	center := geom.BoxCenter(key, t.C0, t.K)
	b := &Box{Key: key, Center: center}

	if len(pts) <= t.PtsMax || key.Level >= t.MaxLevel {
		b.Terminal = true
		for _, p := range pts {
			if p.isSource {
				b.SourceIdx = append(b.SourceIdx, p.idx)
			} else {
				b.TargetIdx = append(b.TargetIdx, p.idx)
			}
		}
		t.Boxes[key] = b
		return b
	}

	var buckets [8][]point
	for _, p := range pts {
		oct := octant(center, p.pos)
		buckets[oct] = append(buckets[oct], p)
	}
	for oct, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		b.Children[oct] = t.build(key.Child(oct), bucket)
	}
	t.Boxes[key] = b
	return b
}
