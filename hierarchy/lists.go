package hierarchy

import (
	"github.com/ddfmm-go/ddfmm/direction"
	"github.com/ddfmm-go/ddfmm/geom"
)

// computeLists fills in every occupied box's U/V/W/X lists (low-
// frequency levels, width <= 1) or E-list (high-frequency levels,
// width > 1), per spec.md §3/§4.3. It runs once after the tree is
// built, the way barneshut2.go's summarize pass runs once after
// insert — a separate, explicit second traversal rather than
// maintaining the lists incrementally during subdivision.
func (t *Tree) computeLists() {
	byLevel := make(map[int][]*Box)
	for key, b := range t.Boxes {
		byLevel[key.Level] = append(byLevel[key.Level], b)
	}

	for level, boxes := range byLevel {
		w := geom.Width(t.K, level)
		if level < t.UnitLevel {
			t.computeDirectionalLevel(boxes, w)
		} else {
			t.computeNearFieldLevel(boxes, w)
		}
	}
}

func neighborSameLevel(a, b geom.BoxKey) bool {
	if a.Level != b.Level {
		return false
	}
	for i := 0; i < 3; i++ {
		if abs(a.Index[i]-b.Index[i]) > 1 {
			return false
		}
	}
	return a.Index != b.Index
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// computeNearFieldLevel assigns the standard low-frequency U/V/W/X
// lists among all occupied boxes at level, plus any adjacent occupied
// box at a different level (an adaptive-tree boundary, handled via
// W/X instead of U since the two boxes are not the same size).
func (t *Tree) computeNearFieldLevel(boxes []*Box, _ float64) {
	for _, b := range boxes {
		parent := b.Key.Parent()
		seen := make(map[geom.BoxKey]bool)
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					pn := geom.BoxKey{Level: parent.Level, Index: geom.Index3{
						parent.Index[0] + dx, parent.Index[1] + dy, parent.Index[2] + dz,
					}}
					pb, ok := t.Boxes[pn]
					if !ok {
						continue
					}
					for _, c := range pb.Children {
						if c == nil || c.Key == b.Key || seen[c.Key] {
							continue
						}
						seen[c.Key] = true
						if neighborSameLevel(b.Key, c.Key) {
							b.U = append(b.U, c.Key)
						} else {
							b.V = append(b.V, c.Key)
						}
					}
				}
			}
		}

		for _, other := range t.boxesNear(b) {
			if other.Key.Level == b.Key.Level {
				continue // handled by the same-level sweep above
			}
			switch {
			case other.Key.Level < b.Key.Level:
				b.W = append(b.W, other.Key) // coarser near-source
			case other.Key.Level > b.Key.Level:
				b.X = append(b.X, other.Key) // finer near-source
			}
		}
	}

	// fftnum is the count of target boxes that include a given source
	// in their V-list (spec.md §3) — the number of V-list FFT
	// consumers that source's cached transform must serve before it
	// is freed. Computed once per level, after every box's V-list at
	// this level is final.
	for _, b := range boxes {
		for _, srcKey := range b.V {
			if src, ok := t.Boxes[srcKey]; ok {
				src.FFTNum++
			}
		}
	}
}

// boxesNear returns every occupied box, at any level, whose real-space
// bounds touch or overlap b's — used only to catch adjacency across an
// adaptive-tree depth mismatch, which the same-level parent-neighbor
// sweep in computeNearFieldLevel cannot see.
func (t *Tree) boxesNear(b *Box) []*Box {
	bw := geom.Width(t.K, b.Key.Level)
	var out []*Box
	for _, other := range t.Boxes {
		if other.Key == b.Key || other.Key.Level == b.Key.Level {
			continue
		}
		ow := geom.Width(t.K, other.Key.Level)
		reach := (bw + ow) / 2
		d := b.Center.Sub(other.Center)
		if absf(d[0]) <= reach && absf(d[1]) <= reach && absf(d[2]) <= reach {
			out = append(out, other)
		}
	}
	return out
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// computeDirectionalLevel assigns the U-list (direct same-level
// neighbors) and groups every other occupied box at the same level
// into the E-list by its quantized separation direction (spec.md §4.3
// "the directional E-list is grouped by direction").
func (t *Tree) computeDirectionalLevel(boxes []*Box, w float64) {
	for _, b := range boxes {
		b.E = make(map[geom.Dir][]geom.BoxKey)
		for _, other := range boxes {
			if other.Key == b.Key {
				continue
			}
			if neighborSameLevel(b.Key, other.Key) {
				b.U = append(b.U, other.Key)
				continue
			}
			sep := other.Center.Sub(b.Center)
			dir := direction.Direction(sep.Unit(), w)
			b.E[dir] = append(b.E[dir], other.Key)
		}
	}
}
