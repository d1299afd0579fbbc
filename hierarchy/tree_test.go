package hierarchy

import (
	"testing"

	"github.com/ddfmm-go/ddfmm/geom"
)

func gridPoints(n int, spacing float64) []geom.Vec {
	pts := make([]geom.Vec, 0, n*n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				pts = append(pts, geom.Vec{float64(i) * spacing, float64(j) * spacing, float64(k) * spacing})
			}
		}
	}
	return pts
}

func TestBuildSubdividesDenseRegion(t *testing.T) {
	sources := gridPoints(4, 0.1) // 64 points clustered tightly near the origin
	targets := []geom.Vec{{2, 2, 2}}
	tr := Build(sources, targets, 8, 6, 8.0, geom.Vec{2, 2, 2})

	if tr.Root.Terminal {
		t.Fatalf("expected root to be subdivided given %d points > ptsmax", len(sources))
	}
	if len(tr.Boxes) < 2 {
		t.Fatalf("expected more than one occupied box, got %d", len(tr.Boxes))
	}

	var countPoints func(b *Box) (srcs, tgts int)
	countPoints = func(b *Box) (srcs, tgts int) {
		if b.Terminal {
			return len(b.SourceIdx), len(b.TargetIdx)
		}
		for _, c := range b.Children {
			if c == nil {
				continue
			}
			s, tg := countPoints(c)
			srcs += s
			tgts += tg
		}
		return
	}
	srcs, tgts := countPoints(tr.Root)
	if srcs != len(sources) {
		t.Fatalf("lost source points: got %d, want %d", srcs, len(sources))
	}
	if tgts != len(targets) {
		t.Fatalf("lost target points: got %d, want %d", tgts, len(targets))
	}
}

func TestBuildRespectsPtsMax(t *testing.T) {
	sources := gridPoints(3, 1.0)
	tr := Build(sources, nil, 1000, 6, 16.0, geom.Vec{1, 1, 1})
	if !tr.Root.Terminal {
		t.Fatalf("expected root to stay terminal when ptsmax exceeds point count")
	}
	if len(tr.Boxes) != 1 {
		t.Fatalf("expected exactly one box, got %d", len(tr.Boxes))
	}
}

func TestOccupiedParentHasOccupiedChild(t *testing.T) {
	sources := gridPoints(4, 0.1)
	tr := Build(sources, nil, 4, 5, 8.0, geom.Vec{0.2, 0.2, 0.2})
	for key, b := range tr.Boxes {
		if b.Terminal || key.Level == tr.MaxLevel {
			continue
		}
		hasChild := false
		for _, c := range b.Children {
			if c != nil {
				hasChild = true
			}
		}
		if !hasChild {
			t.Fatalf("internal box %v has no occupied children", key)
		}
	}
}

func TestLowFrequencyLevelsHaveNoEList(t *testing.T) {
	sources := gridPoints(4, 0.1)
	// K small enough that every level is low-frequency (UnitLevel == 0).
	tr := Build(sources, nil, 4, 3, 0.5, geom.Vec{0.2, 0.2, 0.2})
	if tr.UnitLevel != 0 {
		t.Fatalf("expected unit level 0 for K=0.5, got %d", tr.UnitLevel)
	}
	foundV := false
	for _, b := range tr.Boxes {
		if len(b.V) > 0 {
			foundV = true
		}
		if b.E != nil {
			t.Fatalf("box %v at low-frequency level should not have an E-list", b.Key)
		}
	}
	_ = foundV // presence is data-dependent; absence of E-lists is the invariant under test
}

func TestFFTNumMatchesVListConsumerCount(t *testing.T) {
	sources := gridPoints(4, 0.1)
	tr := Build(sources, nil, 4, 3, 0.5, geom.Vec{0.2, 0.2, 0.2})

	byLevel := make(map[int][]*Box)
	for key, b := range tr.Boxes {
		byLevel[key.Level] = append(byLevel[key.Level], b)
	}
	for level, boxes := range byLevel {
		wantNum := make(map[geom.BoxKey]int)
		for _, b := range boxes {
			for _, srcKey := range b.V {
				wantNum[srcKey]++
			}
		}
		for _, b := range boxes {
			if got, want := b.FFTNum, wantNum[b.Key]; got != want {
				t.Fatalf("level %d box %v: FFTNum = %d, want %d (count of boxes listing it in V)", level, b.Key, got, want)
			}
			if b.FFTDen != nil || b.FFTCount != 0 {
				t.Fatalf("box %v should start with no cached transform and fftcnt 0", b.Key)
			}
		}
	}
}

func TestHighFrequencyLevelGroupsByDirection(t *testing.T) {
	// K large enough that level 0 itself is high-frequency.
	sources := []geom.Vec{{-4, 0, 0}, {4, 0, 0}, {0, 4, 0}}
	tr := Build(sources, nil, 1, 0, 16.0, geom.Vec{0, 0, 0})
	if tr.UnitLevel <= 0 {
		t.Fatalf("expected a positive unit level for K=16, got %d", tr.UnitLevel)
	}
	root := tr.Root
	if root.E == nil {
		t.Fatalf("expected root box at a high-frequency level to have an E-list")
	}
}
