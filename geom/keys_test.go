package geom

import "testing"

func TestUnitLevel(t *testing.T) {
	cases := []struct {
		k    float64
		want int
	}{
		{0.5, 0},
		{1, 0},
		{1.5, 1},
		{4, 2},
		{8, 3},
		{16, 4},
	}
	for _, c := range cases {
		if got := UnitLevel(c.k); got != c.want {
			t.Errorf("UnitLevel(%v) = %d, want %d", c.k, got, c.want)
		}
	}
}

func TestWidthMonotone(t *testing.T) {
	for level := 0; level < 10; level++ {
		if Width(8, level) <= Width(8, level+1) {
			t.Fatalf("width not decreasing at level %d", level)
		}
	}
}

func TestBoxKeyParentChildRoundTrip(t *testing.T) {
	k := BoxKey{Level: 3, Index: Index3{5, 2, 7}}
	for oct := 0; oct < 8; oct++ {
		c := k.Child(oct)
		if p := c.Parent(); p != k {
			t.Errorf("Child(%d).Parent() = %v, want %v", oct, p, k)
		}
	}
}

func TestBoxKeyAncestor(t *testing.T) {
	k := BoxKey{Level: 5, Index: Index3{20, 6, 14}}
	a := k.Ancestor(2)
	if a.Level != 2 {
		t.Fatalf("ancestor level = %d, want 2", a.Level)
	}
	if a.Index != (Index3{2, 0, 1}) {
		t.Fatalf("ancestor index = %v, want {2,0,1}", a.Index)
	}
}

func TestBoxDirKeyOrdering(t *testing.T) {
	a := BoxDirKey{Box: BoxKey{Level: 1, Index: Index3{0, 0, 0}}, Dir: Dir{0, 0, 1}}
	b := BoxDirKey{Box: BoxKey{Level: 1, Index: Index3{0, 0, 0}}, Dir: Dir{0, 1, 0}}
	c := BoxDirKey{Box: BoxKey{Level: 1, Index: Index3{0, 0, 1}}, Dir: Dir{0, 0, 0}}
	if a.Compare(b) >= 0 {
		t.Fatalf("a should sort before b")
	}
	if b.Compare(c) >= 0 {
		t.Fatalf("b should sort before c")
	}
}
