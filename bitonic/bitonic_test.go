package bitonic

import (
	"encoding/binary"
	"math/rand"
	"sort"
	"testing"

	"github.com/ddfmm-go/ddfmm/transport"
)

func intCodec() Codec[int] {
	return Codec[int]{
		Less: func(a, b int) bool { return a < b },
		Encode: func(v int) []byte {
			b := make([]byte, 8)
			binary.LittleEndian.PutUint64(b, uint64(v))
			return b
		},
		Decode: func(b []byte) int { return int(binary.LittleEndian.Uint64(b)) },
	}
}

func runSortCase(t *testing.T, p int, total int) {
	t.Helper()
	r := rand.New(rand.NewSource(int64(p*100003 + total)))
	all := make([]int, total)
	for i := range all {
		all[i] = r.Intn(10000)
	}
	// distribute unevenly across ranks
	perRank := make([][]int, p)
	for _, v := range all {
		rk := r.Intn(p)
		perRank[rk] = append(perRank[rk], v)
	}

	w := transport.NewWorld(p)
	results := make([][]int, p)
	w.Run(func(c transport.Comm) {
		results[c.Rank()] = Sort(c, perRank[c.Rank()], intCodec())
	})

	var got []int
	for r := 0; r < p; r++ {
		got = append(got, results[r]...)
		if r > 0 {
			prevLast := results[r-1]
			if len(prevLast) > 0 && len(results[r]) > 0 {
				if prevLast[len(prevLast)-1] > results[r][0] {
					t.Fatalf("rank %d last (%d) > rank %d first (%d): not globally sorted across ranks",
						r-1, prevLast[len(prevLast)-1], r, results[r][0])
				}
			}
		}
		if !sort.IntsAreSorted(results[r]) {
			t.Fatalf("rank %d's shard is not locally sorted: %v", r, results[r])
		}
	}
	if len(got) != total {
		t.Fatalf("total elements = %d, want %d", len(got), total)
	}
	want := append([]int(nil), all...)
	sort.Ints(want)
	sort.Ints(got)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("multiset mismatch at %d: got %d want %d", i, got[i], want[i])
		}
	}
}

func TestSortPowerOfTwoRanks(t *testing.T) {
	runSortCase(t, 4, 97)
	runSortCase(t, 8, 500)
}

func TestSortNonPowerOfTwoRanks(t *testing.T) {
	runSortCase(t, 3, 80)
	runSortCase(t, 5, 211)
}

func TestSortSingleRank(t *testing.T) {
	runSortCase(t, 1, 50)
}
