// Package engine is the top-level driver spec.md §4.8 describes:
// build the hierarchy, run the partitioning pipeline, walk the upward
// pass (L-M2M bottom-up to the unit level, then HF-M2M to the root),
// then the downward pass (HF-M2L/HF-L2L to the unit level, then
// L-M2L/L-L2L to the leaves), across a transport.World of simulated
// ranks. Fatal invariant violations (spec.md §7) are modeled as
// panics inside Execute and recovered at Run's boundary, turned into a
// structured log line and a process-group abort — the engine is the
// one library package in the module that calls os.Exit, matching spec.md
// §5's "a fatal error aborts the process group" for a computation with
// nowhere else to report to.
package engine

import (
	"log/slog"
	"os"

	"github.com/ddfmm-go/ddfmm/config"
	"github.com/ddfmm-go/ddfmm/dav"
	"github.com/ddfmm-go/ddfmm/geom"
	"github.com/ddfmm-go/ddfmm/hierarchy"
	"github.com/ddfmm-go/ddfmm/highfreq"
	"github.com/ddfmm-go/ddfmm/kernel"
	"github.com/ddfmm-go/ddfmm/lowfreq"
	"github.com/ddfmm-go/ddfmm/mlib"
	"github.com/ddfmm-go/ddfmm/partition"
	"github.com/ddfmm-go/ddfmm/transport"
)

// Result is one rank's share of a completed evaluation: the target
// values for the indices whose leaf box this rank owns after
// partitioning (spec.md §4.8 "target values are locally present on the
// owners of their leaf boxes"), plus the list of owned indices.
// Indices not in Owned are left at the zero value.
type Result struct {
	TargetValue []complex128
	Owned       []int
}

// unitBoxOwner adapts a (box,direction) Descriptor keyed under the
// synthetic unit-level direction into a dav.Owner[geom.BoxKey], so the
// unit-level check-value handoff (moveUnitLevelPayload) can use the
// same Descriptor partitionUnitLevel built without re-deriving
// ownership from a plain-BoxKey copy of it.
type unitBoxOwner struct {
	desc *partition.Descriptor[geom.BoxDirKey]
}

func (o unitBoxOwner) Owner(key geom.BoxKey) (int, bool) {
	return o.desc.Owner(geom.BoxDirKey{Box: key, Dir: geom.UnitDir})
}

// Execute runs one rank's side of a full evaluation over comm and
// returns this rank's share of the result. It panics on the invariant
// violations spec.md §7 makes fatal (an access of a key with no
// resolvable owner, a missing prefetch); callers that need the
// process-group-abort behavior of a production driver should call Run
// instead, which recovers these panics.
func Execute(comm transport.Comm, opts config.Options, sources, targets []geom.Vec, density []complex128, provider mlib.Provider, k kernel.Kernel) Result {
	log := slog.Default().With("rank", comm.Rank())

	tree := hierarchy.Build(sources, targets, opts.PtsMax, opts.MaxLevel, opts.K, opts.CenterVec())
	log.Info("hierarchy built", "boxes", len(tree.Boxes), "unitLevel", tree.UnitLevel,
		"sources", len(sources), "targets", len(targets))

	unitDesc := partitionUnitLevel(comm, tree, log)
	comm.Barrier()

	lf := lowfreq.NewPass(tree, provider, k, density)
	for level := tree.MaxLevel; level >= tree.UnitLevel; level-- {
		lf.M2M(level)
	}
	log.Info("low-frequency upward pass complete")

	hf := highfreq.NewPass(tree, provider, k, lf.Equiv, lf.Check)
	hfDescs := make(map[int]hfLevelDescriptors)
	for level := tree.UnitLevel - 1; level >= 0; level-- {
		out, in := partitionHFLevel(comm, tree, level, log)
		hfDescs[level] = hfLevelDescriptors{outgoing: out, incoming: in}
		hf.M2M(level)
		moveHFLevelPayload(comm, out, in, hf, level)
	}
	comm.Barrier()
	log.Info("high-frequency upward pass complete")

	for level := 0; level < tree.UnitLevel; level++ {
		hf.M2L(level)
		hf.L2L(level)
		d := hfDescs[level]
		moveHFLevelPayload(comm, d.outgoing, d.incoming, hf, level)
	}
	comm.Barrier()
	log.Info("high-frequency downward pass complete")

	moveUnitLevelPayload(comm, unitDesc, lf.Check, tree.UnitLevel)
	comm.Barrier()

	for level := tree.UnitLevel; level <= tree.MaxLevel; level++ {
		lf.M2L(level)
		lf.L2L(level)
	}
	log.Info("low-frequency downward pass complete")

	owned := ownedTargets(tree, unitDesc, comm.Rank())
	out := make([]complex128, len(targets))
	for _, idx := range owned {
		out[idx] = lf.TargetValue[idx]
	}
	log.Info("evaluation complete", "ownedTargets", len(owned))
	return Result{TargetValue: out, Owned: owned}
}

// Run wraps Execute with the fatal-abort policy spec.md §7 mandates: a
// recovered panic is logged as a fatal diagnostic and the process
// exits non-zero, since a blocking collective computation has no
// caller left to hand an error to (spec.md §5 "Cancellation /
// timeouts: not supported").
func Run(comm transport.Comm, opts config.Options, sources, targets []geom.Vec, density []complex128, provider mlib.Provider, k kernel.Kernel) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().With("rank", comm.Rank()).Error("fatal invariant violation, aborting process group", "error", r)
			os.Exit(1)
		}
	}()
	return Execute(comm, opts, sources, targets, density, provider, k)
}

// moveUnitLevelPayload performs spec.md §4.7 step 6's payload movement
// for unit-level box data: every entry this rank holds in check is
// pushed, via dav.DAV.PutBegin/PutEnd, to the rank unitDesc names as
// its owner under the synthetic direction geom.UnitDir, then merged
// back into check so the caller's map reflects this rank's owned
// slice after the exchange.
func moveUnitLevelPayload(comm transport.Comm, unitDesc *partition.Descriptor[geom.BoxDirKey], check map[geom.BoxKey][]complex128, unitLevel int) {
	owner := unitBoxOwner{desc: unitDesc}
	d := dav.New[geom.BoxKey, []complex128](comm, owner, complexSliceCodec())

	var pairs []dav.Pair[geom.BoxKey, []complex128]
	var keys []geom.BoxKey
	for key, v := range check {
		if key.Level != unitLevel {
			continue
		}
		pairs = append(pairs, dav.Pair[geom.BoxKey, []complex128]{Key: key, Value: v})
		keys = append(keys, key)
	}

	policy := partition.UnitLevelOwnerPolicy[[]complex128](unitDesc)
	pending := d.PutBegin(pairs, policy)
	d.PutEnd(pending)

	for _, key := range keys {
		rank, ok := owner.Owner(key)
		if !ok || rank != comm.Rank() {
			continue
		}
		if d.Contains(key) {
			check[key] = d.Access(key)
		}
	}
}

// ownedTargets reports the Targets indices whose leaf box this rank
// owns: a box at or below the unit level is reduced to its unit-level
// ancestor and looked up in unitDesc; a terminal box coarser than the
// unit level (a region sparse enough to stop subdividing before
// reaching it) has no unit-level ancestor to reduce to, so it is
// deterministically assigned to rank 0 rather than left unowned.
func ownedTargets(tree *hierarchy.Tree, unitDesc *partition.Descriptor[geom.BoxDirKey], rank int) []int {
	var owned []int
	for _, b := range tree.Boxes {
		if !b.Terminal || len(b.TargetIdx) == 0 {
			continue
		}
		if b.Key.Level < tree.UnitLevel {
			if rank == 0 {
				owned = append(owned, b.TargetIdx...)
			}
			continue
		}
		ancestor := b.Key.Ancestor(tree.UnitLevel)
		r, ok := unitDesc.Owner(geom.BoxDirKey{Box: ancestor, Dir: geom.UnitDir})
		if !ok {
			if rank == 0 {
				owned = append(owned, b.TargetIdx...)
			}
			continue
		}
		if r == rank {
			owned = append(owned, b.TargetIdx...)
		}
	}
	return owned
}
