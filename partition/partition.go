// Package partition implements the per-level ownership descriptors
// and the distributed partitioning pipeline of spec.md §4.2/§4.7:
// coarse redistribution, a global sort (delegated to bitonic), interval
// partition formation, the unit-level pop-pass, and payload movement
// over a dav.DAV. Grounded on the residue-kept-local redistribution and
// boundary-trim shapes original_source/src/data_distrib.cpp's
// ScatterKeys implements, rendered against this module's own
// transport/bitonic/dav stack rather than translated line for line.
package partition

import (
	"sort"

	"github.com/ddfmm-go/ddfmm/bitonic"
	"github.com/ddfmm-go/ddfmm/transport"
)

// Descriptor is the interval-based owner map spec.md §4.2 describes:
// two parallel ordered arrays start[0..P), end[0..P), plus an optional
// ancestor reduction applied to a key before lookup (used by
// low-frequency levels above the unit level to inherit the unit
// ancestor's owner).
type Descriptor[K any] struct {
	start, end []K
	less       func(a, b K) bool
	reduce     func(K) K
}

// NewDescriptor builds a Descriptor from the per-rank start/end arrays
// an all-gather produced; start and end must be the same length (P)
// and ordered by rank.
func NewDescriptor[K any](start, end []K, less func(a, b K) bool) *Descriptor[K] {
	if len(start) != len(end) {
		panic("partition: start/end length mismatch")
	}
	return &Descriptor[K]{start: start, end: end, less: less}
}

// WithAncestorReduction returns a copy of d whose Owner lookups first
// map a key through reduce — the `(ℓ, idx) → (U, idx / 2^(ℓ−U))`
// ancestor map spec.md §4.2 describes for low-frequency boxes above
// the unit level.
func (d *Descriptor[K]) WithAncestorReduction(reduce func(K) K) *Descriptor[K] {
	return &Descriptor[K]{start: d.start, end: d.end, less: d.less, reduce: reduce}
}

// Owner returns the rank whose [start,end] interval contains key (after
// ancestor reduction, if configured), satisfying the dav.Owner[K]
// interface. ok is false for the distinguished "no owner" sentinel
// spec.md §7 uses as a consistency check.
func (d *Descriptor[K]) Owner(key K) (int, bool) {
	k := key
	if d.reduce != nil {
		k = d.reduce(k)
	}
	// largest i with start[i] <= k
	i := sort.Search(len(d.start), func(i int) bool { return d.less(k, d.start[i]) }) - 1
	if i < 0 {
		return 0, false
	}
	if d.less(d.end[i], k) {
		return 0, false
	}
	return i, true
}

// Bounds reports d's raw start/end arrays, for diagnostics and tests.
func (d *Descriptor[K]) Bounds() (start, end []K) { return d.start, d.end }

// CoarseRedistribute ships floor(n_i/P) of this rank's elements to
// every other rank via an all-to-all, keeping the residue local
// (spec.md §4.7 step 2), ahead of a global sort. This equalizes counts
// so the sort that follows does roughly even work per rank; it is not
// itself a sort.
func CoarseRedistribute[T any](c transport.Comm, local []T, codec bitonic.Codec[T]) []T {
	size := c.Size()
	n := len(local)
	chunk := n / size
	outgoing := make([][]byte, size)
	var residue []T
	for r := 0; r < size; r++ {
		lo, hi := r*chunk, (r+1)*chunk
		if lo >= n {
			continue
		}
		if hi > n {
			hi = n
		}
		share := local[lo:hi]
		if r == c.Rank() {
			residue = append(residue, share...)
			continue
		}
		outgoing[r] = encodeSlice(share, codec.Encode)
	}
	residue = append(residue, local[chunk*size:]...)

	incoming := c.Alltoallv(outgoing)
	out := append([]T(nil), residue...)
	for src, buf := range incoming {
		if src == c.Rank() || len(buf) == 0 {
			continue
		}
		out = append(out, decodeSlice(buf, codec.Decode)...)
	}
	return out
}

// Sort runs the full key-distribution sort of spec.md §4.7 steps 2-3:
// coarse redistribution followed by a global bitonic sort. The
// returned slice is this rank's contiguous shard of the globally
// sorted sequence.
func Sort[T any](c transport.Comm, local []T, codec bitonic.Codec[T]) []T {
	redistributed := CoarseRedistribute(c, local, codec)
	return bitonic.Sort(c, redistributed, codec)
}

// FormDescriptor performs spec.md §4.7 step 4: each rank contributes
// its first and last key from its sorted shard, an all-gather yields
// start[]/end[], and a Descriptor is built from them. A rank holding
// no keys takes the next non-empty rank's start as both of its bounds;
// a rank holding no keys with no non-empty rank after it takes the
// last non-empty rank's end instead.
func FormDescriptor[K any](c transport.Comm, sortedLocal []K, less func(a, b K) bool, codec bitonic.Codec[K]) *Descriptor[K] {
	size := c.Size()
	var firstLast []byte
	if len(sortedLocal) > 0 {
		firstLast = encodeSlice([]K{sortedLocal[0], sortedLocal[len(sortedLocal)-1]}, codec.Encode)
	}
	gathered := c.Allgather(firstLast)

	start := make([]K, size)
	end := make([]K, size)
	haveBounds := false
	for r := 0; r < size; r++ {
		if len(gathered[r]) == 0 {
			continue
		}
		pair := decodeSlice(gathered[r], codec.Decode)
		start[r], end[r] = pair[0], pair[1]
		haveBounds = true
	}
	if !haveBounds {
		return NewDescriptor(start, end, less)
	}
	// Backfill empty ranks so start[] stays ordered. Owner picks the
	// largest i with start[i] <= k, so an empty rank that shares the
	// next non-empty rank's start never wins that key from it.
	for r := 0; r < size; r++ {
		if len(gathered[r]) != 0 {
			continue
		}
		next := -1
		for j := r + 1; j < size; j++ {
			if len(gathered[j]) != 0 {
				next = j
				break
			}
		}
		if next >= 0 {
			start[r], end[r] = start[next], start[next]
		} else {
			// r > 0 here, and rank r-1 is non-empty or already backfilled.
			start[r], end[r] = end[r-1], end[r-1]
		}
	}
	return NewDescriptor(start, end, less)
}

// PopPass implements spec.md §4.7 step 5's unit-level boundary trim:
// each rank exchanges its shard's first key with its ring neighbors
// and drops any trailing keys that duplicate the next rank's starting
// key, so a box that sorted onto both sides of a rank boundary ends up
// owned by exactly one rank.
func PopPass[K any](c transport.Comm, sortedLocal []K, equal func(a, b K) bool, codec bitonic.Codec[K]) []K {
	size := c.Size()
	if size == 1 {
		return sortedLocal
	}
	rank := c.Rank()
	prev := (rank - 1 + size) % size
	next := (rank + 1) % size

	var myFirst []byte
	if len(sortedLocal) > 0 {
		myFirst = codec.Encode(sortedLocal[0])
	}
	const tag = 0x706f7070 // "popp"
	reply := c.Sendrecv(prev, tag, myFirst, next, tag)

	if rank == size-1 || len(reply) == 0 || len(sortedLocal) == 0 {
		return sortedLocal
	}
	nextFirst := codec.Decode(reply)
	trimmed := append([]K(nil), sortedLocal...)
	for len(trimmed) > 0 && equal(trimmed[len(trimmed)-1], nextFirst) {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed
}

func encodeSlice[T any](xs []T, enc func(T) []byte) []byte {
	var out []byte
	for _, x := range xs {
		b := enc(x)
		out = appendUint32(out, uint32(len(b)))
		out = append(out, b...)
	}
	return out
}

func decodeSlice[T any](buf []byte, dec func([]byte) T) []T {
	var out []T
	for len(buf) > 0 {
		n := readUint32(buf)
		buf = buf[4:]
		out = append(out, dec(buf[:n]))
		buf = buf[n:]
	}
	return out
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func readUint32(buf []byte) uint32 {
	return uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
}
