package partition

import "github.com/ddfmm-go/ddfmm/geom"

// DirectionalOwnerPolicy builds the owner-policy callback spec.md
// §4.7 step 6 describes for moving (box,direction) payloads after a
// repartition: a key goes to the outgoing descriptor's owner if
// isOutgoing reports true for it, to the incoming descriptor's owner
// if hasIncomingList reports a nonempty interaction list, and to both
// if both apply (the two partitions are independent).
func DirectionalOwnerPolicy[V any](
	outgoing, incoming *Descriptor[geom.BoxDirKey],
	isOutgoing func(geom.BoxDirKey, V) bool,
	hasIncomingList func(geom.BoxDirKey, V) bool,
) func(geom.BoxDirKey, V) []int {
	return func(key geom.BoxDirKey, value V) []int {
		var dests []int
		if isOutgoing(key, value) {
			if r, ok := outgoing.Owner(key); ok {
				dests = append(dests, r)
			}
		}
		if hasIncomingList(key, value) {
			if r, ok := incoming.Owner(key); ok {
				dests = appendUnique(dests, r)
			}
		}
		return dests
	}
}

// UnitLevelOwnerPolicy builds the owner-policy callback for unit-level
// box payloads, which are sent to the unit-level owner keyed under the
// synthetic direction geom.UnitDir (spec.md §4.7 step 6).
func UnitLevelOwnerPolicy[V any](unitDescriptor *Descriptor[geom.BoxDirKey]) func(geom.BoxKey, V) []int {
	return func(key geom.BoxKey, _ V) []int {
		if r, ok := unitDescriptor.Owner(geom.BoxDirKey{Box: key, Dir: geom.UnitDir}); ok {
			return []int{r}
		}
		return nil
	}
}

func appendUnique(dests []int, r int) []int {
	for _, d := range dests {
		if d == r {
			return dests
		}
	}
	return append(dests, r)
}
