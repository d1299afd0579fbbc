package engine

import (
	"github.com/ddfmm-go/ddfmm/dav"
	"github.com/ddfmm-go/ddfmm/geom"
	"github.com/ddfmm-go/ddfmm/highfreq"
	"github.com/ddfmm-go/ddfmm/partition"
	"github.com/ddfmm-go/ddfmm/transport"
)

// hfPayload carries whichever of a (box,direction) key's two
// directional vectors this rank currently holds: the outgoing upward
// equivalent density HF-M2M produced, the incoming downward check
// value HF-M2L/HF-L2L produced, or both.
type hfPayload struct {
	HasEquiv bool
	Equiv    []complex128
	HasCheck bool
	Check    []complex128
}

// directionalOwner adapts a pair of outgoing/incoming descriptors into
// a single dav.Owner[geom.BoxDirKey]: a key resolves through whichever
// descriptor names an owner for it, preferring the outgoing one.
type directionalOwner struct {
	outgoing, incoming *partition.Descriptor[geom.BoxDirKey]
}

func (o directionalOwner) Owner(key geom.BoxDirKey) (int, bool) {
	if r, ok := o.outgoing.Owner(key); ok {
		return r, true
	}
	return o.incoming.Owner(key)
}

// moveHFLevelPayload performs spec.md §4.7 step 6's payload movement
// for one high-frequency level's (box,direction) keys: every entry
// this rank holds in hf.Equiv or hf.Check at level is pushed, via
// dav.DAV.PutBegin/PutEnd and partition.DirectionalOwnerPolicy, to
// whichever of the outgoing/incoming owners the key's payload
// qualifies for, then merged back so hf reflects this rank's share
// after the exchange.
func moveHFLevelPayload(comm transport.Comm, outgoing, incoming *partition.Descriptor[geom.BoxDirKey], hf *highfreq.Pass, level int) {
	owner := directionalOwner{outgoing: outgoing, incoming: incoming}
	d := dav.New[geom.BoxDirKey, hfPayload](comm, owner, hfPayloadCodec())

	var pairs []dav.Pair[geom.BoxDirKey, hfPayload]
	var keys []geom.BoxDirKey
	seen := make(map[geom.BoxDirKey]bool)

	for key, v := range hf.Equiv {
		if key.Box.Level != level {
			continue
		}
		p := hfPayload{HasEquiv: true, Equiv: v}
		if c, ok := hf.Check[key]; ok {
			p.HasCheck = true
			p.Check = c
		}
		pairs = append(pairs, dav.Pair[geom.BoxDirKey, hfPayload]{Key: key, Value: p})
		keys = append(keys, key)
		seen[key] = true
	}
	for key, v := range hf.Check {
		if key.Box.Level != level || seen[key] {
			continue
		}
		pairs = append(pairs, dav.Pair[geom.BoxDirKey, hfPayload]{Key: key, Value: hfPayload{HasCheck: true, Check: v}})
		keys = append(keys, key)
	}

	isOutgoing := func(_ geom.BoxDirKey, v hfPayload) bool { return v.HasEquiv }
	hasIncoming := func(_ geom.BoxDirKey, v hfPayload) bool { return v.HasCheck }
	policy := partition.DirectionalOwnerPolicy[hfPayload](outgoing, incoming, isOutgoing, hasIncoming)

	pending := d.PutBegin(pairs, policy)
	d.PutEnd(pending)

	for _, key := range keys {
		if !d.Contains(key) {
			continue
		}
		p := d.Access(key)
		if p.HasEquiv {
			hf.Equiv[key] = p.Equiv
		}
		if p.HasCheck {
			hf.Check[key] = p.Check
		}
	}
}
