package engine

import (
	"encoding/binary"
	"math"

	"github.com/ddfmm-go/ddfmm/bitonic"
	"github.com/ddfmm-go/ddfmm/dav"
	"github.com/ddfmm-go/ddfmm/geom"
)

// boxKeyCodec serializes geom.BoxKey for the bitonic/partition wire
// protocol: a 4-byte level followed by three 8-byte lattice indices.
func boxKeyCodec() bitonic.Codec[geom.BoxKey] {
	return bitonic.Codec[geom.BoxKey]{
		Less:   func(a, b geom.BoxKey) bool { return a.Compare(b) < 0 },
		Encode: encodeBoxKey,
		Decode: decodeBoxKey,
	}
}

func encodeBoxKey(k geom.BoxKey) []byte {
	buf := make([]byte, 4+8*3)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(k.Level)))
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint64(buf[4+8*i:], uint64(int64(k.Index[i])))
	}
	return buf
}

func decodeBoxKey(b []byte) geom.BoxKey {
	k := geom.BoxKey{Level: int(int32(binary.LittleEndian.Uint32(b[0:4])))}
	for i := 0; i < 3; i++ {
		k.Index[i] = int(int64(binary.LittleEndian.Uint64(b[4+8*i:])))
	}
	return k
}

// boxDirKeyCodec serializes geom.BoxDirKey: a box key followed by the
// three-integer direction label.
func boxDirKeyCodec() bitonic.Codec[geom.BoxDirKey] {
	return bitonic.Codec[geom.BoxDirKey]{
		Less:   func(a, b geom.BoxDirKey) bool { return a.Compare(b) < 0 },
		Encode: encodeBoxDirKey,
		Decode: decodeBoxDirKey,
	}
}

func encodeBoxDirKey(k geom.BoxDirKey) []byte {
	buf := encodeBoxKey(k.Box)
	for i := 0; i < 3; i++ {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(k.Dir[i])))
	}
	return buf
}

func decodeBoxDirKey(b []byte) geom.BoxDirKey {
	box := decodeBoxKey(b[:28])
	rest := b[28:]
	var dir geom.Dir
	for i := 0; i < 3; i++ {
		dir[i] = int(int64(binary.LittleEndian.Uint64(rest[8*i:])))
	}
	return geom.BoxDirKey{Box: box, Dir: dir}
}

// complexSliceCodec serializes a []complex128 (an upward equivalent
// density or downward check value) for dav.DAV's wire protocol: an
// element count followed by 16-byte real/imaginary pairs.
func complexSliceCodec() dav.Codec[geom.BoxKey, []complex128] {
	return dav.Codec[geom.BoxKey, []complex128]{
		EncodeKey:   encodeBoxKey,
		DecodeKey:   decodeBoxKey,
		EncodeValue: encodeComplexSlice,
		DecodeValue: decodeComplexSlice,
	}
}

func encodeComplexSlice(vs []complex128) []byte {
	buf := make([]byte, 4, 4+16*len(vs))
	binary.LittleEndian.PutUint32(buf, uint32(len(vs)))
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(real(v)))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(imag(v)))
	}
	return buf
}

func decodeComplexSlice(b []byte) []complex128 {
	n := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	out := make([]complex128, n)
	for i := range out {
		re := math.Float64frombits(binary.LittleEndian.Uint64(b[16*i:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(b[16*i+8:]))
		out[i] = complex(re, im)
	}
	return out
}

// hfPayloadCodec serializes an hfPayload for the high-frequency
// per-level DAV exchange: a one-byte presence flag followed by the
// equivalent-density slice then the check-value slice, each in
// complexSliceCodec's own count-prefixed encoding.
func hfPayloadCodec() dav.Codec[geom.BoxDirKey, hfPayload] {
	return dav.Codec[geom.BoxDirKey, hfPayload]{
		EncodeKey:   encodeBoxDirKey,
		DecodeKey:   decodeBoxDirKey,
		EncodeValue: encodeHFPayload,
		DecodeValue: decodeHFPayload,
	}
}

func encodeHFPayload(p hfPayload) []byte {
	var flags byte
	if p.HasEquiv {
		flags |= 1
	}
	if p.HasCheck {
		flags |= 2
	}
	buf := append([]byte{flags}, encodeComplexSlice(p.Equiv)...)
	buf = append(buf, encodeComplexSlice(p.Check)...)
	return buf
}

func decodeHFPayload(b []byte) hfPayload {
	flags := b[0]
	rest := b[1:]

	equivLen := int(binary.LittleEndian.Uint32(rest[:4]))
	equivBytes := rest[:4+16*equivLen]
	rest = rest[4+16*equivLen:]

	checkLen := int(binary.LittleEndian.Uint32(rest[:4]))
	checkBytes := rest[:4+16*checkLen]

	p := hfPayload{HasEquiv: flags&1 != 0, HasCheck: flags&2 != 0}
	if p.HasEquiv {
		p.Equiv = decodeComplexSlice(equivBytes)
	}
	if p.HasCheck {
		p.Check = decodeComplexSlice(checkBytes)
	}
	return p
}
