package wire

import "fmt"

// CompactSize markers.
const (
	varIntMarker16 = 0xfd
	varIntMarker32 = 0xfe
	varIntMarker64 = 0xff
)

// VarInt is an unsigned integer in the CompactSize encoding.
type VarInt uint64

// SerializeSize returns the encoded width of v.
func (v VarInt) SerializeSize() int {
	switch {
	case v < varIntMarker16:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// Encode writes v in its minimal form.
func (v VarInt) Encode(s Sink) (int, error) {
	if have := s.Remaining(); have >= 0 && have < v.SerializeSize() {
		return 0, &InsufficientCapacityError{Type: "variable int", Want: v.SerializeSize(), Have: have}
	}
	switch {
	case v < varIntMarker16:
		return WriteUint8(s, uint8(v))
	case v <= 0xffff:
		if _, err := WriteUint8(s, varIntMarker16); err != nil {
			return 0, err
		}
		n, err := WriteUint16(s, uint16(v))
		return 1 + n, err
	case v <= 0xffffffff:
		if _, err := WriteUint8(s, varIntMarker32); err != nil {
			return 0, err
		}
		n, err := WriteUint32(s, uint32(v))
		return 1 + n, err
	default:
		if _, err := WriteUint8(s, varIntMarker64); err != nil {
			return 0, err
		}
		n, err := WriteUint64(s, uint64(v))
		return 1 + n, err
	}
}

// ReadVarInt decodes a CompactSize integer. Encodings wider than necessary are
// rejected with ErrNonCanonicalVarInt.
func ReadVarInt(src Source) (VarInt, error) {
	if src.Len() < 1 {
		return 0, &InsufficientBytesError{Type: "variable int", Want: 1, Have: src.Len()}
	}
	marker, err := ReadUint8(src)
	if err != nil {
		return 0, err
	}

	var v, floor uint64
	switch marker {
	case varIntMarker16:
		n, err := ReadUint16(src)
		if err != nil {
			return 0, err
		}
		v, floor = uint64(n), varIntMarker16
	case varIntMarker32:
		n, err := ReadUint32(src)
		if err != nil {
			return 0, err
		}
		v, floor = uint64(n), 0x10000
	case varIntMarker64:
		n, err := ReadUint64(src)
		if err != nil {
			return 0, err
		}
		v, floor = n, 0x100000000
	default:
		return VarInt(marker), nil
	}

	if v < floor {
		return 0, fmt.Errorf("%w: value 0x%x under marker 0x%02x", ErrNonCanonicalVarInt, v, marker)
	}
	return VarInt(v), nil
}
