package wire

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// VarString is a CompactSize length prefix followed by that many bytes of text.
//
// A string decoded from invalid UTF-8 keeps its original bytes and writes
// them back as long as Value is left untouched.
type VarString struct {
	Value string
	// raw holds the wire bytes when they were not valid UTF-8.
	raw string
}

// NewVarString wraps s.
func NewVarString(s string) VarString {
	return VarString{Value: s}
}

func (v VarString) String() string {
	return v.Value
}

// Len is the byte length Encode writes after the prefix.
func (v VarString) Len() int {
	return len(v.wireBytes())
}

func (v VarString) wireBytes() string {
	if v.raw != "" && Lossy([]byte(v.raw)) == v.Value {
		return v.raw
	}
	return v.Value
}

// SerializeSize returns the encoded width of v.
func (v VarString) SerializeSize() int {
	n := v.Len()
	return VarInt(n).SerializeSize() + n
}

func (v VarString) Encode(s Sink) (int, error) {
	body := v.wireBytes()
	size := VarInt(len(body)).SerializeSize() + len(body)
	if have := s.Remaining(); have >= 0 && have < size {
		return 0, &InsufficientCapacityError{Type: "variable length string", Want: size, Have: have}
	}
	written, err := VarInt(len(body)).Encode(s)
	if err != nil {
		return written, err
	}
	n, err := write(s, []byte(body), "variable length string")
	return written + n, err
}

// ReadVarString decodes a length-prefixed string of at most maxLen bytes.
// Invalid UTF-8 is replaced with U+FFFD rather than rejected.
func ReadVarString(src Source, maxLen uint64) (VarString, error) {
	length, err := ReadVarInt(src)
	if err != nil {
		return VarString{}, err
	}
	if uint64(length) > maxLen {
		return VarString{}, fmt.Errorf("%w: length=%d max=%d", ErrVarStringTooLong, length, maxLen)
	}
	if uint64(length) > uint64(src.Len()) {
		return VarString{}, &InsufficientBytesError{Type: "variable length string", Want: int(length), Have: src.Len()}
	}
	raw, err := ReadBytes(src, int(length), "variable length string")
	if err != nil {
		return VarString{}, err
	}
	if utf8.Valid(raw) {
		return VarString{Value: string(raw)}, nil
	}
	return VarString{Value: Lossy(raw), raw: string(raw)}, nil
}

// Lossy converts raw to a string, replacing invalid UTF-8 with U+FFFD.
func Lossy(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(out)
}
