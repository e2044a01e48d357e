package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Unit is the zero-width value used for fields that are intentionally absent.
type Unit struct{}

func write(s Sink, p []byte, typ string) (int, error) {
	if have := s.Remaining(); have >= 0 && have < len(p) {
		return 0, &InsufficientCapacityError{Type: typ, Want: len(p), Have: have}
	}
	n, err := s.Write(p)
	if err != nil {
		return n, fmt.Errorf("wire: write %s: %w", typ, err)
	}
	return n, nil
}

func read(src Source, p []byte, typ string) error {
	if have := src.Len(); have < len(p) {
		return &InsufficientBytesError{Type: typ, Want: len(p), Have: have}
	}
	if _, err := io.ReadFull(src, p); err != nil {
		return fmt.Errorf("wire: read %s: %w", typ, err)
	}
	return nil
}

func WriteUint8(s Sink, v uint8) (int, error) {
	return write(s, []byte{v}, "uint8")
}

func WriteUint16(s Sink, v uint16) (int, error) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return write(s, b[:], "uint16")
}

func WriteUint32(s Sink, v uint32) (int, error) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return write(s, b[:], "uint32")
}

func WriteUint64(s Sink, v uint64) (int, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return write(s, b[:], "uint64")
}

func WriteInt32(s Sink, v int32) (int, error) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return write(s, b[:], "int32")
}

func WriteInt64(s Sink, v int64) (int, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return write(s, b[:], "int64")
}

func WriteBool(s Sink, v bool) (int, error) {
	b := byte(0)
	if v {
		b = 1
	}
	return write(s, []byte{b}, "bool")
}

func WriteUnit(Sink, Unit) (int, error) {
	return 0, nil
}

// WritePort encodes a port in network byte order, the one big-endian scalar on the wire.
func WritePort(s Sink, port uint16) (int, error) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], port)
	return write(s, b[:], "port")
}

func ReadUint8(src Source) (uint8, error) {
	var b [1]byte
	if err := read(src, b[:], "uint8"); err != nil {
		return 0, err
	}
	return b[0], nil
}

func ReadUint16(src Source) (uint16, error) {
	var b [2]byte
	if err := read(src, b[:], "uint16"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func ReadUint32(src Source) (uint32, error) {
	var b [4]byte
	if err := read(src, b[:], "uint32"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func ReadUint64(src Source) (uint64, error) {
	var b [8]byte
	if err := read(src, b[:], "uint64"); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func ReadInt32(src Source) (int32, error) {
	var b [4]byte
	if err := read(src, b[:], "int32"); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b[:])), nil
}

func ReadInt64(src Source) (int64, error) {
	var b [8]byte
	if err := read(src, b[:], "int64"); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// ReadBool treats any non-zero byte as true.
func ReadBool(src Source) (bool, error) {
	var b [1]byte
	if err := read(src, b[:], "bool"); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

func ReadUnit(Source) (Unit, error) {
	return Unit{}, nil
}

func ReadPort(src Source) (uint16, error) {
	var b [2]byte
	if err := read(src, b[:], "port"); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// ReadBytes reads exactly n raw bytes.
func ReadBytes(src Source, n int, typ string) ([]byte, error) {
	if n < 0 || n > src.Len() {
		return nil, &InsufficientBytesError{Type: typ, Want: n, Have: src.Len()}
	}
	b := make([]byte, n)
	if err := read(src, b, typ); err != nil {
		return nil, err
	}
	return b, nil
}

// WriteBytes writes p verbatim.
func WriteBytes(s Sink, p []byte, typ string) (int, error) {
	return write(s, p, typ)
}
