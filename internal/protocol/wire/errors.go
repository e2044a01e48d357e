package wire

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBytes    = errors.New("wire: insufficient bytes")
	ErrInsufficientCapacity = errors.New("wire: insufficient capacity")
	ErrNonCanonicalVarInt   = errors.New("wire: non-canonical varint")
	ErrVarStringTooLong     = errors.New("wire: var string too long")
)

// InsufficientBytesError reports a decode that ran past the end of its source.
type InsufficientBytesError struct {
	Type string
	Want int
	Have int
}

func (e *InsufficientBytesError) Error() string {
	return fmt.Sprintf("wire: not enough bytes to decode %s: want=%d have=%d", e.Type, e.Want, e.Have)
}

func (e *InsufficientBytesError) Is(target error) bool {
	return target == ErrInsufficientBytes
}

// InsufficientCapacityError reports an encode into a sink that is too small.
type InsufficientCapacityError struct {
	Type string
	Want int
	Have int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("wire: not enough space to encode %s: want=%d have=%d", e.Type, e.Want, e.Have)
}

func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}
