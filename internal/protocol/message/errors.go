package message

import (
	"errors"
	"fmt"

	"github.com/danmuck/btcwire/internal/protocol/wire"
)

var (
	ErrUnknownCommand       = errors.New("message: unknown command")
	ErrUnimplementedCommand = errors.New("message: unimplemented command")
	ErrMalformedCommand     = errors.New("message: malformed command token")
	ErrCommandMismatch      = errors.New("message: command does not match payload")
	ErrPayloadTooLarge      = errors.New("message: payload too large")
	ErrPayloadLength        = errors.New("message: payload length mismatch")
	ErrTooManyAddresses     = errors.New("message: too many addresses")
)

// UnknownCommandError carries the raw token of a command outside the known set.
type UnknownCommandError struct {
	Raw [CommandSize]byte
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("message: unknown command %q", wire.Lossy(trimToken(e.Raw[:])))
}

func (e *UnknownCommandError) Is(target error) bool {
	return target == ErrUnknownCommand
}

// UnimplementedCommandError is returned when a command that can be decoded
// has no encoder.
type UnimplementedCommandError struct {
	Command Command
}

func (e *UnimplementedCommandError) Error() string {
	return fmt.Sprintf("message: command %s cannot be encoded", e.Command)
}

func (e *UnimplementedCommandError) Is(target error) bool {
	return target == ErrUnimplementedCommand
}

// PayloadLengthError reports a body whose decoded size disagrees with the
// header length.
type PayloadLengthError struct {
	Command  Command
	Declared uint32
	Consumed int
}

func (e *PayloadLengthError) Error() string {
	return fmt.Sprintf("message: %s payload declared %d bytes, decoded %d", e.Command, e.Declared, e.Consumed)
}

func (e *PayloadLengthError) Is(target error) bool {
	return target == ErrPayloadLength
}
