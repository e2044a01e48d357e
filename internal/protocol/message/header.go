package message

import "github.com/danmuck/btcwire/internal/protocol/wire"

const (
	// HeaderSize is magic + command + length + checksum.
	HeaderSize = 4 + CommandSize + 4 + 4
	// MaxPayloadSize caps a declared payload length.
	MaxPayloadSize = 32 * 1024 * 1024
)

// Header is the fixed envelope prefix.
type Header struct {
	Magic    uint32
	Command  Command
	Length   uint32
	Checksum uint32
}

func (h Header) Encode(s wire.Sink) (int, error) {
	if have := s.Remaining(); have >= 0 && have < HeaderSize {
		return 0, &wire.InsufficientCapacityError{Type: "header", Want: HeaderSize, Have: have}
	}
	written, err := wire.WriteUint32(s, h.Magic)
	if err != nil {
		return written, err
	}
	n, err := h.Command.Encode(s)
	written += n
	if err != nil {
		return written, err
	}
	n, err = wire.WriteUint32(s, h.Length)
	written += n
	if err != nil {
		return written, err
	}
	n, err = wire.WriteUint32(s, h.Checksum)
	written += n
	return written, err
}

// DecodeHeader reads the 24-byte envelope prefix.
func DecodeHeader(src wire.Source) (Header, error) {
	if src.Len() < HeaderSize {
		return Header{}, &wire.InsufficientBytesError{Type: "header", Want: HeaderSize, Have: src.Len()}
	}
	magic, err := wire.ReadUint32(src)
	if err != nil {
		return Header{}, err
	}
	cmd, err := DecodeCommand(src)
	if err != nil {
		return Header{}, err
	}
	length, err := wire.ReadUint32(src)
	if err != nil {
		return Header{}, err
	}
	sum, err := wire.ReadUint32(src)
	if err != nil {
		return Header{}, err
	}
	return Header{Magic: magic, Command: cmd, Length: length, Checksum: sum}, nil
}
