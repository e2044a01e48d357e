package message

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/danmuck/btcwire/internal/protocol/checksum"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

// Message is one envelope. Length and checksum are derived from the payload
// bytes and cannot be set independently.
//
// Messages are values. Compare them with reflect.DeepEqual: an Addr payload
// holds a slice, so == on such a Message panics.
type Message struct {
	magic    uint32
	command  Command
	length   uint32
	checksum uint32
	payload  Payload
}

// New serializes payload once to derive length and checksum. cmd must match
// the payload variant.
func New(magic uint32, cmd Command, payload Payload) (Message, error) {
	if payload == nil {
		return Message{}, fmt.Errorf("%w: nil payload for %s", ErrCommandMismatch, cmd)
	}
	if payload.Command() != cmd {
		return Message{}, fmt.Errorf("%w: command=%s payload=%s", ErrCommandMismatch, cmd, payload.Command())
	}
	body, err := encodePayload(payload)
	if err != nil {
		return Message{}, err
	}
	if len(body) > MaxPayloadSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(body))
	}
	return Message{
		magic:    magic,
		command:  cmd,
		length:   uint32(len(body)),
		checksum: checksum.Sum(body),
		payload:  payload,
	}, nil
}

func (m Message) Magic() uint32    { return m.magic }
func (m Message) Command() Command { return m.command }
func (m Message) Length() uint32   { return m.length }
func (m Message) Checksum() uint32 { return m.checksum }
func (m Message) Payload() Payload { return m.payload }

// Header returns the envelope prefix for m.
func (m Message) Header() Header {
	return Header{Magic: m.magic, Command: m.command, Length: m.length, Checksum: m.checksum}
}

// SerializeSize is the full encoded width of m.
func (m Message) SerializeSize() int {
	return HeaderSize + int(m.length)
}

// Encode writes magic, command, length, checksum and payload, in that order.
func (m Message) Encode(s wire.Sink) (int, error) {
	if m.payload == nil {
		return 0, fmt.Errorf("%w: message has no payload", ErrCommandMismatch)
	}
	if have := s.Remaining(); have >= 0 && have < m.SerializeSize() {
		return 0, &wire.InsufficientCapacityError{Type: "message", Want: m.SerializeSize(), Have: have}
	}
	written, err := m.Header().Encode(s)
	if err != nil {
		return written, err
	}
	n, err := m.payload.Encode(s)
	written += n
	return written, err
}

// Decode reads a header and its payload from src. It applies no framing
// rules beyond the size cap and does not verify the checksum.
func Decode(src wire.Source) (Message, error) {
	h, err := DecodeHeader(src)
	if err != nil {
		return Message{}, err
	}
	if h.Length > MaxPayloadSize {
		return Message{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, h.Length)
	}
	body, err := wire.ReadBytes(src, int(h.Length), h.Command.String()+" payload")
	if err != nil {
		return Message{}, err
	}
	return DecodeBody(h, body)
}

// DecodeBody decodes exactly body as the payload named by h. A body that runs
// out early or has bytes left over is ErrPayloadLength.
func DecodeBody(h Header, body []byte) (Message, error) {
	if uint32(len(body)) != h.Length {
		return Message{}, &PayloadLengthError{Command: h.Command, Declared: h.Length, Consumed: len(body)}
	}
	src := bytes.NewReader(body)
	payload, err := DecodePayload(h.Command, src)
	if err != nil {
		if errors.Is(err, wire.ErrInsufficientBytes) {
			return Message{}, fmt.Errorf("%w: %s body of %d bytes ends early: %v", ErrPayloadLength, h.Command, h.Length, err)
		}
		return Message{}, err
	}
	if src.Len() != 0 {
		return Message{}, &PayloadLengthError{Command: h.Command, Declared: h.Length, Consumed: len(body) - src.Len()}
	}
	return Message{
		magic:    h.Magic,
		command:  h.Command,
		length:   h.Length,
		checksum: h.Checksum,
		payload:  payload,
	}, nil
}

func encodePayload(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := p.Encode(wire.Grow(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
