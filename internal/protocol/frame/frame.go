// Package frame turns a byte stream into messages. DecodeNext works over a
// receive buffer that may hold a partial message; ReadMessage and
// WriteMessage work over blocking streams.
package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/danmuck/btcwire/internal/protocol/checksum"
	"github.com/danmuck/btcwire/internal/protocol/message"
	"github.com/danmuck/btcwire/internal/protocol/wire"
)

var (
	ErrChecksumMismatch = errors.New("frame: checksum mismatch")
	ErrMagicMismatch    = errors.New("frame: magic mismatch")
	ErrShortHeader      = errors.New("frame: short header")
)

// ChecksumError reports a payload whose digest disagrees with its header.
type ChecksumError struct {
	Command  message.Command
	Declared uint32
	Actual   uint32
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("frame: %s checksum mismatch: declared=%08x actual=%08x", e.Command, e.Declared, e.Actual)
}

func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// Decoder holds the acceptance rules for inbound envelopes.
type Decoder struct {
	// Magic is the expected network magic. Zero accepts any.
	Magic uint32
	// MaxPayload caps the declared payload length.
	MaxPayload uint32
	// SkipChecksum disables payload digest verification.
	SkipChecksum bool
}

// NewDecoder returns a decoder for magic with checksum verification on and
// the default payload cap.
func NewDecoder(magic uint32) Decoder {
	return Decoder{Magic: magic, MaxPayload: message.MaxPayloadSize}
}

func (d Decoder) maxPayload() uint32 {
	if d.MaxPayload == 0 || d.MaxPayload > message.MaxPayloadSize {
		return message.MaxPayloadSize
	}
	return d.MaxPayload
}

// DecodeNext decodes at most one message from the front of buf.
//
// When buf does not yet hold a whole message it returns ok=false and a nil
// error without consuming anything. Any error is fatal for the stream: the
// buffer is left untouched and the caller should drop the connection. On
// success the message's bytes are removed from buf.
func (d Decoder) DecodeNext(buf *bytes.Buffer) (message.Message, bool, error) {
	if buf.Len() < message.HeaderSize {
		return message.Message{}, false, nil
	}
	raw := buf.Bytes()

	h, err := d.header(raw[:message.HeaderSize])
	if err != nil {
		return message.Message{}, false, err
	}
	total := message.HeaderSize + int(h.Length)
	if len(raw) < total {
		return message.Message{}, false, nil
	}

	msg, err := d.body(h, raw[message.HeaderSize:total])
	if err != nil {
		return message.Message{}, false, err
	}
	if total == buf.Len() {
		buf.Reset()
	} else {
		buf.Next(total)
	}
	return msg, true, nil
}

func (d Decoder) header(raw []byte) (message.Header, error) {
	h, err := message.DecodeHeader(bytes.NewReader(raw))
	if err != nil {
		return message.Header{}, err
	}
	if d.Magic != 0 && h.Magic != d.Magic {
		return message.Header{}, fmt.Errorf("%w: got=%08x want=%08x", ErrMagicMismatch, h.Magic, d.Magic)
	}
	if h.Length > d.maxPayload() {
		return message.Header{}, fmt.Errorf("%w: %s declares %d bytes, max %d", message.ErrPayloadTooLarge, h.Command, h.Length, d.maxPayload())
	}
	return h, nil
}

func (d Decoder) body(h message.Header, body []byte) (message.Message, error) {
	if !d.SkipChecksum {
		if sum := checksum.Sum(body); sum != h.Checksum {
			return message.Message{}, &ChecksumError{Command: h.Command, Declared: h.Checksum, Actual: sum}
		}
	}
	return message.DecodeBody(h, body)
}

// EncodeMessage returns the wire bytes of m.
func EncodeMessage(m message.Message) ([]byte, error) {
	sink := wire.NewBuffer(m.SerializeSize())
	if _, err := m.Encode(sink); err != nil {
		return nil, err
	}
	return sink.Bytes(), nil
}

// WriteMessage encodes m and writes it to w in one call.
func WriteMessage(w io.Writer, m message.Message) (int, error) {
	b, err := EncodeMessage(m)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

// ReadMessage blocks until one whole message has been read from r.
func ReadMessage(r io.Reader, d Decoder) (message.Message, error) {
	var head [message.HeaderSize]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return message.Message{}, ErrShortHeader
		}
		return message.Message{}, err
	}
	h, err := d.header(head[:])
	if err != nil {
		return message.Message{}, err
	}
	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return message.Message{}, fmt.Errorf("frame: read %s body: %w", h.Command, err)
	}
	return d.body(h, body)
}
