package frame

import (
	"bytes"
	"errors"
	"io"

	"github.com/danmuck/btcwire/internal/protocol/message"
)

const defaultChunk = 4096

// Stream pairs a reader with a receive buffer and feeds the buffer to a
// Decoder until a message is available. It is not safe for concurrent use.
type Stream struct {
	r     io.Reader
	dec   Decoder
	buf   bytes.Buffer
	chunk []byte
	err   error
}

func NewStream(r io.Reader, dec Decoder) *Stream {
	return &Stream{r: r, dec: dec, chunk: make([]byte, defaultChunk)}
}

// Next returns the next message. A clean EOF between messages is io.EOF;
// EOF in the middle of a message is io.ErrUnexpectedEOF.
func (s *Stream) Next() (message.Message, error) {
	for {
		msg, ok, err := s.dec.DecodeNext(&s.buf)
		if err != nil {
			return message.Message{}, err
		}
		if ok {
			return msg, nil
		}
		if s.err != nil {
			if errors.Is(s.err, io.EOF) && s.buf.Len() > 0 {
				return message.Message{}, io.ErrUnexpectedEOF
			}
			return message.Message{}, s.err
		}
		n, err := s.r.Read(s.chunk)
		if n > 0 {
			s.buf.Write(s.chunk[:n])
		}
		if err != nil {
			s.err = err
		}
	}
}

// Buffered reports how many received bytes are waiting for the rest of a
// message.
func (s *Stream) Buffered() int {
	return s.buf.Len()
}
