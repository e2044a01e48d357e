package wire

import (
	"bytes"
	"io"
)

// Sink accepts encoded bytes.
type Sink interface {
	io.Writer
	// Remaining reports how many more bytes the sink accepts, or -1 when it grows on demand.
	Remaining() int
}

// Source yields bytes to decode. *bytes.Reader and *bytes.Buffer satisfy it.
type Source interface {
	io.Reader
	// Len reports the number of unread bytes.
	Len() int
}

// Buffer is a fixed-capacity sink.
type Buffer struct {
	buf []byte
}

// NewBuffer returns a sink that accepts at most capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{buf: make([]byte, 0, capacity)}
}

func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Remaining() {
		return 0, &InsufficientCapacityError{Type: "bytes", Want: len(p), Have: b.Remaining()}
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *Buffer) Remaining() int {
	return cap(b.buf) - len(b.buf)
}

// Bytes returns the bytes written so far.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

func (b *Buffer) Len() int {
	return len(b.buf)
}

type growSink struct {
	buf *bytes.Buffer
}

// Grow wraps buf as an unbounded sink.
func Grow(buf *bytes.Buffer) Sink {
	return growSink{buf: buf}
}

func (g growSink) Write(p []byte) (int, error) {
	return g.buf.Write(p)
}

func (g growSink) Remaining() int {
	return -1
}
