// Package stdio routes the standard output streams to the printf trace lane.
package stdio

import (
	"io"
	"syscall"

	"github.com/swotap/swotap/internal/trace"
	"github.com/swotap/swotap/pkg/errors"
)

// Stream is a file descriptor number as the C library would pass it.
type Stream int

const (
	Stdout Stream = 1
	Stderr Stream = 2
)

// ByteWriter is the part of the trace sink the bridge needs.
type ByteWriter interface {
	WriteU8(lane trace.Lane, v uint8) error
}

// Bridge translates stdout and stderr writes into bytes on the printf lane,
// inserting a carriage return before every line feed.
type Bridge struct {
	sink ByteWriter
}

// NewBridge returns a bridge writing through sink.
func NewBridge(sink ByteWriter) *Bridge {
	return &Bridge{sink: sink}
}

// Write emits p on the printf lane and reports len(p) as written.
// Streams other than Stdout and Stderr fail with EIO and emit nothing.
// A byte the trace policy drops is not an error here.
func (b *Bridge) Write(stream Stream, p []byte) (int, error) {
	if stream != Stdout && stream != Stderr {
		return 0, errors.Newf(errors.ErrCodeIO, "unsupported stream %d", int(stream)).
			WithComponent("stdio").
			WithOperation("write").
			WithCause(syscall.EIO)
	}

	for _, c := range p {
		if c == '\n' {
			b.put('\r')
		}
		b.put(c)
	}
	return len(p), nil
}

func (b *Bridge) put(c byte) {
	// Only drops can fail here; the lane is always in range.
	_ = b.sink.WriteU8(trace.LanePrintf, c)
}

// Stdout returns an io.Writer for stream 1.
func (b *Bridge) Stdout() io.Writer { return streamWriter{b, Stdout} }

// Stderr returns an io.Writer for stream 2.
func (b *Bridge) Stderr() io.Writer { return streamWriter{b, Stderr} }

// Stream returns an io.Writer for an arbitrary stream number.
func (b *Bridge) Stream(s Stream) io.Writer { return streamWriter{b, s} }

type streamWriter struct {
	b *Bridge
	s Stream
}

func (w streamWriter) Write(p []byte) (int, error) {
	return w.b.Write(w.s, p)
}
