package protocol

import (
	"bytes"
	"errors"
)

// Delimiter terminates every request and text reply.
const Delimiter = "\r\n"

// DefaultMaxFrame bounds how many bytes may accumulate without a delimiter.
const DefaultMaxFrame = 1 << 20

// ErrFrameTooLarge reports that the accumulator overflowed before a delimiter
// arrived. The partial data is discarded.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// Framer accumulates raw transport reads and yields complete lines. Data after
// the last delimiter is retained for the next Feed. A Framer is owned by one
// receive loop and is not safe for concurrent use.
type Framer struct {
	buf []byte
	max int
}

// NewFramer returns a Framer that discards its accumulator once it grows past
// max bytes without a delimiter. A non-positive max selects DefaultMaxFrame.
func NewFramer(max int) *Framer {
	if max <= 0 {
		max = DefaultMaxFrame
	}
	return &Framer{max: max}
}

// Feed appends p to the accumulator.
func (f *Framer) Feed(p []byte) error {
	f.buf = append(f.buf, p...)
	if len(f.buf) > f.max && bytes.LastIndex(f.buf, []byte(Delimiter)) < 0 {
		f.Reset()
		return ErrFrameTooLarge
	}
	return nil
}

// Next returns the next complete line without its delimiter.
func (f *Framer) Next() (string, bool) {
	i := bytes.Index(f.buf, []byte(Delimiter))
	if i < 0 {
		return "", false
	}
	line := string(f.buf[:i])
	f.buf = f.buf[i+len(Delimiter):]
	if len(f.buf) == 0 {
		f.buf = f.buf[:0:0]
	}
	return line, true
}

// Buffered reports how many bytes are waiting for a delimiter.
func (f *Framer) Buffered() int { return len(f.buf) }

// Reset drops any partial line.
func (f *Framer) Reset() { f.buf = nil }
