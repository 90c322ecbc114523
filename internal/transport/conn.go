package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"botd/internal/protocol"
)

// Transport kinds.
const (
	KindSocket = "socket"
	KindUSB    = "usb"
)

// Conn is one client link. Read may return (0, nil) when no data arrived
// within the read deadline. Interrupt unblocks a pending or future Read; it
// is called once when the session ends.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(time.Time) error
	Interrupt() error
	Remote() string
}

// socketConn adapts a net.Conn.
type socketConn struct {
	net.Conn
}

// NewSocketConn wraps an accepted TCP connection.
func NewSocketConn(c net.Conn) Conn {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
		_ = tc.SetLinger(0)
	}
	return socketConn{c}
}

func (c socketConn) Remote() string { return c.RemoteAddr().String() }

func (c socketConn) Interrupt() error { return c.SetReadDeadline(time.Now()) }

func (c socketConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if isTimeout(err) {
		return n, nil
	}
	return n, err
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout() || errors.Is(err, os.ErrDeadlineExceeded)
}

// lengthHeader is the size of the legacy USB length prefix.
const lengthHeader = 4

// partialReadWindow bounds each wait for the rest of a started USB frame.
const partialReadWindow = 250 * time.Millisecond

// ErrReadInterrupted is returned by a USB read cut short by Interrupt.
var ErrReadInterrupted = errors.New("transport: usb read interrupted")

// usbConn adapts a USB gadget endpoint. With legacy framing every request
// is preceded by a 4-byte little-endian length that counts a "\r\n" the
// client never sends, and every reply is preceded by its own length.
type usbConn struct {
	rw       io.ReadWriteCloser
	path     string
	framed   func() bool
	maxFrame int
	pending  []byte

	stop       chan struct{}
	stopOnce   sync.Once
	closeOnce  sync.Once
	closeErr   error
	noDeadline atomic.Bool
}

// NewUSBConn wraps an opened gadget device. framed is consulted on every
// read and write so configure enableBackwardsCompat takes effect at once.
// A length header announcing more than maxFrame payload bytes is a
// transport error; a non-positive maxFrame selects protocol.DefaultMaxFrame.
func NewUSBConn(rw io.ReadWriteCloser, path string, framed func() bool, maxFrame int) Conn {
	if framed == nil {
		framed = func() bool { return false }
	}
	if maxFrame <= 0 {
		maxFrame = protocol.DefaultMaxFrame
	}
	return &usbConn{rw: rw, path: path, framed: framed, maxFrame: maxFrame, stop: make(chan struct{})}
}

func (c *usbConn) Remote() string { return c.path }

func (c *usbConn) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.rw.Close() })
	return c.closeErr
}

// SetReadDeadline forwards to the device when it supports deadlines.
// Devices without deadline support block in Read until data arrives or
// Interrupt closes them.
func (c *usbConn) SetReadDeadline(t time.Time) error {
	d, ok := c.rw.(interface{ SetReadDeadline(time.Time) error })
	if !ok {
		c.noDeadline.Store(true)
		return nil
	}
	if err := d.SetReadDeadline(t); err != nil {
		if errors.Is(err, os.ErrNoDeadline) {
			c.noDeadline.Store(true)
			return nil
		}
		return err
	}
	return nil
}

// Interrupt stops any read in progress. Without deadline support the
// device is closed, which is the only way to unblock it.
func (c *usbConn) Interrupt() error {
	c.stopOnce.Do(func() { close(c.stop) })
	if err := c.SetReadDeadline(time.Now()); err != nil {
		return err
	}
	if c.noDeadline.Load() {
		return c.Close()
	}
	return nil
}

func (c *usbConn) interrupted() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *usbConn) Read(p []byte) (int, error) {
	if len(c.pending) > 0 {
		n := copy(p, c.pending)
		c.pending = c.pending[n:]
		return n, nil
	}
	if c.interrupted() {
		return 0, ErrReadInterrupted
	}
	if !c.framed() {
		n, err := c.rw.Read(p)
		if isTimeout(err) {
			return n, nil
		}
		return n, err
	}

	var hdr [lengthHeader]byte
	got, err := c.readFull(hdr[:], true)
	if err != nil || got == 0 {
		return 0, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if size < 2 {
		return 0, fmt.Errorf("usb length header %d too small", size)
	}
	if uint64(size-2) > uint64(c.maxFrame) {
		return 0, fmt.Errorf("usb length header %d exceeds %d bytes: %w", size, c.maxFrame, protocol.ErrFrameTooLarge)
	}
	msg := make([]byte, size-2, size)
	if _, err := c.readFull(msg, false); err != nil {
		return 0, err
	}
	c.pending = append(msg, '\r', '\n')
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// readFull fills p. With idleOK a deadline expiry before any byte returns
// (0, nil). Once a frame has started each expiry re-arms a bounded deadline
// and the read continues until the frame completes or Interrupt is called.
func (c *usbConn) readFull(p []byte, idleOK bool) (int, error) {
	got := 0
	for got < len(p) {
		n, err := c.rw.Read(p[got:])
		got += n
		switch {
		case err == nil:
		case isTimeout(err):
			if got == 0 && idleOK {
				return 0, nil
			}
			if c.interrupted() {
				return got, ErrReadInterrupted
			}
			if err := c.SetReadDeadline(time.Now().Add(partialReadWindow)); err != nil {
				return got, err
			}
		default:
			if c.interrupted() {
				return got, ErrReadInterrupted
			}
			if errors.Is(err, io.EOF) && got > 0 {
				return got, io.ErrUnexpectedEOF
			}
			return got, err
		}
	}
	return got, nil
}

func (c *usbConn) Write(p []byte) (int, error) {
	if c.framed() {
		var hdr [lengthHeader]byte
		binary.LittleEndian.PutUint32(hdr[:], uint32(len(p)))
		if err := writeFull(c.rw, hdr[:]); err != nil {
			return 0, err
		}
	}
	if err := writeFull(c.rw, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeFull retries short writes until p is sent.
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
