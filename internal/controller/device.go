package controller

import "unsafe"

// DeviceType identifies the emulated controller model.
type DeviceType uint32

// Device is the virtual input device driver. Implementations need not be
// safe for concurrent use; Controller serializes every call.
type Device interface {
	// Attach creates the virtual controller using work as its driver buffer.
	Attach(kind DeviceType, work []byte) error
	SetState(State) error
	// SetTouch presents the given fingers; an empty slice lifts all fingers.
	SetTouch(points []TouchPoint) error
	UnsetTouch() error
	SetKeyboard(KeyboardState) error
	UnsetKeyboard() error
	// Detach removes the virtual controller and releases the work buffer.
	Detach() error
}

const (
	arenaSize  = 0x1000
	arenaAlign = 0x1000
)

// arena is a page-aligned driver work buffer. It is owned by the Controller
// from attach until detach.
type arena struct {
	raw []byte
	buf []byte
}

func newArena(size, align int) *arena {
	raw := make([]byte, size+align)
	addr := uintptr(unsafe.Pointer(&raw[0]))
	off := int((uintptr(align) - addr%uintptr(align)) % uintptr(align))
	return &arena{raw: raw, buf: raw[off : off+size : off+size]}
}

func (a *arena) bytes() []byte { return a.buf }

func (a *arena) aligned(align int) bool {
	return uintptr(unsafe.Pointer(&a.buf[0]))%uintptr(align) == 0
}
