package controller

import (
	"encoding/binary"
	"fmt"
)

// Stick deflection limits.
const (
	StickMax = 0x7FFF
	StickMin = -0x7FFF
)

// State is the full input state of the virtual controller.
type State struct {
	Buttons uint64
	LeftX   int16
	LeftY   int16
	RightX  int16
	RightY  int16
}

// Clear zeroes every field.
func (s *State) Clear() { *s = State{} }

// IsZero reports whether no button is held and both sticks are centered.
func (s State) IsZero() bool { return s == State{} }

// Command is one timed step: hold State for Millis milliseconds. A zero Seq
// means no completion notice is owed.
type Command struct {
	Seq    uint64
	Millis uint64
	State  State
}

// EncodedLen is the size of a Command on the wire in hex characters.
const EncodedLen = 64

const hexLower = "0123456789abcdef"

func (c Command) bytes() [32]byte {
	var b [32]byte
	binary.LittleEndian.PutUint64(b[0:], c.Seq)
	binary.LittleEndian.PutUint64(b[8:], c.Millis)
	binary.LittleEndian.PutUint64(b[16:], c.State.Buttons)
	binary.LittleEndian.PutUint16(b[24:], uint16(c.State.LeftX))
	binary.LittleEndian.PutUint16(b[26:], uint16(c.State.LeftY))
	binary.LittleEndian.PutUint16(b[28:], uint16(c.State.RightX))
	binary.LittleEndian.PutUint16(b[30:], uint16(c.State.RightY))
	return b
}

// EncodeHex renders the command as 64 lowercase hex characters, two per
// byte of its little-endian layout.
func (c Command) EncodeHex() string {
	b := c.bytes()
	out := make([]byte, EncodedLen)
	for i, v := range b {
		out[2*i] = hexLower[v>>4]
		out[2*i+1] = hexLower[v&0x0f]
	}
	return string(out)
}

// DecodeHex parses the 64-character form produced by EncodeHex. Characters
// outside [0-9a-fA-F] decode as zero nibbles.
func DecodeHex(s string) (Command, error) {
	if len(s) != EncodedLen {
		return Command{}, fmt.Errorf("%w: got %d characters, want %d", ErrInvalidHex, len(s), EncodedLen)
	}
	var b [32]byte
	for i := range b {
		b[i] = nibble(s[2*i])<<4 | nibble(s[2*i+1])
	}
	return Command{
		Seq:    binary.LittleEndian.Uint64(b[0:]),
		Millis: binary.LittleEndian.Uint64(b[8:]),
		State: State{
			Buttons: binary.LittleEndian.Uint64(b[16:]),
			LeftX:   int16(binary.LittleEndian.Uint16(b[24:])),
			LeftY:   int16(binary.LittleEndian.Uint16(b[26:])),
			RightX:  int16(binary.LittleEndian.Uint16(b[28:])),
			RightY:  int16(binary.LittleEndian.Uint16(b[30:])),
		},
	}, nil
}

func nibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

// TouchPoint is one finger position on the touch screen.
type TouchPoint struct {
	X, Y     uint32
	Diameter uint32
}

// KeyboardState is one keyboard autopilot frame: a 256-bit key mask and a
// modifier mask.
type KeyboardState struct {
	Keys      [4]uint64
	Modifiers uint64
}

// Keyboard key code range accepted by key commands (A through RightGui).
const (
	KeyFirst = 0x04
	KeyLast  = 0xE7
	// ModNumLock is applied to plain key presses.
	ModNumLock = 1 << 10
)

// SetKey marks key as pressed.
func (k *KeyboardState) SetKey(key uint8) {
	k.Keys[key/64] |= 1 << (key % 64)
}

// separatorKeys is pressed between two identical consecutive frames so the
// second one registers as a new press. It holds an otherwise unused media key.
var separatorKeys = KeyboardState{Keys: [4]uint64{0, 0, 0, 0x0800000000000000}}
