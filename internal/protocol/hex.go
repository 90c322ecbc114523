package protocol

import (
	"encoding/binary"
	"fmt"
)

const hexDigits = "0123456789ABCDEF"

// Hexify renders each byte of buf as two uppercase hex digits. With flip the
// bytes are emitted in reverse order.
func Hexify(buf []byte, flip bool) []byte {
	if len(buf) == 0 {
		return buf
	}
	out := make([]byte, 0, len(buf)*2)
	for i := range buf {
		c := buf[i]
		if flip {
			c = buf[len(buf)-1-i]
		}
		out = append(out, hexDigits[c>>4], hexDigits[c&0x0f])
	}
	return out
}

// HexifyValue renders a 1, 2, 4 or 8 byte little-endian integer as a fixed
// width uppercase hex number. Buffers of any other size are returned
// unchanged with ok false.
func HexifyValue(buf []byte) (out []byte, ok bool) {
	switch len(buf) {
	case 8:
		return []byte(fmt.Sprintf("%016X", binary.LittleEndian.Uint64(buf))), true
	case 4:
		return []byte(fmt.Sprintf("%08X", binary.LittleEndian.Uint32(buf))), true
	case 2:
		return []byte(fmt.Sprintf("%04X", binary.LittleEndian.Uint16(buf))), true
	case 1:
		return []byte(fmt.Sprintf("%02X", buf[0])), true
	}
	return buf, false
}

// Terminate appends a newline to a non-empty reply that lacks one.
func Terminate(reply []byte) []byte {
	if len(reply) == 0 || reply[len(reply)-1] == '\n' {
		return reply
	}
	return append(reply, '\n')
}
