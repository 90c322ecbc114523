// Package memory reads and writes the memory of the foreground application
// through the platform debug service.
package memory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ChunkSize bounds a single platform read.
const ChunkSize = 344 * 32 * 2

// MaxPeek bounds the total size of one peek request.
const MaxPeek = 32 << 20

// ErrTooLarge rejects reads above MaxPeek.
var ErrTooLarge = errors.New("memory: read size exceeds limit")

// Debugger is the platform debug memory service. One Attach/Detach pair
// brackets every read or write.
type Debugger interface {
	Attach(pid uint64) error
	Read(addr uint64, buf []byte) error
	Write(addr uint64, data []byte) error
	Detach() error
}

// Vision serializes memory access for one session.
type Vision struct {
	dbg Debugger
	log zerolog.Logger
	mu  sync.Mutex
}

// New returns a Vision over dbg.
func New(dbg Debugger, log zerolog.Logger) *Vision {
	return &Vision{dbg: dbg, log: log}
}

func (v *Vision) read(pid, addr uint64, buf []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.dbg.Attach(pid); err != nil {
		v.log.Error().Err(err).Uint64("pid", pid).Msg("debug attach")
		return
	}
	defer v.detach(pid)
	if err := v.dbg.Read(addr, buf); err != nil {
		v.log.Error().Err(err).Uint64("addr", addr).Int("size", len(buf)).Msg("read memory")
	}
}

func (v *Vision) detach(pid uint64) {
	if err := v.dbg.Detach(); err != nil {
		v.log.Warn().Err(err).Uint64("pid", pid).Msg("debug detach")
	}
}

// Peek reads size bytes at addr in chunks of at most ChunkSize. Failed
// chunks are left zeroed.
func (v *Vision) Peek(pid, addr, size uint64) ([]byte, error) {
	if size > MaxPeek {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, size)
	}
	buf := make([]byte, size)
	for off := uint64(0); off < size; off += ChunkSize {
		n := size - off
		if n > ChunkSize {
			n = ChunkSize
		}
		v.read(pid, addr+off, buf[off:off+n])
	}
	return buf, nil
}

// PeekMulti reads each (addr, size) region and concatenates the results.
func (v *Vision) PeekMulti(pid uint64, addrs, sizes []uint64) ([]byte, error) {
	if len(addrs) != len(sizes) {
		return nil, fmt.Errorf("memory: %d addresses for %d sizes", len(addrs), len(sizes))
	}
	var total uint64
	for _, s := range sizes {
		total += s
		if total > MaxPeek {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, total)
		}
	}
	out := make([]byte, 0, total)
	for i := range addrs {
		part, err := v.Peek(pid, addrs[i], sizes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

// Poke writes data at addr.
func (v *Vision) Poke(pid, addr uint64, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.dbg.Attach(pid); err != nil {
		v.log.Error().Err(err).Uint64("pid", pid).Msg("debug attach")
		return err
	}
	defer v.detach(pid)
	if err := v.dbg.Write(addr, data); err != nil {
		v.log.Error().Err(err).Uint64("addr", addr).Int("size", len(data)).Msg("write memory")
		return err
	}
	return nil
}

func (v *Vision) readU64(pid, addr uint64) uint64 {
	var b [8]byte
	v.read(pid, addr, b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// FollowPointer dereferences mainBase+main, then adds each jump to the value
// read and dereferences again. The walk stops early at a null pointer.
func (v *Vision) FollowPointer(pid, mainBase uint64, main int64, jumps []int64) uint64 {
	ptr := v.readU64(pid, mainBase+uint64(main))
	for _, j := range jumps {
		ptr = v.readU64(pid, ptr+uint64(j))
		if ptr == 0 {
			v.log.Debug().Int64("jump", j).Msg("pointer chain hit null")
			break
		}
	}
	return ptr
}
