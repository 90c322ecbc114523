package sim

import (
	"encoding/binary"
	"errors"
	"sync"
)

const pageSize = 0x1000

var (
	errAttached    = errors.New("sim: debugger already attached")
	errNotAttached = errors.New("sim: debugger not attached")
)

// Memory is a sparse, page-granular address space shared by every process.
// Unwritten memory reads as zero.
type Memory struct {
	mu       sync.Mutex
	pages    map[uint64]*[pageSize]byte
	attached bool
	pid      uint64
	attaches int
}

func NewMemory() *Memory {
	return &Memory{pages: map[uint64]*[pageSize]byte{}}
}

func (m *Memory) Attach(pid uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attached {
		return errAttached
	}
	m.attached = true
	m.pid = pid
	m.attaches++
	return nil
}

func (m *Memory) Detach() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return errNotAttached
	}
	m.attached = false
	return nil
}

func (m *Memory) Read(addr uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return errNotAttached
	}
	m.copyOut(addr, buf)
	return nil
}

func (m *Memory) Write(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.attached {
		return errNotAttached
	}
	m.copyIn(addr, data)
	return nil
}

// Store writes data without a debug session, for test setup.
func (m *Memory) Store(addr uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.copyIn(addr, data)
}

// StoreU64 writes a little-endian pointer.
func (m *Memory) StoreU64(addr, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.Store(addr, b[:])
}

// Load reads memory without a debug session.
func (m *Memory) Load(addr uint64, n int) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, n)
	m.copyOut(addr, out)
	return out
}

// Attaches counts debug sessions opened so far.
func (m *Memory) Attaches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attaches
}

func (m *Memory) copyOut(addr uint64, buf []byte) {
	for len(buf) > 0 {
		base, off := addr&^(pageSize-1), addr&(pageSize-1)
		n := min(uint64(len(buf)), pageSize-off)
		if p, ok := m.pages[base]; ok {
			copy(buf[:n], p[off:off+n])
		} else {
			clear(buf[:n])
		}
		buf = buf[n:]
		addr += n
	}
}

func (m *Memory) copyIn(addr uint64, data []byte) {
	for len(data) > 0 {
		base, off := addr&^(pageSize-1), addr&(pageSize-1)
		n := min(uint64(len(data)), pageSize-off)
		p, ok := m.pages[base]
		if !ok {
			p = new([pageSize]byte)
			m.pages[base] = p
		}
		copy(p[off:off+n], data[:n])
		data = data[n:]
		addr += n
	}
}
