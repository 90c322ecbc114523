package command

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/controller"
	"botd/internal/hostinfo"
	"botd/internal/settings"
)

type fakeMemory struct {
	mem   map[uint64]byte
	pids  []uint64
	pokes int
}

func (m *fakeMemory) Peek(pid, addr, size uint64) ([]byte, error) {
	m.pids = append(m.pids, pid)
	out := make([]byte, size)
	for i := range out {
		out[i] = m.mem[addr+uint64(i)]
	}
	return out, nil
}

func (m *fakeMemory) PeekMulti(pid uint64, addrs, sizes []uint64) ([]byte, error) {
	var out []byte
	for i := range addrs {
		b, _ := m.Peek(pid, addrs[i], sizes[i])
		out = append(out, b...)
	}
	return out, nil
}

func (m *fakeMemory) Poke(pid, addr uint64, data []byte) error {
	m.pokes++
	for i, b := range data {
		m.mem[addr+uint64(i)] = b
	}
	return nil
}

func (m *fakeMemory) FollowPointer(pid, mainBase uint64, main int64, jumps []int64) uint64 {
	read := func(a uint64) uint64 {
		b, _ := m.Peek(pid, a, 8)
		return binary.LittleEndian.Uint64(b)
	}
	ptr := read(mainBase + uint64(main))
	for _, j := range jumps {
		ptr = read(ptr + uint64(j))
		if ptr == 0 {
			break
		}
	}
	return ptr
}

func (m *fakeMemory) putU64(addr, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	for i := range b {
		m.mem[addr+uint64(i)] = b[i]
	}
}

type touchCall struct {
	points []controller.TouchPoint
	hold   time.Duration
	drag   bool
}

type fakeInput struct {
	mu       sync.Mutex
	pressed  []controller.Button
	clicks   []controller.Button
	released []controller.Button
	sticks   [][3]int64
	touches  []touchCall
	typed    [][]controller.KeyboardState
	detaches int
	kind     controller.DeviceType
}

func (f *fakeInput) Press(b controller.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pressed = append(f.pressed, b)
	return nil
}

func (f *fakeInput) Release(b controller.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, b)
	return nil
}

func (f *fakeInput) Click(b controller.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, b)
	return nil
}

func (f *fakeInput) SetStick(s controller.Stick, x, y int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sticks = append(f.sticks, [3]int64{int64(s), x, y})
	return nil
}

func (f *fakeInput) Touch(p []controller.TouchPoint, hold time.Duration, drag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches = append(f.touches, touchCall{points: p, hold: hold, drag: drag})
	return nil
}

func (f *fakeInput) Type(frames []controller.KeyboardState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, frames)
	return nil
}

func (f *fakeInput) Detach() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detaches++
	return nil
}

func (f *fakeInput) SetDeviceType(k controller.DeviceType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detaches++
	f.kind = k
	return nil
}

type fakeMeta struct {
	md        hostinfo.Metadata
	refreshes int
	reloads   int
}

func (m *fakeMeta) Refresh() hostinfo.Metadata { m.refreshes++; return m.md }
func (m *fakeMeta) Reload() hostinfo.Metadata  { m.reloads++; return m.md }

type fakeSystem struct {
	clock     time.Time
	clockErr  error
	setClocks []time.Time
	syncErr   error
	screen    []bool
	game      GameInfo
	panicShot bool
	running   map[uint64]bool
}

func (s *fakeSystem) BatteryCharge() (uint32, error) { return 87, nil }

func (s *fakeSystem) SetScreen(on bool) error {
	s.screen = append(s.screen, on)
	return nil
}

func (s *fakeSystem) Screenshot() ([]byte, error) {
	if s.panicShot {
		panic("capture buffer exhausted")
	}
	return []byte{0xFF, 0xD8, 0xFF}, nil
}

func (s *fakeSystem) SystemLanguage() (uint32, error) { return 1, nil }

func (s *fakeSystem) ProgramRunning(id uint64) bool { return s.running[id] }

func (s *fakeSystem) Clock() (time.Time, error) { return s.clock, s.clockErr }

func (s *fakeSystem) SetClock(t time.Time) error {
	s.setClocks = append(s.setClocks, t)
	s.clock = t
	return nil
}

func (s *fakeSystem) SyncClock() error { return s.syncErr }

func (s *fakeSystem) GameInfo() (GameInfo, error) {
	if s.game.Name == "" {
		return GameInfo{}, errors.New("no application running")
	}
	return s.game, nil
}

type fixture struct {
	h     *Handler
	mem   *fakeMemory
	input *fakeInput
	meta  *fakeMeta
	sys   *fakeSystem
	set   *settings.Settings
}

func newFixture(usb bool) *fixture {
	f := &fixture{
		mem:   &fakeMemory{mem: map[uint64]byte{}},
		input: &fakeInput{},
		meta: &fakeMeta{md: hostinfo.Metadata{
			PID:          42,
			MainBase:     0x8000000,
			HeapBase:     0x40000000,
			TitleID:      0x0100ABCD12340000,
			TitleVersion: 3,
			BuildID:      0x7A,
		}},
		sys: &fakeSystem{
			clock:   time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local),
			running: map[uint64]bool{0x0100ABCD12340000: true},
		},
		set: settings.New(),
	}
	f.h = New(Deps{
		Memory:   f.mem,
		Input:    f.input,
		Meta:     f.meta,
		System:   f.sys,
		Settings: f.set,
		USB:      usb,
	}, zerolog.Nop())
	return f
}

func (f *fixture) run(line ...string) []byte {
	return f.h.HandleCommand(line[0], line[1:])
}
