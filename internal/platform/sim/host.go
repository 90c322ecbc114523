// Package sim is an in-process stand-in for the console services the agent
// drives: debug memory, the virtual controller, process metadata and the
// system services. botd runs on it with --platform sim, and the tests use
// it to observe what a session did.
package sim

import (
	"sync"

	"github.com/rs/zerolog"

	"botd/internal/command"
	"botd/internal/controller"
	"botd/internal/hostinfo"
	"botd/internal/memory"
)

// Default title loaded by NewHost.
const (
	DefaultPID          = 0x51
	DefaultTitleID      = 0x0100ABCD00000000
	DefaultMainBase     = 0x0000000008004000
	DefaultHeapBase     = 0x0000000031000000
	DefaultTitleVersion = 2
	DefaultBuildID      = 0x5A
)

// Host bundles the simulated services.
type Host struct {
	log zerolog.Logger

	Mem    *Memory
	Pad    *Device
	Sys    *System
	mu     sync.Mutex
	titles map[uint64]Title
	active uint64
}

// Title is a simulated application.
type Title struct {
	Meta hostinfo.Metadata
	Game command.GameInfo
}

// NewHost returns a host running one default title.
func NewHost(log zerolog.Logger) *Host {
	h := &Host{
		log:    log.With().Str("component", "sim").Logger(),
		Mem:    NewMemory(),
		Pad:    NewDevice(),
		titles: map[uint64]Title{},
	}
	h.Sys = newSystem(h)
	h.Launch(Title{
		Meta: hostinfo.Metadata{
			PID:          DefaultPID,
			MainBase:     DefaultMainBase,
			HeapBase:     DefaultHeapBase,
			TitleID:      DefaultTitleID,
			TitleVersion: DefaultTitleVersion,
			BuildID:      DefaultBuildID,
		},
		Game: command.GameInfo{
			Name:    "Sim Adventure",
			Author:  "botd",
			Version: "1.0.2",
			Rating:  [4]byte{12, 0xFF, 0xFF, 0xFF},
			Icon:    []byte{0xFF, 0xD8, 0xFF, 0xE0},
		},
	})
	return h
}

// Launch makes t the foreground application.
func (h *Host) Launch(t Title) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.titles[t.Meta.PID] = t
	h.active = t.Meta.PID
	h.log.Debug().Uint64("pid", t.Meta.PID).Msg("title launched")
}

// Exit closes the foreground application.
func (h *Host) Exit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.titles, h.active)
	h.active = 0
}

func (h *Host) foreground() (Title, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.titles[h.active]
	return t, ok
}

func (h *Host) Device() controller.Device   { return h.Pad }
func (h *Host) Debugger() memory.Debugger   { return h.Mem }
func (h *Host) Resolver() hostinfo.Resolver { return resolver{h} }
func (h *Host) System() command.System      { return h.Sys }

// FlashLED records a notification LED pattern.
func (h *Host) FlashLED() error {
	h.Sys.mu.Lock()
	h.Sys.flashes++
	h.Sys.mu.Unlock()
	return nil
}
