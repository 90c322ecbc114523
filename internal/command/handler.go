// Package command routes parsed protocol lines to the agent's capabilities.
//
// A Handler composes four narrow capabilities (memory, input, process
// metadata and system services) and dispatches through immutable tables
// built once at package init. Every failure mode of a command, including a
// wrong parameter count, a parse error or an unknown name, yields an empty
// reply; nothing a client sends can end the session from here.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/controller"
	"botd/internal/hostinfo"
	"botd/internal/metrics"
	"botd/internal/protocol"
	"botd/internal/settings"
)

// Memory is the debug memory capability.
type Memory interface {
	Peek(pid, addr, size uint64) ([]byte, error)
	PeekMulti(pid uint64, addrs, sizes []uint64) ([]byte, error)
	Poke(pid, addr uint64, data []byte) error
	FollowPointer(pid, mainBase uint64, main int64, jumps []int64) uint64
}

// Input is the synthetic input capability.
type Input interface {
	Press(controller.Button) error
	Release(controller.Button) error
	Click(controller.Button) error
	SetStick(stick controller.Stick, x, y int64) error
	Touch(points []controller.TouchPoint, hold time.Duration, drag bool) error
	Type(frames []controller.KeyboardState) error
	Detach() error
	SetDeviceType(controller.DeviceType) error
}

// Metadata resolves facts about the foreground application.
type Metadata interface {
	Refresh() hostinfo.Metadata
	Reload() hostinfo.Metadata
}

// GameInfo is the control data of the running title.
type GameInfo struct {
	Name    string
	Author  string
	Version string
	Rating  [4]byte
	Icon    []byte
}

// System groups the remaining platform services.
type System interface {
	BatteryCharge() (uint32, error)
	SetScreen(on bool) error
	Screenshot() ([]byte, error)
	SystemLanguage() (uint32, error)
	ProgramRunning(programID uint64) bool
	Clock() (time.Time, error)
	SetClock(time.Time) error
	SyncClock() error
	GameInfo() (GameInfo, error)
}

// Deps wires a Handler to its capabilities.
type Deps struct {
	Memory   Memory
	Input    Input
	Meta     Metadata
	System   System
	Settings *settings.Settings
	// USB disables the legacy hex encoding, which only applies to sockets.
	USB bool
}

// Handler executes commands for one session.
type Handler struct {
	mem      Memory
	input    Input
	meta     Metadata
	sys      System
	settings *settings.Settings
	usb      bool
	log      zerolog.Logger

	// md is refreshed before every command on the worker goroutine.
	md hostinfo.Metadata
	pa atomic.Bool
}

// New returns a Handler over deps.
func New(deps Deps, log zerolog.Logger) *Handler {
	s := deps.Settings
	if s == nil {
		s = settings.New()
	}
	return &Handler{
		mem:      deps.Memory,
		input:    deps.Input,
		meta:     deps.Meta,
		sys:      deps.System,
		settings: s,
		usb:      deps.USB,
		log:      log,
	}
}

// handlerFunc runs one command. A nil reply with a nil error means the
// command has no output.
type handlerFunc func(h *Handler, params []string) ([]byte, error)

var errArity = errors.New("wrong parameter count")

func arity(params []string, n int) error {
	if len(params) != n {
		return fmt.Errorf("%w: got %d, want %d", errArity, len(params), n)
	}
	return nil
}

func atLeast(params []string, n int) error {
	if len(params) < n {
		return fmt.Errorf("%w: got %d, want at least %d", errArity, len(params), n)
	}
	return nil
}

// HandleCommand runs the named command and returns its reply, or nil when
// there is nothing to send back.
func (h *Handler) HandleCommand(name string, params []string) (reply []byte) {
	if name == "" {
		h.log.Debug().Msg("empty command")
		return nil
	}
	if h.settings.Verbose() {
		h.log.Debug().Str("cmd", name).Strs("params", params).Msg("handle command")
	}

	fn, ok := table[name]
	if !ok {
		h.log.Warn().Str("cmd", name).Msg("command not found")
		metrics.CommandsTotal.WithLabelValues("unknown", metrics.ResultUnknown).Inc()
		return nil
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Str("cmd", name).Interface("panic", r).Msg("command panicked")
			metrics.CommandsTotal.WithLabelValues(name, metrics.ResultPanic).Inc()
			reply = nil
		}
	}()

	if h.meta != nil {
		h.md = h.meta.Refresh()
	}
	out, err := fn(h, params)
	metrics.CommandDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		h.log.Debug().Err(err).Str("cmd", name).Msg("command rejected")
		metrics.CommandsTotal.WithLabelValues(name, metrics.ResultEmpty).Inc()
		return nil
	case len(out) == 0:
		metrics.CommandsTotal.WithLabelValues(name, metrics.ResultEmpty).Inc()
	default:
		metrics.CommandsTotal.WithLabelValues(name, metrics.ResultOK).Inc()
	}
	return out
}

// Known reports whether name is a registered command.
func Known(name string) bool {
	_, ok := table[name]
	return ok
}

// EnabledPA reports whether controller command sequencing was requested.
func (h *Handler) EnabledPA() bool { return h.pa.Load() }

// SetEnabledPA toggles controller command sequencing.
func (h *Handler) SetEnabledPA(on bool) { h.pa.Store(on) }

// Settings returns the shared runtime settings.
func (h *Handler) Settings() *settings.Settings { return h.settings }

// hexReplies reports whether binary replies go out hex encoded.
func (h *Handler) hexReplies() bool { return !h.usb && h.settings.Compat() }

// Ping echoes a numeric token in decimal. Unparsable tokens echo "0".
func Ping(params []string) []byte {
	if len(params) != 1 {
		return nil
	}
	v, err := protocol.ParseUint(params[0])
	if err != nil {
		return []byte("0")
	}
	return strconv.AppendUint(nil, v, 10)
}
