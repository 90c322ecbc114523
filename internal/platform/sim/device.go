package sim

import (
	"errors"
	"sync"
	"time"

	"botd/internal/controller"
)

// Device event kinds.
const (
	OpAttach        = "attach"
	OpState         = "state"
	OpTouch         = "touch"
	OpUnsetTouch    = "unset_touch"
	OpKeyboard      = "keyboard"
	OpUnsetKeyboard = "unset_keyboard"
	OpDetach        = "detach"
)

var errNoPad = errors.New("sim: controller not attached")

// DeviceEvent is one recorded driver call.
type DeviceEvent struct {
	Op       string
	At       time.Time
	Kind     controller.DeviceType
	State    controller.State
	Touch    []controller.TouchPoint
	Keyboard controller.KeyboardState
}

// Device records every virtual controller call.
type Device struct {
	mu       sync.Mutex
	attached bool
	kind     controller.DeviceType
	state    controller.State
	events   []DeviceEvent
	// FailAttach makes the next Attach fail.
	FailAttach bool
}

func NewDevice() *Device { return &Device{} }

func (d *Device) record(e DeviceEvent) {
	e.At = time.Now()
	d.events = append(d.events, e)
}

func (d *Device) Attach(kind controller.DeviceType, work []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailAttach {
		d.FailAttach = false
		return errors.New("sim: attach refused")
	}
	if len(work) == 0 {
		return errors.New("sim: empty work buffer")
	}
	d.attached = true
	d.kind = kind
	d.state = controller.State{}
	d.record(DeviceEvent{Op: OpAttach, Kind: kind})
	return nil
}

func (d *Device) SetState(s controller.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return errNoPad
	}
	d.state = s
	d.record(DeviceEvent{Op: OpState, State: s})
	return nil
}

func (d *Device) SetTouch(points []controller.TouchPoint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return errNoPad
	}
	d.record(DeviceEvent{Op: OpTouch, Touch: append([]controller.TouchPoint(nil), points...)})
	return nil
}

func (d *Device) UnsetTouch() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(DeviceEvent{Op: OpUnsetTouch})
	return nil
}

func (d *Device) SetKeyboard(k controller.KeyboardState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return errNoPad
	}
	d.record(DeviceEvent{Op: OpKeyboard, Keyboard: k})
	return nil
}

func (d *Device) UnsetKeyboard() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record(DeviceEvent{Op: OpUnsetKeyboard})
	return nil
}

func (d *Device) Detach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return errNoPad
	}
	d.attached = false
	d.state = controller.State{}
	d.record(DeviceEvent{Op: OpDetach})
	return nil
}

// Attached reports whether a virtual controller exists.
func (d *Device) Attached() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attached
}

// State returns the last applied controller state.
func (d *Device) State() controller.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Events returns a copy of the recorded calls.
func (d *Device) Events() []DeviceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DeviceEvent(nil), d.events...)
}

// States returns the applied states in order.
func (d *Device) States() []controller.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []controller.State
	for _, e := range d.events {
		if e.Op == OpState {
			out = append(out, e.State)
		}
	}
	return out
}

// Count returns how many events of op were recorded.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Op == op {
			n++
		}
	}
	return n
}
