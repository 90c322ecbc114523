package controller

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/settings"
)

// Controller owns the virtual device for one session. Every device call,
// whether from a command handler or the Scheduler, goes through the same
// mutex and the idempotent attach guard.
type Controller struct {
	dev      Device
	settings *settings.Settings
	log      zerolog.Logger
	sleep    func(time.Duration)

	mu       sync.Mutex
	attached bool
	work     *arena
	hid      State
}

// New returns a detached Controller.
func New(dev Device, s *settings.Settings, log zerolog.Logger) *Controller {
	return &Controller{
		dev:      dev,
		settings: s,
		log:      log,
		sleep:    time.Sleep,
	}
}

// ensureAttached attaches the device on first use. Callers hold c.mu.
func (c *Controller) ensureAttached() error {
	if c.attached {
		return nil
	}
	if c.work == nil {
		c.work = newArena(arenaSize, arenaAlign)
	}
	kind := DeviceType(c.settings.DeviceType())
	if err := c.dev.Attach(kind, c.work.bytes()); err != nil {
		c.work = nil
		c.log.Error().Err(err).Uint32("device_type", uint32(kind)).Msg("attach virtual controller")
		return err
	}
	c.hid = State{}
	c.attached = true
	c.log.Debug().Uint32("device_type", uint32(kind)).Msg("virtual controller attached")
	return nil
}

// Attached reports whether the virtual device currently exists.
func (c *Controller) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Current returns the last state sent to the device.
func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hid
}

func (c *Controller) update(op string, fn func(*State)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureAttached(); err != nil {
		return err
	}
	fn(&c.hid)
	if err := c.dev.SetState(c.hid); err != nil {
		c.log.Error().Err(err).Str("op", op).Msg("set controller state")
		return err
	}
	return nil
}

// Apply replaces the whole controller state.
func (c *Controller) Apply(st State) error {
	return c.update("apply", func(s *State) { *s = st })
}

// Press holds btn in addition to any buttons already held.
func (c *Controller) Press(btn Button) error {
	return c.update("press", func(s *State) { s.Buttons |= uint64(btn) })
}

// Release lets go of btn.
func (c *Controller) Release(btn Button) error {
	return c.update("release", func(s *State) { s.Buttons &^= uint64(btn) })
}

// Click presses btn, waits the configured click time and releases it.
func (c *Controller) Click(btn Button) error {
	if err := c.Press(btn); err != nil {
		return err
	}
	c.sleep(c.settings.ButtonClickSleep())
	return c.Release(btn)
}

// SetStick moves one stick. Values are clamped to the deflection range.
func (c *Controller) SetStick(stick Stick, x, y int64) error {
	dx, dy := ClampStick(x), ClampStick(y)
	return c.update("stick", func(s *State) {
		if stick == StickLeft {
			s.LeftX, s.LeftY = dx, dy
			return
		}
		s.RightX, s.RightY = dx, dy
	})
}

func (c *Controller) device(op string, fn func(Device) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureAttached(); err != nil {
		return err
	}
	if err := fn(c.dev); err != nil {
		c.log.Error().Err(err).Str("op", op).Msg("virtual device call")
		return err
	}
	return nil
}

// Touch presents each point in turn for hold. Without drag the finger lifts
// between points; with drag it stays down until the last point.
func (c *Controller) Touch(points []TouchPoint, hold time.Duration, drag bool) error {
	diameter := c.settings.FingerDiameter()
	for i := range points {
		if points[i].Diameter == 0 {
			points[i].Diameter = diameter
		}
		p := points[i : i+1]
		if err := c.device("touch", func(d Device) error { return d.SetTouch(p) }); err != nil {
			return err
		}
		c.sleep(hold)
		if !drag {
			if err := c.device("touch", func(d Device) error { return d.SetTouch(nil) }); err != nil {
				return err
			}
			c.sleep(c.settings.PollRate())
		}
	}
	if drag {
		if err := c.device("touch", func(d Device) error { return d.SetTouch(nil) }); err != nil {
			return err
		}
		c.sleep(c.settings.PollRate())
	}
	return c.device("touch", func(d Device) error { return d.UnsetTouch() })
}

// Type plays keyboard frames in order. Identical consecutive frames are
// separated by a dummy frame so each one registers as a fresh press.
func (c *Controller) Type(frames []KeyboardState) error {
	for i, f := range frames {
		if err := c.device("key", func(d Device) error { return d.SetKeyboard(f) }); err != nil {
			return err
		}
		c.sleep(c.settings.KeySleep())
		if i == len(frames)-1 || frames[i+1] == f {
			if err := c.device("key", func(d Device) error { return d.SetKeyboard(separatorKeys) }); err != nil {
				return err
			}
			c.sleep(c.settings.PollRate())
		}
	}
	return c.device("key", func(d Device) error { return d.UnsetKeyboard() })
}

// Detach removes the virtual device and releases the work arena. It is a
// no-op when nothing is attached.
func (c *Controller) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.attached {
		return nil
	}
	err := c.dev.Detach()
	if err != nil {
		c.log.Error().Err(err).Msg("detach virtual controller")
	}
	c.attached = false
	c.work = nil
	c.hid = State{}
	c.log.Debug().Msg("virtual controller detached")
	return err
}

// SetDeviceType detaches the device and selects the model used on the next
// attach.
func (c *Controller) SetDeviceType(kind DeviceType) error {
	err := c.Detach()
	c.settings.SetDeviceType(uint32(kind))
	return err
}
