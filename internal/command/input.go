package command

import (
	"fmt"

	"botd/internal/controller"
	"botd/internal/protocol"
)

func buttonCommand(op func(controller.Button) error, params []string) ([]byte, error) {
	if err := arity(params, 1); err != nil {
		return nil, err
	}
	btn, err := controller.ParseButton(params[0])
	if err != nil {
		return nil, err
	}
	return nil, op(btn)
}

func (h *Handler) click(p []string) ([]byte, error)   { return buttonCommand(h.input.Click, p) }
func (h *Handler) press(p []string) ([]byte, error)   { return buttonCommand(h.input.Press, p) }
func (h *Handler) release(p []string) ([]byte, error) { return buttonCommand(h.input.Release, p) }

func (h *Handler) setStick(p []string) ([]byte, error) {
	if err := arity(p, 3); err != nil {
		return nil, err
	}
	stick, err := controller.ParseStick(p[0])
	if err != nil {
		return nil, err
	}
	x, err := protocol.ParseInt(p[1])
	if err != nil {
		return nil, err
	}
	y, err := protocol.ParseInt(p[2])
	if err != nil {
		return nil, err
	}
	return nil, h.input.SetStick(stick, x, y)
}

// touchPoints reads (x y) pairs. A trailing odd value is ignored. The
// diameter is left zero so the controller applies the configured one.
func touchPoints(p []string) ([]controller.TouchPoint, error) {
	points := make([]controller.TouchPoint, len(p)/2)
	for i := range points {
		x, err := protocol.ParseUint(p[2*i])
		if err != nil {
			return nil, err
		}
		y, err := protocol.ParseUint(p[2*i+1])
		if err != nil {
			return nil, err
		}
		points[i] = controller.TouchPoint{X: uint32(x), Y: uint32(y)}
	}
	return points, nil
}

func (h *Handler) touch(p []string) ([]byte, error) {
	if err := atLeast(p, 2); err != nil {
		return nil, err
	}
	points, err := touchPoints(p)
	if err != nil {
		return nil, err
	}
	return nil, h.input.Touch(points, h.settings.PollRate(), false)
}

func (h *Handler) touchHold(p []string) ([]byte, error) {
	if err := atLeast(p, 3); err != nil {
		return nil, err
	}
	points, err := touchPoints(p[:2])
	if err != nil {
		return nil, err
	}
	ms, err := protocol.ParseUint(p[2])
	if err != nil {
		return nil, err
	}
	return nil, h.input.Touch(points, millis(ms), false)
}

func (h *Handler) touchDraw(p []string) ([]byte, error) {
	if err := atLeast(p, 2); err != nil {
		return nil, err
	}
	points, err := touchPoints(p)
	if err != nil {
		return nil, err
	}
	return nil, h.input.Touch(points, 2*h.settings.PollRate(), true)
}

func parseKey(s string) (uint8, bool, error) {
	v, err := protocol.ParseUint(s)
	if err != nil {
		return 0, false, err
	}
	return uint8(v), v >= controller.KeyFirst && v <= controller.KeyLast, nil
}

// key types each key as its own frame with num lock held. Out of range key
// codes leave an empty frame in their slot.
func (h *Handler) key(p []string) ([]byte, error) {
	if err := atLeast(p, 1); err != nil {
		return nil, err
	}
	frames := make([]controller.KeyboardState, len(p))
	for i, tok := range p {
		k, ok, err := parseKey(tok)
		if err != nil {
			return nil, err
		}
		if ok {
			frames[i].SetKey(k)
			frames[i].Modifiers = controller.ModNumLock
		}
	}
	return nil, h.input.Type(frames)
}

// keyMod types (key modifier) pairs; the modifier is a bit index.
func (h *Handler) keyMod(p []string) ([]byte, error) {
	if err := atLeast(p, 2); err != nil {
		return nil, err
	}
	frames := make([]controller.KeyboardState, len(p)/2)
	for i := range frames {
		k, ok, err := parseKey(p[2*i])
		if err != nil {
			return nil, err
		}
		mod, err := protocol.ParseUint(p[2*i+1])
		if err != nil {
			return nil, err
		}
		if mod > 63 {
			return nil, fmt.Errorf("modifier bit %d out of range", mod)
		}
		if ok {
			frames[i].SetKey(k)
			frames[i].Modifiers = 1 << mod
		}
	}
	return nil, h.input.Type(frames)
}

// keyMulti presses all keys together in one frame.
func (h *Handler) keyMulti(p []string) ([]byte, error) {
	if err := atLeast(p, 1); err != nil {
		return nil, err
	}
	var frame controller.KeyboardState
	for _, tok := range p {
		k, ok, err := parseKey(tok)
		if err != nil {
			return nil, err
		}
		if ok {
			frame.SetKey(k)
		}
	}
	return nil, h.input.Type([]controller.KeyboardState{frame})
}

func (h *Handler) detachController([]string) ([]byte, error) {
	return nil, h.input.Detach()
}
