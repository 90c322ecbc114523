package controller

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/settings"
)

type deviceEvent struct {
	op    string
	state State
	touch []TouchPoint
	keys  KeyboardState
}

// recordingDevice captures every driver call.
type recordingDevice struct {
	mu         sync.Mutex
	events     []deviceEvent
	attaches   int
	detaches   int
	lastKind   DeviceType
	workLen    int
	failAttach bool
	panicOnSet bool
	detachGate chan struct{}
}

func (d *recordingDevice) Attach(kind DeviceType, work []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAttach {
		return errors.New("attach refused")
	}
	d.attaches++
	d.lastKind = kind
	d.workLen = len(work)
	d.events = append(d.events, deviceEvent{op: "attach"})
	return nil
}

func (d *recordingDevice) SetState(s State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicOnSet {
		panic("driver fault")
	}
	d.events = append(d.events, deviceEvent{op: "state", state: s})
	return nil
}

func (d *recordingDevice) SetTouch(p []TouchPoint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, deviceEvent{op: "touch", touch: append([]TouchPoint(nil), p...)})
	return nil
}

func (d *recordingDevice) UnsetTouch() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, deviceEvent{op: "untouch"})
	return nil
}

func (d *recordingDevice) SetKeyboard(k KeyboardState) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, deviceEvent{op: "key", keys: k})
	return nil
}

func (d *recordingDevice) UnsetKeyboard() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, deviceEvent{op: "unkey"})
	return nil
}

func (d *recordingDevice) Detach() error {
	if d.detachGate != nil {
		<-d.detachGate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detaches++
	d.events = append(d.events, deviceEvent{op: "detach"})
	return nil
}

func (d *recordingDevice) snapshot() []deviceEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]deviceEvent(nil), d.events...)
}

func (d *recordingDevice) states() []State {
	var out []State
	for _, e := range d.snapshot() {
		if e.op == "state" {
			out = append(out, e.state)
		}
	}
	return out
}

func (d *recordingDevice) lastState() (State, bool) {
	st := d.states()
	if len(st) == 0 {
		return State{}, false
	}
	return st[len(st)-1], true
}

func newTestController(t *testing.T) (*Controller, *recordingDevice) {
	t.Helper()
	dev := &recordingDevice{}
	c := New(dev, settings.New(), zerolog.Nop())
	c.sleep = func(time.Duration) {}
	return c, dev
}

// captureNotifier records notices and can simulate a full sender queue.
type captureNotifier struct {
	mu     sync.Mutex
	lines  []string
	full   bool
	onLine func(string)
}

func (n *captureNotifier) Notify(line []byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.full {
		return false
	}
	n.lines = append(n.lines, string(line))
	if n.onLine != nil {
		n.onLine(string(line))
	}
	return true
}

func (n *captureNotifier) got() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// lockedBuffer is a log sink shared with the scheduler goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
