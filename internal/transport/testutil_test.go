package transport

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/command"
	"botd/internal/controller"
	"botd/internal/hostinfo"
	"botd/internal/memory"
	"botd/internal/platform/sim"
	"botd/internal/settings"
)

type harness struct {
	sess   *Session
	client net.Conn
	reader *bufio.Reader
	host   *sim.Host
	set    *settings.Settings
	pub    *MemoryPublisher
	result chan error
}

func startSession(t *testing.T) *harness {
	t.Helper()
	srv, cli := net.Pipe()
	return runSession(t, NewSocketConn(srv), KindSocket, cli)
}

// startUSBSession runs a session over a framed USB link backed by net.Pipe.
func startUSBSession(t *testing.T) *harness {
	t.Helper()
	srv, cli := net.Pipe()
	return runSession(t, NewUSBConn(srv, "pipe", func() bool { return true }, 0), KindUSB, cli)
}

// runSession starts a session on conn. client may be nil when the test
// drives the device another way.
func runSession(t *testing.T, conn Conn, kind string, client net.Conn) *harness {
	t.Helper()
	host := sim.NewHost(zerolog.Nop())
	set := settings.New()
	log := zerolog.Nop()
	ctrl := controller.New(host.Device(), set, log)
	sched := controller.NewScheduler(ctrl, controller.SchedulerOptions{}, log)
	h := command.New(command.Deps{
		Memory:   memory.New(host.Debugger(), log),
		Input:    ctrl,
		Meta:     hostinfo.NewCache(host.Resolver(), log),
		System:   host.System(),
		Settings: set,
	}, log)
	pub := NewMemoryPublisher()
	sess := NewSession(conn, h, ctrl, sched, SessionConfig{
		Kind:        kind,
		ReadTimeout: 20 * time.Millisecond,
	}, pub, log)
	hs := &harness{
		sess:   sess,
		client: client,
		host:   host,
		set:    set,
		pub:    pub,
		result: make(chan error, 1),
	}
	if client != nil {
		hs.reader = bufio.NewReader(client)
	}
	go func() { hs.result <- sess.Run() }()
	t.Cleanup(func() {
		sess.Close()
		if client != nil {
			_ = client.Close()
		}
		select {
		case <-hs.result:
		case <-time.After(2 * time.Second):
			t.Errorf("session did not stop")
		}
	})
	return hs
}

func (h *harness) send(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		_ = h.client.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := h.client.Write([]byte(l + "\r\n")); err != nil {
			t.Fatalf("write %q: %v", l, err)
		}
	}
}

func (h *harness) readLine(t *testing.T) string {
	t.Helper()
	_ = h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := h.reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v (partial %q)", err, line)
	}
	return strings.TrimRight(line, "\r\n")
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.result:
		h.result <- err
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("session still running")
	}
	return nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
