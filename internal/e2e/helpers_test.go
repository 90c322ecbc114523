// Package e2e drives a complete agent over real TCP with the simulated
// platform, alongside its status API.
package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/httpapi"
	"botd/internal/platform/sim"
	"botd/internal/settings"
	"botd/internal/transport"
	"botd/pkg/types"
)

type agent struct {
	srv    *transport.Server
	host   *sim.Host
	set    *settings.Settings
	pub    *transport.MemoryPublisher
	api    *httptest.Server
	addr   string
	cancel context.CancelFunc
}

func startAgent(t *testing.T) *agent {
	t.Helper()
	host := sim.NewHost(zerolog.Nop())
	set := settings.New()
	srv := transport.NewServer(transport.Options{
		Transport:   transport.KindSocket,
		Addr:        "127.0.0.1:0",
		ReadTimeout: 20 * time.Millisecond,
	}, host, set, zerolog.Nop())
	pub := transport.NewMemoryPublisher()
	srv.SetEventPublisher(pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	actx, acancel := context.WithTimeout(ctx, 2*time.Second)
	defer acancel()
	addr := srv.Addr(actx)
	if addr == nil {
		cancel()
		t.Fatalf("agent never listened")
	}
	api := httptest.NewServer(httpapi.NewMux(srv))
	a := &agent{srv: srv, host: host, set: set, pub: pub, api: api, addr: addr.String(), cancel: cancel}
	t.Cleanup(func() {
		api.Close()
		cancel()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Errorf("agent did not stop")
		}
	})
	return a
}

type conn struct {
	t *testing.T
	c net.Conn
	r *bufio.Reader
}

func (a *agent) dial(t *testing.T) *conn {
	t.Helper()
	c, err := net.Dial("tcp", a.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &conn{t: t, c: c, r: bufio.NewReader(c)}
}

func (c *conn) send(lines ...string) {
	c.t.Helper()
	_ = c.c.SetWriteDeadline(time.Now().Add(2 * time.Second))
	for _, l := range lines {
		if _, err := io.WriteString(c.c, l+"\r\n"); err != nil {
			c.t.Fatalf("write %q: %v", l, err)
		}
	}
}

func (c *conn) line() string {
	c.t.Helper()
	_ = c.c.SetReadDeadline(time.Now().Add(3 * time.Second))
	s, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("read: %v (partial %q)", err, s)
	}
	return strings.TrimRight(s, "\r\n")
}

func (c *conn) ask(line string) string {
	c.t.Helper()
	c.send(line)
	return c.line()
}

func (a *agent) status(t *testing.T) types.StatusResponse {
	t.Helper()
	resp, err := http.Get(a.api.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	var st types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	return st
}

func (a *agent) sequencing() bool {
	st := a.srv.Status()
	return st.Session != nil && st.Session.Scheduler.Running
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
