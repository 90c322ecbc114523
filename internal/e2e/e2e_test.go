package e2e

import (
	"encoding/binary"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"botd/internal/controller"
	"botd/internal/platform/sim"
	"botd/internal/transport"
)

func TestE2E_MemoryCommands(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)

	c.send("poke 0x100 0xCAFEBABE")
	if got := c.ask("peek 0x100 4"); got != "CAFEBABE" {
		t.Fatalf("peek after poke = %q", got)
	}
	if got := c.ask("peekAbsolute 0x31000100 2"); got != "CAFE" {
		t.Fatalf("peekAbsolute = %q", got)
	}
	if got := c.ask("peekMulti 0x100 1 0x103 1"); got != "CABE" {
		t.Fatalf("peekMulti = %q", got)
	}

	// main+0x40 -> heap+0x200 -> heap+0x300
	a.host.Mem.StoreU64(sim.DefaultMainBase+0x40, sim.DefaultHeapBase+0x200)
	a.host.Mem.StoreU64(sim.DefaultHeapBase+0x208, sim.DefaultHeapBase+0x300)
	want := make([]byte, 8)
	binary.LittleEndian.PutUint64(want, sim.DefaultHeapBase+0x310)
	if got := c.ask("pointerAll 0x40 8 0x10"); got != strings.ToUpper(hexString(want)) {
		t.Fatalf("pointerAll = %q", got)
	}
	binary.LittleEndian.PutUint64(want, 0x310)
	if got := c.ask("pointerRelative 0x40 8 0x10"); got != strings.ToUpper(hexString(want)) {
		t.Fatalf("pointerRelative = %q", got)
	}
	c.send("pointerPoke 0xBEEF 0x40 8 0x10")
	if got := c.ask("pointerPeek 2 0x40 8 0x10"); got != "BEEF" {
		t.Fatalf("pointerPeek = %q", got)
	}
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0x0f])
	}
	return string(out)
}

func TestE2E_ControllerSequence(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)
	c.send("configure enablePA 1")
	eventually(t, "scheduler", a.sequencing)

	for seq := uint64(1); seq <= 5; seq++ {
		cmd := controller.Command{Seq: seq, Millis: 15, State: controller.State{Buttons: uint64(controller.ButtonA) << (seq - 1)}}
		c.send("cqControllerState " + cmd.EncodeHex())
	}
	for seq := 1; seq <= 5; seq++ {
		want := "cqCommandFinished " + strconv.Itoa(seq)
		if got := c.line(); got != want {
			t.Fatalf("notice %d = %q, want %q", seq, got, want)
		}
	}
	eventually(t, "release", func() bool { return a.host.Pad.State().IsZero() })

	// Regular commands still reach the worker while sequencing.
	if got := c.ask("getTitleID"); got != "0100ABCD00000000" {
		t.Fatalf("getTitleID = %q", got)
	}
	if got := c.ask("ping 77"); got != "ping 77" {
		t.Fatalf("sequencing ping = %q", got)
	}
}

func TestE2E_ReplaceOnNext(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)
	c.send("configure enablePA 1")
	eventually(t, "scheduler", a.sequencing)

	long := controller.Command{Seq: 1, Millis: 10000, State: controller.State{Buttons: uint64(controller.ButtonL)}}
	next := controller.Command{Seq: 2, Millis: 10, State: controller.State{Buttons: uint64(controller.ButtonR)}}
	c.send("cqControllerState " + long.EncodeHex())
	eventually(t, "hold L", func() bool { return a.host.Pad.State().Buttons == uint64(controller.ButtonL) })
	c.send("cqReplaceOnNext", "cqControllerState "+next.EncodeHex())
	// The pre-empted command never reports completion.
	if got := c.line(); got != "cqCommandFinished 2" {
		t.Fatalf("notice = %q", got)
	}
	var sawR bool
	for _, st := range a.host.Pad.States() {
		sawR = sawR || st.Buttons == uint64(controller.ButtonR)
	}
	if !sawR {
		t.Fatalf("replacement state never applied")
	}
}

func TestE2E_StatusAndSettingsSurviveReconnect(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)
	c.send("configure pollRate 33", "configure fingerDiameter 12")
	if got := c.ask("ping 1"); got != "1" {
		t.Fatalf("ping = %q", got)
	}

	st := a.status(t)
	if st.State != transport.StateConnected || st.Session == nil {
		t.Fatalf("status = %+v", st)
	}
	if st.Settings.PollRateMS != 33 || st.Settings.FingerDiameter != 12 {
		t.Fatalf("settings = %+v", st.Settings)
	}

	_ = c.c.Close()
	eventually(t, "disconnect", func() bool { return a.srv.Status().Session == nil })
	c2 := a.dial(t)
	if got := c2.ask("ping 2"); got != "2" {
		t.Fatalf("ping after reconnect = %q", got)
	}
	st = a.status(t)
	if st.SessionsTotal != 2 || st.Settings.PollRateMS != 33 {
		t.Fatalf("status after reconnect = %+v", st)
	}
	if st.LastError == "" {
		t.Fatalf("last error not recorded for closed peer")
	}
}

func TestE2E_DisconnectWhileSequencing(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)
	c.send("configure enablePA 1")
	eventually(t, "scheduler", a.sequencing)
	hold := controller.Command{Millis: 10000, State: controller.State{Buttons: uint64(controller.ButtonZL)}}
	c.send("cqControllerState " + hold.EncodeHex())
	eventually(t, "hold", func() bool { return a.host.Pad.State().Buttons == uint64(controller.ButtonZL) })

	_ = c.c.Close()
	eventually(t, "teardown", func() bool { return !a.host.Pad.Attached() })

	var names []string
	want := []string{transport.EventSessionStart, transport.EventSchedulerStart, transport.EventSchedulerStop, transport.EventSessionEnd}
	eventually(t, "session_end", func() bool {
		names = names[:0]
		for _, n := range a.pub.Names() {
			if n != transport.EventListening {
				names = append(names, n)
			}
		}
		return len(names) == len(want)
	})
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("events = %v, want %v", names, want)
		}
	}

	c2 := a.dial(t)
	c2.send("click B")
	if got := c2.ask("ping 3"); got != "3" {
		t.Fatalf("fresh session ping = %q", got)
	}
	if a.host.Pad.Count(sim.OpState) == 0 {
		t.Fatalf("no controller states recorded")
	}
}

func TestE2E_SystemCommands(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)
	a.host.Sys.SetBattery(64)
	if got := c.ask("charge"); got != "00000040" {
		t.Fatalf("charge = %q", got)
	}
	c.send("screenOff")
	eventually(t, "screen off", func() bool { return !a.host.Sys.ScreenOn() })
	if got := c.ask("game name"); got == "" {
		t.Fatalf("empty game name")
	}
	if got := c.ask("getVersion"); got != "3.31" {
		t.Fatalf("legacy version = %q", got)
	}
	c.send("configure enableBackwardsCompat 0")
	if got := c.ask("getVersion"); got != "3.3" {
		t.Fatalf("version = %q", got)
	}
}

func TestE2E_MetricsExposeCommands(t *testing.T) {
	a := startAgent(t)
	c := a.dial(t)
	c.ask("ping 1")
	resp, err := http.Get(a.api.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	for _, name := range []string{"botd_command_handled_total", "botd_session_started_total", "botd_http_requests_total"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metrics missing %s", name)
		}
	}
	resp, err = http.Get(a.api.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz = %d", resp.StatusCode)
	}
}
