package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// findFreePort picks an available TCP port on localhost.
func findFreePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func projectRootFromThisFile(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	// this file: <root>/internal/e2e/process_test.go
	return filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
}

func buildBinary(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("process tests build the binary; skipped in -short mode")
	}
	binPath := filepath.Join(t.TempDir(), "botd")
	cmd := exec.Command("go", "build", "-o", binPath, "./cmd/botd")
	cmd.Dir = projectRootFromThisFile(t)
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build failed: %v\n%s", err, string(out))
	}
	return binPath
}

type agentProc struct {
	cmd      *exec.Cmd
	addr     string
	base     string
	logFile  string
	finished chan error
}

func startProcess(t *testing.T, bin string, extra ...string) *agentProc {
	t.Helper()
	addr := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	httpAddr := fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	logFile := filepath.Join(t.TempDir(), "botd.log")
	args := append([]string{
		"--addr", addr,
		"--metrics-addr", httpAddr,
		"--log-file", logFile,
	}, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start agent: %v", err)
	}
	p := &agentProc{cmd: cmd, addr: addr, base: "http://" + httpAddr, logFile: logFile, finished: make(chan error, 1)}
	go func() { p.finished <- cmd.Wait() }()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		<-p.finished
	})

	// Wait for readyz: the status API is up and the transport is listening.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(p.base + "/readyz")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent did not become ready in time")
		}
		time.Sleep(50 * time.Millisecond)
	}
	return p
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func TestProcess_Flow(t *testing.T) {
	bin := buildBinary(t)
	p := startProcess(t, bin)

	resp, body := httpGet(t, p.base+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz %d %s", resp.StatusCode, string(body))
	}

	c, err := net.Dial("tcp", p.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	r := bufio.NewReader(c)
	ask := func(line string) string {
		if _, err := io.WriteString(c, line+"\r\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
		reply, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read reply to %q: %v", line, err)
		}
		return strings.TrimRight(reply, "\r\n")
	}
	if got := ask("ping 12"); got != "12" {
		t.Fatalf("ping = %q", got)
	}
	if got := ask("getVersion"); got != "3.31" {
		t.Fatalf("getVersion = %q", got)
	}

	resp, body = httpGet(t, p.base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, string(body))
	}
	var st struct {
		State   string `json:"state"`
		Session *struct {
			ID string `json:"id"`
		} `json:"session"`
	}
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v body=%s", err, string(body))
	}
	if st.State != "connected" || st.Session == nil || st.Session.ID == "" {
		t.Fatalf("status = %s", string(body))
	}
}

func TestProcess_LegacyCompatOff(t *testing.T) {
	bin := buildBinary(t)
	p := startProcess(t, bin, "--backwards-compat=false")
	c, err := net.Dial("tcp", p.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	_, _ = io.WriteString(c, "getVersion\r\n")
	reply, err := bufio.NewReader(c).ReadString('\n')
	if err != nil || strings.TrimSpace(reply) != "3.3" {
		t.Fatalf("getVersion = %q, %v", reply, err)
	}
}

func TestProcess_InterruptStopsAgent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no SIGINT on windows")
	}
	bin := buildBinary(t)
	p := startProcess(t, bin)
	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("signal: %v", err)
	}
	select {
	case err := <-p.finished:
		p.finished <- err
		if err != nil {
			t.Fatalf("agent exit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("agent ignored interrupt")
	}
	if st, err := os.Stat(p.logFile); err != nil || st.Size() == 0 {
		t.Fatalf("log file missing after shutdown: %v", err)
	}
}
