package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// client is one TCP connection to an agent.
type client struct {
	conn net.Conn
	r    *bufio.Reader
}

func dial(addr string, timeout time.Duration) (*client, error) {
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	return &client{conn: c, r: bufio.NewReader(c)}, nil
}

// send writes one command line, adding the protocol delimiter.
func (c *client) send(line string) error {
	line = strings.TrimRight(line, "\r\n")
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := io.WriteString(c.conn, line+"\r\n")
	return err
}

// reply waits up to wait for one reply line. Many commands answer nothing,
// so a timeout is reported as ok=false rather than an error.
func (c *client) reply(wait time.Duration) (line string, ok bool, err error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	line, err = c.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// A partial line stays buffered in r for the next call.
			return "", false, nil
		}
		return "", false, err
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

func (c *client) close() error { return c.conn.Close() }
