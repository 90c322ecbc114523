package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"botd/internal/controller"
)

type options struct {
	addr    string
	timeout time.Duration
	wait    time.Duration
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Talk to a botd agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&o.addr, "addr", "a", "127.0.0.1:6000", "Agent address host:port")
	pf.DurationVar(&o.timeout, "timeout", 3*time.Second, "Connect timeout")
	pf.DurationVar(&o.wait, "wait", 500*time.Millisecond, "How long to wait for each reply")

	root.AddCommand(newSendCmd(o), newReplCmd(o), newEncodeCmd(), newDecodeCmd())
	return root
}

func newSendCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "send <command>...",
		Short:   "Send each argument as one command line and print the replies",
		Example: "  botctl send \"ping 1\" getTitleID \"peek 0x1000 16\"",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(o.addr, o.timeout)
			if err != nil {
				return err
			}
			defer c.close()
			out := cmd.OutOrStdout()
			for _, line := range args {
				if err := c.send(line); err != nil {
					return err
				}
				reply, ok, err := c.reply(o.wait)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintln(out, reply)
				}
			}
			return nil
		},
	}
}

func newReplCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session; replies and completion notices are printed as they arrive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial(o.addr, o.timeout)
			if err != nil {
				return err
			}
			out := &lockedWriter{w: cmd.OutOrStdout()}
			return repl(c, newLineEditor(cmd.InOrStdin(), out), out)
		},
	}
}

// lockedWriter serializes prompts and asynchronously printed replies.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// repl forwards input lines and prints everything the agent sends until the
// input or the connection ends.
func repl(c *client, ed *lineEditor, out io.Writer) error {
	defer ed.close()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		readErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			line, ok, err := c.reply(time.Hour)
			if err != nil {
				mu.Lock()
				readErr = err
				mu.Unlock()
				return
			}
			if ok {
				fmt.Fprintln(out, line)
			}
		}
	}()

	var err error
	for {
		var line string
		if line, err = ed.line("botd> "); err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err = c.send(line); err != nil {
			break
		}
	}
	_ = c.close()
	wg.Wait()
	if err == io.EOF {
		err = nil
	}
	if err == nil {
		mu.Lock()
		defer mu.Unlock()
		if readErr != nil && readErr != io.EOF && !errors.Is(readErr, net.ErrClosed) {
			err = readErr
		}
	}
	return err
}

func newEncodeCmd() *cobra.Command {
	var (
		seq, ms        uint64
		buttons        string
		lx, ly, rx, ry int64
		asCommand      bool
	)
	cmd := &cobra.Command{
		Use:     "encode",
		Short:   "Encode a timed controller state for cqControllerState",
		Example: "  botctl encode --seq 1 --ms 100 --buttons A,ZR --lx 32767 --line",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st := controller.State{
				LeftX:  controller.ClampStick(lx),
				LeftY:  controller.ClampStick(ly),
				RightX: controller.ClampStick(rx),
				RightY: controller.ClampStick(ry),
			}
			for _, name := range strings.Split(buttons, ",") {
				if name = strings.TrimSpace(name); name == "" {
					continue
				}
				b, err := controller.ParseButton(strings.ToUpper(name))
				if err != nil {
					return err
				}
				st.Buttons |= uint64(b)
			}
			enc := controller.Command{Seq: seq, Millis: ms, State: st}.EncodeHex()
			if asCommand {
				enc = "cqControllerState " + enc
			}
			fmt.Fprintln(cmd.OutOrStdout(), enc)
			return nil
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&seq, "seq", 0, "Sequence number; 0 requests no completion notice")
	f.Uint64Var(&ms, "ms", 0, "Hold duration in milliseconds")
	f.StringVar(&buttons, "buttons", "", "Comma-separated button names")
	f.Int64Var(&lx, "lx", 0, "Left stick X")
	f.Int64Var(&ly, "ly", 0, "Left stick Y")
	f.Int64Var(&rx, "rx", 0, "Right stick X")
	f.Int64Var(&ry, "ry", 0, "Right stick Y")
	f.BoolVar(&asCommand, "line", false, "Print a complete cqControllerState command line")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a 64-character controller command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controller.DecodeHex(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seq=%d ms=%d buttons=0x%s left=(%d,%d) right=(%d,%d)\n",
				c.Seq, c.Millis, strconv.FormatUint(c.State.Buttons, 16),
				c.State.LeftX, c.State.LeftY, c.State.RightX, c.State.RightY)
			return nil
		},
	}
}
