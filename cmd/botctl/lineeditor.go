package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"

	"botd/internal/common/fsutil"
)

const historySize = 500

// lineEditor reads REPL input with readline on a terminal and with a plain
// scanner when stdin is piped.
type lineEditor struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
	out     io.Writer
}

func newLineEditor(in io.Reader, out io.Writer) *lineEditor {
	f, isFile := in.(*os.File)
	if !isFile || !term.IsTerminal(int(f.Fd())) || os.Getenv("INSIDE_EMACS") != "" {
		return &lineEditor{scanner: bufio.NewScanner(in), out: out}
	}
	history := fsutil.HistoryFile(os.Getenv)
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            history,
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline unavailable (%v), using basic input\n", err)
		return &lineEditor{scanner: bufio.NewScanner(in), out: out}
	}
	return &lineEditor{rl: rl, out: out}
}

// line returns the next input line or io.EOF.
func (e *lineEditor) line(prompt string) (string, error) {
	if e.rl == nil {
		fmt.Fprint(e.out, prompt)
		if !e.scanner.Scan() {
			if err := e.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return e.scanner.Text(), nil
	}
	e.rl.SetPrompt(prompt)
	line, err := e.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}
	if s := strings.TrimSpace(line); s != "" {
		e.rl.SaveToHistory(s)
	}
	return line, nil
}

func (e *lineEditor) close() error {
	if e.rl != nil {
		return e.rl.Close()
	}
	return nil
}
