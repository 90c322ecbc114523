// Package logging provides the agent's structured logging service.
//
// A Service owns one background goroutine that drains a bounded channel of
// encoded zerolog records into the configured sinks (a size-capped log file
// and optionally the console). Callers never block on I/O: when the channel
// is full the record is dropped and counted. Debug records are only written
// while verbose logging is enabled; info and above always pass.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"botd/internal/common/fsutil"
)

// DefaultQueueSize is the number of records buffered ahead of the sinks.
const DefaultQueueSize = 1024

// Options configures a Service. Zero values select defaults.
type Options struct {
	// File is the log file path; empty disables the file sink. A leading '~'
	// is expanded to the user's home directory.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console mirrors records to stderr in human-readable form.
	Console bool
	// Level is the minimum zerolog level name (debug, info, warn, error).
	Level string
	// Verbose enables debug records from the start.
	Verbose   bool
	QueueSize int
	// Out overrides all sinks; used by tests.
	Out io.Writer
}

// Service is an injectable logger with an owned writer goroutine.
type Service struct {
	logger zerolog.Logger
	w      *asyncWriter
	file   *lumberjack.Logger
}

// New builds a Service and starts its writer goroutine.
func New(opts Options) (*Service, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 8
	}
	if opts.MaxBackups < 0 {
		opts.MaxBackups = 0
	}
	lvl := zerolog.DebugLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		lvl = l
	}

	s := &Service{}
	var sinks []io.Writer
	if opts.Out != nil {
		sinks = append(sinks, opts.Out)
	} else {
		if opts.File != "" {
			path, err := fsutil.LogFile(opts.File)
			if err != nil {
				return nil, err
			}
			s.file = &lumberjack.Logger{
				Filename:   path,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
			}
			sinks = append(sinks, s.file)
		}
		if opts.Console || len(sinks) == 0 {
			sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		}
	}

	s.w = newAsyncWriter(io.MultiWriter(sinks...), opts.QueueSize)
	s.w.verbose.Store(opts.Verbose)
	s.logger = zerolog.New(s.w).Level(lvl).With().Timestamp().Logger()
	return s, nil
}

// Logger returns the root logger.
func (s *Service) Logger() zerolog.Logger { return s.logger }

// Component returns a child logger tagged with the component name.
func (s *Service) Component(name string) zerolog.Logger {
	return s.logger.With().Str("component", name).Logger()
}

// SetVerbose toggles debug records at runtime.
func (s *Service) SetVerbose(on bool) { s.w.verbose.Store(on) }

// Verbose reports whether debug records are written.
func (s *Service) Verbose() bool { return s.w.verbose.Load() }

// Dropped returns the number of records discarded because the queue was full.
func (s *Service) Dropped() uint64 { return s.w.dropped.Load() }

// Close flushes queued records and stops the writer goroutine. Records logged
// after Close are discarded.
func (s *Service) Close() error {
	s.w.close()
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// Nop returns a Service that discards everything; handy in tests.
func Nop() *Service {
	s, _ := New(Options{Out: io.Discard})
	return s
}

type asyncWriter struct {
	out     io.Writer
	ch      chan []byte
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	verbose atomic.Bool
	dropped atomic.Uint64
}

func newAsyncWriter(out io.Writer, size int) *asyncWriter {
	w := &asyncWriter{
		out:  out,
		ch:   make(chan []byte, size),
		done: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *asyncWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter.
func (w *asyncWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l <= zerolog.DebugLevel && !w.verbose.Load() {
		return len(p), nil
	}
	select {
	case <-w.done:
		return len(p), nil
	default:
	}
	rec := make([]byte, len(p))
	copy(rec, p)
	select {
	case w.ch <- rec:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *asyncWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.ch:
			_, _ = w.out.Write(rec)
		case <-w.done:
			for {
				select {
				case rec := <-w.ch:
					_, _ = w.out.Write(rec)
				default:
					return
				}
			}
		}
	}
}

func (w *asyncWriter) close() {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()
}
