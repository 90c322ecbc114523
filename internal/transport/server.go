package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/command"
	"botd/internal/controller"
	"botd/internal/hostinfo"
	"botd/internal/memory"
	"botd/internal/settings"
	"botd/pkg/types"
)

// Server loop timings.
const (
	acceptBackoff    = 5 * time.Millisecond
	maxAcceptErrors  = 10
	bindRetry        = 50 * time.Millisecond
	reconnectPause   = time.Millisecond
	deviceRetryPause = 500 * time.Millisecond
)

// Agent states reported by Status.
const (
	StateStarting  = "starting"
	StateListening = "listening"
	StateConnected = "connected"
	StateStopped   = "stopped"
)

// Platform supplies the host services a session drives.
type Platform interface {
	Device() controller.Device
	Debugger() memory.Debugger
	Resolver() hostinfo.Resolver
	System() command.System
	FlashLED() error
}

// Options configures a Server.
type Options struct {
	// Transport is KindSocket or KindUSB.
	Transport     string
	Addr          string
	USBDevice     string
	QueueCapacity int
	MaxLineBytes  int
	EarlyWake     time.Duration
	ReadTimeout   time.Duration
	// OpenDevice opens the USB gadget; nil uses os.OpenFile.
	OpenDevice func(path string) (io.ReadWriteCloser, error)
}

// Server accepts clients one at a time.
type Server struct {
	opts     Options
	platform Platform
	settings *settings.Settings
	log      zerolog.Logger
	pub      EventPublisher
	startAt  time.Time

	mu       sync.Mutex
	state    string
	ln       net.Listener
	cur      *Session
	lastErr  string
	sessions atomic.Uint64
	addrCh   chan struct{}
	addrOnce sync.Once
}

// NewServer returns a Server that has not started listening.
func NewServer(opts Options, p Platform, s *settings.Settings, log zerolog.Logger) *Server {
	if opts.Transport == "" {
		opts.Transport = KindSocket
	}
	if opts.OpenDevice == nil {
		opts.OpenDevice = func(path string) (io.ReadWriteCloser, error) {
			return os.OpenFile(path, os.O_RDWR, 0)
		}
	}
	if s == nil {
		s = settings.New()
	}
	return &Server{
		opts:     opts,
		platform: p,
		settings: s,
		log:      log.With().Str("component", "transport").Logger(),
		pub:      noopPublisher{},
		startAt:  time.Now(),
		state:    StateStarting,
		addrCh:   make(chan struct{}),
	}
}

// SetEventPublisher replaces the lifecycle event sink. Call before Serve.
func (s *Server) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	s.pub = p
}

// Serve runs until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.mu.Lock()
		if s.ln != nil {
			_ = s.ln.Close()
		}
		if s.cur != nil {
			s.cur.Close()
		}
		s.mu.Unlock()
	}()
	defer s.setState(StateStopped)

	switch s.opts.Transport {
	case KindSocket:
		return s.serveSocket(ctx)
	case KindUSB:
		return s.serveUSB(ctx)
	}
	return fmt.Errorf("unknown transport %q", s.opts.Transport)
}

// Addr blocks until the listener is bound and returns its address. It
// returns nil for the USB transport or if ctx ends first.
func (s *Server) Addr(ctx context.Context) net.Addr {
	if s.opts.Transport != KindSocket {
		return nil
	}
	select {
	case <-s.addrCh:
	case <-ctx.Done():
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) listen(ctx context.Context) (net.Listener, error) {
	var lc net.ListenConfig
	for {
		ln, err := lc.Listen(ctx, "tcp", s.opts.Addr)
		if err == nil {
			return ln, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn().Err(err).Str("addr", s.opts.Addr).Msg("bind failed, retrying")
		if !sleepCtx(ctx, bindRetry) {
			return nil, ctx.Err()
		}
	}
}

func (s *Server) serveSocket(ctx context.Context) error {
	var (
		ln       net.Listener
		failures int
	)
	defer func() {
		if ln != nil {
			_ = ln.Close()
		}
	}()
	for ctx.Err() == nil {
		if ln == nil {
			var err error
			if ln, err = s.listen(ctx); err != nil {
				return nil
			}
			s.mu.Lock()
			s.ln = ln
			s.mu.Unlock()
			s.addrOnce.Do(func() { close(s.addrCh) })
			s.flashLED()
			s.setState(StateListening)
			s.pub.Publish(Event{Name: EventListening, Fields: map[string]any{"addr": ln.Addr().String()}})
			s.log.Info().Str("addr", ln.Addr().String()).Msg("waiting for client")
		}

		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			s.log.Warn().Err(err).Int("failures", failures).Msg("accept failed")
			if failures >= maxAcceptErrors {
				s.log.Warn().Msg("repeated accept failures, recreating listener")
				_ = ln.Close()
				ln = nil
				failures = 0
			}
			sleepCtx(ctx, acceptBackoff)
			continue
		}
		failures = 0
		s.runSession(ctx, NewSocketConn(c), KindSocket)
		sleepCtx(ctx, reconnectPause)
	}
	return nil
}

func (s *Server) serveUSB(ctx context.Context) error {
	for ctx.Err() == nil {
		s.setState(StateListening)
		rw, err := s.opts.OpenDevice(s.opts.USBDevice)
		if err != nil {
			s.log.Warn().Err(err).Str("device", s.opts.USBDevice).Msg("open usb device")
			sleepCtx(ctx, deviceRetryPause)
			continue
		}
		s.flashLED()
		conn := NewUSBConn(rw, s.opts.USBDevice, s.settings.Compat, s.opts.MaxLineBytes)
		s.runSession(ctx, conn, KindUSB)
		sleepCtx(ctx, reconnectPause)
	}
	return nil
}

func (s *Server) flashLED() {
	if err := s.platform.FlashLED(); err != nil {
		s.log.Debug().Err(err).Msg("flash led")
	}
}

// newSession builds the per-connection capability stack.
func (s *Server) newSession(conn Conn, kind string) *Session {
	log := s.log.With().Str("transport", kind).Logger()
	ctrl := controller.New(s.platform.Device(), s.settings, log.With().Str("component", "controller").Logger())
	sched := controller.NewScheduler(ctrl, controller.SchedulerOptions{
		QueueCapacity: s.opts.QueueCapacity,
		EarlyWake:     s.opts.EarlyWake,
	}, log.With().Str("component", "scheduler").Logger())
	h := command.New(command.Deps{
		Memory:   memory.New(s.platform.Debugger(), log.With().Str("component", "memory").Logger()),
		Input:    ctrl,
		Meta:     hostinfo.NewCache(s.platform.Resolver(), log.With().Str("component", "hostinfo").Logger()),
		System:   s.platform.System(),
		Settings: s.settings,
		USB:      kind == KindUSB,
	}, log.With().Str("component", "command").Logger())
	return NewSession(conn, h, ctrl, sched, SessionConfig{
		Kind:          kind,
		QueueCapacity: s.opts.QueueCapacity,
		MaxLineBytes:  s.opts.MaxLineBytes,
		ReadTimeout:   s.opts.ReadTimeout,
	}, s.pub, s.log)
}

func (s *Server) runSession(ctx context.Context, conn Conn, kind string) {
	sess := s.newSession(conn, kind)
	s.mu.Lock()
	s.cur = sess
	s.state = StateConnected
	if ctx.Err() != nil {
		sess.Close()
	}
	s.mu.Unlock()
	s.sessions.Add(1)

	err := sess.Run()

	s.mu.Lock()
	s.cur = nil
	if err != nil {
		s.lastErr = err.Error()
	}
	if s.state == StateConnected {
		s.state = StateListening
	}
	s.mu.Unlock()
	if err != nil && !errors.Is(err, ErrPeerClosed) {
		s.log.Warn().Err(err).Msg("session ended with error, resetting connection")
	}
}

func (s *Server) setState(state string) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Ready reports whether the server is accepting or serving clients.
func (s *Server) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateListening || s.state == StateConnected
}

// Status builds the /status payload.
func (s *Server) Status() types.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	endpoint := s.opts.Addr
	if s.opts.Transport == KindUSB {
		endpoint = s.opts.USBDevice
	} else if s.ln != nil {
		endpoint = s.ln.Addr().String()
	}
	resp := types.StatusResponse{
		State:          s.state,
		Transport:      s.opts.Transport,
		Endpoint:       endpoint,
		Settings:       types.SettingsStatus(s.settings.Snapshot()),
		SessionsTotal:  s.sessions.Load(),
		LastError:      s.lastErr,
		UptimeSeconds:  int64(time.Since(s.startAt).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if s.cur != nil {
		st := s.cur.Status()
		resp.Session = &st
	}
	return resp
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
