package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"botd/internal/command"
	"botd/internal/controller"
	"botd/internal/lfq"
	"botd/internal/metrics"
	"botd/internal/protocol"
	"botd/pkg/types"
)

// Defaults for SessionConfig.
const (
	DefaultReadTimeout = 250 * time.Millisecond
	readChunk          = 4096
	idleBackoff        = 5 * time.Millisecond
)

// Commands handled on the receive goroutine while the scheduler runs.
const (
	cmdCancel          = "cqCancel"
	cmdReplaceOnNext   = "cqReplaceOnNext"
	cmdControllerState = "cqControllerState"
	cmdPing            = "ping"
)

// SessionConfig tunes one session.
type SessionConfig struct {
	Kind          string
	QueueCapacity int
	MaxLineBytes  int
	ReadTimeout   time.Duration
}

// Session is one connected client.
type Session struct {
	id      string
	kind    string
	conn    Conn
	framer  *protocol.Framer
	cmds    *lfq.Queue[string]
	out     *lfq.Queue[[]byte]
	handler *command.Handler
	ctrl    *controller.Controller
	sched   *controller.Scheduler
	pub     EventPublisher
	log     zerolog.Logger

	readTimeout time.Duration
	started     time.Time

	workerWake chan struct{}
	senderWake chan struct{}
	done       chan struct{}
	doneOnce   sync.Once
	failed     atomic.Bool
	stopped    atomic.Bool
	cause      atomic.Pointer[error]
	writeMu    sync.Mutex

	workerExited chan struct{}
	senderExited chan struct{}
}

// NewSession binds conn to a handler and the scheduler driving ctrl.
func NewSession(conn Conn, h *command.Handler, ctrl *controller.Controller, sched *controller.Scheduler, cfg SessionConfig, pub EventPublisher, log zerolog.Logger) *Session {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = lfq.DefaultCapacity
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Kind == "" {
		cfg.Kind = KindSocket
	}
	if pub == nil {
		pub = noopPublisher{}
	}
	id := uuid.NewString()
	return &Session{
		id:           id,
		kind:         cfg.Kind,
		conn:         conn,
		framer:       protocol.NewFramer(cfg.MaxLineBytes),
		cmds:         lfq.New[string](cfg.QueueCapacity),
		out:          lfq.New[[]byte](cfg.QueueCapacity),
		handler:      h,
		ctrl:         ctrl,
		sched:        sched,
		pub:          pub,
		log:          log.With().Str("session", id).Str("transport", cfg.Kind).Logger(),
		readTimeout:  cfg.ReadTimeout,
		started:      time.Now(),
		workerWake:   make(chan struct{}, 1),
		senderWake:   make(chan struct{}, 1),
		done:         make(chan struct{}),
		workerExited: make(chan struct{}),
		senderExited: make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Done is closed once the session is ending.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the fault that ended the session, or nil.
func (s *Session) Err() error {
	if p := s.cause.Load(); p != nil {
		return *p
	}
	return nil
}

// Close asks every loop to stop. It does not wait; Run returns once
// teardown completed.
func (s *Session) Close() {
	s.stopped.Store(true)
	s.broadcast()
}

func (s *Session) broadcast() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) closed() bool {
	return s.failed.Load() || s.stopped.Load()
}

// fail records the first fault and wakes every loop.
func (s *Session) fail(err error) {
	if s.cause.CompareAndSwap(nil, &err) {
		cause := "fault"
		switch {
		case errors.Is(err, ErrPeerClosed):
			cause = "peer_closed"
			s.log.Info().Msg("client disconnected")
		case errors.Is(err, protocol.ErrFrameTooLarge):
			cause = "protocol"
			s.log.Warn().Err(err).Msg("session failed")
		default:
			s.log.Error().Err(err).Msg("session failed")
		}
		metrics.SessionErrors.WithLabelValues(cause).Inc()
	}
	s.failed.Store(true)
	s.broadcast()
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// recoverLoop turns a panic in a session goroutine into a session fault.
func (s *Session) recoverLoop(loop string) {
	if r := recover(); r != nil {
		s.fail(fmt.Errorf("%s panic: %v", loop, r))
	}
}

// Run serves the client until it disconnects, a loop faults or Close is
// called. The receive loop runs on the calling goroutine. Run returns the
// fault that ended the session, or nil after Close.
func (s *Session) Run() error {
	metrics.SessionsTotal.WithLabelValues(s.kind).Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	s.log.Info().Str("remote", s.conn.Remote()).Msg("session started")
	s.pub.Publish(Event{Name: EventSessionStart, SessionID: s.id, Fields: map[string]any{"remote": s.conn.Remote(), "transport": s.kind}})

	go s.sender()
	go s.worker()
	received := make(chan struct{})
	go s.interruptRead(received)
	s.receive()
	close(received)
	s.teardown()

	err := s.Err()
	fields := map[string]any{"duration_ms": time.Since(s.started).Milliseconds()}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.pub.Publish(Event{Name: EventSessionEnd, SessionID: s.id, Fields: fields})
	s.log.Info().Dur("duration", time.Since(s.started)).Msg("session ended")
	return err
}

// interruptRead unblocks the transport once the session ends so a blocked
// receive returns promptly.
func (s *Session) interruptRead(received <-chan struct{}) {
	select {
	case <-s.done:
		if err := s.conn.Interrupt(); err != nil {
			s.log.Debug().Err(err).Msg("interrupt transport read")
		}
	case <-received:
	}
}

func (s *Session) teardown() {
	s.stopped.Store(true)
	s.broadcast()
	<-s.senderExited
	<-s.workerExited
	s.sched.Wait()
	if err := s.ctrl.Detach(); err != nil {
		s.log.Warn().Err(err).Msg("detach controller")
	}
	s.cmds.Clear()
	s.out.Clear()
	s.framer.Reset()
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close transport")
	}
}

func (s *Session) receive() {
	defer s.recoverLoop("receive")
	buf := make([]byte, readChunk)
	for !s.closed() {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			s.fail(faultError{op: "deadline", err: err})
			return
		}
		n, err := s.conn.Read(buf)
		if n > 0 {
			metrics.TransportBytes.WithLabelValues("in").Add(float64(n))
			if ferr := s.framer.Feed(buf[:n]); ferr != nil {
				s.log.Warn().Err(ferr).Msg("input discarded")
			}
			s.drainLines()
		}
		switch {
		case errors.Is(err, io.EOF):
			s.fail(ErrPeerClosed)
			return
		case err != nil:
			if s.closed() {
				return
			}
			s.fail(faultError{op: "read", err: err})
			return
		case n == 0:
			select {
			case <-s.done:
			case <-time.After(idleBackoff):
			}
		}
	}
}

func (s *Session) drainLines() {
	for !s.closed() {
		line, ok := s.framer.Next()
		if !ok {
			return
		}
		if s.sched.Running() && s.intercept(line) {
			continue
		}
		if !s.cmds.Push(line) {
			metrics.DropQueue(metrics.QueueCommand)
			s.log.Warn().Str("line", truncate(line, 64)).Msg("command queue full, line dropped")
			continue
		}
		signal(s.workerWake)
	}
}

// intercept handles scheduler control lines without queueing them. It
// reports false for lines the worker must handle.
func (s *Session) intercept(line string) bool {
	name, params, ok := protocol.ParseArgs(line)
	if !ok {
		return false
	}
	switch name {
	case cmdCancel:
		s.sched.Cancel()
	case cmdReplaceOnNext:
		s.sched.ReplaceOnNext()
	case cmdControllerState:
		if len(params) != 1 {
			s.log.Debug().Int("params", len(params)).Msg("cqControllerState needs one parameter")
			return true
		}
		cmd, err := controller.DecodeHex(params[0])
		if err != nil {
			s.log.Warn().Err(err).Msg("bad controller state")
			return true
		}
		s.sched.Enqueue(cmd)
	case cmdPing:
		if len(params) != 1 {
			return false
		}
		reply := []byte(cmdPing + " " + params[0] + protocol.Delimiter)
		if err := s.write(reply); err != nil {
			s.fail(faultError{op: "write", err: err})
		}
	default:
		return false
	}
	return true
}

func (s *Session) worker() {
	defer close(s.workerExited)
	defer s.recoverLoop("worker")
	for {
		for {
			if s.closed() {
				return
			}
			line, ok := s.cmds.Pop()
			if !ok {
				break
			}
			s.process(line)
		}
		select {
		case <-s.done:
			return
		case <-s.workerWake:
		}
	}
}

func (s *Session) process(line string) {
	name, params, ok := protocol.ParseArgs(line)
	if !ok {
		return
	}
	reply := s.handler.HandleCommand(name, params)
	if s.handler.EnabledPA() && !s.sched.Running() {
		s.startScheduler()
	}
	if len(reply) == 0 {
		return
	}
	if s.terminateReplies() {
		reply = protocol.Terminate(reply)
	}
	s.enqueueReply(reply)
}

// terminateReplies reports whether replies get a trailing newline. Legacy
// USB clients rely on the length prefix instead.
func (s *Session) terminateReplies() bool {
	return s.kind != KindUSB || !s.handler.Settings().Compat()
}

func (s *Session) enqueueReply(reply []byte) bool {
	if !s.out.Push(reply) {
		metrics.DropQueue(metrics.QueueSender)
		s.log.Warn().Int("size", len(reply)).Msg("sender queue full, reply dropped")
		return false
	}
	signal(s.senderWake)
	return true
}

// Notify queues a scheduler completion notice.
func (s *Session) Notify(line []byte) bool {
	if s.closed() {
		return false
	}
	if !s.out.Push(line) {
		metrics.DropQueue(metrics.QueueSender)
		return false
	}
	signal(s.senderWake)
	return true
}

func (s *Session) startScheduler() {
	err := s.sched.Start(s, s.done, s.schedulerExited)
	switch {
	case err == nil:
		s.pub.Publish(Event{Name: EventSchedulerStart, SessionID: s.id})
	case errors.Is(err, controller.ErrSchedulerRunning):
	default:
		s.fail(err)
	}
}

func (s *Session) schedulerExited(err error) {
	s.handler.SetEnabledPA(false)
	fields := map[string]any{}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.pub.Publish(Event{Name: EventSchedulerStop, SessionID: s.id, Fields: fields})
	if err != nil {
		s.fail(err)
	}
}

func (s *Session) sender() {
	defer close(s.senderExited)
	defer s.recoverLoop("sender")
	for {
		for {
			if s.closed() {
				return
			}
			buf, ok := s.out.Pop()
			if !ok {
				break
			}
			if err := s.write(buf); err != nil {
				s.fail(faultError{op: "write", err: err})
				return
			}
		}
		select {
		case <-s.done:
			return
		case <-s.senderWake:
		}
	}
}

func (s *Session) write(buf []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := writeFull(s.conn, buf); err != nil {
		return err
	}
	metrics.TransportBytes.WithLabelValues("out").Add(float64(len(buf)))
	return nil
}

// Status reports the session for /status.
func (s *Session) Status() types.SessionStatus {
	return types.SessionStatus{
		ID:              s.id,
		Remote:          s.conn.Remote(),
		StartedUnix:     s.started.Unix(),
		CommandQueueLen: s.cmds.Len(),
		SenderQueueLen:  s.out.Len(),
		QueueCapacity:   s.cmds.Cap(),
		Scheduler: types.SchedulerStatus{
			Running: s.sched.Running(),
			Phase:   s.sched.Phase(),
			Pending: s.sched.Pending(),
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
