package controller

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"botd/internal/lfq"
	"botd/internal/metrics"
)

// DefaultEarlyWake is how long before a deadline the scheduler wakes to
// absorb timer latency.
const DefaultEarlyWake = time.Millisecond

// FinishedPrefix starts every completion notice.
const FinishedPrefix = "cqCommandFinished "

// Notifier accepts unsolicited reply lines for the client. Notify must not
// block and reports false when the line was dropped.
type Notifier interface {
	Notify(line []byte) bool
}

// Phase names reported by Scheduler.Phase.
const (
	PhaseStopped  = "stopped"
	PhaseIdle     = "idle"
	PhaseHolding  = "holding"
	PhaseDraining = "draining"
)

// Scheduler applies queued controller commands at their deadlines on a
// dedicated goroutine. One mutex guards the current command, the next wake
// time, the idle flag and the replace flag; the wake channel stands in for a
// condition variable.
type Scheduler struct {
	ctrl      *Controller
	queue     *lfq.Queue[Command]
	log       zerolog.Logger
	earlyWake time.Duration

	mu       sync.Mutex
	current  Command
	next     time.Time
	idle     bool
	replace  bool
	draining bool
	exited   chan struct{}

	wake    chan struct{}
	running atomic.Bool
}

// SchedulerOptions configures NewScheduler. Zero values select defaults.
type SchedulerOptions struct {
	QueueCapacity int
	EarlyWake     time.Duration
}

// NewScheduler returns a stopped Scheduler driving ctrl.
func NewScheduler(ctrl *Controller, opts SchedulerOptions, log zerolog.Logger) *Scheduler {
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = lfq.DefaultCapacity
	}
	if opts.EarlyWake <= 0 {
		opts.EarlyWake = DefaultEarlyWake
	}
	return &Scheduler{
		ctrl:      ctrl,
		queue:     lfq.New[Command](opts.QueueCapacity),
		log:       log,
		earlyWake: opts.EarlyWake,
		idle:      true,
		wake:      make(chan struct{}, 1),
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Running reports whether the scheduler goroutine is active.
func (s *Scheduler) Running() bool { return s.running.Load() }

// Phase describes the state machine position for status reporting.
// Draining covers the stop path, from the stop request until inputs are
// released and the device is detached.
func (s *Scheduler) Phase() string {
	if !s.running.Load() {
		return PhaseStopped
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.draining:
		return PhaseDraining
	case s.idle:
		return PhaseIdle
	}
	return PhaseHolding
}

// Pending approximates the number of queued commands.
func (s *Scheduler) Pending() int { return s.queue.Len() }

// Enqueue schedules cmd after the commands already queued. When a replace
// was requested the current command and the queue are discarded first and
// cmd takes effect immediately. It returns false when the queue is full.
func (s *Scheduler) Enqueue(cmd Command) bool {
	s.mu.Lock()
	switch {
	case s.replace:
		s.replace = false
		s.current = Command{}
		s.queue.Clear()
		s.idle = false
		s.next = time.Time{}
	case s.idle:
		s.idle = false
		s.next = time.Time{}
	}
	ok := s.queue.Push(cmd)
	s.mu.Unlock()
	s.signal()
	if !ok {
		metrics.DropQueue(metrics.QueueController)
		s.log.Warn().Uint64("seq", cmd.Seq).Msg("controller queue full, command dropped")
		return false
	}
	s.log.Debug().Uint64("seq", cmd.Seq).Uint64("ms", cmd.Millis).Msg("controller command queued")
	return true
}

// ReplaceOnNext makes the next Enqueue discard all pending work.
func (s *Scheduler) ReplaceOnNext() {
	s.mu.Lock()
	s.replace = true
	s.mu.Unlock()
	s.log.Debug().Msg("replace on next requested")
}

// Cancel drops the current command without a completion notice, empties
// the queue and releases all inputs on the next tick.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.current = Command{}
	s.queue.Clear()
	s.idle = false
	s.next = time.Time{}
	s.mu.Unlock()
	s.signal()
	s.log.Debug().Msg("controller queue cancelled")
}

// Start launches the scheduler goroutine. It stops when done is closed or a
// tick panics. onExit then runs with the panic converted to an error, once
// shutdown has released inputs and detached the device. Wait returns only
// after onExit.
func (s *Scheduler) Start(n Notifier, done <-chan struct{}, onExit func(error)) error {
	s.mu.Lock()
	if s.running.Load() {
		s.mu.Unlock()
		return ErrSchedulerRunning
	}
	s.current = Command{}
	s.idle = true
	s.replace = false
	s.draining = false
	s.next = time.Time{}
	exited := make(chan struct{})
	s.exited = exited
	s.running.Store(true)
	s.mu.Unlock()

	metrics.SchedulerRunning.Inc()
	s.log.Info().Msg("scheduler started")
	go func() {
		var fault error
		defer func() {
			if r := recover(); r != nil {
				fault = fmt.Errorf("scheduler panic: %v", r)
				s.log.Error().Err(fault).Msg("scheduler aborted")
			}
			s.shutdown()
			s.running.Store(false)
			metrics.SchedulerRunning.Dec()
			s.log.Info().Msg("scheduler stopped")
			if onExit != nil {
				onExit(fault)
			}
			close(exited)
		}()
		s.loop(n, done)
	}()
	return nil
}

// Wait blocks until the most recently started goroutine has exited.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	ch := s.exited
	s.mu.Unlock()
	if ch != nil {
		<-ch
	}
}

func (s *Scheduler) loop(n Notifier, done <-chan struct{}) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		select {
		case <-done:
			return
		default:
		}

		wait, forever := s.tick(n)
		if !forever && wait <= 0 {
			continue
		}
		var fire <-chan time.Time
		if !forever {
			timer.Reset(wait)
			fire = timer.C
		}
		select {
		case <-done:
			return
		case <-s.wake:
		case <-fire:
		}
		if !forever {
			timer.Stop()
		}
	}
}

// tick applies the next state when its deadline passed and returns how long
// to sleep before looking again.
func (s *Scheduler) tick(n Notifier) (wait time.Duration, forever bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if !s.idle && !now.Before(s.next) {
		cmd, ok := s.queue.Pop()
		if !ok {
			cmd = Command{}
			s.idle = true
		} else {
			s.next = now.Add(time.Duration(cmd.Millis) * time.Millisecond)
		}
		if err := s.ctrl.Apply(cmd.State); err != nil {
			s.log.Warn().Err(err).Uint64("seq", cmd.Seq).Msg("controller state not applied")
		} else {
			metrics.SchedulerApplied.Inc()
			if ok {
				s.log.Debug().Uint64("seq", cmd.Seq).Msg("controller state applied")
			} else {
				s.log.Debug().Msg("controller queue empty, inputs released")
			}
		}
		prev := s.current
		s.current = cmd
		if prev.Seq != 0 {
			s.finished(n, prev.Seq)
		}
	}

	if s.idle {
		return 0, true
	}
	remaining := s.next.Sub(time.Now())
	if remaining > s.earlyWake {
		return remaining - s.earlyWake, false
	}
	return remaining, false
}

func (s *Scheduler) finished(n Notifier, seq uint64) {
	line := []byte(FinishedPrefix + strconv.FormatUint(seq, 10) + "\r\n")
	if n != nil && n.Notify(line) {
		metrics.Notices.WithLabelValues("sent").Inc()
		return
	}
	metrics.Notices.WithLabelValues("dropped").Inc()
	s.log.Warn().Uint64("seq", seq).Msg("sender queue full, completion notice dropped")
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	s.draining = true
	s.queue.Clear()
	s.current = Command{}
	s.idle = true
	s.replace = false
	s.mu.Unlock()
	s.safely("release inputs", func() { _ = s.ctrl.Apply(State{}) })
	s.safely("detach", func() { _ = s.ctrl.Detach() })
}

// safely runs a teardown step, logging a driver panic instead of letting it
// escape the exiting goroutine.
func (s *Scheduler) safely(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("step", step).Msg("scheduler teardown")
		}
	}()
	fn()
}
