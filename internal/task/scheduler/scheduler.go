package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cronlite/internal/eventbus"
	"cronlite/internal/task/engine"
	logx "cronlite/pkg/logx"
)

// Env carries the run-wide collaborators a loop needs. It is handed to every
// loop when the run starts.
type Env struct {
	Invoker engine.Invoker
	// Now returns the current time in the scheduling timezone.
	Now func() time.Time
	Log logx.Logger
	Bus eventbus.Bus
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Scheduler owns the pending event of one task.
type Scheduler struct {
	task *Task

	mu      sync.Mutex
	pending *PendingEvent
	lastRun time.Time

	state    atomic.Int32
	fires    atomic.Uint64
	failures atomic.Uint64
}

// New returns a scheduler with no pending event (StateDone) until Seed is called.
func New(task *Task) *Scheduler {
	s := &Scheduler{task: task}
	s.state.Store(int32(StateDone))
	return s
}

func (s *Scheduler) Task() *Task { return s.task }

func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) setState(st State) { s.state.Store(int32(st)) }

// Seed computes the first event relative to now. It reports false when the
// first fire would already be past the cutoff; the task then never fires.
func (s *Scheduler) Seed(now time.Time) bool {
	ev, ok := s.task.NextAfter(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok {
		s.pending = nil
		s.setState(StateDone)
		return false
	}
	s.pending = &ev
	s.setState(StateWaiting)
	return true
}

// Pending returns the next event, if any.
func (s *Scheduler) Pending() (PendingEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return PendingEvent{}, false
	}
	return *s.pending, true
}

func (s *Scheduler) take() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

func (s *Scheduler) Fires() uint64 { return s.fires.Load() }

func (s *Scheduler) Failures() uint64 { return s.failures.Load() }

func (s *Scheduler) Info() Info {
	s.mu.Lock()
	var next time.Time
	if s.pending != nil {
		next = s.pending.At
	}
	last := s.lastRun
	s.mu.Unlock()
	return Info{
		ID:       s.task.ID,
		Name:     s.task.Name,
		Expr:     s.task.Expr.String(),
		Until:    s.task.Until,
		State:    s.State(),
		Next:     next,
		LastRun:  last,
		Fires:    s.Fires(),
		Failures: s.Failures(),
	}
}

// Run drives the task until it is done or ctx is cancelled, and returns the
// terminal state. Cancellation discards the pending event; a body that is
// already running always completes first.
func (s *Scheduler) Run(ctx context.Context, env Env) State {
	log := env.Log.With(logx.String("task", s.task.Name), logx.String("id", s.task.ID))
	for {
		ev, ok := s.Pending()
		if !ok {
			return s.exit(env, log, StateDone)
		}
		if ctx.Err() != nil || !sleepUntil(ctx, ev.At.Sub(env.now())) {
			s.take()
			return s.exit(env, log, StateAborted)
		}

		s.take()
		s.setState(StateRunning)
		started := time.Now()
		te := env.Invoker.Invoke(s.task.Name, s.task.ID, s.task.Body)
		took := time.Since(started)
		s.fires.Add(1)

		rec := RunEvent{ID: s.task.ID, Name: s.task.Name, Scheduled: ev.At, Started: started, Duration: took}
		if te != nil {
			s.failures.Add(1)
			rec.Error = te.Err.Error()
			log.Debug("task failed", logx.Duration("took", took), logx.Err(te.Err))
		} else {
			log.Debug("task fired", logx.Duration("took", took))
		}

		// Relative to the return time: slow bodies drift, missed slots are skipped.
		next, more := s.task.NextAfter(env.now())
		s.mu.Lock()
		s.lastRun = started
		if more {
			s.pending = &next
		}
		s.mu.Unlock()
		if more {
			rec.Next = next.At
			s.setState(StateWaiting)
		}
		if env.Bus != nil {
			env.Bus.Publish(eventbus.Event{Type: eventbus.TypeTaskRun, Data: rec})
		}
	}
}

func (s *Scheduler) exit(env Env, log logx.Logger, st State) State {
	s.setState(st)
	log.Debug("task loop exited", logx.String("state", st.String()), logx.Uint64("fires", s.Fires()))
	if env.Bus != nil {
		env.Bus.Publish(eventbus.Event{Type: eventbus.TypeTaskExit, Data: ExitEvent{ID: s.task.ID, Name: s.task.Name, State: st, Fires: s.Fires()}})
	}
	return st
}

// sleepUntil waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepUntil(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
