package cronlite

import (
	"time"

	"cronlite/internal/runtime/supervisor"
	"cronlite/internal/task/engine"
	"cronlite/internal/task/scheduler"
)

// Run is the handle of one Start..finish cycle. It represents all task loops
// spawned for that cycle.
type Run struct {
	sup     *supervisor.Supervisor
	env     scheduler.Env
	info    Handler
	started time.Time
	done    chan struct{}

	// guarded by Controller.mu
	live      int
	finishing bool
	spawned   map[string]struct{}
	finished  time.Time
}

// Done is closed after every loop goroutine returned, the finished notice was emitted
// and the registry was cleared.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until Done is closed.
func (r *Run) Wait() { <-r.done }

// Workers returns the goroutine stats of this run's task loops. After Done
// it is final.
func (r *Run) Workers() WorkerSnapshot { return r.sup.Snapshot() }

// Started returns when the run began.
func (r *Run) Started() time.Time { return r.started }

// Stopping reports whether stop was requested (or the parent context ended).
func (r *Run) Stopping() bool { return r.sup.Context().Err() != nil }

func (r *Run) invoker() engine.Invoker { return r.env.Invoker }
