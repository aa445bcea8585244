package scheduler

import (
	"time"

	"cronlite/internal/task/engine"
)

// Schedule yields fire times. cronexpr.Expression is the production implementation.
type Schedule interface {
	// Next returns the first fire time strictly after ref, or the zero time if there is none.
	Next(ref time.Time) time.Time
	String() string
}

// Task is an immutable registration: what to run and when.
type Task struct {
	ID    string
	Name  string
	Expr  Schedule
	Until time.Time // zero means no cutoff
	Body  func() error
}

// Call runs the body directly, outside the schedule. Panics are returned as
// *engine.PanicError.
func (t *Task) Call() error {
	err, _ := engine.Safe(t.Body)
	return err
}

func (t *Task) String() string { return t.Name + "(" + t.Expr.String() + ")" }

// NextAfter computes the event following ref. It reports false when the
// schedule has no further match or the match lies past the cutoff.
func (t *Task) NextAfter(ref time.Time) (PendingEvent, bool) {
	at := t.Expr.Next(ref)
	if at.IsZero() {
		return PendingEvent{}, false
	}
	if !t.Until.IsZero() && at.After(t.Until) {
		return PendingEvent{}, false
	}
	return PendingEvent{At: at}, true
}

// PendingEvent is the next scheduled fire of a task.
type PendingEvent struct {
	At time.Time
}

// Unix returns the fire time as epoch seconds.
func (e PendingEvent) Unix() int64 { return e.At.Unix() }

type State int32

const (
	StateWaiting State = iota
	StateRunning
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Exited reports whether a loop in this state has terminated.
func (s State) Exited() bool { return s == StateDone || s == StateAborted }

// RunEvent is published on the bus after every invocation.
type RunEvent struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Scheduled time.Time     `json:"scheduled"`
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
	Next      time.Time     `json:"next,omitempty"`
}

// ExitEvent is published when a task loop terminates.
type ExitEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State State  `json:"state"`
	Fires uint64 `json:"fires"`
}

// Info is a point-in-time view of a scheduler for diagnostics.
type Info struct {
	ID       string
	Name     string
	Expr     string
	Until    time.Time
	State    State
	Next     time.Time
	LastRun  time.Time
	Fires    uint64
	Failures uint64
}
