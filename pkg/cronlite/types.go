package cronlite

import (
	"fmt"
	"io"
	"strings"
	"time"

	"cronlite/internal/runtime/supervisor"
	"cronlite/internal/task/engine"
	"cronlite/internal/task/scheduler"
	logx "cronlite/pkg/logx"
)

// Re-export task types so callers only import this package.
type (
	// Task is the handle returned by Register. Task.ID is its registry key and
	// Task.Call runs the body directly.
	Task = scheduler.Task

	// Handler receives "cron started"/"cron finished" notices or failure diagnostics.
	Handler = engine.Handler

	State = scheduler.State

	TaskInfo = scheduler.Info

	RunEvent = scheduler.RunEvent

	ExitEvent = scheduler.ExitEvent

	TaskError = engine.TaskError

	// WorkerSnapshot carries per-loop goroutine stats (starts, panics, last
	// runtime) of a run.
	WorkerSnapshot = supervisor.Snapshot
)

const (
	StateWaiting = scheduler.StateWaiting
	StateRunning = scheduler.StateRunning
	StateDone    = scheduler.StateDone
	StateAborted = scheduler.StateAborted
)

// Snapshot is a point-in-time view of a controller.
type Snapshot struct {
	Running  bool
	Timezone string
	Tasks    []TaskInfo
	Workers  WorkerSnapshot
}

// LogHandler writes messages to log at the given level. Multi-line messages
// (failure diagnostics) keep the first line as message and the rest as stack.
func LogHandler(log logx.Logger, level logx.Level) Handler {
	return func(msg string) error {
		first, rest, _ := strings.Cut(msg, "\n")
		switch {
		case level >= logx.LevelError:
			log.Error(first, logx.Stack(rest))
		case level >= logx.LevelWarn:
			log.Warn(first, logx.Stack(rest))
		default:
			log.Info(first, logx.Stack(rest))
		}
		return nil
	}
}

// PrintHandler writes each message as one line to w.
func PrintHandler(w io.Writer) Handler {
	return func(msg string) error {
		_, err := fmt.Fprintln(w, msg)
		return err
	}
}

// TimestampHandler prefixes messages with the current time before passing them on.
func TimestampHandler(next Handler) Handler {
	return func(msg string) error {
		return next(time.Now().Format("2006-01-02 15:04:05") + " " + msg)
	}
}
