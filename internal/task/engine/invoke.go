package engine

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	logx "cronlite/pkg/logx"
)

// Handler receives informational or diagnostic messages from the scheduler.
//
// A handler fails by returning an error or panicking; either way the failure
// is contained and replaced with a one-line fallback message.
type Handler func(msg string) error

// Invoker runs task bodies so that neither the body nor the configured
// handlers can take down the calling loop.
type Invoker struct {
	OnError  Handler
	Fallback io.Writer // defaults to logx.Stderr()
	Log      logx.Logger
}

// Invoke runs body once. A returned error or panic is formatted and passed to
// OnError exactly once; the resulting *TaskError is returned for bookkeeping.
func (iv Invoker) Invoke(name, id string, body func() error) *TaskError {
	err, stack := Safe(body)
	if err == nil {
		return nil
	}
	te := &TaskError{Name: name, ID: id, Err: err, Stack: stack}
	iv.emit("error", iv.OnError, te.Diagnostic())
	return te
}

// Emit delivers msg to h with the same containment Invoke applies to the error handler.
func (iv Invoker) Emit(h Handler, msg string) {
	iv.emit("info", h, msg)
}

func (iv Invoker) emit(kind string, h Handler, msg string) {
	if h == nil {
		return
	}
	err, _ := Safe(func() error { return h(msg) })
	if err == nil {
		return
	}
	iv.Log.Warn("handler failed", logx.String("kind", kind), logx.Err(err))

	w := iv.Fallback
	if w == nil {
		w = logx.Stderr()
	}
	first, _, _ := strings.Cut(msg, "\n")
	// Best effort: there is nowhere left to report a failing fallback writer.
	_, _ = fmt.Fprintf(w, "cronlite: %s handler failed (%v); message: %s\n", kind, err, first)
}

// Safe calls fn, converting a panic into a *PanicError plus the captured stack.
func Safe(fn func() error) (err error, stack string) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
			stack = string(debug.Stack())
		}
	}()
	return fn(), ""
}
