package engine

import (
	"fmt"
)

// TaskError describes one failed invocation of a task body.
//
// Stack is set when the body panicked instead of returning an error.
type TaskError struct {
	Name  string
	ID    string
	Err   error
	Stack string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("run %s (%s) failed: %v", e.Name, e.ID, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Diagnostic renders the full failure detail handed to error handlers.
func (e *TaskError) Diagnostic() string {
	if e.Stack == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Stack
}

// PanicError is what a recovered panic turns into.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }
