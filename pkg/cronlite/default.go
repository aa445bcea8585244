package cronlite

import "context"

var std = New()

// Default returns the process-wide controller used by the package-level functions.
func Default() *Controller { return std }

// Register registers body on the Default controller.
func Register(expr string, body func() error, opts ...TaskOption) (*Task, error) {
	return std.Register(expr, body, opts...)
}

// RegisterFunc registers fn on the Default controller.
func RegisterFunc(expr string, fn func(), opts ...TaskOption) (*Task, error) {
	return std.RegisterFunc(expr, fn, opts...)
}

// Start starts the Default controller. See Controller.Start.
func Start(ctx context.Context, spawn bool, opts ...StartOption) (*Run, error) {
	return std.Start(ctx, spawn, opts...)
}

// Stop stops the Default controller. See Controller.Stop.
func Stop(r *Run) { std.Stop(r) }

// SetTimeZone sets the timezone of the Default controller.
func SetTimeZone(name string) error { return std.SetTimeZone(name) }
