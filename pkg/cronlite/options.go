package cronlite

import (
	"io"
	"time"

	"cronlite/internal/eventbus"
	logx "cronlite/pkg/logx"
)

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(log logx.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithBus publishes lifecycle and per-run events to bus.
func WithBus(bus eventbus.Bus) Option {
	return func(c *Controller) {
		if bus != nil {
			c.bus = bus
		}
	}
}

// WithLocation sets the initial scheduling timezone (default UTC).
func WithLocation(loc *time.Location) Option {
	return func(c *Controller) {
		if loc != nil {
			c.loc.Store(loc)
		}
	}
}

// WithFallback sets where minimal messages go when a handler fails (default stderr).
func WithFallback(w io.Writer) Option {
	return func(c *Controller) { c.fallback = w }
}

// TaskOption configures a single registration.
type TaskOption func(*taskOptions)

type taskOptions struct {
	name  string
	until time.Time
}

// WithName overrides the task name used in logs and diagnostics. The default
// is the body's function name.
func WithName(name string) TaskOption {
	return func(o *taskOptions) { o.name = name }
}

// Until sets the cutoff: no fire is ever scheduled after t.
func Until(t time.Time) TaskOption {
	return func(o *taskOptions) { o.until = t }
}

// StartOption configures a single run.
type StartOption func(*startOptions)

type startOptions struct {
	info    Handler
	onError Handler
}

// WithInfoHandler receives the "cron started" and "cron finished" notices.
func WithInfoHandler(h Handler) StartOption {
	return func(o *startOptions) { o.info = h }
}

// WithErrorHandler receives one diagnostic per failed invocation.
func WithErrorHandler(h Handler) StartOption {
	return func(o *startOptions) { o.onError = h }
}
