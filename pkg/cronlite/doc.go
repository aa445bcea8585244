// Package cronlite runs registered functions on cron schedules.
//
// Register functions first, then Start the controller. Every task gets its
// own goroutine that sleeps until the next matching instant, runs the
// function, and computes the following instant from the time the function
// returned. A task that runs long therefore drifts forward; missed
// occurrences are never replayed.
//
//	c := cronlite.New()
//	_, err := c.Register("* * * * * 0/3", func() error {
//	    return ping(ctx)
//	}, cronlite.WithName("ping"))
//	run, err := c.Start(ctx, true)
//	...
//	c.Stop(run) // blocks until every task loop exited
//
// Expressions have 5 fields (minute hour day-of-month month weekday) or 6
// with a trailing seconds field. Failures of task bodies and of the
// configured handlers are contained; only registration (ErrConfig) and
// Start (ErrAlreadyRunning) return errors to the caller.
//
// The package-level functions operate on a process-wide Default controller.
package cronlite
