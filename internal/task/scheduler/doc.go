// Package scheduler drives a single task through its cron schedule.
//
// Each Scheduler owns at most one pending fire event. Run waits for it, fires
// the task body through an engine.Invoker, computes the next event relative to
// the moment the body returned, and repeats until the task passes its cutoff
// or the run context is cancelled. A body that is already running is never
// interrupted.
package scheduler
