package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"cronlite/internal/config"
	"cronlite/internal/eventbus"
	"cronlite/internal/runtime/supervisor"
	"cronlite/internal/task/scheduler"
	"cronlite/pkg/cronlite"
	logx "cronlite/pkg/logx"
)

// App runs the jobs of one config file until stopped or until every job
// passed its cutoff.
type App struct {
	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	ctl   *cronlite.Controller
	tasks []*cronlite.Task
	run   *cronlite.Run
}

func NewApp(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("info").With(logx.String("comp", "config"))
	cfgm := config.NewConfigManager(cfgPath, bootLog)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logConfig(cfg.Logging))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	bus := eventbus.New()
	ctl := cronlite.New(
		cronlite.WithLogger(log),
		cronlite.WithBus(bus),
	)
	if err := ctl.SetTimeZone(cfg.Timezone); err != nil {
		return nil, err
	}
	tasks, err := registerJobs(ctl, cfg.Jobs, log.With(logx.String("comp", "jobs")))
	if err != nil {
		return nil, err
	}

	return &App{
		cfgm:  cfgm,
		log:   log.With(logx.String("comp", "app")),
		logs:  logSvc,
		bus:   bus,
		ctl:   ctl,
		tasks: tasks,
	}, nil
}

func (a *App) Controller() *cronlite.Controller { return a.ctl }

// Done is closed when the run has finished, either after Stop or because
// every job passed its cutoff.
func (a *App) Done() <-chan struct{} {
	if a.run == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.run.Done()
}

// Err returns the first error reported by a background loop (config watch).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log))

	if a.bus != nil {
		events, unsub := a.bus.Subscribe(128)
		a.sup.Go0("eventbus.log", func(c context.Context) {
			defer unsub()
			for {
				select {
				case <-c.Done():
					return
				case e, ok := <-events:
					if !ok {
						return
					}
					a.logEvent(e)
				}
			}
		})
	}

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	run, err := a.ctl.Start(a.sup.Context(), true,
		cronlite.WithInfoHandler(cronlite.LogHandler(a.log, logx.LevelInfo)),
		cronlite.WithErrorHandler(cronlite.LogHandler(a.log.With(logx.String("comp", "jobs")), logx.LevelError)),
	)
	if err != nil {
		a.sup.Cancel()
		return err
	}
	a.run = run

	notifySystemd(a.log, daemon.SdNotifyReady)
	a.log.Info("app started", logx.Int("jobs", len(a.tasks)), logx.String("timezone", a.ctl.Location().String()))
	return nil
}

func (a *App) logEvent(e eventbus.Event) {
	switch d := e.Data.(type) {
	case scheduler.RunEvent:
		fields := []logx.Field{
			logx.String("task", d.Name),
			logx.Duration("took", d.Duration),
			logx.Time("next", d.Next),
		}
		if d.Error != "" {
			fields = append(fields, logx.String("err", d.Error))
		}
		a.log.Debug("task run", fields...)
	case scheduler.ExitEvent:
		a.log.Debug("task exited",
			logx.String("task", d.Name),
			logx.String("state", d.State.String()),
			logx.Uint64("fires", d.Fires),
		)
	case supervisor.Snapshot:
		a.logWorkers(d)
	default:
		a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
	}
}

// logWorkers reports per-loop stats once a run finished. Loops that
// panicked are surfaced at warn level.
func (a *App) logWorkers(snap supervisor.Snapshot) {
	for _, g := range snap.Goroutines {
		fields := []logx.Field{
			logx.String("loop", g.Name),
			logx.Uint64("started", g.Started),
			logx.Uint64("panics", g.Panics),
			logx.Duration("last_runtime", g.LastRuntime),
		}
		if g.LastErr != "" {
			fields = append(fields, logx.String("last_err", g.LastErr))
		}
		if g.Panics > 0 {
			a.log.Warn("task loop panicked", append(fields, logx.String("last_panic", g.LastPanic))...)
			continue
		}
		a.log.Debug("task loop stats", fields...)
	}
	if snap.FirstError != "" {
		a.log.Warn("task loops reported an error", logx.String("err", snap.FirstError))
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	ch := config.SummarizeConfigChange(oldCfg, newCfg)
	if ch.Empty() {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if ch.LoggingChanged {
		a.logs.Apply(logConfig(newCfg.Logging))
	}
	if ch.TimezoneChanged {
		if err := a.ctl.SetTimeZone(newCfg.Timezone); err != nil {
			a.log.Warn("invalid timezone; keeping previous", logx.Err(err))
		}
	}
	if ch.JobsChanged {
		a.log.Warn("jobs changed; restart required for changes to take effect")
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
	a.log.Info("config reloaded", fields...)
}

// Stop cancels the run and waits for in-flight jobs, bounded by ctx. A job
// still running at the deadline is left to finish on its own.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	notifySystemd(a.log, daemon.SdNotifyStopping)

	var firstErr error
	step := func(name string, fn func()) {
		start := time.Now()
		done := make(chan struct{})
		go func() {
			defer close(done)
			fn()
		}()
		select {
		case <-done:
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-ctx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Duration("elapsed", time.Since(start)),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", name, ctx.Err())
			}
		}
	}

	step("scheduler", func() { a.ctl.Stop(a.run) })
	step("supervisor", func() { _ = a.sup.Stop(ctx) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return firstErr
}

func logConfig(c config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File: logx.FileConfig{
			Enabled: c.File.Enabled,
			Path:    c.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    c.Alert.Enabled,
			MinLevel:   c.Alert.MinLevel,
			RatePerSec: c.Alert.RatePerSec,
		},
	}
}
