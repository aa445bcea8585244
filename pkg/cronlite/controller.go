package cronlite

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cronlite/internal/cronexpr"
	"cronlite/internal/eventbus"
	"cronlite/internal/runtime/supervisor"
	"cronlite/internal/task/engine"
	"cronlite/internal/task/scheduler"
	logx "cronlite/pkg/logx"
)

// Controller owns the task registry and the running switch.
//
// Register is expected to be called before Start; registering during a run
// spawns the new task's loop immediately. Start is not reentrant.
type Controller struct {
	mu       sync.Mutex
	registry map[string]*scheduler.Scheduler
	order    []string
	run      *Run

	loc      atomic.Pointer[time.Location]
	log      logx.Logger
	bus      eventbus.Bus
	fallback io.Writer
}

// New returns an idle controller scheduling in UTC.
func New(opts ...Option) *Controller {
	c := &Controller{
		registry: map[string]*scheduler.Scheduler{},
		log:      logx.NewConsole("info"),
		bus:      eventbus.Nop(),
	}
	c.loc.Store(time.UTC)
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With(logx.String("comp", "cronlite"))
	return c
}

// Location returns the scheduling timezone.
func (c *Controller) Location() *time.Location { return c.loc.Load() }

// SetTimeZone changes the timezone used by every later next-fire computation,
// including those of tasks already registered.
func (c *Controller) SetTimeZone(name string) error {
	loc, err := cronexpr.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownTimeZone, err)
	}
	c.loc.Store(loc)
	c.log.Debug("timezone set", logx.String("tz", loc.String()))
	return nil
}

func (c *Controller) now() time.Time { return time.Now().In(c.Location()) }

// Register validates expr and registers body to run on it.
//
// The first fire time is computed immediately. When Until is set and that
// time already lies past the cutoff, the task is kept but never fires.
func (c *Controller) Register(expr string, body func() error, opts ...TaskOption) (*Task, error) {
	return c.register(expr, body, funcName(body), opts)
}

// RegisterFunc is Register for bodies that do not return an error.
func (c *Controller) RegisterFunc(expr string, fn func(), opts ...TaskOption) (*Task, error) {
	var body func() error
	if fn != nil {
		body = func() error { fn(); return nil }
	}
	return c.register(expr, body, funcName(fn), opts)
}

func (c *Controller) register(expr string, body func() error, defName string, opts []TaskOption) (*Task, error) {
	e, err := cronexpr.Parse(expr)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%w: nil task body", ErrConfig)
	}
	var o taskOptions
	for _, opt := range opts {
		opt(&o)
	}
	name := strings.TrimSpace(o.name)
	if name == "" {
		name = defName
	}

	task := &Task{ID: uuid.NewString(), Name: name, Expr: e, Until: o.until, Body: body}
	s := scheduler.New(task)
	seeded := s.Seed(c.now())

	c.mu.Lock()
	c.registry[task.ID] = s
	c.order = append(c.order, task.ID)
	if r := c.run; r != nil && !r.finishing && !r.Stopping() {
		c.spawnLocked(r, s)
	}
	c.mu.Unlock()

	log := c.log.With(logx.String("task", name), logx.String("id", task.ID), logx.String("cron", e.String()))
	if !seeded {
		log.Info("task registered without fire: cutoff precedes first occurrence", logx.Time("until", o.until))
	} else if log.Enabled(logx.LevelDebug) {
		log.Debug("task registered", logx.String("next", cronexpr.FormatPreview(e, c.now(), 3)))
	}
	return task, nil
}

// Start flips the switch on and spawns one loop per registered task.
//
// With spawn set, Start returns immediately and the returned Run tracks the
// loops. Otherwise Start blocks until every loop exited. Cancelling ctx has
// the same effect as Stop.
func (c *Controller) Start(ctx context.Context, spawn bool, opts ...StartOption) (*Run, error) {
	o := startOptions{
		info:    LogHandler(c.log, logx.LevelInfo),
		onError: LogHandler(c.log, logx.LevelError),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.run != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	sup := supervisor.New(ctx, supervisor.WithLogger(c.log.With(logx.String("comp", "supervisor"))))
	r := &Run{
		sup:     sup,
		info:    o.info,
		started: time.Now(),
		done:    make(chan struct{}),
		spawned: map[string]struct{}{},
		// The anchor keeps the run alive until the initial loops are spawned.
		live: 1,
	}
	r.env = scheduler.Env{
		Invoker: engine.Invoker{OnError: o.onError, Fallback: c.fallback, Log: c.log},
		Now:     c.now,
		Log:     c.log,
		Bus:     c.bus,
	}
	c.run = r
	c.mu.Unlock()

	r.invoker().Emit(r.info, "cron started")
	c.bus.Publish(eventbus.Event{Type: eventbus.TypeCronStarted, Time: r.started})

	c.mu.Lock()
	for _, id := range c.order {
		c.spawnLocked(r, c.registry[id])
	}
	n := len(r.spawned)
	c.mu.Unlock()
	c.log.Debug("run started", logx.Int("tasks", n), logx.String("tz", c.Location().String()))

	c.release(r)

	if !spawn {
		r.Wait()
	}
	return r, nil
}

func (c *Controller) spawnLocked(r *Run, s *scheduler.Scheduler) {
	id := s.Task().ID
	if _, ok := r.spawned[id]; ok {
		return
	}
	r.spawned[id] = struct{}{}
	r.live++
	r.sup.Go0("task:"+s.Task().Name, func(ctx context.Context) {
		defer c.release(r)
		s.Run(ctx, r.env)
	})
}

// release drops one live reference; the last one finishes the run.
func (c *Controller) release(r *Run) {
	c.mu.Lock()
	r.live--
	if r.live > 0 || r.finishing {
		c.mu.Unlock()
		return
	}
	r.finishing = true
	// Tasks registered from here on belong to the next run.
	for _, id := range c.order {
		if _, ok := r.spawned[id]; ok {
			delete(c.registry, id)
		}
	}
	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := c.registry[id]; ok {
			kept = append(kept, id)
		}
	}
	c.order = kept
	c.mu.Unlock()

	// The caller is usually the last supervised loop itself, so the join
	// cannot happen on this goroutine.
	go c.finish(r)
}

// finish runs once per Run, after the last live reference was released. No
// loop can be spawned once finishing is set, so waiting on the supervisor is
// a complete join.
func (c *Controller) finish(r *Run) {
	<-r.sup.Done()

	r.invoker().Emit(r.info, "cron finished")
	r.sup.Cancel()
	workers := r.sup.Snapshot()

	c.mu.Lock()
	r.finished = time.Now()
	c.run = nil
	c.mu.Unlock()

	c.bus.Publish(eventbus.Event{Type: eventbus.TypeCronFinished, Time: r.finished, Data: workers})
	c.log.Debug("run finished", logx.Duration("took", r.finished.Sub(r.started)), logx.Uint64("loops", workers.Counters.Started))
	close(r.done)
}

// Stop turns the switch off. Waiting loops exit right away; a running body
// completes first. When r is non-nil Stop blocks until r is done.
func (c *Controller) Stop(r *Run) {
	c.mu.Lock()
	cur := c.run
	c.mu.Unlock()
	if cur != nil {
		cur.sup.Cancel()
	}
	if r == nil {
		return
	}
	if r != cur {
		r.sup.Cancel()
	}
	r.Wait()
}

// Running reports whether the switch is on.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil && !c.run.finishing && !c.run.Stopping()
}

// Tasks returns the registered tasks in registration order.
func (c *Controller) Tasks() []*Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Task, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.registry[id].Task())
	}
	return out
}

// Lookup returns the scheduler state of a registered task.
func (c *Controller) Lookup(id string) (TaskInfo, bool) {
	c.mu.Lock()
	s, ok := c.registry[id]
	c.mu.Unlock()
	if !ok {
		return TaskInfo{}, false
	}
	return s.Info(), true
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	scheds := make([]*scheduler.Scheduler, 0, len(c.order))
	for _, id := range c.order {
		scheds = append(scheds, c.registry[id])
	}
	var workers WorkerSnapshot
	if c.run != nil {
		workers = c.run.sup.Snapshot()
	}
	c.mu.Unlock()

	snap := Snapshot{
		Running:  c.Running(),
		Timezone: c.Location().String(),
		Workers:  workers,
		Tasks:    make([]TaskInfo, 0, len(scheds)),
	}
	for _, s := range scheds {
		snap.Tasks = append(snap.Tasks, s.Info())
	}
	return snap
}

func funcName(fn any) string {
	if fn == nil {
		return "task"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return "task"
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return "task"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
