package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronlite/internal/eventbus"
	"cronlite/internal/task/engine"
)

// every is a sub-second schedule so loop tests stay fast.
type every time.Duration

func (e every) Next(ref time.Time) time.Time { return ref.Add(time.Duration(e)) }
func (e every) String() string               { return "@every " + time.Duration(e).String() }

type never struct{}

func (never) Next(time.Time) time.Time { return time.Time{} }
func (never) String() string           { return "never" }

func newTask(expr Schedule, until time.Time, body func() error) *Task {
	return &Task{ID: "t-1", Name: "tick", Expr: expr, Until: until, Body: body}
}

func runAsync(ctx context.Context, s *Scheduler, env Env) <-chan State {
	out := make(chan State, 1)
	go func() { out <- s.Run(ctx, env) }()
	return out
}

func waitState(t *testing.T, ch <-chan State) State {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler loop did not exit")
		return StateWaiting
	}
}

func TestSeedPastCutoffNeverFires(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	now := time.Now()
	s := New(newTask(every(time.Second), now.Add(500*time.Millisecond), func() error {
		calls.Add(1)
		return nil
	}))

	assert.False(t, s.Seed(now))
	assert.Equal(t, StateDone, s.State())
	_, ok := s.Pending()
	assert.False(t, ok)

	assert.Equal(t, StateDone, s.Run(context.Background(), Env{}))
	assert.Zero(t, calls.Load())
}

func TestSeedInsertsFirstEvent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)
	s := New(newTask(every(3*time.Second), time.Time{}, func() error { return nil }))
	require.True(t, s.Seed(now))
	ev, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, now.Add(3*time.Second), ev.At)
	assert.Equal(t, now.Unix()+3, ev.Unix())
	assert.Equal(t, StateWaiting, s.State())
}

func TestFailingBodyIsRescheduledUntilCutoff(t *testing.T) {
	t.Parallel()
	var reported atomic.Int32
	env := Env{Invoker: engine.Invoker{OnError: func(string) error {
		reported.Add(1)
		return nil
	}}}
	s := New(newTask(every(20*time.Millisecond), time.Now().Add(300*time.Millisecond), func() error {
		return errors.New("always")
	}))
	require.True(t, s.Seed(time.Now()))

	st := waitState(t, runAsync(context.Background(), s, env))
	assert.Equal(t, StateDone, st)
	assert.GreaterOrEqual(t, s.Fires(), uint64(3))
	assert.Equal(t, s.Fires(), s.Failures())
	assert.Equal(t, int32(s.Fires()), reported.Load())
}

func TestPanickingBodyDoesNotKillLoop(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	s := New(newTask(every(10*time.Millisecond), time.Now().Add(150*time.Millisecond), func() error {
		n.Add(1)
		panic("nope")
	}))
	require.True(t, s.Seed(time.Now()))
	assert.Equal(t, StateDone, waitState(t, runAsync(context.Background(), s, Env{})))
	assert.GreaterOrEqual(t, n.Load(), int32(2))
}

func TestCancelDuringWaitAborts(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	s := New(newTask(every(time.Hour), time.Time{}, func() error {
		calls.Add(1)
		return nil
	}))
	require.True(t, s.Seed(time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s, Env{})
	time.Sleep(20 * time.Millisecond)
	start := time.Now()
	cancel()

	assert.Equal(t, StateAborted, waitState(t, done))
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, calls.Load())
	_, ok := s.Pending()
	assert.False(t, ok, "pending event must be discarded")
}

func TestInFlightBodyCompletesAfterCancel(t *testing.T) {
	t.Parallel()
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s := New(newTask(every(5*time.Millisecond), time.Time{}, func() error {
		close(entered)
		<-release
		finished.Store(true)
		return nil
	}))
	require.True(t, s.Seed(time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s, Env{})
	<-entered
	assert.Equal(t, StateRunning, s.State())
	cancel()

	select {
	case <-done:
		t.Fatal("loop exited while body was still running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)

	assert.Equal(t, StateAborted, waitState(t, done))
	assert.True(t, finished.Load())
	assert.Equal(t, uint64(1), s.Fires())
}

func TestNextEventComputedAfterReturn(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	runs, unsub := bus.Subscribe(16, eventbus.TypeTaskRun)
	defer unsub()

	s := New(newTask(every(10*time.Millisecond), time.Now().Add(200*time.Millisecond), func() error {
		time.Sleep(40 * time.Millisecond)
		return nil
	}))
	require.True(t, s.Seed(time.Now()))
	assert.Equal(t, StateDone, waitState(t, runAsync(context.Background(), s, Env{Bus: bus})))

	got := 0
	for len(runs) > 0 {
		ev := <-runs
		rec, ok := ev.Data.(RunEvent)
		require.True(t, ok)
		if !rec.Next.IsZero() {
			assert.False(t, rec.Next.Before(rec.Started.Add(rec.Duration)), "next fire must follow the return time")
		}
		got++
	}
	// 40ms bodies in a 200ms window: drift keeps this well below 200/10.
	assert.Less(t, got, 10)
	assert.GreaterOrEqual(t, got, 2)
}

func TestScheduleWithoutMatchIsDone(t *testing.T) {
	t.Parallel()
	s := New(newTask(never{}, time.Time{}, func() error { return nil }))
	assert.False(t, s.Seed(time.Now()))
	assert.Equal(t, StateDone, s.Run(context.Background(), Env{}))
}

func TestCallBypassesSchedule(t *testing.T) {
	t.Parallel()
	boom := errors.New("manual")
	task := newTask(every(time.Hour), time.Time{}, func() error { return boom })
	s := New(task)
	require.True(t, s.Seed(time.Now()))
	before, _ := s.Pending()

	assert.ErrorIs(t, task.Call(), boom)
	after, ok := s.Pending()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Zero(t, s.Fires())

	var pe *engine.PanicError
	assert.ErrorAs(t, (&Task{Body: func() error { panic(1) }}).Call(), &pe)
}

func TestInfo(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s := New(newTask(every(time.Minute), time.Time{}, func() error { return nil }))
	s.Seed(now)
	info := s.Info()
	assert.Equal(t, "tick", info.Name)
	assert.Equal(t, "@every 1m0s", info.Expr)
	assert.Equal(t, StateWaiting, info.State)
	assert.Equal(t, now.Add(time.Minute), info.Next)
	assert.Equal(t, "waiting", info.State.String())
	assert.True(t, StateAborted.Exited())
	assert.False(t, StateRunning.Exited())
}

// zoneRecorder reports every reference location it is asked about.
type zoneRecorder struct {
	every
	seen chan *time.Location
}

func (z zoneRecorder) Next(ref time.Time) time.Time {
	select {
	case z.seen <- ref.Location():
	default:
	}
	return z.every.Next(ref)
}

func TestNextFollowsZoneChangedAfterSeed(t *testing.T) {
	t.Parallel()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	var loc atomic.Pointer[time.Location]
	loc.Store(time.UTC)
	sched := zoneRecorder{every: every(50 * time.Millisecond), seen: make(chan *time.Location, 8)}
	s := New(newTask(sched, time.Time{}, func() error { return nil }))
	bus := eventbus.New()
	runs, unsub := bus.Subscribe(8, eventbus.TypeTaskRun)
	defer unsub()

	env := Env{Now: func() time.Time { return time.Now().In(loc.Load()) }, Bus: bus}
	require.True(t, s.Seed(env.Now()))
	assert.Equal(t, time.UTC, <-sched.seen)

	// Changing the zone after registration affects the next computation.
	loc.Store(tokyo)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s, env)

	select {
	case e := <-runs:
		ev := e.Data.(RunEvent)
		assert.Equal(t, "Asia/Tokyo", ev.Next.Location().String())
	case <-time.After(2 * time.Second):
		t.Fatal("task did not fire")
	}
	cancel()
	waitState(t, done)
	assert.Equal(t, tokyo, <-sched.seen)
}
