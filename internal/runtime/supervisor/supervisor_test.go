package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "cronlite/pkg/logx"
)

func TestGoAndWait(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		s.Go0("worker", func(ctx context.Context) {
			ran.Add(1)
			<-ctx.Done()
		})
	}
	assert.Eventually(t, func() bool { return s.Counters().Active == 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.Equal(t, int32(3), ran.Load())
	c := s.Counters()
	assert.Equal(t, int64(0), c.Active)
	assert.Equal(t, uint64(3), c.Started)

	snap := s.Snapshot()
	require.Len(t, snap.Goroutines, 1)
	assert.Equal(t, "worker", snap.Goroutines[0].Name)
	assert.Equal(t, uint64(3), snap.Goroutines[0].Started)
}

func TestFirstErrorKept(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	first := errors.New("first")
	s.Go("a", func(context.Context) error { return first })
	s.Go("b", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return errors.New("second")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, s.Err(), first)
}

func TestCanceledIsNotAnError(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Err())
}

func TestPanicRecovered(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	s.Go0("boom", func(context.Context) { panic("kaboom") })
	<-s.Done()

	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "panic in boom: kaboom")
	snap := s.Snapshot()
	require.Len(t, snap.Goroutines, 1)
	assert.Equal(t, uint64(1), snap.Goroutines[0].Panics)
	assert.Equal(t, "kaboom", snap.Goroutines[0].LastPanic)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithLogger(logx.Nop()))
	release := make(chan struct{})
	s.Go0("stuck", func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, s.Wait(context.Background()))
}

func TestNilSupervisorCounters(t *testing.T) {
	t.Parallel()

	var s *Supervisor
	assert.Equal(t, Counters{}, s.Counters())
	assert.Equal(t, Snapshot{}, s.Snapshot())
}
