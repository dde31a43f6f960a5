package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewSchedulerRejectsBadInterval(t *testing.T) {
	_, err := NewScheduler(func(context.Context) error { return nil }, 0, nil)
	assert.Error(t, err)
}

func TestSchedulerRunsRepeatedlyWithoutOverlap(t *testing.T) {
	var active, maxActive, calls int32
	job := func(ctx context.Context) error {
		n := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		atomic.AddInt32(&calls, 1)
		time.Sleep(15 * time.Millisecond)
		return nil
	}

	s, err := NewScheduler(job, 5*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	s.Start(context.Background())

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 3 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
	assert.Equal(t, int32(0), atomic.LoadInt32(&active))

	after := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&calls))
}

func TestSchedulerRecordsLastError(t *testing.T) {
	boom := errors.New("all candidate URLs failed")
	s, err := NewScheduler(func(context.Context) error { return boom }, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		n, _ := s.Runs()
		return n == 1
	}, time.Second, 5*time.Millisecond)
	s.Stop()

	n, last := s.Runs()
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, last, boom)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	job := func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}
	s, err := NewScheduler(job, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(finished)
	}()

	<-started
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
