package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
	"github.com/stretchr/testify/assert"
)

func TestTaskRunsImmediatelyAndRepeats(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(logging.Nop())
	s.AddTask("tick", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	s.Start(context.Background())
	assert.True(t, s.Running())
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load(), "no runs after Stop")
}

func TestTaskErrorsDoNotStopScheduler(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(nil)
	s.AddTask("failing", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("nope")
	})

	s.Start(context.Background())
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestParentContextCancelStopsTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s := NewScheduler(nil)
	s.AddTask("wait", time.Hour, func(ctx context.Context) error {
		return nil
	})
	s.Start(ctx)
	cancel()

	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
