package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fadedpez/ebucks/internal/logging"
)

// Task represents a scheduled task
type Task struct {
	Name     string
	Interval time.Duration
	Fn       func(context.Context) error
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	tasks   []*Task
	running bool
	mutex   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *logging.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{
		tasks:  make([]*Task, 0),
		logger: logger.WithComponent("scheduler"),
	}
}

// AddTask adds a task to the scheduler. Tasks added after Start run on the next Start.
func (s *Scheduler) AddTask(name string, interval time.Duration, fn func(context.Context) error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tasks = append(s.tasks, &Task{
		Name:     name,
		Interval: interval,
		Fn:       fn,
	})
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.runTask(ctx, task)
	}

	s.logger.Debug("Scheduler started with %d tasks", len(s.tasks))
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mutex.Unlock()

	s.wg.Wait()
	s.logger.Debug("Scheduler stopped")
}

// Running reports whether Start has been called without a matching Stop
func (s *Scheduler) Running() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.running
}

// runTask runs a task at the specified interval
func (s *Scheduler) runTask(ctx context.Context, task *Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	// Run the task immediately on startup
	s.run(ctx, task)

	for {
		select {
		case <-ticker.C:
			s.run(ctx, task)
		case <-ctx.Done():
			s.logger.Debug("Task %s stopped", task.Name)
			return
		}
	}
}

func (s *Scheduler) run(ctx context.Context, task *Task) {
	if ctx.Err() != nil {
		return
	}
	if err := task.Fn(ctx); err != nil {
		s.logger.Warn("Error running task %s: %v", task.Name, err)
	}
}
