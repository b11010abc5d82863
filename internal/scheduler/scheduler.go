// Package scheduler runs named periodic tasks, each on its own goroutine,
// so that a slow task never delays the ticks of another.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrStopped is returned when adding tasks to or starting a stopped scheduler.
	ErrStopped = errors.New("scheduler: stopped")

	// ErrAlreadyStarted is returned by a second Start call.
	ErrAlreadyStarted = errors.New("scheduler: already started")

	// ErrDuplicateTask is returned when a task name is already registered.
	ErrDuplicateTask = errors.New("scheduler: duplicate task")

	// ErrInvalidInterval is returned for non-positive intervals.
	ErrInvalidInterval = errors.New("scheduler: interval must be positive")

	// ErrTaskPanicked is returned by Wait when a task panicked while its
	// loop was running.
	ErrTaskPanicked = errors.New("scheduler: task panicked")
)

// Task is one unit of periodic work. The context is cancelled when the
// task or the whole scheduler is stopped.
type Task func(ctx context.Context) error

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type task struct {
	name     string
	interval time.Duration
	fn       Task
	cancel   context.CancelFunc
	running  atomic.Bool
}

// Scheduler runs named tasks at fixed intervals.
//
// Tasks registered before Start begin when Start is called; tasks
// registered afterwards begin immediately. The first run of a task happens
// one interval after it begins.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	ctx     context.Context
	cancel  context.CancelFunc
	group   errgroup.Group
	started bool

	stopped  atomic.Bool
	stopOnce sync.Once

	logger Logger
}

// New creates an idle scheduler.
func New() *Scheduler {
	return &Scheduler{
		tasks:  make(map[string]*task),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the scheduler.
func (s *Scheduler) SetLogger(logger Logger) {
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// Every registers fn to run every interval under name.
func (s *Scheduler) Every(name string, interval time.Duration, fn Task) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrStopped
	}
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
	}

	t := &task{name: name, interval: interval, fn: fn}
	s.tasks[name] = t
	if s.started {
		s.launch(t)
	}
	return nil
}

// Start begins running all registered tasks. ctx bounds the scheduler's
// lifetime in addition to Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return ErrStopped
	}
	if s.started {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true

	for _, t := range s.tasks {
		s.launch(t)
	}
	return nil
}

// launch starts the loop for t. Caller holds s.mu.
func (s *Scheduler) launch(t *task) {
	ctx, cancel := context.WithCancel(s.ctx)
	t.cancel = cancel
	logger := s.logger
	s.group.Go(func() error {
		return s.loop(ctx, t, logger)
	})
}

// loop ticks t until ctx is cancelled. Panics are recovered and the loop
// carries on; the count is reported once the loop exits.
func (s *Scheduler) loop(ctx context.Context, t *task, logger Logger) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	panics := 0
	for {
		select {
		case <-ctx.Done():
			if panics > 0 {
				return fmt.Errorf("%w: %s (%d times)", ErrTaskPanicked, t.name, panics)
			}
			return nil
		case <-ticker.C:
			if s.run(ctx, t, logger) {
				panics++
			}
		}
	}
}

// run executes one tick. A tick arriving while the previous run is still
// in progress is skipped; the ticker itself drops ticks while run blocks.
func (s *Scheduler) run(ctx context.Context, t *task, logger Logger) (panicked bool) {
	if !t.running.CompareAndSwap(false, true) {
		logger.Debug("task still running, tick skipped", "task", t.name)
		return false
	}
	defer t.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			logger.Warn("task panic recovered", "task", t.name, "panic", r)
			panicked = true
		}
	}()

	if err := t.fn(ctx); err != nil && ctx.Err() == nil {
		logger.Warn("task failed", "task", t.name, "error", err)
	}
	return false
}

// Cancel stops and removes the named task. It reports whether the task existed.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[name]
	if !ok {
		return false
	}
	if t.cancel != nil {
		t.cancel()
	}
	delete(s.tasks, name)
	return true
}

// Stop cancels every task. It returns without waiting, so a task may stop
// its own scheduler; use Wait to block until all loops have exited.
// Further calls are ignored.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)

		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		for name, t := range s.tasks {
			if t.cancel != nil {
				t.cancel()
			}
			delete(s.tasks, name)
		}
		s.mu.Unlock()
	})
}

// Wait blocks until every task loop has exited and returns the first
// ErrTaskPanicked, if any. It must not be called from inside a task.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}

// Stopped reports whether Stop has been called.
func (s *Scheduler) Stopped() bool {
	return s.stopped.Load()
}

// Tasks returns the names of registered tasks, sorted.
func (s *Scheduler) Tasks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
