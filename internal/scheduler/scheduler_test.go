package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// waitFor polls cond until it is true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestEvery_RunsPeriodically(t *testing.T) {
	s := New()
	var runs atomic.Int32

	if err := s.Every("tick", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		s.Stop()
		_ = s.Wait()
	}()

	if !waitFor(t, time.Second, func() bool { return runs.Load() >= 3 }) {
		t.Errorf("runs = %d, want >= 3", runs.Load())
	}
}

func TestSlowTaskDoesNotBlockOthers(t *testing.T) {
	s := New()
	var fast atomic.Int32
	release := make(chan struct{})

	_ = s.Every("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	_ = s.Every("fast", 10*time.Millisecond, func(context.Context) error {
		fast.Add(1)
		return nil
	})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return fast.Load() >= 5 }) {
		t.Errorf("fast runs = %d while slow task blocked, want >= 5", fast.Load())
	}

	close(release)
	s.Stop()
	_ = s.Wait()
}

func TestStop_IdempotentAndImmediate(t *testing.T) {
	s := New()
	started := make(chan struct{}, 1)

	_ = s.Every("blocking", 5*time.Millisecond, func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})
	_ = s.Start(context.Background())

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("task never started")
	}

	s.Stop()
	s.Stop()
	if !s.Stopped() {
		t.Error("Stopped() = false after Stop")
	}
	if len(s.Tasks()) != 0 {
		t.Errorf("Tasks() = %v after Stop, want none", s.Tasks())
	}

	done := make(chan struct{})
	go func() {
		_ = s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after Stop")
	}
}

func TestStop_FromInsideTask(t *testing.T) {
	s := New()
	stopped := make(chan struct{})
	var once sync.Once

	_ = s.Every("self-stop", 5*time.Millisecond, func(context.Context) error {
		s.Stop()
		once.Do(func() { close(stopped) })
		return nil
	})
	_ = s.Start(context.Background())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("task calling Stop deadlocked")
	}
	_ = s.Wait()
}

func TestCancel(t *testing.T) {
	s := New()
	var runs atomic.Int32

	_ = s.Every("cancel-me", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})
	_ = s.Start(context.Background())
	defer s.Stop()

	waitFor(t, time.Second, func() bool { return runs.Load() >= 1 })

	if !s.Cancel("cancel-me") {
		t.Fatal("Cancel() = false for registered task")
	}
	if s.Cancel("cancel-me") {
		t.Error("second Cancel() = true, want false")
	}

	time.Sleep(20 * time.Millisecond)
	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Errorf("task kept running after Cancel: %d -> %d", after, runs.Load())
	}
}

func TestEvery_AfterStartRunsImmediately(t *testing.T) {
	s := New()
	_ = s.Start(context.Background())
	defer s.Stop()

	var runs atomic.Int32
	if err := s.Every("late", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	if !waitFor(t, time.Second, func() bool { return runs.Load() >= 1 }) {
		t.Error("task registered after Start never ran")
	}
}

func TestEvery_Errors(t *testing.T) {
	s := New()

	if err := s.Every("zero", 0, func(context.Context) error { return nil }); !errors.Is(err, ErrInvalidInterval) {
		t.Errorf("Every(0) error = %v, want ErrInvalidInterval", err)
	}
	_ = s.Every("dup", time.Minute, func(context.Context) error { return nil })
	if err := s.Every("dup", time.Minute, func(context.Context) error { return nil }); !errors.Is(err, ErrDuplicateTask) {
		t.Errorf("Every(dup) error = %v, want ErrDuplicateTask", err)
	}

	_ = s.Start(context.Background())
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	s.Stop()
	if err := s.Every("late", time.Minute, func(context.Context) error { return nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Every() after Stop error = %v, want ErrStopped", err)
	}
	if err := New().Start(context.Background()); err != nil {
		t.Errorf("Start() on fresh scheduler error = %v", err)
	}
}

func TestTasks_Sorted(t *testing.T) {
	s := New()
	for _, name := range []string{"user-poll", "live-data", "referentials"} {
		_ = s.Every(name, time.Minute, func(context.Context) error { return nil })
	}
	got := s.Tasks()
	want := []string{"live-data", "referentials", "user-poll"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tasks() = %v, want %v", got, want)
		}
	}
}

func TestTaskErrorAndPanicDoNotStopLoop(t *testing.T) {
	s := New()
	var runs atomic.Int32

	_ = s.Every("flaky", 5*time.Millisecond, func(context.Context) error {
		n := runs.Add(1)
		if n == 1 {
			panic("boom")
		}
		return errors.New("failed")
	})
	_ = s.Start(context.Background())
	defer s.Stop()

	if !waitFor(t, time.Second, func() bool { return runs.Load() >= 3 }) {
		t.Errorf("runs = %d, want >= 3", runs.Load())
	}

	s.Stop()
	if err := s.Wait(); !errors.Is(err, ErrTaskPanicked) {
		t.Errorf("Wait() error = %v, want ErrTaskPanicked", err)
	}
}

func TestWait_NoPanicReturnsNil(t *testing.T) {
	s := New()
	var runs atomic.Int32
	_ = s.Every("tick", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("failed")
	})
	_ = s.Start(context.Background())

	if !waitFor(t, time.Second, func() bool { return runs.Load() >= 2 }) {
		t.Errorf("runs = %d, want >= 2", runs.Load())
	}

	s.Stop()
	if err := s.Wait(); err != nil {
		t.Errorf("Wait() error = %v, want nil", err)
	}
}

func TestParentContextCancelStopsLoops(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	_ = s.Every("tick", 5*time.Millisecond, func(context.Context) error { return nil })
	_ = s.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		_ = s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loops did not exit after parent context cancel")
	}
}
