package session

import (
	"context"
	"time"

	"github.com/nerrad567/neasmart-core/internal/directory"
	"github.com/nerrad567/neasmart-core/internal/scheduler"
)

// startScheduler replaces the periodic tasks with a fresh set bound to
// token. Requires authMu.
func (s *Session) startScheduler(token directory.TokenData) {
	sched := scheduler.New()
	sched.SetLogger(s.logger)

	sc := s.cfg.Schedule
	s.every(sched, TaskUserPoll, sc.UserPollInterval(), s.PollUser)
	s.every(sched, TaskLiveData, sc.LiveDataInterval(), func(context.Context) error {
		_, err := s.RefreshLiveData()
		return err
	})
	s.every(sched, TaskReferentials, sc.ReferentialsInterval(), func(context.Context) error {
		_, err := s.RequestReferentials()
		return err
	})

	if interval := s.tokenRefreshInterval(token); interval > 0 {
		s.logger.Debug("scheduling token refresh", "interval", interval)
		s.every(sched, TaskTokenRefresh, interval, s.RefreshToken)
	} else {
		s.logger.Warn("token lifetime unknown, proactive refresh disabled")
	}

	if err := sched.Start(s.ctx); err != nil {
		s.logger.Error("starting scheduler failed", "error", err)
		return
	}

	s.mu.Lock()
	s.sched = sched
	s.mu.Unlock()
	s.schedulerStopped.Store(false)

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		if err := sched.Wait(); err != nil {
			s.logger.Error("periodic task failed", "error", err)
		}
	}()
}

func (s *Session) every(sched *scheduler.Scheduler, name string, interval time.Duration, task scheduler.Task) {
	if err := sched.Every(name, interval, task); err != nil {
		s.logger.Error("scheduling task failed", "task", name, "error", err)
	}
}

// stopScheduler cancels the current periodic tasks without waiting, so it
// is safe from inside a task.
func (s *Session) stopScheduler() {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
		s.logger.Debug("scheduler stopped")
	}
	s.schedulerStopped.Store(true)
}

// tokenRefreshInterval is the token lifetime minus the safety margin,
// never shorter than a minute. Zero means the lifetime is unknown.
func (s *Session) tokenRefreshInterval(token directory.TokenData) time.Duration {
	lifetime := token.Lifetime()
	if lifetime <= 0 {
		return 0
	}

	interval := lifetime - s.cfg.Schedule.TokenRefreshMarginDuration()
	if interval < minTokenRefreshInterval {
		interval = minTokenRefreshInterval
	}
	return interval
}
