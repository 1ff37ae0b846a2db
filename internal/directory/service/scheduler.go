package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Runner is one unit of scheduled work. *SyncService implements it.
type Runner interface {
	Run(ctx context.Context) (Summary, error)
}

// Scheduler runs a Runner immediately and then on every interval tick.
// At most one run is active at a time.
type Scheduler struct {
	Runner   Runner
	Logger   *slog.Logger
	Interval time.Duration

	// OnResult, when set, receives the outcome of every run.
	OnResult func(Summary, error)

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}

	lifeMu   sync.Mutex
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// NewScheduler creates a scheduler. If interval is 0 or negative, defaults to 15 minutes.
func NewScheduler(runner Runner, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		Runner:   runner,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Cancelling ctx aborts an in-flight run;
// call Stop to end the loop. A scheduler starts at most once and never after
// Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	go s.run(ctx)
	s.Logger.Info("sync scheduler started", "interval", s.Interval)
}

// Stop ends the loop and blocks until any in-progress run has returned.
// It is safe to call more than once and on a scheduler that never started.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.lifeMu.Lock()
		s.stopped = true
		started := s.started
		s.lifeMu.Unlock()

		close(s.stopCh)
		if !started {
			return
		}
		<-s.doneCh
		s.Logger.Info("sync scheduler stopped")
	})
}

// Trigger runs the Runner now. It returns ErrRunInProgress instead of
// waiting when another run is active.
func (s *Scheduler) Trigger(ctx context.Context) (Summary, error) {
	if !s.mu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer s.mu.Unlock()

	summary, err := s.Runner.Run(ctx)
	if s.OnResult != nil {
		s.OnResult(summary, err)
	}
	return summary, err
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.Trigger(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.Logger.Warn("skipping scheduled sync, previous run still active")
	case err != nil:
		s.Logger.Error("scheduled sync failed", "error", err)
	}
}
