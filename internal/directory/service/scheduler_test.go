package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockingRunner counts runs and optionally blocks until released.
type blockingRunner struct {
	runs    atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(ctx context.Context) (Summary, error) {
	b.runs.Add(1)
	if b.started != nil {
		b.started <- struct{}{}
	}
	if b.release != nil {
		select {
		case <-b.release:
		case <-ctx.Done():
			return Summary{}, ctx.Err()
		}
	}
	return Summary{Removed: 1}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	t.Parallel()

	s := NewScheduler(&blockingRunner{}, nil, 0)
	require.Equal(t, 15*time.Minute, s.Interval)
	require.NotNil(t, s.Logger)
}

func TestSchedulerRunsImmediately(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{started: make(chan struct{}, 1)}
	s := NewScheduler(runner, discardLogger(), time.Hour)

	type outcome struct {
		sum Summary
		err error
	}
	results := make(chan outcome, 1)
	s.OnResult = func(sum Summary, err error) { results <- outcome{sum, err} }

	s.Start(context.Background())

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run on start")
	}

	select {
	case got := <-results:
		require.NoError(t, got.err)
		require.Equal(t, 1, got.sum.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("no result reported")
	}

	s.Stop()
	require.Equal(t, int32(1), runner.runs.Load())
}

func TestSchedulerRejectsOverlappingTrigger(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := NewScheduler(runner, discardLogger(), time.Hour)

	done := make(chan error, 1)
	go func() {
		_, err := s.Trigger(context.Background())
		done <- err
	}()
	<-runner.started

	_, err := s.Trigger(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)

	close(runner.release)
	require.NoError(t, <-done)

	// Lock is released once the first run returns
	runner.started = nil
	_, err = s.Trigger(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(2), runner.runs.Load())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{}
	s := NewScheduler(runner, discardLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	require.Eventually(t, func() bool { return runner.runs.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{}
	s := NewScheduler(runner, discardLogger(), time.Hour)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on a scheduler that never started")
	}

	// Start after Stop does nothing
	s.Start(context.Background())
	s.Stop()
	require.Zero(t, runner.runs.Load())
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{started: make(chan struct{}, 1)}
	s := NewScheduler(runner, discardLogger(), time.Hour)

	s.Start(context.Background())
	s.Start(context.Background())
	<-runner.started

	require.NotPanics(t, func() {
		s.Stop()
		s.Stop()
	})
	require.Equal(t, int32(1), runner.runs.Load())
}
