package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stock-monitor/internal/models"
	"stock-monitor/internal/util"

	"go.uber.org/zap"
)

// CycleRunner is the monitoring entry point the scheduler invokes.
type CycleRunner interface {
	RunCycle(ctx context.Context) (models.CycleResult, error)
}

// Scheduler triggers monitoring cycles on a fixed interval with
// single-flight semantics: a tick that arrives while a cycle is still
// running is dropped, never run concurrently. Stopping the scheduler
// waits for an in-flight cycle to finish instead of aborting it.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running bool
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}

	// cycleMu serializes scheduled ticks and manual triggers.
	cycleMu sync.Mutex
}

// New creates a scheduler
func New(runner CycleRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start launches the scheduling loop. The first cycle runs immediately.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.paused = false

	go s.loop(ctx)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduling loop and waits for any in-flight cycle to
// complete. Future cycles are no longer triggered.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.logger.Info("Scheduler stopped")
}

// Pause suspends cycle triggering without stopping the loop.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	s.logger.Info("Scheduler paused")
}

// Resume re-enables cycle triggering after a pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.logger.Info("Scheduler resumed")
}

// IsRunning reports whether the scheduling loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow triggers one cycle on demand, serialized against scheduled
// ticks: it waits for an in-flight cycle to finish rather than running
// alongside it.
func (s *Scheduler) RunNow(ctx context.Context) (models.CycleResult, error) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()
	return s.runner.RunCycle(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if s.isPaused() {
		return
	}

	if !s.cycleMu.TryLock() {
		s.logger.Warn("Previous monitoring cycle still running, skipping tick")
		util.CyclesSkippedTotal.Inc()
		return
	}
	defer s.cycleMu.Unlock()

	// Cycles run against a background context: shutdown stops future
	// triggers, it does not abort the cycle in progress.
	if _, err := s.runner.RunCycle(context.Background()); err != nil {
		s.logger.Error("Scheduled monitoring cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) isPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
