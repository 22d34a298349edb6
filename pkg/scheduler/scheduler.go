// Package scheduler runs the periodic campaign check.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/royhairul/auto-ads-shopee/pkg/metrics"
)

// DefaultInterval is the check period when none is configured.
const DefaultInterval = time.Minute

// TickFunc is called on every tick with a context canceled on Disable.
type TickFunc func(ctx context.Context)

// Scheduler fires TickFunc every interval while enabled. The first tick
// comes one interval after Enable.
type Scheduler struct {
	mu       sync.Mutex
	interval time.Duration
	tick     TickFunc
	logger   *zap.Logger
	recorder metrics.Recorder
	base     context.Context
	stop     context.CancelFunc
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	ticks    atomic.Int64
	lastTick atomic.Int64
}

// New creates a disabled scheduler.
func New(interval time.Duration, tick TickFunc, recorder metrics.Recorder, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	base, stop := context.WithCancel(context.Background())
	return &Scheduler{
		interval: interval,
		tick:     tick,
		logger:   logger.Named("scheduler"),
		recorder: recorder,
		base:     base,
		stop:     stop,
	}
}

// Enable starts ticking. It is a no-op when already enabled.
func (s *Scheduler) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil || s.base.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.base)
	s.cancel = cancel
	s.recorder.SetSchedulerEnabled(true)
	s.logger.Info("scheduler enabled", zap.Duration("interval", s.interval))

	s.wg.Add(1)
	go s.run(ctx)
}

// Disable stops ticking. It returns immediately, even while a tick is
// running; the running tick sees its context canceled.
func (s *Scheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.recorder.SetSchedulerEnabled(false)
	s.logger.Info("scheduler disabled")
}

// Close disables the scheduler and waits for the loop to exit.
func (s *Scheduler) Close() {
	s.Disable()
	s.stop()
	s.wg.Wait()
}

// Enabled reports whether the scheduler is ticking.
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Interval returns the tick period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Ticks returns how many ticks have fired since creation.
func (s *Scheduler) Ticks() int64 {
	return s.ticks.Load()
}

// LastTick returns when the most recent tick fired, or the zero time.
func (s *Scheduler) LastTick() time.Time {
	ns := s.lastTick.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	s.ticks.Add(1)
	s.lastTick.Store(time.Now().UnixNano())
	s.tick(ctx)
}
