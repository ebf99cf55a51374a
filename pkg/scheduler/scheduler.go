// Package scheduler implements the real-time scheduler of §4.7: a
// pure timer driving three independent periodic tasks. It never
// performs strategy logic itself — callbacks do — and overruns are
// dropped under fixed-period semantics, counted rather than queued.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"
)

// Config carries the three cadences §4.7 names, with the documented
// defaults.
type Config struct {
	TickHarvestInterval      time.Duration // default 10ms
	OrderBookRefreshInterval time.Duration // default 50ms
	ScanInterval             time.Duration // default 100ms
}

// DefaultConfig returns §4.7's documented defaults.
func DefaultConfig() Config {
	return Config{
		TickHarvestInterval:      10 * time.Millisecond,
		OrderBookRefreshInterval: 50 * time.Millisecond,
		ScanInterval:             100 * time.Millisecond,
	}
}

// Stats exposes the skip counters for each periodic task.
type Stats struct {
	TickHarvestSkipped      int64
	OrderBookRefreshSkipped int64
	ScanSkipped             int64
}

// Scheduler drives the tick-harvest, order-book-refresh, and
// scan-and-execute tasks concurrently.
type Scheduler struct {
	cfg Config

	tickHarvestSkipped      int64
	orderBookRefreshSkipped int64
	scanSkipped             int64

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Scheduler with the given cadences.
func New(cfg Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// Stats returns a snapshot of the skip counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		TickHarvestSkipped:      atomic.LoadInt64(&s.tickHarvestSkipped),
		OrderBookRefreshSkipped: atomic.LoadInt64(&s.orderBookRefreshSkipped),
		ScanSkipped:             atomic.LoadInt64(&s.scanSkipped),
	}
}

// Start launches the three timer loops. tickHarvest is invoked every
// TickHarvestInterval, orderBookRefresh every
// OrderBookRefreshInterval, scanAndExecute every ScanInterval. Each
// callback receives the task's own context, cancelled on Stop.
func (s *Scheduler) Start(ctx context.Context, tickHarvest, orderBookRefresh, scanAndExecute func(context.Context)) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	var running int32 = 3
	finished := func() {
		if atomic.AddInt32(&running, -1) == 0 {
			close(s.done)
		}
	}

	go s.runPeriodic(ctx, s.cfg.TickHarvestInterval, tickHarvest, &s.tickHarvestSkipped, finished)
	go s.runPeriodic(ctx, s.cfg.OrderBookRefreshInterval, orderBookRefresh, &s.orderBookRefreshSkipped, finished)
	go s.runPeriodic(ctx, s.cfg.ScanInterval, scanAndExecute, &s.scanSkipped, finished)
}

// runPeriodic fires fn every interval. If the previous invocation of
// fn is still in flight when the timer next fires, that tick is
// dropped and counted rather than queued (fixed-period semantics).
func (s *Scheduler) runPeriodic(ctx context.Context, interval time.Duration, fn func(context.Context), skipped *int64, done func()) {
	defer done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	busy := make(chan struct{}, 1)
	busy <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-busy:
				go func() {
					defer func() { busy <- struct{}{} }()
					fn(ctx)
				}()
			default:
				atomic.AddInt64(skipped, 1)
			}
		}
	}
}

// Stop cancels all running tasks and waits for them to release
// resources and exit.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
