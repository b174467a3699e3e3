/*
scheduler.go - Automated auto-approval sweep

PURPOSE:

	Periodically runs timeoff.Service.AutoApproveSweep so Pending requests
	whose approval window has elapsed become Approved even when nobody is
	reading them. Readers also repair stale rows on access (see
	timeoff/queries.go); this loop covers the no-traffic case.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs one pass immediately on start
  - Each pass is idempotent: the store only moves rows that are still
    Pending, so overlapping passes (or several processes) are safe

CONFIGURATION:
  - Interval: How often to sweep (default: 30 seconds)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:

	scheduler := NewAutoApproveScheduler(service, log)
	scheduler.Start()
	// ... later
	scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - timeoff/sweep.go: AutoApproveSweep
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/timeoff"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = 30 * time.Second

// AutoApproveScheduler runs the auto-approval sweep on a ticker.
type AutoApproveScheduler struct {
	Service  *timeoff.Service
	Interval time.Duration
	Enabled  bool
	Log      logrus.FieldLogger

	ticker *time.Ticker
	stop   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex

	// lastRun has its own lock; Stop holds mu while waiting for a pass.
	lastMu  sync.Mutex
	lastRun time.Time
}

// NewAutoApproveScheduler creates a new scheduler.
func NewAutoApproveScheduler(svc *timeoff.Service, log logrus.FieldLogger) *AutoApproveScheduler {
	if log == nil {
		log = svc.Log
	}
	return &AutoApproveScheduler{
		Service:  svc,
		Interval: DefaultSweepInterval,
		Enabled:  true,
		Log:      log.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *AutoApproveScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("[Scheduler] Disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stop = make(chan struct{})
	s.ticker = time.NewTicker(interval)
	s.wg.Add(1)

	go s.run(ctx, s.ticker, s.stop)

	s.Log.WithField("interval", interval.String()).Info("[Scheduler] Started")
}

// Stop stops the scheduler and waits for an in-flight pass to finish.
func (s *AutoApproveScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.Log.Info("[Scheduler] Stopped")
}

func (s *AutoApproveScheduler) run(ctx context.Context, ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-stop:
			return
		}
	}
}

func (s *AutoApproveScheduler) sweep(ctx context.Context) int {
	now := s.Service.Now()

	n, err := s.Service.AutoApproveSweep(ctx, now)
	if err != nil {
		if ctx.Err() == nil {
			s.Log.WithError(err).Error("[Scheduler] Sweep failed")
		}
		return n
	}

	s.lastMu.Lock()
	s.lastRun = now
	s.lastMu.Unlock()
	return n
}

// RunNow triggers an immediate sweep (for testing/admin) and returns the
// number of requests approved.
func (s *AutoApproveScheduler) RunNow(ctx context.Context) int {
	return s.sweep(ctx)
}

// LastRun returns the clock time of the last successful pass.
func (s *AutoApproveScheduler) LastRun() time.Time {
	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	return s.lastRun
}
