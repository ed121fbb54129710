package settlement

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/refermate/refwallet/internal/logger"
)

const (
	defaultConfirmInterval = 24 * time.Hour
	defaultExpireInterval  = 24 * time.Hour
)

type SchedulerConfig struct {
	ConfirmInterval time.Duration
	ExpireInterval  time.Duration
}

// Scheduler drives the two settlement sweeps on independent tickers. It owns
// its run state: a sweep tick is skipped while the previous run of the same
// sweep is still in flight, so runs never overlap within one sweep.
type Scheduler struct {
	confirmInterval time.Duration
	expireInterval  time.Duration

	service *Service
	logger  logger.Logger

	confirmRunning atomic.Bool
	expireRunning  atomic.Bool

	mu             sync.Mutex
	lastConfirmRun time.Time
	lastExpireRun  time.Time
}

func NewScheduler(cfg SchedulerConfig, service *Service, l logger.Logger) *Scheduler {
	if cfg.ConfirmInterval == 0 {
		cfg.ConfirmInterval = defaultConfirmInterval
	}
	if cfg.ExpireInterval == 0 {
		cfg.ExpireInterval = defaultExpireInterval
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Scheduler{
		confirmInterval: cfg.ConfirmInterval,
		expireInterval:  cfg.ExpireInterval,
		service:         service,
		logger:          l,
	}
}

// Run starts both sweep loops and returns a channel closed when both have
// stopped after context cancellation
func (s *Scheduler) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	confirmStopped := s.loop(ctx, "auto-confirm", s.confirmInterval, &s.confirmRunning, &s.lastConfirmRun, s.service.AutoConfirm)
	expireStopped := s.loop(ctx, "expire", s.expireInterval, &s.expireRunning, &s.lastExpireRun, s.service.Expire)

	go func() {
		defer close(idleStopped)
		<-confirmStopped
		<-expireStopped
		s.logger.Debug("Settlement scheduler stopped")
	}()

	return idleStopped
}

// LastRuns reports when each sweep last completed
func (s *Scheduler) LastRuns() (confirm time.Time, expire time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastConfirmRun, s.lastExpireRun
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, running *atomic.Bool, lastRun *time.Time, sweep func(context.Context) (int, error)) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting settlement sweep", "sweep", name, "interval", interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweep stopped by context", "sweep", name)
				return

			case <-ticker.C:
				if !running.CompareAndSwap(false, true) {
					s.logger.Warn("Sweep still running, skipping tick", "sweep", name)
					continue
				}

				processed, err := sweep(ctx)
				if err != nil {
					s.logger.Error("Sweep failed", "sweep", name, "error", err)
				} else {
					s.logger.Info("Sweep finished", "sweep", name, "processed", processed)
				}

				s.mu.Lock()
				*lastRun = time.Now()
				s.mu.Unlock()

				running.Store(false)
			}
		}
	}()

	return idleStopped
}
