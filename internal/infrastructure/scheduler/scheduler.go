package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/velaro/ordersync/internal/application/conversion"
	"github.com/velaro/ordersync/internal/application/fulfillment"
	"github.com/velaro/ordersync/internal/domain/shared"
	"github.com/velaro/ordersync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Lease keys held while a job runs, so that only one instance runs it per tick
const (
	SweepLeaseKey = "outbox-sweep"
	ReapLeaseKey  = fulfillment.ReapLeaseKey
)

// Sweeper redelivers due outbox entries
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (*conversion.SweepReport, error)
}

// Reaper finalizes expired queue orders
type Reaper interface {
	Reap(ctx context.Context, now time.Time) (*fulfillment.ReapReport, error)
}

// Job is a function run on a fixed interval
type Job struct {
	Name     string
	Interval time.Duration
	LeaseKey string
	Run      func(ctx context.Context, now time.Time) error
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() config.SchedulerConfig {
	return config.SchedulerConfig{
		Enabled:       false,
		SweepInterval: time.Minute,
		ReapInterval:  time.Minute,
		JobTimeout:    2 * time.Minute,
	}
}

// SyncScheduler runs the outbox sweep and the queue reap in-process, as an
// alternative to an external cron calling syncctl
type SyncScheduler struct {
	config config.SchedulerConfig
	jobs   []Job
	lease  shared.IdempotencyStore
	now    func() time.Time
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncScheduler creates a scheduler with the sweep and reap jobs. lease may
// be nil, in which case every instance runs every tick.
func NewSyncScheduler(
	cfg config.SchedulerConfig,
	sweeper Sweeper,
	reaper Reaper,
	lease shared.IdempotencyStore,
	logger *zap.Logger,
) *SyncScheduler {
	defaults := DefaultSchedulerConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaults.ReapInterval
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaults.JobTimeout
	}

	s := &SyncScheduler{
		config: cfg,
		lease:  lease,
		now:    time.Now,
		logger: logger,
	}
	if sweeper != nil {
		s.jobs = append(s.jobs, Job{
			Name:     "outbox_sweep",
			Interval: cfg.SweepInterval,
			LeaseKey: SweepLeaseKey,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := sweeper.Sweep(ctx, now)
				return err
			},
		})
	}
	if reaper != nil {
		s.jobs = append(s.jobs, Job{
			Name:     "queue_reap",
			Interval: cfg.ReapInterval,
			LeaseKey: ReapLeaseKey,
			Run: func(ctx context.Context, now time.Time) error {
				_, err := reaper.Reap(ctx, now)
				return err
			},
		})
	}
	return s
}

// SetClock replaces the time source
func (s *SyncScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Jobs returns the configured jobs
func (s *SyncScheduler) Jobs() []Job {
	return s.jobs
}

// Start starts one ticker per job
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Sync scheduler is disabled")
		return nil
	}
	if len(s.jobs) == 0 {
		s.mu.Unlock()
		return ErrInvalidConfig
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, job)
	}

	s.logger.Info("Sync scheduler started",
		zap.Duration("sweep_interval", s.config.SweepInterval),
		zap.Duration("reap_interval", s.config.ReapInterval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the tickers are active
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *SyncScheduler) runLoop(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunJob(ctx, job)
		}
	}
}

// RunJob runs one job with the job timeout, unless another instance holds
// its lease. It reports whether the job ran.
func (s *SyncScheduler) RunJob(ctx context.Context, job Job) bool {
	if s.lease != nil && job.LeaseKey != "" {
		// a slightly shorter lease lets the next tick of the holder win again
		ttl := job.Interval - job.Interval/10
		acquired, err := s.lease.MarkProcessed(ctx, "scheduler:"+job.LeaseKey, ttl)
		if err != nil {
			s.logger.Warn("Failed to acquire job lease",
				zap.String("job", job.Name),
				zap.Error(err),
			)
			return false
		}
		if !acquired {
			s.logger.Debug("Job lease held elsewhere", zap.String("job", job.Name))
			return false
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("Scheduled job panicked",
				zap.String("job", job.Name),
				zap.Any("panic", p),
			)
		}
	}()

	start := s.now()
	if err := job.Run(jobCtx, start); err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", job.Name),
			zap.Error(err),
		)
		return true
	}
	s.logger.Debug("Scheduled job completed",
		zap.String("job", job.Name),
		zap.Duration("duration", s.now().Sub(start)),
	)
	return true
}
