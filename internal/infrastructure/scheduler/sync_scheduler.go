package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/logger"
)

// SyncRunner executes one sync run. Implemented by *ordersync.Orchestrator.
type SyncRunner interface {
	StartSync(ctx context.Context, req ordersync.StartSyncRequest) (*integration.SyncResult, error)
}

var _ SyncRunner = (*ordersync.Orchestrator)(nil)

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Enabled turns on the periodic recent sync. Manual jobs are accepted either way.
	Enabled bool
	// Interval between periodic syncs
	Interval time.Duration
	// Workers is the number of jobs run concurrently
	Workers int
	// QueueSize bounds the number of waiting jobs
	QueueSize int
	// JobTimeout is the whole-run timeout handed to StartSync
	JobTimeout time.Duration
	// RetryAttempts is the number of retries of a failed run
	RetryAttempts int
	// RetryDelay is the base delay between retries (with exponential backoff)
	RetryDelay time.Duration
	// HistoryLimit is the number of finished jobs kept for the jobs endpoint
	HistoryLimit int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Enabled:       true,
		Interval:      15 * time.Minute,
		Workers:       1,
		QueueSize:     16,
		JobTimeout:    30 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    time.Minute,
		HistoryLimit:  100,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue size must be positive", ErrInvalidConfig)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	case c.RetryAttempts < 0:
		return fmt.Errorf("%w: retry attempts cannot be negative", ErrInvalidConfig)
	case c.RetryAttempts > 0 && c.RetryDelay <= 0:
		return fmt.Errorf("%w: retry delay must be positive", ErrInvalidConfig)
	case c.Enabled && c.Interval <= 0:
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// SyncScheduler runs sync jobs on a worker pool, retries failed runs with
// exponential backoff and submits a periodic recent sync
type SyncScheduler struct {
	config SyncSchedulerConfig
	runner SyncRunner
	logger *zap.Logger
	now    func() time.Time

	queue     chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	runMu     sync.Mutex
	isRunning bool

	// jobs holds every known job; order lists them newest first
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*SyncJob
	order  []uuid.UUID
	timers map[uuid.UUID]*time.Timer
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, runner SyncRunner, zapLogger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: runner is required", ErrInvalidConfig)
	}
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &SyncScheduler{
		config: config,
		runner: runner,
		logger: zapLogger.Named("sync.scheduler"),
		now:    time.Now,
		jobs:   make(map[uuid.UUID]*SyncJob),
		timers: make(map[uuid.UUID]*time.Timer),
	}, nil
}

// Start starts the workers and, when enabled, the periodic trigger
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true
	s.queue = make(chan *SyncJob, s.config.QueueSize)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	if s.config.Enabled {
		s.wg.Add(1)
		go s.tick(ctx)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Bool("periodic", s.config.Enabled),
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if !s.isRunning {
		s.runMu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	now := s.now()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	for _, job := range s.jobs {
		if job.Status == SyncJobStatusPending {
			job.Cancel(now)
		}
	}
	s.mu.Unlock()

	s.logger.Info("Sync scheduler stopped gracefully")
	return nil
}

// Submit queues a manual sync and returns a snapshot of the new job
func (s *SyncScheduler) Submit(req ordersync.StartSyncRequest) (SyncJob, error) {
	job := NewSyncJob(SyncTriggerManual, req, s.config.RetryAttempts, s.now())
	if err := s.enqueue(job); err != nil {
		return SyncJob{}, err
	}
	return s.snapshot(job), nil
}

// Get returns a snapshot of a job
func (s *SyncScheduler) Get(id uuid.UUID) (SyncJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return SyncJob{}, ErrJobNotFound
	}
	return *job, nil
}

// History returns up to limit jobs, newest first
func (s *SyncScheduler) History(limit int) []SyncJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}
	result := make([]SyncJob, 0, limit)
	for _, id := range s.order[:limit] {
		result = append(result, *s.jobs[id])
	}
	return result
}

func (s *SyncScheduler) enqueue(job *SyncJob) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.queue <- job:
	default:
		return ErrJobQueueFull
	}

	s.mu.Lock()
	if _, known := s.jobs[job.ID]; !known {
		s.jobs[job.ID] = job
		s.order = append([]uuid.UUID{job.ID}, s.order...)
		s.trimLocked()
	}
	s.mu.Unlock()

	s.logger.Debug("Sync job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", string(job.Trigger)),
		zap.Int("retry_count", job.RetryCount),
	)
	return nil
}

// trimLocked drops the oldest finished jobs beyond HistoryLimit
func (s *SyncScheduler) trimLocked() {
	for i := len(s.order) - 1; i >= 0 && len(s.order) > s.config.HistoryLimit; i-- {
		id := s.order[i]
		if !s.jobs[id].Status.IsFinished() {
			continue
		}
		delete(s.jobs, id)
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
}

func (s *SyncScheduler) snapshot(job *SyncJob) SyncJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *job
}

// hasActiveScheduled reports whether a periodic job is still queued or running
func (s *SyncScheduler) hasActiveScheduled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.Trigger == SyncTriggerScheduled && !job.Status.IsFinished() {
			return true
		}
	}
	return false
}

func (s *SyncScheduler) tick(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.submitScheduled()
		}
	}
}

func (s *SyncScheduler) submitScheduled() {
	if s.hasActiveScheduled() {
		s.logger.Info("Skipping periodic sync, previous run still active")
		return
	}
	job := NewSyncJob(SyncTriggerScheduled, ordersync.StartSyncRequest{}, s.config.RetryAttempts, s.now())
	if err := s.enqueue(job); err != nil {
		s.logger.Warn("Failed to submit periodic sync", zap.Error(err))
	}
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.queue:
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	s.mu.Lock()
	job.Start(s.now())
	req := job.Request
	s.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	// job_id travels in the context so repository SQL logs carry it
	jobCtx, log := logger.WithJobID(jobCtx, s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("trigger", string(job.Trigger)),
	), job.ID.String())
	log.Info("Processing sync job", zap.Int("retry_count", job.RetryCount))

	result, err := s.runner.StartSync(jobCtx, req)
	if err == nil && result == nil {
		err = errors.New("sync runner returned no result")
	}

	s.mu.Lock()
	now := s.now()
	stopping := ctx.Err() != nil
	switch {
	case err != nil && stopping:
		job.Cancel(now)
		job.Error = err.Error()
	case err != nil:
		job.Fail(err.Error(), now)
	default:
		job.Complete(result, now)
	}
	retry := !stopping && job.ShouldRetry() && retryable(err)
	var delay time.Duration
	if retry {
		delay = job.ScheduleRetry(s.config.RetryDelay, now)
	}
	status := job.Status
	s.mu.Unlock()

	if err != nil {
		log.Error("Sync job failed", zap.Error(err))
	} else {
		log.Info("Sync job completed",
			zap.String("status", string(status)),
			zap.Int("saved", result.Totals.Saved),
			zap.Int("fetched", result.Totals.Fetched),
			zap.Int("errors", len(result.Errors)),
		)
	}

	if retry {
		log.Info("Sync job scheduled for retry",
			zap.Int("retry_count", job.RetryCount),
			zap.Duration("delay", delay),
		)
		s.scheduleRetry(job, delay)
	}
}

// retryable reports whether another attempt can change the outcome.
// An unknown account in the request will stay unknown.
func retryable(err error) bool {
	return !errors.Is(err, integration.ErrAccountNotFound) && !errors.Is(err, ordersync.ErrInvalidConfig)
}

func (s *SyncScheduler) scheduleRetry(job *SyncJob, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[job.ID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, job.ID)
		s.mu.Unlock()

		if err := s.enqueue(job); err != nil {
			s.mu.Lock()
			job.Fail(fmt.Sprintf("retry not queued: %v", err), s.now())
			s.mu.Unlock()
			s.logger.Warn("Failed to re-queue sync job for retry",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	})
}
