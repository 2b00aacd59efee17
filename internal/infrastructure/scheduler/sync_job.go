package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
)

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending   SyncJobStatus = "PENDING"
	SyncJobStatusRunning   SyncJobStatus = "RUNNING"
	SyncJobStatusSuccess   SyncJobStatus = "SUCCESS"
	SyncJobStatusPartial   SyncJobStatus = "PARTIAL"
	SyncJobStatusFailed    SyncJobStatus = "FAILED"
	SyncJobStatusCancelled SyncJobStatus = "CANCELLED"
)

// IsFinished reports whether the job will not run again
func (s SyncJobStatus) IsFinished() bool {
	switch s {
	case SyncJobStatusSuccess, SyncJobStatusPartial, SyncJobStatusFailed, SyncJobStatusCancelled:
		return true
	}
	return false
}

// SyncTrigger records who asked for a job
type SyncTrigger string

const (
	SyncTriggerManual    SyncTrigger = "manual"
	SyncTriggerScheduled SyncTrigger = "scheduled"
)

// maxRetryDelay caps the exponential backoff between attempts
const maxRetryDelay = 30 * time.Minute

// SyncJob is one queued StartSync call
type SyncJob struct {
	ID          uuid.UUID                  `json:"id"`
	Trigger     SyncTrigger                `json:"trigger"`
	Request     ordersync.StartSyncRequest `json:"request"`
	Status      SyncJobStatus              `json:"status"`
	Error       string                     `json:"error,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	StartedAt   *time.Time                 `json:"started_at,omitempty"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
	RetryCount  int                        `json:"retry_count"`
	MaxRetries  int                        `json:"max_retries"`
	NextRetryAt *time.Time                 `json:"next_retry_at,omitempty"`
	Result      *integration.SyncResult    `json:"result,omitempty"`
}

// NewSyncJob creates a pending job
func NewSyncJob(trigger SyncTrigger, req ordersync.StartSyncRequest, maxRetries int, now time.Time) *SyncJob {
	return &SyncJob{
		ID:         uuid.New(),
		Trigger:    trigger,
		Request:    req,
		Status:     SyncJobStatusPending,
		CreatedAt:  now,
		MaxRetries: maxRetries,
	}
}

// Start marks the job as running
func (j *SyncJob) Start(now time.Time) {
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.NextRetryAt = nil
	j.Error = ""
}

// Complete records the run result. The job status follows the run status.
func (j *SyncJob) Complete(result *integration.SyncResult, now time.Time) {
	j.Result = result
	j.CompletedAt = &now

	switch result.Status() {
	case integration.SyncStatusSuccess:
		j.Status = SyncJobStatusSuccess
	case integration.SyncStatusPartial:
		j.Status = SyncJobStatusPartial
	default:
		j.Status = SyncJobStatusFailed
		j.Error = ErrSyncRunFailed.Error()
	}
}

// Fail marks the job as failed
func (j *SyncJob) Fail(err string, now time.Time) {
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
}

// Cancel marks a job that never finished because the scheduler stopped
func (j *SyncJob) Cancel(now time.Time) {
	j.Status = SyncJobStatusCancelled
	j.CompletedAt = &now
	j.NextRetryAt = nil
}

// ShouldRetry returns true if the job should be retried
func (j *SyncJob) ShouldRetry() bool {
	return j.Status == SyncJobStatusFailed && j.RetryCount < j.MaxRetries
}

// ScheduleRetry moves the job back to pending and returns the backoff delay:
// baseDelay * 2^(retryCount-1), capped at 30 minutes
func (j *SyncJob) ScheduleRetry(baseDelay time.Duration, now time.Time) time.Duration {
	j.RetryCount++
	j.Status = SyncJobStatusPending
	delay := baseDelay << (j.RetryCount - 1)
	if delay > maxRetryDelay || delay < baseDelay {
		delay = maxRetryDelay
	}
	next := now.Add(delay)
	j.NextRetryAt = &next
	j.CompletedAt = nil
	return delay
}
