package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
)

// SyncRunner runs a sync in the request goroutine
type SyncRunner interface {
	StartSync(ctx context.Context, req ordersync.StartSyncRequest) (*integration.SyncResult, error)
}

// JobQueue hands syncs to the background scheduler
type JobQueue interface {
	Submit(req ordersync.StartSyncRequest) (scheduler.SyncJob, error)
	Get(id uuid.UUID) (scheduler.SyncJob, error)
	History(limit int) []scheduler.SyncJob
}

var (
	_ SyncRunner = (*ordersync.Orchestrator)(nil)
	_ JobQueue   = (*scheduler.SyncScheduler)(nil)
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 100
)

// SyncHandler triggers sync runs and reports scheduler jobs
type SyncHandler struct {
	BaseHandler
	runner SyncRunner
	jobs   JobQueue
	logger *zap.Logger
}

// NewSyncHandler creates a SyncHandler. jobs may be nil when the scheduler
// is not wired; async requests and the job endpoints then answer 503.
func NewSyncHandler(runner SyncRunner, jobs JobQueue, zapLogger *zap.Logger) *SyncHandler {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &SyncHandler{runner: runner, jobs: jobs, logger: zapLogger.Named("sync.http")}
}

// StartSync godoc
// @Summary      Trigger an order sync
// @Description  Runs a sync for the given accounts, or all connected accounts. With async=true the run is queued and a job is returned.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        async query bool false "queue the run on the scheduler"
// @Param        body  body dto.StartSyncRequest false "accounts and explicit order ids"
// @Success      200 {object} dto.Response{data=dto.SyncResultResponse}
// @Success      202 {object} dto.Response{data=dto.SyncJobResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Security     BearerAuth
// @Router       /sync [post]
func (h *SyncHandler) StartSync(c *gin.Context) {
	var body dto.StartSyncRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.Error(c, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
		case middleware.IsValidationError(err):
			h.ValidationError(c, err)
		default:
			h.Error(c, dto.ErrCodeInvalidJSON, "Request body is not valid JSON")
		}
		return
	}

	cmd, err := body.ToCommand()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	log := logger.WithLogger(c.Request.Context(), h.logger)

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.jobs == nil {
			h.Error(c, dto.ErrCodeSchedulerNotRunning, "Background sync is not enabled")
			return
		}
		job, err := h.jobs.Submit(cmd)
		if err != nil {
			switch {
			case errors.Is(err, scheduler.ErrJobQueueFull):
				h.Error(c, dto.ErrCodeQueueFull, "Sync queue is full, retry later")
			case errors.Is(err, scheduler.ErrSchedulerNotRunning):
				h.Error(c, dto.ErrCodeSchedulerNotRunning, "Sync scheduler is not running")
			default:
				log.Error("Failed to queue sync job", zap.Error(err))
				h.InternalError(c, "Failed to queue sync")
			}
			return
		}
		log.Info("Sync job queued", zap.String("job_id", job.ID.String()), zap.Int("accounts", len(cmd.AccountIDs)))
		c.Header("Location", "/api/v1/sync/jobs/"+job.ID.String())
		h.Accepted(c, toJobResponse(job))
		return
	}

	result, err := h.runner.StartSync(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, integration.ErrAccountNotFound) {
			h.Error(c, dto.ErrCodeAccountNotFound, err.Error())
			return
		}
		log.Error("Sync run failed", zap.Error(err))
		h.InternalError(c, "Sync run failed")
		return
	}
	h.Success(c, dto.NewSyncResultResponse(result))
}

// ListJobs godoc
// @Summary      List recent sync jobs, newest first
// @Tags         sync
// @Produce      json
// @Param        limit query int false "max jobs, default 20, max 100"
// @Success      200 {object} dto.Response{data=[]dto.SyncJobResponse}
// @Failure      400 {object} dto.Response
// @Failure      503 {object} dto.Response
// @Security     BearerAuth
// @Router       /sync/jobs [get]
func (h *SyncHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		h.Error(c, dto.ErrCodeSchedulerNotRunning, "Background sync is not enabled")
		return
	}

	limit := defaultJobListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxJobListLimit {
			h.BadRequest(c, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	all := h.jobs.History(0)
	shown := all
	if len(shown) > limit {
		shown = shown[:limit]
	}
	resp := make([]dto.SyncJobResponse, len(shown))
	for i, job := range shown {
		resp[i] = toJobResponse(job)
	}
	c.JSON(http.StatusOK, dto.NewListResponse(resp, len(resp), len(all), limit))
}

// GetJob godoc
// @Summary      Get one sync job
// @Tags         sync
// @Produce      json
// @Param        id path string true "job id"
// @Success      200 {object} dto.Response{data=dto.SyncJobResponse}
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /sync/jobs/{id} [get]
func (h *SyncHandler) GetJob(c *gin.Context) {
	if h.jobs == nil {
		h.Error(c, dto.ErrCodeSchedulerNotRunning, "Background sync is not enabled")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "job id must be a UUID")
		return
	}
	job, err := h.jobs.Get(id)
	if err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			h.NotFound(c, "Sync job not found")
			return
		}
		h.InternalError(c, "Failed to load sync job")
		return
	}
	h.Success(c, toJobResponse(job))
}

func toJobResponse(job scheduler.SyncJob) dto.SyncJobResponse {
	resp := dto.SyncJobResponse{
		ID:          job.ID,
		Trigger:     string(job.Trigger),
		Status:      string(job.Status),
		Error:       job.Error,
		Request:     job.Request,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
		RetryCount:  job.RetryCount,
		MaxRetries:  job.MaxRetries,
		NextRetryAt: job.NextRetryAt,
	}
	if job.Result != nil {
		r := dto.NewSyncResultResponse(job.Result)
		resp.Result = &r
	}
	return resp
}
