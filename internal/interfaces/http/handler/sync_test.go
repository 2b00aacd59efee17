package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/scheduler"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
	"github.com/erp/ordersync/internal/interfaces/http/middleware"
)

type fakeRunner struct {
	mu     sync.Mutex
	got    []ordersync.StartSyncRequest
	result *integration.SyncResult
	err    error
}

func (f *fakeRunner) StartSync(_ context.Context, req ordersync.StartSyncRequest) (*integration.SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	return f.result, f.err
}

type fakeQueue struct {
	jobs      []scheduler.SyncJob
	submitErr error
	submitted []ordersync.StartSyncRequest
}

func (f *fakeQueue) Submit(req ordersync.StartSyncRequest) (scheduler.SyncJob, error) {
	if f.submitErr != nil {
		return scheduler.SyncJob{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	job := scheduler.SyncJob{
		ID:         uuid.New(),
		Trigger:    scheduler.SyncTriggerManual,
		Request:    req,
		Status:     scheduler.SyncJobStatusPending,
		CreatedAt:  time.Now(),
		MaxRetries: 3,
	}
	f.jobs = append([]scheduler.SyncJob{job}, f.jobs...)
	return job, nil
}

func (f *fakeQueue) Get(id uuid.UUID) (scheduler.SyncJob, error) {
	for _, j := range f.jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return scheduler.SyncJob{}, scheduler.ErrJobNotFound
}

func (f *fakeQueue) History(limit int) []scheduler.SyncJob {
	if limit <= 0 || limit > len(f.jobs) {
		return f.jobs
	}
	return f.jobs[:limit]
}

func newSyncRouter(h *SyncHandler, bodyLimit int64) *gin.Engine {
	middleware.SetupValidator()
	r := gin.New()
	r.Use(middleware.RequestID())
	if bodyLimit > 0 {
		r.Use(middleware.BodyLimit(bodyLimit))
	}
	r.POST("/api/v1/sync", h.StartSync)
	r.GET("/api/v1/sync/jobs", h.ListJobs)
	r.GET("/api/v1/sync/jobs/:id", h.GetJob)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSyncHandler_StartSync_Synchronous(t *testing.T) {
	accountID := uuid.New()
	result := integration.NewSyncResult(time.Now())
	result.Totals = integration.SyncTotals{Expected: 3, Fetched: 3, Saved: 3}
	runner := &fakeRunner{result: result}
	r := newSyncRouter(NewSyncHandler(runner, nil, nil), 0)

	body := fmt.Sprintf(`{"account_ids":[%q,%q],"order_ids_by_account":{%q:[" 2000001 ","  "]}}`, accountID, accountID, accountID)
	w := doJSON(r, http.MethodPost, "/api/v1/sync", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, string(integration.SyncStatusSuccess), data["status"])
	assert.Equal(t, result.RunID.String(), data["run_id"])

	require.Len(t, runner.got, 1)
	assert.Equal(t, []uuid.UUID{accountID}, runner.got[0].AccountIDs)
	assert.Equal(t, []string{"2000001"}, runner.got[0].OrderIDsByAccount[accountID])
}

func TestSyncHandler_StartSync_EmptyBodySyncsAll(t *testing.T) {
	runner := &fakeRunner{result: integration.NewSyncResult(time.Now())}
	r := newSyncRouter(NewSyncHandler(runner, nil, nil), 0)

	w := doJSON(r, http.MethodPost, "/api/v1/sync", "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, runner.got, 1)
	assert.Empty(t, runner.got[0].AccountIDs)
}

func TestSyncHandler_StartSync_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		runErr     error
		bodyLimit  int64
		wantStatus int
		wantCode   string
	}{
		{
			name:       "malformed json",
			body:       `{"account_ids":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeInvalidJSON,
		},
		{
			name:       "bad account id",
			body:       `{"account_ids":["not-a-uuid"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   dto.ErrCodeValidation,
		},
		{
			name:       "unknown account",
			body:       `{}`,
			runErr:     fmt.Errorf("select accounts: %w", integration.ErrAccountNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeAccountNotFound,
		},
		{
			name:       "run failure",
			body:       `{}`,
			runErr:     errors.New("database unavailable"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
		},
		{
			name:       "body too large",
			body:       `{"account_ids":["` + strings.Repeat("a", 256) + `"]}`,
			bodyLimit:  64,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   dto.ErrCodeRequestTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: integration.NewSyncResult(time.Now()), err: tt.runErr}
			r := newSyncRouter(NewSyncHandler(runner, nil, nil), tt.bodyLimit)

			w := doJSON(r, http.MethodPost, "/api/v1/sync", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestSyncHandler_StartSync_ValidationDetails(t *testing.T) {
	accountID := uuid.New().String()
	tooMany := make([]string, dto.MaxManualOrderIDs+1)
	for i := range tooMany {
		tooMany[i] = strconv.Itoa(2000000 + i)
	}
	oversized, err := json.Marshal(dto.StartSyncRequest{OrderIDsByAccount: map[string][]string{accountID: tooMany}})
	require.NoError(t, err)

	tests := []struct {
		name        string
		body        string
		wantField   string
		wantMessage string
	}{
		{"malformed account id", `{"account_ids":["` + accountID + `","nope"]}`, "account_ids[1]", "Invalid UUID format"},
		{"nil account id", `{"account_ids":["00000000-0000-0000-0000-000000000000"]}`, "account_ids[0]", "Must not be 00000000-0000-0000-0000-000000000000"},
		{"malformed account key", `{"order_ids_by_account":{"bad-key":["2000001"]}}`, "order_ids_by_account[bad-key]", "Invalid UUID format"},
		{"empty order id", `{"order_ids_by_account":{"` + accountID + `":["2000001",""]}}`, "order_ids_by_account[" + accountID + "][1]", "This field is required"},
		{"too many order ids", string(oversized), "order_ids_by_account[" + accountID + "]", "Must contain at most 500 items"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: integration.NewSyncResult(time.Now())}
			r := newSyncRouter(NewSyncHandler(runner, nil, nil), 0)

			w := doJSON(r, http.MethodPost, "/api/v1/sync", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			require.Len(t, resp.Error.Details, 1)
			assert.Equal(t, tt.wantField, resp.Error.Details[0].Field)
			assert.Equal(t, tt.wantMessage, resp.Error.Details[0].Message)
			assert.Empty(t, runner.got)
		})
	}
}

func TestSyncHandler_StartSync_AcceptsOrderIDCap(t *testing.T) {
	accountID := uuid.New()
	ids := make([]string, dto.MaxManualOrderIDs)
	for i := range ids {
		ids[i] = strconv.Itoa(2000000 + i)
	}
	body, err := json.Marshal(dto.StartSyncRequest{OrderIDsByAccount: map[string][]string{accountID.String(): ids}})
	require.NoError(t, err)

	runner := &fakeRunner{result: integration.NewSyncResult(time.Now())}
	r := newSyncRouter(NewSyncHandler(runner, nil, nil), 0)

	w := doJSON(r, http.MethodPost, "/api/v1/sync", string(body))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, runner.got, 1)
	assert.Len(t, runner.got[0].OrderIDsByAccount[accountID], dto.MaxManualOrderIDs)
}

func TestSyncHandler_StartSync_Async(t *testing.T) {
	accountID := uuid.New()
	runner := &fakeRunner{}
	queue := &fakeQueue{}
	r := newSyncRouter(NewSyncHandler(runner, queue, nil), 0)

	w := doJSON(r, http.MethodPost, "/api/v1/sync?async=true", fmt.Sprintf(`{"account_ids":[%q]}`, accountID))

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Empty(t, runner.got)
	require.Len(t, queue.submitted, 1)
	assert.Equal(t, []uuid.UUID{accountID}, queue.submitted[0].AccountIDs)

	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, "manual", data["trigger"])
	assert.Equal(t, "/api/v1/sync/jobs/"+data["id"].(string), w.Header().Get("Location"))
}

func TestSyncHandler_StartSync_AsyncErrors(t *testing.T) {
	tests := []struct {
		name     string
		queue    JobQueue
		wantCode string
	}{
		{"no scheduler", nil, dto.ErrCodeSchedulerNotRunning},
		{"queue full", &fakeQueue{submitErr: scheduler.ErrJobQueueFull}, dto.ErrCodeQueueFull},
		{"stopped", &fakeQueue{submitErr: scheduler.ErrSchedulerNotRunning}, dto.ErrCodeSchedulerNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSyncRouter(NewSyncHandler(&fakeRunner{}, tt.queue, nil), 0)

			w := doJSON(r, http.MethodPost, "/api/v1/sync?async=1", `{}`)

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, tt.wantCode, decodeResponse(t, w).Error.Code)
		})
	}
}

func TestSyncHandler_ListJobs(t *testing.T) {
	queue := &fakeQueue{}
	for i := 0; i < 5; i++ {
		_, err := queue.Submit(ordersync.StartSyncRequest{})
		require.NoError(t, err)
	}
	r := newSyncRouter(NewSyncHandler(&fakeRunner{}, queue, nil), 0)

	t.Run("default limit", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/sync/jobs", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.Len(t, resp.Data.([]any), 5)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 5, resp.Meta.Total)
		assert.Equal(t, defaultJobListLimit, resp.Meta.Limit)
	})

	t.Run("explicit limit", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/sync/jobs?limit=2", "")
		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		jobs := resp.Data.([]any)
		require.Len(t, jobs, 2)
		assert.Equal(t, queue.jobs[0].ID.String(), jobs[0].(map[string]any)["id"])
		assert.Equal(t, 5, resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Returned)
	})

	for _, bad := range []string{"0", "-1", "abc", "101"} {
		t.Run("invalid limit "+bad, func(t *testing.T) {
			w := doJSON(r, http.MethodGet, "/api/v1/sync/jobs?limit="+bad, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSyncHandler_GetJob(t *testing.T) {
	queue := &fakeQueue{}
	job, err := queue.Submit(ordersync.StartSyncRequest{})
	require.NoError(t, err)

	done := time.Now()
	result := integration.NewSyncResult(done)
	queue.jobs[0].Status = scheduler.SyncJobStatusSuccess
	queue.jobs[0].CompletedAt = &done
	queue.jobs[0].Result = result

	r := newSyncRouter(NewSyncHandler(&fakeRunner{}, queue, nil), 0)

	t.Run("found", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/sync/jobs/"+job.ID.String(), "")
		require.Equal(t, http.StatusOK, w.Code)
		data := decodeResponse(t, w).Data.(map[string]any)
		assert.Equal(t, "SUCCESS", data["status"])
		assert.NotEmpty(t, data["completed_at"])
		res := data["result"].(map[string]any)
		assert.Equal(t, result.RunID.String(), res["run_id"])
		assert.Equal(t, string(integration.SyncStatusSuccess), res["status"])
	})

	t.Run("unknown", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/sync/jobs/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := doJSON(r, http.MethodGet, "/api/v1/sync/jobs/42", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_JobsWithoutScheduler(t *testing.T) {
	r := newSyncRouter(NewSyncHandler(&fakeRunner{}, nil, nil), 0)

	for _, path := range []string{"/api/v1/sync/jobs", "/api/v1/sync/jobs/" + uuid.NewString()} {
		w := doJSON(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}
