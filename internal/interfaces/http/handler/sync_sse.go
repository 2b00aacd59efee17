package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/ordersync/internal/domain/integration"
	"github.com/erp/ordersync/internal/infrastructure/event"
	"github.com/erp/ordersync/internal/infrastructure/logger"
	"github.com/erp/ordersync/internal/interfaces/http/dto"
)

// ProgressSubscriber is the part of event.ProgressBroker the stream needs
type ProgressSubscriber interface {
	Subscribe() *event.Subscription
	Unsubscribe(id string)
}

var _ ProgressSubscriber = (*event.ProgressBroker)(nil)

// SyncProgressSSEHandler streams sync progress events as Server-Sent Events
type SyncProgressSSEHandler struct {
	BaseHandler
	broker     ProgressSubscriber
	logger     *zap.Logger
	heartbeat  time.Duration
	maxClients int
	clients    atomic.Int64
}

// SSEOption configures a SyncProgressSSEHandler
type SSEOption func(*SyncProgressSSEHandler)

// WithSSELogger sets the logger for the handler
func WithSSELogger(l *zap.Logger) SSEOption {
	return func(h *SyncProgressSSEHandler) {
		h.logger = l
	}
}

// WithSSEHeartbeat sets the heartbeat interval
func WithSSEHeartbeat(interval time.Duration) SSEOption {
	return func(h *SyncProgressSSEHandler) {
		h.heartbeat = interval
	}
}

// WithSSEMaxClients caps concurrent streams; zero means unlimited
func WithSSEMaxClients(n int) SSEOption {
	return func(h *SyncProgressSSEHandler) {
		h.maxClients = n
	}
}

// NewSyncProgressSSEHandler creates the progress stream handler
func NewSyncProgressSSEHandler(broker ProgressSubscriber, opts ...SSEOption) *SyncProgressSSEHandler {
	h := &SyncProgressSSEHandler{
		broker:     broker,
		logger:     zap.NewNop(),
		heartbeat:  30 * time.Second,
		maxClients: 100,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 30 * time.Second
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	h.logger = h.logger.Named("sse")
	return h
}

// ClientCount returns the number of connected streams
func (h *SyncProgressSSEHandler) ClientCount() int {
	return int(h.clients.Load())
}

func (h *SyncProgressSSEHandler) acquire() bool {
	for {
		n := h.clients.Load()
		if h.maxClients > 0 && n >= int64(h.maxClients) {
			return false
		}
		if h.clients.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// progressFilter narrows a stream to one run or one account
type progressFilter struct {
	runID     string
	accountID string
}

func (f progressFilter) match(e integration.SyncProgressEvent) bool {
	if f.runID != "" && e.RunID != f.runID {
		return false
	}
	if f.accountID != "" && e.AccountID != f.accountID {
		return false
	}
	return true
}

// Stream godoc
// @Summary      Subscribe to sync progress via SSE
// @Description  Streams start, progress, warning, complete and error events. Optional run_id and account_id narrow the stream.
// @Tags         sync
// @Produce      text/event-stream
// @Param        run_id      query string false "only events of this run"
// @Param        account_id  query string false "only events of this account"
// @Success      200 {string} string "SSE stream"
// @Failure      503 {object} dto.Response
// @Security     BearerAuth
// @Router       /sync/stream [get]
func (h *SyncProgressSSEHandler) Stream(c *gin.Context) {
	if !h.acquire() {
		h.Error(c, dto.ErrCodeMaxConnections, "Maximum number of progress streams reached")
		return
	}
	defer h.clients.Add(-1)

	filter := progressFilter{runID: c.Query("run_id"), accountID: c.Query("account_id")}

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub.ID)

	log := logger.WithLogger(c.Request.Context(), h.logger).Zap().With(zap.String("client_id", sub.ID))
	log.Info("SSE client connected",
		zap.String("filter_run_id", filter.runID),
		zap.String("filter_account_id", filter.accountID))

	c.Status(http.StatusOK)
	writeSSE(c.Writer, "connected", "", fmt.Sprintf(`{"client_id":%q,"timestamp":%d}`, sub.ID, time.Now().Unix()))
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	reqCtx := c.Request.Context()
	for {
		select {
		case <-reqCtx.Done():
			log.Info("SSE client disconnected", zap.Uint64("dropped", sub.Dropped()))
			return
		case <-ticker.C:
			writeSSE(c.Writer, "heartbeat", "", fmt.Sprintf(`{"timestamp":%d}`, time.Now().Unix()))
			c.Writer.Flush()
		case e, ok := <-sub.C:
			if !ok {
				log.Info("Progress broker closed, ending stream")
				return
			}
			if !filter.match(e) {
				continue
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Error("Failed to marshal progress event", zap.Error(err))
				continue
			}
			writeSSE(c.Writer, string(e.Type), e.RunID+":"+strconv.FormatUint(e.Sequence, 10), string(data))
			c.Writer.Flush()
		}
	}
}

// writeSSE writes one event frame
func writeSSE(w io.Writer, eventName, id, data string) {
	if eventName != "" {
		fmt.Fprintf(w, "event: %s\n", eventName)
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
