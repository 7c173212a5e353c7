package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helpcove/kbsync/internal/service"
	"go.uber.org/zap"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// OpsHandler serves the operator surface of the sync daemon: liveness, the
// status snapshot, and a manual sync trigger.
//
// Notes:
//   - GET  /healthz: store reachability
//   - GET  /status: cached pipeline/store snapshot (?force=1 bypasses)
//   - POST /sync: run one tick now; 409 while another tick is in flight
type OpsHandler struct {
	log       *zap.Logger
	health    HealthChecker
	pipeline  *service.Ticker
	statussvc *service.StatusService
}

// NewOpsHandler constructs an OpsHandler instance.
func NewOpsHandler(log *zap.Logger, health HealthChecker, pipeline *service.Ticker, statussvc *service.StatusService) *OpsHandler {
	return &OpsHandler{
		log:       log.Named("ops_handler"),
		health:    health,
		pipeline:  pipeline,
		statussvc: statussvc,
	}
}

// ------ Healthz -----

func (h *OpsHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.health.Healthy(ctx); err != nil {
		c.Error(err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ------ Status -----

func (h *OpsHandler) Status(c *gin.Context) {
	// Optional query to bypass cache for admin/diagnostics: ?force=1
	if c.Query("force") == "1" {
		h.statussvc.Invalidate()
	}

	res, err := h.statussvc.Get(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	// Friendly cache headers for debugging/observability
	c.Header("X-Cache", map[bool]string{true: "HIT", false: "MISS"}[res.CacheHit])
	c.Header("X-Status-Generated-At", strconv.FormatInt(res.Report.GeneratedAt.UnixMilli(), 10))

	c.JSON(http.StatusOK, res.Report)
}

// ------ Manual sync -----

// TriggerSync runs one tick inline and answers with its summary. The ticker's
// cadence is untouched; an overlapping request gets 409.
func (h *OpsHandler) TriggerSync(c *gin.Context) {
	summary, err := h.pipeline.Current().Sync(c.Request.Context())
	if errors.Is(err, service.ErrSyncInFlight) {
		c.JSON(http.StatusConflict, gin.H{"message": "sync already in flight"})
		return
	}

	// The tick touched the stores either way; the next status poll refreshes.
	h.statussvc.Invalidate()

	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
