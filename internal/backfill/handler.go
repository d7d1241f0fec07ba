package backfill

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/evermore-events/backend/internal/middleware"
	"github.com/evermore-events/backend/pkg/queue"
	"github.com/evermore-events/backend/pkg/response"
)

// Enqueuer hands a backfill to the worker.
type Enqueuer interface {
	EnqueueBackfill(ctx context.Context, payload queue.BackfillPayload) (string, error)
}

// Handler serves /weddings/:id/invite-codes/backfill.
type Handler struct {
	svc    *Service
	jobs   Enqueuer
	logger *zap.Logger
}

// NewHandler creates a backfill handler. jobs may be nil, which disables async runs.
func NewHandler(svc *Service, jobs Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, jobs: jobs, logger: logger}
}

type runRequest struct {
	Options
	Async bool `json:"async"`
}

// Run handles POST. ?format=csv returns the report as a download instead of JSON.
func (h *Handler) Run(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	weddingID := middleware.WeddingID(c)
	actor := middleware.ActorID(c)

	if req.Async && h.jobs != nil {
		if _, err := req.Options.normalize(); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		st, err := h.svc.Status(c.Request.Context(), weddingID)
		if err != nil {
			h.logger.Error("backfill status failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
			response.Internal(c, "failed to read backfill status")
			return
		}
		if st.Running {
			response.Conflict(c, ErrAlreadyRunning.Error())
			return
		}
		id, err := h.jobs.EnqueueBackfill(c.Request.Context(), queue.BackfillPayload{
			WeddingID:  weddingID,
			BatchSize:  req.BatchSize,
			MaxRetries: req.MaxRetries,
			DryRun:     req.DryRun,
			Actor:      actor,
		})
		if err != nil {
			h.logger.Error("enqueue backfill failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
			response.Internal(c, "failed to enqueue backfill")
			return
		}
		response.Accepted(c, gin.H{"job_id": id})
		return
	}

	rep, err := h.svc.Run(c.Request.Context(), weddingID, actor, req.Options)
	switch {
	case errors.Is(err, ErrValidation):
		response.BadRequest(c, err.Error())
		return
	case errors.Is(err, ErrAlreadyRunning):
		response.Conflict(c, err.Error())
		return
	case err != nil:
		h.logger.Error("backfill failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "invite code backfill failed")
		return
	}
	if c.Query("format") == "csv" {
		data, err := rep.CSV()
		if err != nil {
			response.Internal(c, "failed to render report")
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+rep.Filename()+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
		return
	}
	response.OK(c, rep)
}

// Status handles GET.
func (h *Handler) Status(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), middleware.WeddingID(c))
	if err != nil {
		h.logger.Error("backfill status failed", zap.Error(err))
		response.Internal(c, "failed to read backfill status")
		return
	}
	response.OK(c, st)
}
