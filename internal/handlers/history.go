package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/repos"
)

// HistoryHandler backs the operation history and rollback routes.
type HistoryHandler struct {
	log     *logger.Logger
	service *app.TimelineService
}

func NewHistoryHandler(log *logger.Logger, service *app.TimelineService) *HistoryHandler {
	return &HistoryHandler{log: log.With("handler", "HistoryHandler"), service: service}
}

// GET /projects/:project_id/history?limit=50&offset=0&since_version=N&clip_id=...&operation_type=...&source=...
func (h *HistoryHandler) List(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}

	filter := repos.HistoryFilter{Limit: 50}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Offset = n
		}
	}
	if raw := c.Query("since_version"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.SinceVersion = &n
		}
	}
	filter.ClipID = c.Query("clip_id")
	filter.OperationType = c.Query("operation_type")
	filter.Source = c.Query("source")

	recs, cerr := h.service.ListHistory(c.Request.Context(), seq.ID, filter)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, recs)
}

// GET /projects/:project_id/operations/:operation_id
func (h *HistoryHandler) Get(c *gin.Context) {
	rec, cerr := h.service.GetOperation(c.Request.Context(), c.Param("operation_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, rec)
}

// POST /projects/:project_id/operations/:operation_id/rollback
func (h *HistoryHandler) Rollback(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("project_id")
	seq, cerr := h.service.GetDefaultSequence(ctx, projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	p := principalFrom(c)
	resp, cerr := h.service.Rollback(ctx, seq.ID, c.Param("operation_id"), p.UserID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondMutation(c, gin.H{"timeline": resp.Timeline, "version": resp.NewVersion}, resp.OperationID, resp.RollbackAvailable)
}
