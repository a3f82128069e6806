package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/logger"
)

// LockHandler backs the sequence lock lifecycle routes: acquire,
// heartbeat, release. The requester id comes from the resolved principal,
// never from the request body, so a caller cannot acquire a lock on
// another user's behalf.
type LockHandler struct {
	log     *logger.Logger
	service *app.TimelineService
}

func NewLockHandler(log *logger.Logger, service *app.TimelineService) *LockHandler {
	return &LockHandler{log: log.With("handler", "LockHandler"), service: service}
}

// POST /projects/:project_id/sequences/:sequence_id/lock
func (h *LockHandler) Acquire(c *gin.Context) {
	p := principalFrom(c)
	result, cerr := h.service.AcquireLock(c.Request.Context(), c.Param("sequence_id"), p.UserID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, gin.H{"granted": result.Granted, "locked_by": result.LockedBy, "locked_at": result.LockedAt})
}

// POST /projects/:project_id/sequences/:sequence_id/heartbeat
func (h *LockHandler) Heartbeat(c *gin.Context) {
	p := principalFrom(c)
	if cerr := h.service.HeartbeatLock(c.Request.Context(), c.Param("sequence_id"), p.UserID); cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}

// POST /projects/:project_id/sequences/:sequence_id/unlock
func (h *LockHandler) Release(c *gin.Context) {
	p := principalFrom(c)
	if cerr := h.service.ReleaseLock(c.Request.Context(), c.Param("sequence_id"), p.UserID); cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}
