package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/logger"
)

// CapabilitiesHandler exposes A9's loaded effects/transform parameter
// table so a programmatic caller can discover valid ranges before
// building a clip.effects/clip.transform patch, instead of guessing and
// getting INVALID_FIELD_VALUE back.
type CapabilitiesHandler struct {
	log     *logger.Logger
	service *app.TimelineService
}

func NewCapabilitiesHandler(log *logger.Logger, service *app.TimelineService) *CapabilitiesHandler {
	return &CapabilitiesHandler{log: log.With("handler", "CapabilitiesHandler"), service: service}
}

// GET /capabilities
func (h *CapabilitiesHandler) List(c *gin.Context) {
	tbl := h.service.EffectsTable()
	if tbl == nil {
		RespondOK(c, gin.H{"capabilities": []any{}})
		return
	}
	RespondOK(c, gin.H{"capabilities": tbl.List()})
}
