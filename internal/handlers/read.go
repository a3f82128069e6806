package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/assetcatalog"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/read"
)

// ReadHandler backs the hierarchical read API (L1 overview, L2 structure/
// at-time/assets, L3 clip detail). Every level reads the project's default
// sequence timeline rather than Project.TimelineData directly — the
// sequence is where ApplyBatch actually persists mutations — and merges it
// onto the project's metadata fields before handing it to internal/read,
// which was written against a single domain.Project value.
type ReadHandler struct {
	log     *logger.Logger
	service *app.TimelineService
	catalog assetcatalog.Catalog
}

func NewReadHandler(log *logger.Logger, service *app.TimelineService, catalog assetcatalog.Catalog) *ReadHandler {
	return &ReadHandler{log: log.With("handler", "ReadHandler"), service: service, catalog: catalog}
}

// GET /projects/:project_id/overview
func (h *ReadHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("project_id")
	p, cerr := h.service.GetProject(ctx, projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	seq, cerr := h.service.GetDefaultSequence(ctx, projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	merged := *p
	merged.TimelineData = seq.TimelineData
	RespondOK(c, read.Overview(merged))
}

// GET /projects/:project_id/structure
func (h *ReadHandler) Structure(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, read.TimelineStructure(seq.TimelineData))
}

// GET /projects/:project_id/at-time/:t
func (h *ReadHandler) AtTime(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	atMs, err := strconv.Atoi(c.Param("t"))
	if err != nil {
		RespondBadRequest(c, "t", "t must be an integer millisecond offset")
		return
	}
	RespondOK(c, read.AtTime(seq.TimelineData, atMs))
}

// GET /projects/:project_id/assets
func (h *ReadHandler) Assets(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	entries, err := read.AssetCatalogView(c.Request.Context(), seq.TimelineData, h.catalog)
	if err != nil {
		RespondBadRequest(c, "", err.Error())
		return
	}
	RespondOK(c, entries)
}

// GET /projects/:project_id/clips/:clip_id (L3 clip detail, same handler as
// handlers.TimelineHandler.GetClip — kept there since it's registered on
// the clip resource route, not a /structure-style read route).
