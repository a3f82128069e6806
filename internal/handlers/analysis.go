package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/analysis"
	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/logger"
)

// AnalysisHandler backs the timeline analysis routes: gaps, pacing, audio,
// sections, quality, and the composed suggestions feed.
type AnalysisHandler struct {
	log     *logger.Logger
	service *app.TimelineService
}

func NewAnalysisHandler(log *logger.Logger, service *app.TimelineService) *AnalysisHandler {
	return &AnalysisHandler{log: log.With("handler", "AnalysisHandler"), service: service}
}

// GET /projects/:project_id/analysis/gaps
func (h *AnalysisHandler) Gaps(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, analysis.Gaps(seq.TimelineData))
}

// GET /projects/:project_id/analysis/pacing
func (h *AnalysisHandler) Pacing(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, analysis.Pace(seq.TimelineData))
}

// GET /projects/:project_id/analysis/audio
func (h *AnalysisHandler) Audio(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, gin.H{
		"coverage": analysis.AudioCoverage(seq.TimelineData),
		"balance":  analysis.AudioBalance(seq.TimelineData),
	})
}

// GET /projects/:project_id/analysis/sections
func (h *AnalysisHandler) Sections(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, analysis.Sections(seq.TimelineData))
}

// GET /projects/:project_id/analysis/quality
func (h *AnalysisHandler) Quality(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, analysis.Quality(seq.TimelineData))
}

// GET /projects/:project_id/analysis/suggestions
// Composes the four individual analyses into Suggest's fixed-shape,
// idempotency-key-bearing feed, so a caller wanting suggestions doesn't
// have to hit four endpoints and stitch the result together itself.
func (h *AnalysisHandler) Suggestions(c *gin.Context) {
	projectID := c.Param("project_id")
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	t := seq.TimelineData
	gaps := analysis.Gaps(t)
	pacing := analysis.Pace(t)
	audio := analysis.AudioBalance(t)
	quality := analysis.Quality(t)
	RespondOK(c, analysis.Suggest(projectID, t, gaps, pacing, audio, quality))
}
