package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
)

type ProjectHandler struct {
	log     *logger.Logger
	service *app.TimelineService
}

func NewProjectHandler(log *logger.Logger, service *app.TimelineService) *ProjectHandler {
	return &ProjectHandler{log: log.With("handler", "ProjectHandler"), service: service}
}

type createProjectRequest struct {
	Name   string  `json:"name" binding:"required"`
	Width  int     `json:"width" binding:"required"`
	Height int     `json:"height" binding:"required"`
	FPS    float64 `json:"fps" binding:"required"`
}

// POST /projects
// Creates a project with an empty timeline and its one default sequence
// Every project has exactly one is_default=true sequence.
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "", err.Error())
		return
	}
	projectID := uuid.NewString()
	sequenceID := uuid.NewString()
	p := domain.Project{
		ID:     projectID,
		Name:   req.Name,
		Width:  req.Width,
		Height: req.Height,
		FPS:    req.FPS,
	}
	seq := domain.Sequence{
		ID:        sequenceID,
		ProjectID: projectID,
		Name:      "default",
		IsDefault: true,
	}
	if cerr := h.service.CreateProject(c.Request.Context(), p, seq); cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondCreated(c, gin.H{"project": p, "default_sequence_id": sequenceID})
}

// GET /projects/:project_id
func (h *ProjectHandler) Get(c *gin.Context) {
	p, cerr := h.service.GetProject(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, p)
}

// GET /projects/:project_id/sequences
// Lists the project's default sequence id; a richer multi-sequence list
// view is a natural follow-up once sequence creation beyond the default
// is exposed over HTTP.
func (h *ProjectHandler) DefaultSequence(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, seq)
}

// GET /healthz
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
