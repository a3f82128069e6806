// Package server wires the route table: every internal/routes template
// expanded to gin's :param syntax and bound to a handler method, plus the
// middleware chain every request passes through first.
package server

import (
	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/handlers"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/middleware"
	"github.com/clipstream/timeline-core/internal/observability"
)

type RouterConfig struct {
	Log *logger.Logger

	// OtelServiceName names the span-producing otelgin middleware; empty
	// skips span creation (observability.Init not called, e.g. in tests).
	OtelServiceName string

	ProjectHandler      *handlers.ProjectHandler
	TimelineHandler     *handlers.TimelineHandler
	LockHandler         *handlers.LockHandler
	HistoryHandler      *handlers.HistoryHandler
	ReadHandler         *handlers.ReadHandler
	AnalysisHandler     *handlers.AnalysisHandler
	CapabilitiesHandler *handlers.CapabilitiesHandler

	Auth *middleware.Auth
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.OtelServiceName != "" {
		router.Use(observability.GinMiddleware(cfg.OtelServiceName))
	}
	router.Use(middleware.AttachTraceContext())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(cfg.Log))

	router.GET("/healthz", handlers.Health)
	router.GET("/capabilities", cfg.CapabilitiesHandler.List)

	api := router.Group("/projects")
	api.Use(cfg.Auth.RequireAuth())

	api.POST("", cfg.ProjectHandler.Create)
	api.GET("/:project_id", cfg.ProjectHandler.Get)
	api.GET("/:project_id/sequences", cfg.ProjectHandler.DefaultSequence)

	api.POST("/:project_id/clips", cfg.TimelineHandler.CreateClip)
	api.GET("/:project_id/clips/:clip_id", cfg.TimelineHandler.GetClip)
	api.PATCH("/:project_id/clips/:clip_id", cfg.TimelineHandler.PatchClip)
	api.DELETE("/:project_id/clips/:clip_id", cfg.TimelineHandler.DeleteClip)
	api.POST("/:project_id/clips/:clip_id/split", cfg.TimelineHandler.SplitClip)

	api.POST("/:project_id/layers", cfg.TimelineHandler.CreateLayer)
	api.PATCH("/:project_id/layers/:layer_id", cfg.TimelineHandler.PatchLayer)

	api.POST("/:project_id/audio-clips", cfg.TimelineHandler.CreateAudioClip)
	api.PATCH("/:project_id/audio-clips/:audio_clip_id", cfg.TimelineHandler.PatchAudioClip)
	api.DELETE("/:project_id/audio-clips/:audio_clip_id", cfg.TimelineHandler.DeleteAudioClip)

	api.POST("/:project_id/audio-tracks", cfg.TimelineHandler.CreateAudioTrack)

	api.POST("/:project_id/markers", cfg.TimelineHandler.CreateMarker)
	api.PATCH("/:project_id/markers/:marker_id", cfg.TimelineHandler.PatchMarker)
	api.DELETE("/:project_id/markers/:marker_id", cfg.TimelineHandler.DeleteMarker)

	api.POST("/:project_id/batch", cfg.TimelineHandler.Batch)
	api.POST("/:project_id/semantic", cfg.TimelineHandler.Semantic)

	api.POST("/:project_id/sequences/:sequence_id/lock", cfg.LockHandler.Acquire)
	api.POST("/:project_id/sequences/:sequence_id/heartbeat", cfg.LockHandler.Heartbeat)
	api.POST("/:project_id/sequences/:sequence_id/unlock", cfg.LockHandler.Release)

	api.GET("/:project_id/history", cfg.HistoryHandler.List)
	api.GET("/:project_id/operations/:operation_id", cfg.HistoryHandler.Get)
	api.POST("/:project_id/operations/:operation_id/rollback", cfg.HistoryHandler.Rollback)

	api.GET("/:project_id/overview", cfg.ReadHandler.Overview)
	api.GET("/:project_id/structure", cfg.ReadHandler.Structure)
	api.GET("/:project_id/at-time/:t", cfg.ReadHandler.AtTime)
	api.GET("/:project_id/assets", cfg.ReadHandler.Assets)

	api.GET("/:project_id/analysis/gaps", cfg.AnalysisHandler.Gaps)
	api.GET("/:project_id/analysis/pacing", cfg.AnalysisHandler.Pacing)
	api.GET("/:project_id/analysis/audio", cfg.AnalysisHandler.Audio)
	api.GET("/:project_id/analysis/sections", cfg.AnalysisHandler.Sections)
	api.GET("/:project_id/analysis/quality", cfg.AnalysisHandler.Quality)
	api.GET("/:project_id/analysis/suggestions", cfg.AnalysisHandler.Suggestions)

	return router
}
