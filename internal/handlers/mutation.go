package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/ctxutil"
	"github.com/clipstream/timeline-core/internal/dispatch"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/logger"
	"github.com/clipstream/timeline-core/internal/read"
	"github.com/clipstream/timeline-core/internal/validate"
)

// TimelineHandler backs every mutating clip/layer/audio/marker/batch route.
// They all reduce to the same call shape — resolve the project's default
// sequence, build one or more dispatch.Operation values, and hand them to
// TimelineService.ApplyBatch — so one handler struct serves all of them
// instead of duplicating the envelope/option-parsing boilerplate per
// resource.
type TimelineHandler struct {
	log     *logger.Logger
	service *app.TimelineService
}

func NewTimelineHandler(log *logger.Logger, service *app.TimelineService) *TimelineHandler {
	return &TimelineHandler{log: log.With("handler", "TimelineHandler"), service: service}
}

type mutationOptions struct {
	ValidateOnly bool `json:"validate_only"`
	DryRun       bool `json:"dry_run"`
}

func (o mutationOptions) isDryRun() bool { return o.ValidateOnly || o.DryRun }

func principalFrom(c *gin.Context) app.Principal {
	p := ctxutil.GetPrincipal(c.Request.Context())
	if p == nil {
		return app.Principal{}
	}
	return *p
}

func sourceFrom(c *gin.Context) domain.OperationSource {
	switch strings.TrimSpace(c.GetHeader("X-Operation-Source")) {
	case string(domain.SourceAIChat):
		return domain.SourceAIChat
	case string(domain.SourceEditor):
		return domain.SourceEditor
	case string(domain.SourceSemantic):
		return domain.SourceSemantic
	default:
		return domain.SourceAPIV1
	}
}

// expectedVersionFrom reads the If-Match header; 0 means "don't
// check", matching batch.Apply's convention of skipping the version
// check when ExpectedVersion is the sequence's zero value caller sentinel.
func expectedVersionFrom(c *gin.Context) int {
	v := strings.TrimSpace(c.GetHeader("If-Match"))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// runOne resolves the project's default sequence and applies a single
// operation, honoring the validate_only/dry_run option by routing single
// clip add/move/transform/delete ops through ValidateProposal and
// everything else through ApplyBatch's DryRun path.
func (h *TimelineHandler) runOne(c *gin.Context, opts mutationOptions, proposal *validate.Proposal, op dispatch.Operation) {
	ctx := c.Request.Context()
	projectID := c.Param("project_id")
	seq, cerr := h.service.GetDefaultSequence(ctx, projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}

	if opts.isDryRun() && proposal != nil {
		res, cerr := h.service.ValidateProposal(ctx, seq.ID, *proposal)
		if cerr != nil {
			RespondError(c, cerr)
			return
		}
		RespondOK(c, res)
		return
	}

	req := app.ApplyBatchRequest{
		ProjectID:       projectID,
		SequenceID:      seq.ID,
		ExpectedVersion: expectedVersionFrom(c),
		Items:           []dispatch.Operation{op},
		IdempotencyKey:  strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		Source:          sourceFrom(c),
		Requester:       principalFrom(c),
		DryRun:          opts.isDryRun(),
	}
	resp, cerr := h.service.ApplyBatch(ctx, req)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	if resp.Idempotent {
		RespondMutation(c, gin.H{"timeline": resp.Timeline, "idempotent_replay": true}, resp.OperationID, resp.RollbackAvailable)
		return
	}
	RespondMutation(c, gin.H{"timeline": resp.Timeline, "version": resp.NewVersion}, resp.OperationID, resp.RollbackAvailable)
}

func bindJSON(c *gin.Context, body any) bool {
	if err := c.ShouldBindJSON(body); err != nil {
		RespondBadRequest(c, "", err.Error())
		return false
	}
	return true
}

// --- Clips ---

type createClipRequest struct {
	LayerID string      `json:"layer_id" binding:"required"`
	Clip    domain.Clip `json:"clip" binding:"required"`
	Options mutationOptions `json:"options"`
}

// POST /projects/:project_id/clips
func (h *TimelineHandler) CreateClip(c *gin.Context) {
	var req createClipRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Clip.ID == "" {
		req.Clip.ID = uuid.NewString()
	}
	req.Clip.Effects = sanitizeClipEffects(h.service, req.Clip.Effects)
	req.Clip.Transform = sanitizeClipTransform(h.service, req.Clip.Transform)

	proposal := &validate.Proposal{Kind: validate.KindAddClip, LayerID: req.LayerID, NewClip: &req.Clip}
	op := dispatch.Operation{Type: dispatch.OpClipAdd, LayerID: req.LayerID, Clip: &req.Clip}
	h.runOne(c, req.Options, proposal, op)
}

// GET /projects/:project_id/clips/:clip_id
func (h *TimelineHandler) GetClip(c *gin.Context) {
	seq, cerr := h.service.GetDefaultSequence(c.Request.Context(), c.Param("project_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	t := seq.TimelineData
	detail, cerr := read.ClipDetailByID(&t, c.Param("clip_id"))
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondOK(c, detail)
}

// DELETE /projects/:project_id/clips/:clip_id
func (h *TimelineHandler) DeleteClip(c *gin.Context) {
	clipID := c.Param("clip_id")
	proposal := &validate.Proposal{Kind: validate.KindDeleteClip, ClipID: clipID}
	op := dispatch.Operation{Type: dispatch.OpClipDelete, ClipID: clipID}
	h.runOne(c, mutationOptionsFromQuery(c), proposal, op)
}

type patchClipRequest struct {
	Type       string             `json:"type"` // clip.move | .trim | .transform | .effects | .text | .text_style | .shape | .crop | .update | .keyframes
	NewStartMs *int               `json:"new_start_ms,omitempty"`
	NewLayerID *string            `json:"new_layer_id,omitempty"`
	Patch      dispatch.ClipPatch `json:"patch"`
	Options    mutationOptions    `json:"options"`
}

// PATCH /projects/:project_id/clips/:clip_id
// Covers move/trim/transform/effects/text/text_style/shape/crop/update/
// keyframes: the op type named in the body selects which semantics apply,
// all sharing the one ClipPatch shallow-merge shape dispatch already defines.
func (h *TimelineHandler) PatchClip(c *gin.Context) {
	var req patchClipRequest
	if !bindJSON(c, &req) {
		return
	}
	clipID := c.Param("clip_id")
	opType := req.Type
	if opType == "" {
		opType = dispatch.OpClipUpdate
	}

	if opType == dispatch.OpClipMove {
		if req.NewStartMs == nil {
			RespondBadRequest(c, "new_start_ms", "new_start_ms is required for clip.move")
			return
		}
		proposal := &validate.Proposal{Kind: validate.KindMoveClip, ClipID: clipID, NewStartMs: req.NewStartMs, NewLayerID: req.NewLayerID}
		op := dispatch.Operation{Type: dispatch.OpClipMove, ClipID: clipID, NewStartMs: req.NewStartMs, NewLayerID: req.NewLayerID}
		h.runOne(c, req.Options, proposal, op)
		return
	}

	if req.Patch.Effects != nil {
		sanitized := sanitizeClipEffects(h.service, *req.Patch.Effects)
		req.Patch.Effects = &sanitized
	}
	if req.Patch.Transform != nil {
		sanitized := sanitizeClipTransform(h.service, *req.Patch.Transform)
		req.Patch.Transform = &sanitized
	}

	proposal := &validate.Proposal{Kind: validate.KindTransformClip, ClipID: clipID}
	op := dispatch.Operation{Type: opType, ClipID: clipID, ClipPatch: &req.Patch}
	h.runOne(c, req.Options, proposal, op)
}

// POST /projects/:project_id/clips/:clip_id/split
// Composes two existing primitives into one atomic batch rather than
// adding a new dispatcher op: trim the original clip down to the split
// point, then add a new clip spanning from the split point to the
// original clip's end, copying its asset/transform/effects forward.
func (h *TimelineHandler) SplitClip(c *gin.Context) {
	var req struct {
		SplitAtMs int             `json:"split_at_ms" binding:"required"`
		Options   mutationOptions `json:"options"`
	}
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	projectID := c.Param("project_id")
	clipID := c.Param("clip_id")

	seq, cerr := h.service.GetDefaultSequence(ctx, projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	t := seq.TimelineData
	detail, cerr := read.ClipDetailByID(&t, clipID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	if req.SplitAtMs <= detail.StartMs || req.SplitAtMs >= detail.EndMs {
		RespondBadRequest(c, "split_at_ms", "split_at_ms must fall strictly within the clip")
		return
	}

	offset := req.SplitAtMs - detail.StartMs
	firstDuration := offset
	secondDuration := detail.DurationMs - offset
	secondInPoint := detail.InPointMs + offset

	second := domain.Clip{
		ID:            uuid.NewString(),
		AssetID:       detail.AssetID,
		StartMs:       req.SplitAtMs,
		DurationMs:    secondDuration,
		InPointMs:     secondInPoint,
		OutPointMs:    detail.OutPointMs,
		Transform:     detail.Transform,
		Effects:       detail.Effects,
		TransitionOut: detail.TransitionOut,
		TextContent:   detail.TextContent,
		GroupID:       detail.GroupID,
	}

	trimPatch := dispatch.ClipPatch{DurationMs: &firstDuration}
	items := []dispatch.Operation{
		{Type: dispatch.OpClipTrim, ClipID: clipID, ClipPatch: &trimPatch},
		{Type: dispatch.OpClipAdd, LayerID: detail.LayerID, Clip: &second},
	}

	apReq := app.ApplyBatchRequest{
		ProjectID:       projectID,
		SequenceID:      seq.ID,
		ExpectedVersion: expectedVersionFrom(c),
		Items:           items,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		Source:          sourceFrom(c),
		Requester:       principalFrom(c),
		DryRun:          req.Options.isDryRun(),
	}
	resp, cerr := h.service.ApplyBatch(ctx, apReq)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondMutation(c, gin.H{"timeline": resp.Timeline, "version": resp.NewVersion, "new_clip_id": second.ID}, resp.OperationID, resp.RollbackAvailable)
}

// --- Layers ---

type createLayerRequest struct {
	Layer   domain.Layer    `json:"layer" binding:"required"`
	Options mutationOptions `json:"options"`
}

// POST /projects/:project_id/layers
func (h *TimelineHandler) CreateLayer(c *gin.Context) {
	var req createLayerRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Layer.ID == "" {
		req.Layer.ID = uuid.NewString()
	}
	op := dispatch.Operation{Type: dispatch.OpLayerAdd, Layer: &req.Layer}
	h.runOne(c, req.Options, nil, op)
}

type patchLayerRequest struct {
	Type    string              `json:"type"` // layer.update | .delete | .reorder
	Patch   dispatch.LayerPatch `json:"patch"`
	Order   []string            `json:"order,omitempty"`
	Options mutationOptions     `json:"options"`
}

// PATCH /projects/:project_id/layers/:layer_id
func (h *TimelineHandler) PatchLayer(c *gin.Context) {
	var req patchLayerRequest
	if !bindJSON(c, &req) {
		return
	}
	layerID := c.Param("layer_id")
	switch req.Type {
	case dispatch.OpLayerDelete:
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpLayerDelete, LayerID: layerID})
	case dispatch.OpLayerReorder:
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpLayerReorder, Order: req.Order})
	default:
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpLayerUpdate, LayerID: layerID, LayerPatch: &req.Patch})
	}
}

// --- Audio clips ---

type createAudioClipRequest struct {
	AudioTrackID string           `json:"audio_track_id" binding:"required"`
	AudioClip    domain.AudioClip `json:"audio_clip" binding:"required"`
	Options      mutationOptions  `json:"options"`
}

// POST /projects/:project_id/audio-clips
func (h *TimelineHandler) CreateAudioClip(c *gin.Context) {
	var req createAudioClipRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.AudioClip.ID == "" {
		req.AudioClip.ID = uuid.NewString()
	}
	op := dispatch.Operation{Type: dispatch.OpAudioClipAdd, AudioTrackID: req.AudioTrackID, AudioClip: &req.AudioClip}
	h.runOne(c, req.Options, nil, op)
}

type patchAudioClipRequest struct {
	Type            string                 `json:"type"` // audio_clip.move | .update | .delete
	NewStartMs      *int                   `json:"new_start_ms,omitempty"`
	NewAudioTrackID *string                `json:"new_audio_track_id,omitempty"`
	Patch           dispatch.AudioClipPatch `json:"patch"`
	Options         mutationOptions        `json:"options"`
}

// PATCH /projects/:project_id/audio-clips/:audio_clip_id
func (h *TimelineHandler) PatchAudioClip(c *gin.Context) {
	var req patchAudioClipRequest
	if !bindJSON(c, &req) {
		return
	}
	audioClipID := c.Param("audio_clip_id")
	switch req.Type {
	case dispatch.OpAudioClipDelete:
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpAudioClipDelete, AudioClipID: audioClipID})
	case dispatch.OpAudioClipMove:
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpAudioClipMove, AudioClipID: audioClipID, NewStartMs: req.NewStartMs, NewAudioTrackID: req.NewAudioTrackID})
	default:
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpAudioClipUpdate, AudioClipID: audioClipID, AudioClipPatch: &req.Patch})
	}
}

// DELETE /projects/:project_id/audio-clips/:audio_clip_id
func (h *TimelineHandler) DeleteAudioClip(c *gin.Context) {
	audioClipID := c.Param("audio_clip_id")
	h.runOne(c, mutationOptionsFromQuery(c), nil, dispatch.Operation{Type: dispatch.OpAudioClipDelete, AudioClipID: audioClipID})
}

// --- Audio tracks ---

type createAudioTrackRequest struct {
	AudioTrack domain.AudioTrack `json:"audio_track" binding:"required"`
	Options    mutationOptions   `json:"options"`
}

// POST /projects/:project_id/audio-tracks
func (h *TimelineHandler) CreateAudioTrack(c *gin.Context) {
	var req createAudioTrackRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.AudioTrack.ID == "" {
		req.AudioTrack.ID = uuid.NewString()
	}
	op := dispatch.Operation{Type: dispatch.OpAudioTrackAdd, AudioTrack: &req.AudioTrack}
	h.runOne(c, req.Options, nil, op)
}

// --- Markers ---

type createMarkerRequest struct {
	Marker  domain.Marker   `json:"marker" binding:"required"`
	Options mutationOptions `json:"options"`
}

// POST /projects/:project_id/markers
func (h *TimelineHandler) CreateMarker(c *gin.Context) {
	var req createMarkerRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Marker.ID == "" {
		req.Marker.ID = uuid.NewString()
	}
	op := dispatch.Operation{Type: dispatch.OpMarkerAdd, Marker: &req.Marker}
	h.runOne(c, req.Options, nil, op)
}

type patchMarkerRequest struct {
	Type    string               `json:"type"` // marker.update | .delete
	Patch   dispatch.MarkerPatch `json:"patch"`
	Options mutationOptions      `json:"options"`
}

// PATCH /projects/:project_id/markers/:marker_id
func (h *TimelineHandler) PatchMarker(c *gin.Context) {
	var req patchMarkerRequest
	if !bindJSON(c, &req) {
		return
	}
	markerID := c.Param("marker_id")
	if req.Type == dispatch.OpMarkerDelete {
		h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpMarkerDelete, MarkerID: markerID})
		return
	}
	h.runOne(c, req.Options, nil, dispatch.Operation{Type: dispatch.OpMarkerUpdate, MarkerID: markerID, MarkerPatch: &req.Patch})
}

// DELETE /projects/:project_id/markers/:marker_id
func (h *TimelineHandler) DeleteMarker(c *gin.Context) {
	markerID := c.Param("marker_id")
	h.runOne(c, mutationOptionsFromQuery(c), nil, dispatch.Operation{Type: dispatch.OpMarkerDelete, MarkerID: markerID})
}

// --- Batch ---

type batchRequest struct {
	Items   []dispatch.Operation `json:"items" binding:"required"`
	Options mutationOptions      `json:"options"`
}

// POST /projects/:project_id/batch
func (h *TimelineHandler) Batch(c *gin.Context) {
	var req batchRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	projectID := c.Param("project_id")
	seq, cerr := h.service.GetDefaultSequence(ctx, projectID)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	for i := range req.Items {
		if req.Items[i].Clip != nil {
			req.Items[i].Clip.Effects = sanitizeClipEffects(h.service, req.Items[i].Clip.Effects)
			req.Items[i].Clip.Transform = sanitizeClipTransform(h.service, req.Items[i].Clip.Transform)
		}
	}
	apReq := app.ApplyBatchRequest{
		ProjectID:       projectID,
		SequenceID:      seq.ID,
		ExpectedVersion: expectedVersionFrom(c),
		Items:           req.Items,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		Source:          domain.SourceBatch,
		Requester:       principalFrom(c),
		DryRun:          req.Options.isDryRun(),
	}
	resp, cerr := h.service.ApplyBatch(ctx, apReq)
	if cerr != nil {
		RespondError(c, cerr)
		return
	}
	RespondMutation(c, gin.H{"timeline": resp.Timeline, "version": resp.NewVersion}, resp.OperationID, resp.RollbackAvailable)
}

func mutationOptionsFromQuery(c *gin.Context) mutationOptions {
	return mutationOptions{ValidateOnly: c.Query("validate_only") == "true", DryRun: c.Query("dry_run") == "true"}
}

func sanitizeClipEffects(svc *app.TimelineService, e domain.Effects) domain.Effects {
	tbl := svc.EffectsTable()
	if tbl == nil {
		return e
	}
	raw := map[string]any{
		"opacity": e.Opacity, "blend_mode": e.BlendMode,
		"fade_in_ms": e.FadeInMs, "fade_out_ms": e.FadeOutMs,
	}
	clean := tbl.Sanitize("effects", raw)
	out := e
	if _, ok := clean["opacity"]; !ok {
		out.Opacity = 0
	}
	if _, ok := clean["blend_mode"]; !ok {
		out.BlendMode = ""
	}
	return out
}

func sanitizeClipTransform(svc *app.TimelineService, t domain.Transform) domain.Transform {
	tbl := svc.EffectsTable()
	if tbl == nil {
		return t
	}
	raw := map[string]any{
		"x": t.X, "y": t.Y, "width": t.Width, "height": t.Height,
		"scale": t.Scale, "rotation": t.Rotation, "anchor": t.Anchor,
	}
	clean := tbl.Sanitize("transform", raw)
	out := t
	if _, ok := clean["width"]; !ok {
		out.Width = nil
	}
	if _, ok := clean["height"]; !ok {
		out.Height = nil
	}
	if _, ok := clean["anchor"]; !ok {
		out.Anchor = ""
	}
	return out
}
