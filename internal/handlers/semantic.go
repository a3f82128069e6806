package handlers

import (
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/timeline-core/internal/app"
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/dispatch"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

type semanticOperationRequest struct {
	Operation     string          `json:"operation" binding:"required"` // snap_to_previous | snap_to_next | close_gap | auto_duck_bgm
	TargetClipID  string          `json:"target_clip_id,omitempty"`
	TargetLayerID string          `json:"target_layer_id,omitempty"`
	Parameters    map[string]any  `json:"parameters,omitempty"`
	Options       mutationOptions `json:"options"`
}

// POST /projects/:project_id/semantic
// Each named operation decomposes into one or more existing clip.move/
// audio_track.update primitives and is applied as one atomic batch sourced
// as domain.SourceSemantic, the same way SplitClip composes clip.trim and
// clip.add instead of adding a new dispatcher op.
func (h *TimelineHandler) Semantic(c *gin.Context) {
	var req semanticOperationRequest
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
	t := seq.TimelineData

	var items []dispatch.Operation
	switch req.Operation {
	case "snap_to_previous":
		items, cerr = snapToPreviousItems(&t, req.TargetClipID)
	case "snap_to_next":
		items, cerr = snapToNextItems(&t, req.TargetClipID)
	case "close_gap":
		items, cerr = closeGapItems(&t, req.TargetLayerID)
	case "auto_duck_bgm":
		items, cerr = autoDuckBGMItems(&t, req.Parameters)
	default:
		cerr = coreerr.New(coreerr.CodeInvalidFieldValue, "unknown semantic operation: "+req.Operation).WithField("operation")
	}
	if cerr != nil {
		RespondError(c, cerr)
		return
	}

	apReq := app.ApplyBatchRequest{
		ProjectID:       projectID,
		SequenceID:      seq.ID,
		ExpectedVersion: expectedVersionFrom(c),
		Items:           items,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		Source:          domain.SourceSemantic,
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

// sortedLayerClips returns the indices of layer's clips in its original
// (unsorted) Clips slice, ordered by the clips' start_ms.
func sortedLayerClips(layer *domain.Layer) []int {
	order := make([]int, len(layer.Clips))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return layer.Clips[order[a]].StartMs < layer.Clips[order[b]].StartMs
	})
	return order
}

// snapToPreviousItems moves targetClipID to start exactly where the
// previous clip on its layer ends.
func snapToPreviousItems(t *domain.Timeline, targetClipID string) ([]dispatch.Operation, *coreerr.Error) {
	if targetClipID == "" {
		return nil, coreerr.New(coreerr.CodeMissingRequiredField, "target_clip_id is required").WithField("target_clip_id")
	}
	_, layerIdx, clipIdx, ok := timeline.FindClip(t, targetClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("target_clip_id")
	}
	layer := &t.Layers[layerIdx]
	order := sortedLayerClips(layer)
	pos := indexOf(order, clipIdx)
	if pos <= 0 {
		return nil, coreerr.New(coreerr.CodeInvalidFieldValue, "no previous clip to snap to").WithField("target_clip_id")
	}
	prev := layer.Clips[order[pos-1]]
	newStart := prev.StartMs + prev.DurationMs
	return []dispatch.Operation{{Type: dispatch.OpClipMove, ClipID: layer.Clips[clipIdx].ID, NewStartMs: &newStart}}, nil
}

// snapToNextItems moves the clip following targetClipID on the same layer
// to start exactly where targetClipID ends.
func snapToNextItems(t *domain.Timeline, targetClipID string) ([]dispatch.Operation, *coreerr.Error) {
	if targetClipID == "" {
		return nil, coreerr.New(coreerr.CodeMissingRequiredField, "target_clip_id is required").WithField("target_clip_id")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, targetClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("target_clip_id")
	}
	layer := &t.Layers[layerIdx]
	order := sortedLayerClips(layer)
	pos := indexOf(order, clipIdx)
	if pos < 0 || pos >= len(order)-1 {
		return nil, coreerr.New(coreerr.CodeInvalidFieldValue, "no next clip to snap").WithField("target_clip_id")
	}
	next := layer.Clips[order[pos+1]]
	newStart := clip.StartMs + clip.DurationMs
	return []dispatch.Operation{{Type: dispatch.OpClipMove, ClipID: next.ID, NewStartMs: &newStart}}, nil
}

// closeGapItems shifts every clip on targetLayerID forward so each one
// starts exactly where the previous one ends, eliminating every gap on
// the layer in a single batch.
func closeGapItems(t *domain.Timeline, targetLayerID string) ([]dispatch.Operation, *coreerr.Error) {
	if targetLayerID == "" {
		return nil, coreerr.New(coreerr.CodeMissingRequiredField, "target_layer_id is required").WithField("target_layer_id")
	}
	layer, _, ok := timeline.FindLayer(t, targetLayerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeLayerNotFound, "layer not found").WithField("target_layer_id")
	}
	order := sortedLayerClips(layer)

	var items []dispatch.Operation
	currentEnd := 0
	for _, idx := range order {
		clip := layer.Clips[idx]
		if clip.StartMs > currentEnd {
			newStart := currentEnd
			items = append(items, dispatch.Operation{Type: dispatch.OpClipMove, ClipID: clip.ID, NewStartMs: &newStart})
			currentEnd += clip.DurationMs
		} else {
			currentEnd = clip.StartMs + clip.DurationMs
		}
	}
	if len(items) == 0 {
		return nil, coreerr.New(coreerr.CodeInvalidFieldValue, "no gaps found on this layer").WithField("target_layer_id")
	}
	return items, nil
}

// autoDuckBGMItems enables ducking on every bgm-typed audio track,
// triggered by narration playback, with parameters defaulting to the same
// values the rest of the ecosystem assumes when none are supplied.
func autoDuckBGMItems(t *domain.Timeline, params map[string]any) ([]dispatch.Operation, *coreerr.Error) {
	duckTo := floatParam(params, "duck_to", 0.1)
	attackMs := intParam(params, "attack_ms", 200)
	releaseMs := intParam(params, "release_ms", 500)

	var items []dispatch.Operation
	for i := range t.AudioTracks {
		track := &t.AudioTracks[i]
		if track.Type != domain.AudioBGM {
			continue
		}
		patch := &dispatch.AudioTrackPatch{
			Ducking: &domain.Ducking{
				Enabled:      true,
				DuckTo:       duckTo,
				AttackMs:     attackMs,
				ReleaseMs:    releaseMs,
				TriggerTrack: string(domain.AudioNarration),
			},
		}
		items = append(items, dispatch.Operation{Type: dispatch.OpAudioTrackUpdate, AudioTrackID: track.ID, AudioTrackPatch: patch})
	}
	if len(items) == 0 {
		return nil, coreerr.New(coreerr.CodeAudioTrackNotFound, "no bgm audio track found")
	}
	return items, nil
}

func indexOf(order []int, clipIdx int) int {
	for i, idx := range order {
		if idx == clipIdx {
			return i
		}
	}
	return -1
}

func floatParam(params map[string]any, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func intParam(params map[string]any, key string, def int) int {
	if v, ok := params[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}
