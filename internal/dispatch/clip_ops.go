package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

type clipAddRollback struct {
	ClipID  string `json:"clip_id"`
	LayerID string `json:"layer_id"`
}

func applyClipAdd(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.Clip == nil {
		return nil, errMissingField("clip")
	}
	if op.LayerID == "" {
		return nil, errMissingField("layer_id")
	}
	layer, _, ok := timeline.FindLayer(t, op.LayerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeLayerNotFound, "layer not found").WithField("layer_id")
	}
	if layer.Locked {
		return nil, coreerr.New(coreerr.CodeLayerLocked, "layer is locked").WithField("layer_id")
	}
	c := *op.Clip
	if conflictID, overlap := timeline.Overlaps(layer, c.StartMs, c.DurationMs, ""); overlap {
		return nil, coreerr.New(coreerr.CodeClipOverlap, "clip overlaps clip "+conflictID).WithField("start_ms")
	}
	layer.Clips = append(layer.Clips, c)

	return &ApplyResult{
		ChangeDetails: []ChangeDetail{
			{EntityType: "clip", EntityID: c.ID, After: c},
		},
		RollbackData:  clipAddRollback{ClipID: c.ID, LayerID: layer.ID},
		AffectedClips: []string{c.ID},
		AffectedLayers: []string{layer.ID},
		Detail:        c,
	}, nil
}

type clipMoveRollback struct {
	ClipID          string `json:"clip_id"`
	OriginalStartMs int    `json:"original_start_ms"`
	OriginalLayerID string `json:"original_layer_id"`
	NewStartMs      int    `json:"new_start_ms"`
	NewLayerID      string `json:"new_layer_id"`
}

func applyClipMove(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.ClipID == "" {
		return nil, errMissingField("clip_id")
	}
	if op.NewStartMs == nil {
		return nil, errMissingField("new_start_ms")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, op.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")
	}
	originalStart := clip.StartMs
	originalLayer := &t.Layers[layerIdx]

	targetLayer := originalLayer
	targetLayerIdx := layerIdx
	if op.NewLayerID != nil {
		tl, idx, ok := timeline.FindLayer(t, *op.NewLayerID)
		if !ok {
			return nil, coreerr.New(coreerr.CodeLayerNotFound, "target layer not found").WithField("new_layer_id")
		}
		targetLayer = tl
		targetLayerIdx = idx
	}

	if conflictID, overlap := timeline.Overlaps(targetLayer, *op.NewStartMs, clip.DurationMs, clip.ID); overlap {
		return nil, coreerr.New(coreerr.CodeClipOverlap, "clip overlaps clip "+conflictID).WithField("new_start_ms")
	}

	moved := *clip
	moved.StartMs = *op.NewStartMs

	if targetLayerIdx == layerIdx {
		t.Layers[layerIdx].Clips[clipIdx] = moved
	} else {
		t.Layers[layerIdx].Clips = append(t.Layers[layerIdx].Clips[:clipIdx], t.Layers[layerIdx].Clips[clipIdx+1:]...)
		t.Layers[targetLayerIdx].Clips = append(t.Layers[targetLayerIdx].Clips, moved)
	}

	return &ApplyResult{
		ChangeDetails: []ChangeDetail{
			{EntityType: "clip", EntityID: clip.ID, Field: "start_ms", Before: originalStart, After: moved.StartMs},
		},
		RollbackData: clipMoveRollback{
			ClipID:          moved.ID,
			OriginalStartMs: originalStart,
			OriginalLayerID: originalLayer.ID,
			NewStartMs:      moved.StartMs,
			NewLayerID:      targetLayer.ID,
		},
		AffectedClips:  []string{moved.ID},
		AffectedLayers: []string{originalLayer.ID, targetLayer.ID},
		Detail:         moved,
	}, nil
}

type clipDeleteRollback struct {
	Clip    domain.Clip `json:"clip"`
	LayerID string      `json:"layer_id"`
}

func applyClipDelete(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.ClipID == "" {
		return nil, errMissingField("clip_id")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, op.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")
	}
	deleted := *clip
	layer := &t.Layers[layerIdx]
	layer.Clips = append(layer.Clips[:clipIdx], layer.Clips[clipIdx+1:]...)

	return &ApplyResult{
		ChangeDetails: []ChangeDetail{
			{EntityType: "clip", EntityID: deleted.ID, Before: deleted},
		},
		RollbackData:   clipDeleteRollback{Clip: deleted, LayerID: layer.ID},
		AffectedClips:  []string{deleted.ID},
		AffectedLayers: []string{layer.ID},
		Detail:         map[string]string{"deleted_id": deleted.ID},
	}, nil
}

// applyClipPatch handles every shallow-merge clip op: trim, transform,
// effects, text, text_style, shape, crop, update, keyframes. Each carries
// the same ClipPatch shape; only the fields relevant to that op type are
// expected to be set by the caller, but applying whatever's non-nil is
// correct for all of them.
func applyClipPatch(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	if op.ClipID == "" {
		return nil, errMissingField("clip_id")
	}
	if op.ClipPatch == nil {
		return nil, errMissingField("clip_patch")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, op.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")
	}
	p := op.ClipPatch
	original := *clip
	layer := &t.Layers[layerIdx]

	updated := *clip
	if p.StartMs != nil {
		newStart := *p.StartMs
		durationMs := updated.DurationMs
		if p.DurationMs != nil {
			durationMs = *p.DurationMs
		}
		if conflictID, overlap := timeline.Overlaps(layer, newStart, durationMs, updated.ID); overlap {
			return nil, coreerr.New(coreerr.CodeClipOverlap, "clip overlaps clip "+conflictID).WithField("start_ms")
		}
		updated.StartMs = newStart
	}
	if p.DurationMs != nil {
		if *p.DurationMs <= 0 {
			return nil, coreerr.New(coreerr.CodeInvalidTimeRange, "duration_ms must be > 0").WithField("duration_ms")
		}
		updated.DurationMs = *p.DurationMs
	}
	if p.InPointMs != nil {
		updated.InPointMs = *p.InPointMs
	}
	if p.OutPointMs != nil {
		updated.OutPointMs = p.OutPointMs
	}
	if p.Transform != nil {
		updated.Transform = *p.Transform
	}
	if p.Effects != nil {
		updated.Effects = *p.Effects
	}
	if p.TransitionIn != nil {
		updated.TransitionIn = p.TransitionIn
	}
	if p.TransitionOut != nil {
		updated.TransitionOut = p.TransitionOut
	}
	if p.TextContent != nil {
		updated.TextContent = p.TextContent
	}
	if p.TextStyle != nil {
		updated.TextStyle = p.TextStyle
	}
	if p.Shape != nil {
		updated.Shape = p.Shape
	}
	if p.Crop != nil {
		updated.Crop = p.Crop
	}
	if p.ReplaceKeyframes {
		updated.Keyframes = p.Keyframes
	}
	if p.AssetID != nil {
		updated.AssetID = p.AssetID
	}
	if p.GroupID != nil {
		updated.GroupID = p.GroupID
	}

	t.Layers[layerIdx].Clips[clipIdx] = updated

	return &ApplyResult{
		ChangeDetails: []ChangeDetail{
			{EntityType: "clip", EntityID: updated.ID, Before: original, After: updated},
		},
		RollbackData:   clipPatchRollback(op.Type, original),
		AffectedClips:  []string{updated.ID},
		AffectedLayers: []string{layer.ID},
		Detail:         updated,
	}, nil
}

// clipPatchRollback picks the narrowest original-state snapshot for the
// given op type, falling back to the full clip for op types outside the
// rollback-supported set (still harmless to store — RollbackAvailable
// gates whether it's usable).
func clipPatchRollback(opType string, original domain.Clip) any {
	switch opType {
	case OpClipTransform:
		return map[string]any{"clip_id": original.ID, "transform": original.Transform}
	case OpClipEffects:
		return map[string]any{
			"clip_id":        original.ID,
			"effects":        original.Effects,
			"transition_in":  original.TransitionIn,
			"transition_out": original.TransitionOut,
		}
	case OpClipTextStyle:
		return map[string]any{"clip_id": original.ID, "text_style": original.TextStyle}
	case OpClipTrim:
		return map[string]any{
			"clip_id":      original.ID,
			"start_ms":     original.StartMs,
			"duration_ms":  original.DurationMs,
			"in_point_ms":  original.InPointMs,
			"out_point_ms": original.OutPointMs,
		}
	default:
		return map[string]any{"clip_id": original.ID, "clip": original}
	}
}
