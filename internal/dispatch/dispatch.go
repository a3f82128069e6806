package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

// Apply routes op to the matching handler, applies it to t in place,
// recomputes duration_ms on success, and returns the rollback-ready result.
func Apply(t *domain.Timeline, op Operation) (*ApplyResult, *coreerr.Error) {
	var (
		res *ApplyResult
		err *coreerr.Error
	)
	switch op.Type {
	case OpClipAdd:
		res, err = applyClipAdd(t, op)
	case OpClipMove:
		res, err = applyClipMove(t, op)
	case OpClipDelete:
		res, err = applyClipDelete(t, op)
	case OpClipTrim, OpClipTransform, OpClipEffects, OpClipText, OpClipTextStyle, OpClipShape, OpClipCrop, OpClipUpdate, OpClipKeyframes:
		res, err = applyClipPatch(t, op)
	case OpLayerAdd:
		res, err = applyLayerAdd(t, op)
	case OpLayerDelete:
		res, err = applyLayerDelete(t, op)
	case OpLayerReorder:
		res, err = applyLayerReorder(t, op)
	case OpLayerUpdate:
		res, err = applyLayerUpdate(t, op)
	case OpAudioClipAdd:
		res, err = applyAudioClipAdd(t, op)
	case OpAudioClipMove:
		res, err = applyAudioClipMove(t, op)
	case OpAudioClipDelete:
		res, err = applyAudioClipDelete(t, op)
	case OpAudioClipUpdate:
		res, err = applyAudioClipUpdate(t, op)
	case OpAudioTrackAdd:
		res, err = applyAudioTrackAdd(t, op)
	case OpAudioTrackDelete:
		res, err = applyAudioTrackDelete(t, op)
	case OpAudioTrackUpdate:
		res, err = applyAudioTrackUpdate(t, op)
	case OpAudioTrackReorder:
		res, err = applyAudioTrackReorder(t, op)
	case OpMarkerAdd:
		res, err = applyMarkerAdd(t, op)
	case OpMarkerUpdate:
		res, err = applyMarkerUpdate(t, op)
	case OpMarkerDelete:
		res, err = applyMarkerDelete(t, op)
	case OpTimelineFullReplace:
		res, err = applyFullReplace(t, op)
	default:
		return nil, errUnsupportedOp(op.Type)
	}
	if err != nil {
		return nil, err
	}
	timeline.RecomputeDuration(t)
	if res != nil {
		res.RollbackAvailable = RollbackSupported(op.Type)
	}
	return res, nil
}
