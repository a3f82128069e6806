// Package history implements operation history and rollback: the
// rollback protocol's precondition checks and the inverse-application
// logic keyed by the original operation's recorded rollback_data.
package history

import (
	"encoding/json"
	"time"

	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/dispatch"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

// CheckRollbackPreconditions enforces the guarded preconditions a rollback
// must pass before it runs; all violations leave state untouched.
func CheckRollbackPreconditions(rec *domain.OperationRecord) *coreerr.Error {
	if rec == nil {
		return coreerr.New(coreerr.CodeOperationNotFound, "operation record not found")
	}
	if !rec.Success {
		return coreerr.New(coreerr.CodeRollbackNotAvailable, "the original operation did not succeed")
	}
	if !rec.RollbackAvailable {
		return coreerr.New(coreerr.CodeRollbackNotAvailable, "this operation type does not support rollback")
	}
	if rec.RolledBack {
		return coreerr.New(coreerr.CodeOperationAlreadyRolledBack, "operation was already rolled back")
	}
	if rec.RollbackData == nil {
		return coreerr.New(coreerr.CodeRollbackNotAvailable, "no rollback data recorded for this operation")
	}
	return nil
}

// decode re-marshals rec.RollbackData (which, coming back from JSON
// persistence, is a map[string]any / json.RawMessage) into the typed shape
// the original op type recorded.
func decode(raw any, out any) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// RollbackOutcome carries the inverse mutation's change log plus any
// non-fatal warning raised while applying it (e.g. a move's original
// container no longer existing).
type RollbackOutcome struct {
	ChangeDetails []dispatch.ChangeDetail
	Warning       string
}

// Apply inverts rec against t in place. Callers must have already passed
// CheckRollbackPreconditions. Validation of every target entity happens
// before any mutation — critically, for move_* rollback, the clip and its
// current container are located, then the original container is located,
// and only then is the move performed; if the original container is gone,
// the clip stays on its current container and a warning is returned
// instead of the clip being dropped.
func Apply(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	switch rec.OperationType {
	case dispatch.OpClipAdd:
		return rollbackClipAdd(t, rec)
	case dispatch.OpClipDelete:
		return rollbackClipDelete(t, rec)
	case dispatch.OpClipMove:
		return rollbackClipMove(t, rec)
	case dispatch.OpClipTransform:
		return rollbackClipTransform(t, rec)
	case dispatch.OpClipEffects:
		return rollbackClipEffects(t, rec)
	case dispatch.OpClipTextStyle:
		return rollbackClipTextStyle(t, rec)
	case dispatch.OpClipTrim:
		return rollbackClipTiming(t, rec)
	case dispatch.OpLayerAdd:
		return rollbackLayerAdd(t, rec)
	case dispatch.OpAudioClipAdd:
		return rollbackAudioClipAdd(t, rec)
	case dispatch.OpAudioClipDelete:
		return rollbackAudioClipDelete(t, rec)
	case dispatch.OpAudioClipMove:
		return rollbackAudioClipMove(t, rec)
	case dispatch.OpMarkerAdd:
		return rollbackMarkerAdd(t, rec)
	case dispatch.OpMarkerUpdate:
		return rollbackMarkerUpdate(t, rec)
	case dispatch.OpMarkerDelete:
		return rollbackMarkerDelete(t, rec)
	case "batch":
		return rollbackBatch(t, rec)
	default:
		return nil, coreerr.New(coreerr.CodeRollbackNotAvailable, "operation type has no rollback handler").WithField("operation_type")
	}
}

// rollbackBatch inverts a multi-op batch by replaying each item's own
// rollback_data in reverse order, the same order a stack of individually
// applied operations would unwind in. A batch is only persisted with
// RollbackAvailable when every one of its items was itself
// rollback-eligible, so every entry here is expected to resolve through
// Apply's named-op cases above, never through this case again.
func rollbackBatch(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var items []struct {
		OpType       string `json:"op_type"`
		RollbackData any    `json:"rollback_data"`
	}
	if err := decode(rec.RollbackData, &items); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}

	var changes []dispatch.ChangeDetail
	var warnings []string
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		itemRec := &domain.OperationRecord{OperationType: item.OpType, RollbackData: item.RollbackData}
		outcome, cerr := Apply(t, itemRec)
		if cerr != nil {
			return nil, cerr
		}
		changes = append(changes, outcome.ChangeDetails...)
		if outcome.Warning != "" {
			warnings = append(warnings, outcome.Warning)
		}
	}

	outcome := &RollbackOutcome{ChangeDetails: changes}
	if len(warnings) > 0 {
		outcome.Warning = warnings[0]
		for _, w := range warnings[1:] {
			outcome.Warning += "; " + w
		}
	}
	return outcome, nil
}

func rollbackClipAdd(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		ClipID  string `json:"clip_id"`
		LayerID string `json:"layer_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	_, layerIdx, clipIdx, ok := timeline.FindClip(t, data.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "clip to remove no longer exists")
	}
	deleted := t.Layers[layerIdx].Clips[clipIdx]
	t.Layers[layerIdx].Clips = append(t.Layers[layerIdx].Clips[:clipIdx], t.Layers[layerIdx].Clips[clipIdx+1:]...)
	timeline.RecomputeDuration(t)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "clip", EntityID: deleted.ID, Before: deleted}}}, nil
}

func rollbackClipDelete(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		Clip    domain.Clip `json:"clip"`
		LayerID string      `json:"layer_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	layer, _, ok := timeline.FindLayer(t, data.LayerID)
	outcome := &RollbackOutcome{}
	if !ok {
		// Original container gone: re-insert is impossible without a
		// target layer. This differs from the move case because
		// there is no "current container" fallback for a re-created
		// entity; surface it as a failed rollback rather than silently
		// dropping the clip somewhere unexpected.
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "original layer no longer exists")
	}
	layer.Clips = append(layer.Clips, data.Clip)
	timeline.RecomputeDuration(t)
	outcome.ChangeDetails = []dispatch.ChangeDetail{{EntityType: "clip", EntityID: data.Clip.ID, After: data.Clip}}
	return outcome, nil
}

func rollbackClipMove(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		ClipID          string `json:"clip_id"`
		OriginalStartMs int    `json:"original_start_ms"`
		OriginalLayerID string `json:"original_layer_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}

	// Validate-before-mutate: locate the clip and its current container
	// first, then the original container, before performing any write.
	clip, currentLayerIdx, clipIdx, ok := timeline.FindClip(t, data.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "clip no longer exists")
	}
	before := *clip

	var warning string
	targetLayerIdx := currentLayerIdx
	if _, idx, ok := timeline.FindLayer(t, data.OriginalLayerID); ok {
		targetLayerIdx = idx
	} else {
		warning = "original layer " + data.OriginalLayerID + " no longer exists; rolled back clip stayed on its current layer"
	}

	restored := *clip
	restored.StartMs = data.OriginalStartMs

	if targetLayerIdx == currentLayerIdx {
		t.Layers[currentLayerIdx].Clips[clipIdx] = restored
	} else {
		t.Layers[currentLayerIdx].Clips = append(t.Layers[currentLayerIdx].Clips[:clipIdx], t.Layers[currentLayerIdx].Clips[clipIdx+1:]...)
		t.Layers[targetLayerIdx].Clips = append(t.Layers[targetLayerIdx].Clips, restored)
	}
	timeline.RecomputeDuration(t)

	return &RollbackOutcome{
		ChangeDetails: []dispatch.ChangeDetail{{EntityType: "clip", EntityID: restored.ID, Before: before, After: restored}},
		Warning:       warning,
	}, nil
}

func rollbackClipTransform(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		ClipID    string           `json:"clip_id"`
		Transform domain.Transform `json:"transform"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, data.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "clip no longer exists")
	}
	before := *clip
	t.Layers[layerIdx].Clips[clipIdx].Transform = data.Transform
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "clip", EntityID: clip.ID, Before: before.Transform, After: data.Transform}}}, nil
}

func rollbackClipEffects(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		ClipID        string              `json:"clip_id"`
		Effects       domain.Effects      `json:"effects"`
		TransitionIn  *domain.Transition  `json:"transition_in"`
		TransitionOut *domain.Transition  `json:"transition_out"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, data.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "clip no longer exists")
	}
	before := *clip
	t.Layers[layerIdx].Clips[clipIdx].Effects = data.Effects
	t.Layers[layerIdx].Clips[clipIdx].TransitionIn = data.TransitionIn
	t.Layers[layerIdx].Clips[clipIdx].TransitionOut = data.TransitionOut
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "clip", EntityID: clip.ID, Before: before.Effects, After: data.Effects}}}, nil
}

func rollbackClipTextStyle(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		ClipID    string           `json:"clip_id"`
		TextStyle *domain.TextStyle `json:"text_style"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, data.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "clip no longer exists")
	}
	before := *clip
	t.Layers[layerIdx].Clips[clipIdx].TextStyle = data.TextStyle
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "clip", EntityID: clip.ID, Before: before.TextStyle, After: data.TextStyle}}}, nil
}

func rollbackClipTiming(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		ClipID     string `json:"clip_id"`
		StartMs    int    `json:"start_ms"`
		DurationMs int    `json:"duration_ms"`
		InPointMs  int    `json:"in_point_ms"`
		OutPointMs *int   `json:"out_point_ms"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	clip, layerIdx, clipIdx, ok := timeline.FindClip(t, data.ClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "clip no longer exists")
	}
	before := *clip
	c := &t.Layers[layerIdx].Clips[clipIdx]
	c.StartMs, c.DurationMs, c.InPointMs, c.OutPointMs = data.StartMs, data.DurationMs, data.InPointMs, data.OutPointMs
	timeline.RecomputeDuration(t)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "clip", EntityID: clip.ID, Before: before, After: *c}}}, nil
}

func rollbackLayerAdd(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		LayerID string `json:"layer_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	_, idx, ok := timeline.FindLayer(t, data.LayerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "layer to remove no longer exists")
	}
	deleted := t.Layers[idx]
	t.Layers = append(t.Layers[:idx], t.Layers[idx+1:]...)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "layer", EntityID: deleted.ID, Before: deleted}}}, nil
}

func rollbackAudioClipAdd(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		AudioClipID  string `json:"audio_clip_id"`
		AudioTrackID string `json:"audio_track_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	_, trackIdx, clipIdx, ok := timeline.FindAudioClip(t, data.AudioClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "audio clip to remove no longer exists")
	}
	deleted := t.AudioTracks[trackIdx].Clips[clipIdx]
	t.AudioTracks[trackIdx].Clips = append(t.AudioTracks[trackIdx].Clips[:clipIdx], t.AudioTracks[trackIdx].Clips[clipIdx+1:]...)
	timeline.RecomputeDuration(t)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "audio_clip", EntityID: deleted.ID, Before: deleted}}}, nil
}

func rollbackAudioClipDelete(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		AudioClip    domain.AudioClip `json:"audio_clip"`
		AudioTrackID string           `json:"audio_track_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	track, _, ok := timeline.FindAudioTrack(t, data.AudioTrackID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "original audio track no longer exists")
	}
	track.Clips = append(track.Clips, data.AudioClip)
	timeline.RecomputeDuration(t)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "audio_clip", EntityID: data.AudioClip.ID, After: data.AudioClip}}}, nil
}

func rollbackAudioClipMove(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		AudioClipID     string `json:"audio_clip_id"`
		OriginalStartMs int    `json:"original_start_ms"`
		OriginalTrackID string `json:"original_track_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	clip, currentTrackIdx, clipIdx, ok := timeline.FindAudioClip(t, data.AudioClipID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "audio clip no longer exists")
	}
	before := *clip

	var warning string
	targetTrackIdx := currentTrackIdx
	if _, idx, ok := timeline.FindAudioTrack(t, data.OriginalTrackID); ok {
		targetTrackIdx = idx
	} else {
		warning = "original audio track " + data.OriginalTrackID + " no longer exists; rolled back clip stayed on its current track"
	}

	restored := *clip
	restored.StartMs = data.OriginalStartMs
	if targetTrackIdx == currentTrackIdx {
		t.AudioTracks[currentTrackIdx].Clips[clipIdx] = restored
	} else {
		t.AudioTracks[currentTrackIdx].Clips = append(t.AudioTracks[currentTrackIdx].Clips[:clipIdx], t.AudioTracks[currentTrackIdx].Clips[clipIdx+1:]...)
		t.AudioTracks[targetTrackIdx].Clips = append(t.AudioTracks[targetTrackIdx].Clips, restored)
	}
	timeline.RecomputeDuration(t)

	return &RollbackOutcome{
		ChangeDetails: []dispatch.ChangeDetail{{EntityType: "audio_clip", EntityID: restored.ID, Before: before, After: restored}},
		Warning:       warning,
	}, nil
}

func rollbackMarkerAdd(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		MarkerID string `json:"marker_id"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	_, idx, ok := timeline.FindMarker(t, data.MarkerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "marker to remove no longer exists")
	}
	deleted := t.Markers[idx]
	t.Markers = append(t.Markers[:idx], t.Markers[idx+1:]...)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "marker", EntityID: deleted.ID, Before: deleted}}}, nil
}

func rollbackMarkerUpdate(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		MarkerID       string        `json:"marker_id"`
		OriginalMarker domain.Marker `json:"original_marker"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	marker, idx, ok := timeline.FindMarker(t, data.MarkerID)
	if !ok {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "marker no longer exists")
	}
	before := *marker
	t.Markers[idx] = data.OriginalMarker
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "marker", EntityID: before.ID, Before: before, After: data.OriginalMarker}}}, nil
}

func rollbackMarkerDelete(t *domain.Timeline, rec *domain.OperationRecord) (*RollbackOutcome, *coreerr.Error) {
	var data struct {
		Marker domain.Marker `json:"marker"`
	}
	if err := decode(rec.RollbackData, &data); err != nil {
		return nil, coreerr.New(coreerr.CodeRollbackFailed, "malformed rollback data")
	}
	t.Markers = append(t.Markers, data.Marker)
	return &RollbackOutcome{ChangeDetails: []dispatch.ChangeDetail{{EntityType: "marker", EntityID: data.Marker.ID, After: data.Marker}}}, nil
}

// NewRollbackRecord builds the new `rollback_<original_type>` record that
// finalizes a successful rollback; that record is itself never
// rollback-eligible. It leaves the original record untouched: flagging
// the original as rolled back is a separate MarkRolledBack call made by
// the service layer.
func NewRollbackRecord(newID string, original *domain.OperationRecord, requesterID string, now time.Time, newVersion int) domain.OperationRecord {
	return domain.OperationRecord{
		ID:                newID,
		ProjectID:         original.ProjectID,
		SequenceID:        original.SequenceID,
		OperationType:     "rollback_" + original.OperationType,
		Source:            domain.SourceAPIV1,
		RollbackAvailable: false,
		Success:           true,
		UserID:            requesterID,
		ProjectVersion:    newVersion,
		CreatedAt:         now,
	}
}
