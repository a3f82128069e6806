// Package dispatch implements the operation dispatcher: it applies one
// named operation to a Timeline tree under an already-held sequence lock,
// producing a rollback snapshot and a ChangeDetail list for the history
// log. Every exported Apply* function mutates the Timeline it is given in
// place — callers (batch apply) are expected to pass an uncommitted
// scratch copy and discard it on error.
package dispatch

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
)

// Op type strings, matching the wire contract verbatim.
const (
	OpClipAdd       = "clip.add"
	OpClipMove      = "clip.move"
	OpClipDelete    = "clip.delete"
	OpClipTrim      = "clip.trim"
	OpClipTransform = "clip.transform"
	OpClipEffects   = "clip.effects"
	OpClipText      = "clip.text"
	OpClipTextStyle = "clip.text_style"
	OpClipShape     = "clip.shape"
	OpClipCrop      = "clip.crop"
	OpClipUpdate    = "clip.update"
	OpClipKeyframes = "clip.keyframes"

	OpLayerAdd     = "layer.add"
	OpLayerDelete  = "layer.delete"
	OpLayerReorder = "layer.reorder"
	OpLayerUpdate  = "layer.update"

	OpAudioClipAdd    = "audio_clip.add"
	OpAudioClipMove   = "audio_clip.move"
	OpAudioClipDelete = "audio_clip.delete"
	OpAudioClipUpdate = "audio_clip.update"

	OpAudioTrackAdd     = "audio_track.add"
	OpAudioTrackDelete  = "audio_track.delete"
	OpAudioTrackUpdate  = "audio_track.update"
	OpAudioTrackReorder = "audio_track.reorder"

	OpMarkerAdd    = "marker.add"
	OpMarkerUpdate = "marker.update"
	OpMarkerDelete = "marker.delete"

	OpTimelineFullReplace = "timeline.full_replace"
)

// rollbackSupported is the fixed set of op types eligible for rollback.
// Everything else records with rollback_available = false.
var rollbackSupported = map[string]bool{
	OpClipAdd:       true,
	OpClipDelete:    true,
	OpClipMove:      true,
	OpClipTransform: true,
	OpClipEffects:   true,
	OpClipTextStyle: true,
	OpClipTrim:      true,
	OpLayerAdd:      true,
	OpAudioClipAdd:    true,
	OpAudioClipDelete: true,
	OpAudioClipMove:   true,
	OpMarkerAdd:    true,
	OpMarkerUpdate: true,
	OpMarkerDelete: true,
}

// RollbackSupported reports whether op type supports rollback.
func RollbackSupported(opType string) bool { return rollbackSupported[opType] }

// ChangeDetail records one field-level (or whole-entity) before/after for
// the history log.
type ChangeDetail struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Field      string `json:"field,omitempty"`
	Before     any    `json:"before,omitempty"`
	After      any    `json:"after,omitempty"`
}

// ApplyResult is what every Apply* function returns on success.
type ApplyResult struct {
	ChangeDetails      []ChangeDetail
	RollbackData       any
	RollbackAvailable  bool
	AffectedClips      []string
	AffectedLayers     []string
	AffectedAudioClips []string
	// Detail is the affected entity in its L3-equivalent shape, serialized
	// verbatim into the response's data field on success.
	Detail any
}

// Operation is the typed envelope for a single dispatched mutation. Only
// the fields relevant to Type are expected to be populated; unused pointers
// stay nil.
type Operation struct {
	Type string `json:"type"`

	ClipID         string  `json:"clip_id,omitempty"`
	LayerID        string  `json:"layer_id,omitempty"`
	NewLayerID     *string `json:"new_layer_id,omitempty"`
	AudioClipID    string  `json:"audio_clip_id,omitempty"`
	AudioTrackID   string  `json:"audio_track_id,omitempty"`
	NewAudioTrackID *string `json:"new_audio_track_id,omitempty"`
	MarkerID       string  `json:"marker_id,omitempty"`

	NewStartMs *int `json:"new_start_ms,omitempty"`
	InsertAt   *int `json:"insert_at,omitempty"`
	Order      []string `json:"order,omitempty"`

	Clip       *domain.Clip       `json:"clip,omitempty"`
	AudioClip  *domain.AudioClip  `json:"audio_clip,omitempty"`
	Layer      *domain.Layer      `json:"layer,omitempty"`
	AudioTrack *domain.AudioTrack `json:"audio_track,omitempty"`
	Marker     *domain.Marker     `json:"marker,omitempty"`
	Timeline   *domain.Timeline   `json:"timeline,omitempty"`

	ClipPatch       *ClipPatch       `json:"clip_patch,omitempty"`
	LayerPatch      *LayerPatch      `json:"layer_patch,omitempty"`
	AudioClipPatch  *AudioClipPatch  `json:"audio_clip_patch,omitempty"`
	AudioTrackPatch *AudioTrackPatch `json:"audio_track_patch,omitempty"`
	MarkerPatch     *MarkerPatch     `json:"marker_patch,omitempty"`
}

// ClipPatch is a shallow partial update — every field of Clip that a
// clip.trim/transform/effects/text/text_style/shape/crop/update/keyframes
// op can touch. Only non-nil fields are applied.
type ClipPatch struct {
	StartMs       *int
	DurationMs    *int
	InPointMs     *int
	OutPointMs    *int
	Transform     *domain.Transform
	Effects       *domain.Effects
	TransitionIn  *domain.Transition
	TransitionOut *domain.Transition
	TextContent   *string
	TextStyle     *domain.TextStyle
	Shape         *domain.Shape
	Crop          *domain.Crop
	Keyframes     []domain.Keyframe
	ReplaceKeyframes bool
	AssetID       *string
	GroupID       *string
}

type LayerPatch struct {
	Name    *string
	Visible *bool
	Locked  *bool
}

type AudioClipPatch struct {
	StartMs         *int
	DurationMs      *int
	InPointMs       *int
	OutPointMs      *int
	Volume          *float64
	FadeInMs        *int
	FadeOutMs       *int
	VolumeKeyframes []domain.Keyframe
	ReplaceVolumeKeyframes bool
	AssetID         *string
	GroupID         *string
}

type AudioTrackPatch struct {
	Name    *string
	Volume  *float64
	Muted   *bool
	Ducking *domain.Ducking
}

type MarkerPatch struct {
	Name   *string
	TimeMs *int
	Color  *string
}

func errMissingField(field string) *coreerr.Error {
	return coreerr.New(coreerr.CodeMissingRequiredField, "missing required field").WithField(field)
}

func errUnsupportedOp(opType string) *coreerr.Error {
	return coreerr.New("OPERATION_NOT_SUPPORTED", "unknown operation type: "+opType).WithField("type")
}
