// Package domain holds the pure, storage-agnostic timeline data model:
// Project, Sequence, Timeline, Layer, Clip, AudioTrack, AudioClip, Marker,
// and the operation/lock records threaded through the rest of the core.
// Nothing in this package touches a database or the network; it is the tree
// of plain values every other component operates on.
package domain

import "time"

type LayerType string

const (
	LayerBackground LayerType = "background"
	LayerContent    LayerType = "content"
	LayerAvatar     LayerType = "avatar"
	LayerEffects    LayerType = "effects"
	LayerText       LayerType = "text"
)

type AudioTrackType string

const (
	AudioNarration AudioTrackType = "narration"
	AudioBGM       AudioTrackType = "bgm"
	AudioSE        AudioTrackType = "se"
)

// Anchor is the reference point transforms are applied relative to.
type Anchor string

const (
	AnchorCenter      Anchor = "center"
	AnchorTopLeft     Anchor = "top_left"
	AnchorTopRight    Anchor = "top_right"
	AnchorBottomLeft  Anchor = "bottom_left"
	AnchorBottomRight Anchor = "bottom_right"
)

type BlendMode string

const (
	BlendNormal   BlendMode = "normal"
	BlendMultiply BlendMode = "multiply"
	BlendScreen   BlendMode = "screen"
	BlendOverlay  BlendMode = "overlay"
)

type Transform struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Scale    float64  `json:"scale"`
	Rotation float64  `json:"rotation"`
	Anchor   Anchor   `json:"anchor,omitempty"`
}

func DefaultTransform() Transform {
	return Transform{Scale: 1.0, Anchor: AnchorCenter}
}

type ChromaKey struct {
	Enabled    bool    `json:"enabled"`
	Color      string  `json:"color,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
	Blend      float64 `json:"blend,omitempty"`
}

type Effects struct {
	Opacity    float64    `json:"opacity"`
	BlendMode  BlendMode  `json:"blend_mode,omitempty"`
	FadeInMs   int        `json:"fade_in_ms,omitempty"`
	FadeOutMs  int        `json:"fade_out_ms,omitempty"`
	ChromaKey  *ChromaKey `json:"chroma_key,omitempty"`
}

func DefaultEffects() Effects {
	return Effects{Opacity: 1.0}
}

type Transition struct {
	Type       string `json:"type,omitempty"`
	DurationMs int    `json:"duration_ms,omitempty"`
}

type TextStyle struct {
	FontFamily string  `json:"font_family,omitempty"`
	FontSize   float64 `json:"font_size,omitempty"`
	Color      string  `json:"color,omitempty"`
	Bold       bool    `json:"bold,omitempty"`
	Italic     bool    `json:"italic,omitempty"`
	Align      string  `json:"align,omitempty"`
}

type Shape struct {
	Kind       string  `json:"kind,omitempty"`
	Color      string  `json:"color,omitempty"`
	StrokeColor string `json:"stroke_color,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
}

type Crop struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

type Keyframe struct {
	TimeMs int     `json:"time_ms"`
	Value  float64 `json:"value"`
	Field  string  `json:"field"`
}

// Clip is a visual clip on a Layer. It is kept as an open bag of optional
// fields (not a tagged variant) to match the external JSON contract — see
// DESIGN.md for the tagged-variant alternative that was considered and
// rejected.
type Clip struct {
	ID           string      `json:"id"`
	AssetID      *string     `json:"asset_id,omitempty"`
	StartMs      int         `json:"start_ms"`
	DurationMs   int         `json:"duration_ms"`
	InPointMs    int         `json:"in_point_ms"`
	OutPointMs   *int        `json:"out_point_ms,omitempty"`
	Transform    Transform   `json:"transform"`
	Effects      Effects     `json:"effects"`
	TransitionIn  *Transition `json:"transition_in,omitempty"`
	TransitionOut *Transition `json:"transition_out,omitempty"`
	TextContent  *string     `json:"text_content,omitempty"`
	TextStyle    *TextStyle  `json:"text_style,omitempty"`
	Shape        *Shape      `json:"shape,omitempty"`
	Crop         *Crop       `json:"crop,omitempty"`
	Keyframes    []Keyframe  `json:"keyframes,omitempty"`
	GroupID      *string     `json:"group_id,omitempty"`
}

func (c Clip) EndMs() int { return c.StartMs + c.DurationMs }

// EffectiveOutPoint returns OutPointMs if set, else assetDuration.
func (c Clip) EffectiveOutPoint(assetDuration int) int {
	if c.OutPointMs != nil {
		return *c.OutPointMs
	}
	return assetDuration
}

type Layer struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Type    LayerType `json:"type"`
	Visible bool      `json:"visible"`
	Locked  bool      `json:"locked"`
	Clips   []Clip    `json:"clips"`
}

type Ducking struct {
	Enabled     bool   `json:"enabled"`
	DuckTo      float64 `json:"duck_to,omitempty"`
	AttackMs    int    `json:"attack_ms,omitempty"`
	ReleaseMs   int    `json:"release_ms,omitempty"`
	TriggerTrack string `json:"trigger_track,omitempty"`
}

type AudioClip struct {
	ID              string     `json:"id"`
	AssetID         string     `json:"asset_id"`
	StartMs         int        `json:"start_ms"`
	DurationMs      int        `json:"duration_ms"`
	InPointMs       int        `json:"in_point_ms"`
	OutPointMs      *int       `json:"out_point_ms,omitempty"`
	Volume          float64    `json:"volume"`
	FadeInMs        int        `json:"fade_in_ms,omitempty"`
	FadeOutMs       int        `json:"fade_out_ms,omitempty"`
	VolumeKeyframes []Keyframe `json:"volume_keyframes,omitempty"`
	GroupID         *string    `json:"group_id,omitempty"`
}

func (c AudioClip) EndMs() int { return c.StartMs + c.DurationMs }

type AudioTrack struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Type    AudioTrackType `json:"type"`
	Volume  float64        `json:"volume"`
	Muted   bool           `json:"muted"`
	Ducking *Ducking       `json:"ducking,omitempty"`
	Clips   []AudioClip    `json:"clips"`
}

type Marker struct {
	ID     string  `json:"id"`
	TimeMs int     `json:"time_ms"`
	Name   string  `json:"name"`
	Color  *string `json:"color,omitempty"`
}

// Timeline is the mutable tree every Dispatcher op mutates a copy of.
type Timeline struct {
	Layers      []Layer      `json:"layers"`
	AudioTracks []AudioTrack `json:"audio_tracks"`
	Markers     []Marker     `json:"markers"`
	DurationMs  int          `json:"duration_ms"`
}

// Clone returns a deep copy so the Dispatcher/Batch can mutate a scratch
// timeline and discard it on failure without touching the committed one.
func (t Timeline) Clone() Timeline {
	out := Timeline{
		Layers:      make([]Layer, len(t.Layers)),
		AudioTracks: make([]AudioTrack, len(t.AudioTracks)),
		Markers:     make([]Marker, len(t.Markers)),
		DurationMs:  t.DurationMs,
	}
	for i, l := range t.Layers {
		nl := l
		nl.Clips = make([]Clip, len(l.Clips))
		for j, c := range l.Clips {
			nc := c
			if c.Keyframes != nil {
				nc.Keyframes = append([]Keyframe(nil), c.Keyframes...)
			}
			nl.Clips[j] = nc
		}
		out.Layers[i] = nl
	}
	for i, tr := range t.AudioTracks {
		nt := tr
		nt.Clips = make([]AudioClip, len(tr.Clips))
		for j, c := range tr.Clips {
			nc := c
			if c.VolumeKeyframes != nil {
				nc.VolumeKeyframes = append([]Keyframe(nil), c.VolumeKeyframes...)
			}
			nt.Clips[j] = nc
		}
		out.AudioTracks[i] = nt
	}
	copy(out.Markers, t.Markers)
	return out
}

// Project is the top-level container.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	FPS          float64   `json:"fps"`
	DurationMs   int       `json:"duration_ms"`
	Version      int       `json:"version"`
	TimelineData Timeline  `json:"timeline_data"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sequence is an independently-versioned timeline belonging to a Project.
type Sequence struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Name         string    `json:"name"`
	IsDefault    bool      `json:"is_default"`
	Version      int       `json:"version"`
	TimelineData Timeline  `json:"timeline_data"`
	LockedBy     *string   `json:"locked_by,omitempty"`
	LockedAt     *time.Time `json:"locked_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LockTimeout is the fixed heartbeat window before an unrenewed lock
// expires.
const LockTimeout = 2 * time.Minute

// LockValid reports whether the sequence's lock is still live.
func (s Sequence) LockValid(now time.Time) bool {
	if s.LockedBy == nil || s.LockedAt == nil {
		return false
	}
	return now.Sub(*s.LockedAt) <= LockTimeout
}

// OperationSource identifies who originated a mutation.
type OperationSource string

const (
	SourceAPIV1    OperationSource = "api_v1"
	SourceAIChat   OperationSource = "ai_chat"
	SourceEditor   OperationSource = "editor"
	SourceBatch    OperationSource = "batch"
	SourceSemantic OperationSource = "semantic"
)

// OperationRecord is the append-only history entry.
type OperationRecord struct {
	ID                string          `json:"id"`
	ProjectID         string          `json:"project_id"`
	SequenceID        string          `json:"sequence_id"`
	OperationType     string          `json:"operation_type"`
	Source            OperationSource `json:"source"`
	AffectedClips     []string        `json:"affected_clips,omitempty"`
	AffectedLayers    []string        `json:"affected_layers,omitempty"`
	AffectedAudioClips []string       `json:"affected_audio_clips,omitempty"`
	Diff              any             `json:"diff,omitempty"`
	RequestSummary    string          `json:"request_summary,omitempty"`
	ResultSummary     string          `json:"result_summary,omitempty"`
	RollbackData      any             `json:"rollback_data,omitempty"`
	RollbackAvailable bool            `json:"rollback_available"`
	RolledBack        bool            `json:"rolled_back"`
	RolledBackAt      *time.Time      `json:"rolled_back_at,omitempty"`
	RolledBackBy      *string         `json:"rolled_back_by,omitempty"`
	Success           bool            `json:"success"`
	ErrorCode         string          `json:"error_code,omitempty"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty"`
	UserID            string          `json:"user_id,omitempty"`
	ProjectVersion    int             `json:"project_version"`
	CreatedAt         time.Time       `json:"created_at"`
}
