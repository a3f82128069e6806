// Package validate implements the validation engine: a pure, read-only
// dry-run evaluator for proposed clip mutations. It never mutates the
// Timeline it is given; it only reports whether the mutation would succeed
// and what it would touch.
package validate

import (
	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/timeline"
)

// Kind is the shape of mutation being dry-run validated.
type Kind string

const (
	KindAddClip       Kind = "add"
	KindMoveClip      Kind = "move"
	KindTransformClip Kind = "transform"
	KindDeleteClip    Kind = "delete"
)

// Proposal is the fixed-shape dry-run input: enough fields to cover
// add/move/transform/delete of a single clip.
type Proposal struct {
	Kind       Kind
	LayerID    string
	ClipID     string // required for move/transform/delete; ignored for add
	NewClip    *domain.Clip
	NewStartMs *int
	NewLayerID *string // move only, optional target layer
	AssetDurationMs *int // known duration of the referenced asset, if any
}

// WouldAffect mirrors the external contract's shape exactly — field names
// and units here are part of the wire response, not internal bookkeeping,
// so they must not be renamed casually.
type WouldAffect struct {
	ClipsCreated     int      `json:"clips_created"`
	ClipsModified    int      `json:"clips_modified"`
	ClipsDeleted     int      `json:"clips_deleted"`
	DurationChangeMs int      `json:"duration_change_ms"`
	LayersAffected   []string `json:"layers_affected"`
}

type Result struct {
	Valid       bool          `json:"valid"`
	Warnings    []string      `json:"warnings"`
	WouldAffect WouldAffect   `json:"would_affect"`
	Err         *coreerr.Error `json:"-"`
}

// Validate dry-runs a Proposal against a Timeline snapshot without mutating
// it. It never returns a mutated tree; callers pass the result on to the
// dispatcher to actually apply the change.
func Validate(t *domain.Timeline, p Proposal) Result {
	switch p.Kind {
	case KindAddClip:
		return validateAdd(t, p)
	case KindMoveClip:
		return validateMove(t, p)
	case KindTransformClip:
		return validateTransform(t, p)
	case KindDeleteClip:
		return validateDelete(t, p)
	default:
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeInvalidFieldValue, "unknown proposal kind")}
	}
}

func validateAdd(t *domain.Timeline, p Proposal) Result {
	if p.NewClip == nil {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeMissingRequiredField, "new clip payload is required").WithField("clip")}
	}
	layer, _, ok := timeline.FindLayer(t, p.LayerID)
	if !ok {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeLayerNotFound, "layer not found").WithField("layer_id")}
	}
	c := *p.NewClip
	if res := checkBasicShape(c); res.Err != nil {
		return res
	}
	if res := checkAssetBounds(c, p.AssetDurationMs); res.Err != nil {
		return res
	}

	var warnings []string
	if conflictID, overlap := timeline.Overlaps(layer, c.StartMs, c.DurationMs, ""); overlap {
		warnings = append(warnings, "overlaps existing clip "+conflictID)
	}
	if p.AssetDurationMs != nil {
		effectiveOut := c.EffectiveOutPoint(*p.AssetDurationMs)
		if c.DurationMs > effectiveOut-c.InPointMs {
			warnings = append(warnings, "duration_ms exceeds the asset's available span; clip will be accepted but may read past the source")
		}
	}

	currentDuration := t.DurationMs
	newEnd := c.EndMs()
	durationChange := 0
	if newEnd > currentDuration {
		durationChange = newEnd - currentDuration
	}

	return Result{
		Valid:    true,
		Warnings: warnings,
		WouldAffect: WouldAffect{
			ClipsCreated:     1,
			DurationChangeMs: durationChange,
			LayersAffected:   []string{layer.ID},
		},
	}
}

func validateMove(t *domain.Timeline, p Proposal) Result {
	if p.ClipID == "" || p.NewStartMs == nil {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeMissingRequiredField, "clip_id and new_start_ms are required").WithField("clip_id")}
	}
	clip, layerIdx, _, ok := timeline.FindClip(t, p.ClipID)
	if !ok {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")}
	}
	if *p.NewStartMs < 0 {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeInvalidTimeRange, "start_ms must be >= 0").WithField("new_start_ms")}
	}

	targetLayer := &t.Layers[layerIdx]
	affected := []string{targetLayer.ID}
	if p.NewLayerID != nil {
		_, idx, ok := timeline.FindLayer(t, *p.NewLayerID)
		if !ok {
			return Result{Valid: false, Err: coreerr.New(coreerr.CodeLayerNotFound, "target layer not found").WithField("new_layer_id")}
		}
		targetLayer = &t.Layers[idx]
		if targetLayer.ID != affected[0] {
			affected = append(affected, targetLayer.ID)
		}
	}

	var warnings []string
	if conflictID, overlap := timeline.Overlaps(targetLayer, *p.NewStartMs, clip.DurationMs, clip.ID); overlap {
		warnings = append(warnings, "overlaps existing clip "+conflictID)
	}

	return Result{
		Valid:    true,
		Warnings: warnings,
		WouldAffect: WouldAffect{
			ClipsModified:    1,
			DurationChangeMs: 0,
			LayersAffected:   affected,
		},
	}
}

func validateTransform(t *domain.Timeline, p Proposal) Result {
	if p.ClipID == "" {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeMissingRequiredField, "clip_id is required").WithField("clip_id")}
	}
	_, layerIdx, _, ok := timeline.FindClip(t, p.ClipID)
	if !ok {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")}
	}
	return Result{
		Valid: true,
		WouldAffect: WouldAffect{
			ClipsModified:  1,
			LayersAffected: []string{t.Layers[layerIdx].ID},
		},
	}
}

func validateDelete(t *domain.Timeline, p Proposal) Result {
	if p.ClipID == "" {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeMissingRequiredField, "clip_id is required").WithField("clip_id")}
	}
	clip, layerIdx, _, ok := timeline.FindClip(t, p.ClipID)
	if !ok {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeClipNotFound, "clip not found").WithField("clip_id")}
	}

	durationChange := 0
	if clip.EndMs() == t.DurationMs {
		// Removing the clip that currently sets the overall duration: the
		// new duration is the max of everything else, computed cheaply
		// here without mutating the tree.
		nextMax := 0
		for li := range t.Layers {
			for ci := range t.Layers[li].Clips {
				c := &t.Layers[li].Clips[ci]
				if c.ID == clip.ID {
					continue
				}
				if e := c.EndMs(); e > nextMax {
					nextMax = e
				}
			}
		}
		for ti := range t.AudioTracks {
			for _, c := range t.AudioTracks[ti].Clips {
				if e := c.EndMs(); e > nextMax {
					nextMax = e
				}
			}
		}
		durationChange = nextMax - t.DurationMs
	}

	return Result{
		Valid: true,
		WouldAffect: WouldAffect{
			ClipsDeleted:     1,
			DurationChangeMs: durationChange,
			LayersAffected:   []string{t.Layers[layerIdx].ID},
		},
	}
}

func checkBasicShape(c domain.Clip) Result {
	if c.StartMs < 0 {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeInvalidTimeRange, "start_ms must be >= 0").WithField("start_ms")}
	}
	if c.DurationMs <= 0 {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeInvalidTimeRange, "duration_ms must be > 0").WithField("duration_ms")}
	}
	if c.OutPointMs != nil && c.InPointMs >= *c.OutPointMs {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeInvalidTimeRange, "in_point_ms must be < out_point_ms").WithField("in_point_ms")}
	}
	if c.AssetID == nil {
		if (c.TextContent == nil || *c.TextContent == "") && c.Shape == nil {
			return Result{Valid: false, Err: coreerr.New(coreerr.CodeMissingRequiredField, "clip without asset_id requires text_content or shape").WithField("text_content")}
		}
	}
	return Result{Valid: true}
}

func checkAssetBounds(c domain.Clip, assetDurationMs *int) Result {
	if c.AssetID == nil || assetDurationMs == nil {
		return Result{Valid: true}
	}
	d := *assetDurationMs
	effectiveOut := c.EffectiveOutPoint(d)
	if c.InPointMs < 0 || c.InPointMs >= effectiveOut || effectiveOut > d {
		return Result{Valid: false, Err: coreerr.New(coreerr.CodeOutOfBounds, "in_point_ms/out_point_ms out of the asset's known duration").WithField("in_point_ms")}
	}
	return Result{Valid: true}
}
