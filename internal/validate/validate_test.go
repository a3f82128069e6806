package validate

import (
	"testing"

	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/domain"
	"github.com/clipstream/timeline-core/internal/pointers"
)

func freshTimeline() *domain.Timeline {
	return &domain.Timeline{
		Layers: []domain.Layer{
			{ID: "layer-1", Clips: []domain.Clip{
				{ID: "clip-1", StartMs: 0, DurationMs: 1000},
			}},
		},
		DurationMs: 1000,
	}
}

func TestValidateAddClipNoOverlap(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:    KindAddClip,
		LayerID: "layer-1",
		NewClip: &domain.Clip{ID: "clip-2", StartMs: 2000, DurationMs: 500, TextContent: pointers.String("x")},
	})
	if !res.Valid {
		t.Fatalf("Validate add: want valid got err=%v", res.Err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("Validate add warnings: want=0 got=%d (%v)", len(res.Warnings), res.Warnings)
	}
	if res.WouldAffect.ClipsCreated != 1 || res.WouldAffect.DurationChangeMs != 1500 {
		t.Fatalf("Validate add would_affect: want created=1 change=1500 got=%+v", res.WouldAffect)
	}
}

func TestValidateAddClipOverlapIsWarningNotError(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:    KindAddClip,
		LayerID: "layer-1",
		NewClip: &domain.Clip{ID: "clip-2", StartMs: 500, DurationMs: 500, TextContent: pointers.String("x")},
	})
	if !res.Valid {
		t.Fatalf("Validate add overlap: want valid (overlap is non-fatal) got err=%v", res.Err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("Validate add overlap warnings: want=1 got=%d", len(res.Warnings))
	}
}

func TestValidateAddClipNegativeStartRejected(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:    KindAddClip,
		LayerID: "layer-1",
		NewClip: &domain.Clip{ID: "clip-2", StartMs: -1, DurationMs: 500},
	})
	if res.Valid {
		t.Fatalf("Validate add negative start: want invalid got valid")
	}
	if res.Err.Code != coreerr.CodeInvalidTimeRange {
		t.Fatalf("Validate add negative start code: want=%s got=%s", coreerr.CodeInvalidTimeRange, res.Err.Code)
	}
}

func TestValidateAddClipMissingTextAndShape(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:    KindAddClip,
		LayerID: "layer-1",
		NewClip: &domain.Clip{ID: "clip-2", StartMs: 2000, DurationMs: 500},
	})
	if res.Valid {
		t.Fatalf("Validate add no asset/text/shape: want invalid got valid")
	}
	if res.Err.Code != coreerr.CodeMissingRequiredField {
		t.Fatalf("Validate add no asset/text/shape code: want=%s got=%s", coreerr.CodeMissingRequiredField, res.Err.Code)
	}
}

func TestValidateAddClipTextOnlyIsAccepted(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:    KindAddClip,
		LayerID: "layer-1",
		NewClip: &domain.Clip{ID: "clip-2", StartMs: 2000, DurationMs: 500, TextContent: pointers.String("hello")},
	})
	if !res.Valid {
		t.Fatalf("Validate add text-only: want valid got err=%v", res.Err)
	}
}

func TestValidateAddClipLayerNotFound(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:    KindAddClip,
		LayerID: "nonexistent",
		NewClip: &domain.Clip{ID: "clip-2", StartMs: 2000, DurationMs: 500, TextContent: pointers.String("x")},
	})
	if res.Valid || res.Err.Code != coreerr.CodeLayerNotFound {
		t.Fatalf("Validate add missing layer: want code=%s got valid=%v err=%v", coreerr.CodeLayerNotFound, res.Valid, res.Err)
	}
}

func TestValidateMoveClipWithinBounds(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:       KindMoveClip,
		ClipID:     "clip-1",
		NewStartMs: pointers.Int(5000),
	})
	if !res.Valid {
		t.Fatalf("Validate move: want valid got err=%v", res.Err)
	}
	if res.WouldAffect.DurationChangeMs != 0 {
		t.Fatalf("Validate move duration_change_ms: want=0 got=%d", res.WouldAffect.DurationChangeMs)
	}
}

func TestValidateMoveClipNotFound(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{
		Kind:       KindMoveClip,
		ClipID:     "nonexistent",
		NewStartMs: pointers.Int(5000),
	})
	if res.Valid || res.Err.Code != coreerr.CodeClipNotFound {
		t.Fatalf("Validate move missing clip: want code=%s got valid=%v", coreerr.CodeClipNotFound, res.Valid)
	}
}

func TestValidateDeleteClipRecomputesDurationChange(t *testing.T) {
	tl := freshTimeline()
	res := Validate(tl, Proposal{Kind: KindDeleteClip, ClipID: "clip-1"})
	if !res.Valid {
		t.Fatalf("Validate delete: want valid got err=%v", res.Err)
	}
	if res.WouldAffect.DurationChangeMs != -1000 {
		t.Fatalf("Validate delete duration_change_ms: want=-1000 got=%d", res.WouldAffect.DurationChangeMs)
	}
}

func TestValidateNeverMutatesTimeline(t *testing.T) {
	tl := freshTimeline()
	beforeStart := tl.Layers[0].Clips[0].StartMs
	Validate(tl, Proposal{Kind: KindMoveClip, ClipID: "clip-1", NewStartMs: pointers.Int(9000)})
	afterStart := tl.Layers[0].Clips[0].StartMs
	if beforeStart != afterStart {
		t.Fatalf("Validate: timeline mutated, want start_ms unchanged got before=%d after=%d", beforeStart, afterStart)
	}
}
