package history

import (
	"testing"

	"github.com/clipstream/timeline-core/internal/coreerr"
	"github.com/clipstream/timeline-core/internal/dispatch"
	"github.com/clipstream/timeline-core/internal/domain"
)

func TestCheckRollbackPreconditionsNotFound(t *testing.T) {
	if err := CheckRollbackPreconditions(nil); err == nil || err.Code != coreerr.CodeOperationNotFound {
		t.Fatalf("CheckRollbackPreconditions nil record: want=%s got=%v", coreerr.CodeOperationNotFound, err)
	}
}

func TestCheckRollbackPreconditionsNotAvailable(t *testing.T) {
	rec := &domain.OperationRecord{Success: true, RollbackAvailable: false}
	if err := CheckRollbackPreconditions(rec); err == nil || err.Code != coreerr.CodeRollbackNotAvailable {
		t.Fatalf("CheckRollbackPreconditions no rollback: want=%s got=%v", coreerr.CodeRollbackNotAvailable, err)
	}
}

func TestCheckRollbackPreconditionsAlreadyRolledBack(t *testing.T) {
	rec := &domain.OperationRecord{Success: true, RollbackAvailable: true, RolledBack: true, RollbackData: map[string]any{}}
	if err := CheckRollbackPreconditions(rec); err == nil || err.Code != coreerr.CodeOperationAlreadyRolledBack {
		t.Fatalf("CheckRollbackPreconditions already rolled back: want=%s got=%v", coreerr.CodeOperationAlreadyRolledBack, err)
	}
}

func TestCheckRollbackPreconditionsOriginalFailed(t *testing.T) {
	rec := &domain.OperationRecord{Success: false, RollbackAvailable: true}
	if err := CheckRollbackPreconditions(rec); err == nil || err.Code != coreerr.CodeRollbackNotAvailable {
		t.Fatalf("CheckRollbackPreconditions original failed: want=%s got=%v", coreerr.CodeRollbackNotAvailable, err)
	}
}

func TestCheckRollbackPreconditionsMissingData(t *testing.T) {
	rec := &domain.OperationRecord{Success: true, RollbackAvailable: true}
	if err := CheckRollbackPreconditions(rec); err == nil || err.Code != coreerr.CodeRollbackNotAvailable {
		t.Fatalf("CheckRollbackPreconditions missing data: want=%s got=%v", coreerr.CodeRollbackNotAvailable, err)
	}
}

func TestCheckRollbackPreconditionsOK(t *testing.T) {
	rec := &domain.OperationRecord{Success: true, RollbackAvailable: true, RollbackData: map[string]any{"clip_id": "c1"}}
	if err := CheckRollbackPreconditions(rec); err != nil {
		t.Fatalf("CheckRollbackPreconditions valid: unexpected error %v", err)
	}
}

// S4 — Clip C moved from L1 to L2, then L1 deleted via a path that never
// recorded an L1-restoring op. Rolling back the move must leave C on L2 at
// its original start_ms, with a warning, not delete the clip.
func TestRollbackClipMoveOriginalLayerGoneFallsBackToCurrentLayer(t *testing.T) {
	tl := &domain.Timeline{
		Layers: []domain.Layer{
			{ID: "L2", Clips: []domain.Clip{
				{ID: "c1", StartMs: 5000, DurationMs: 1000},
			}},
		},
	}
	rec := &domain.OperationRecord{
		OperationType:     dispatch.OpClipMove,
		Success:           true,
		RollbackAvailable: true,
		RollbackData: map[string]any{
			"clip_id":           "c1",
			"original_start_ms": 1000,
			"original_layer_id": "L1",
		},
	}

	outcome, err := Apply(tl, rec)
	if err != nil {
		t.Fatalf("Apply rollback clip.move: unexpected error %v", err)
	}
	if outcome.Warning == "" {
		t.Fatalf("Apply rollback clip.move: want a warning about the missing original layer, got none")
	}

	clip, layerIdx, _, ok := func() (*domain.Clip, int, int, bool) {
		for li := range tl.Layers {
			for ci := range tl.Layers[li].Clips {
				if tl.Layers[li].Clips[ci].ID == "c1" {
					return &tl.Layers[li].Clips[ci], li, ci, true
				}
			}
		}
		return nil, 0, 0, false
	}()
	if !ok {
		t.Fatalf("Apply rollback clip.move: clip c1 missing after rollback, want it preserved on L2")
	}
	if tl.Layers[layerIdx].ID != "L2" {
		t.Fatalf("Apply rollback clip.move layer: want=L2 got=%s", tl.Layers[layerIdx].ID)
	}
	if clip.StartMs != 1000 {
		t.Fatalf("Apply rollback clip.move start_ms: want=1000 got=%d", clip.StartMs)
	}
}

func TestRollbackClipMoveOriginalLayerPresentMovesBack(t *testing.T) {
	tl := &domain.Timeline{
		Layers: []domain.Layer{
			{ID: "L1"},
			{ID: "L2", Clips: []domain.Clip{
				{ID: "c1", StartMs: 5000, DurationMs: 1000},
			}},
		},
	}
	rec := &domain.OperationRecord{
		OperationType:     dispatch.OpClipMove,
		Success:           true,
		RollbackAvailable: true,
		RollbackData: map[string]any{
			"clip_id":           "c1",
			"original_start_ms": 1000,
			"original_layer_id": "L1",
		},
	}
	outcome, err := Apply(tl, rec)
	if err != nil {
		t.Fatalf("Apply rollback clip.move: unexpected error %v", err)
	}
	if outcome.Warning != "" {
		t.Fatalf("Apply rollback clip.move: want no warning when original layer exists, got=%q", outcome.Warning)
	}
	if len(tl.Layers[0].Clips) != 1 || tl.Layers[0].Clips[0].StartMs != 1000 {
		t.Fatalf("Apply rollback clip.move: want clip restored to L1 at start_ms=1000, got=%+v", tl.Layers[0].Clips)
	}
	if len(tl.Layers[1].Clips) != 0 {
		t.Fatalf("Apply rollback clip.move: want L2 empty after clip moved back, got=%d clips", len(tl.Layers[1].Clips))
	}
}

func TestRollbackClipAddRemovesClip(t *testing.T) {
	tl := &domain.Timeline{Layers: []domain.Layer{
		{ID: "L1", Clips: []domain.Clip{{ID: "c1", StartMs: 0, DurationMs: 1000}}},
	}}
	rec := &domain.OperationRecord{
		OperationType:     dispatch.OpClipAdd,
		Success:           true,
		RollbackAvailable: true,
		RollbackData:      map[string]any{"clip_id": "c1", "layer_id": "L1"},
	}
	_, err := Apply(tl, rec)
	if err != nil {
		t.Fatalf("Apply rollback clip.add: unexpected error %v", err)
	}
	if len(tl.Layers[0].Clips) != 0 {
		t.Fatalf("Apply rollback clip.add: want clip removed, got %d clips", len(tl.Layers[0].Clips))
	}
}

func TestRollbackMarkerDeleteRestoresMarker(t *testing.T) {
	tl := &domain.Timeline{}
	rec := &domain.OperationRecord{
		OperationType:     dispatch.OpMarkerDelete,
		Success:           true,
		RollbackAvailable: true,
		RollbackData:      map[string]any{"marker": map[string]any{"id": "m1", "time_ms": 500, "name": "beat"}},
	}
	_, err := Apply(tl, rec)
	if err != nil {
		t.Fatalf("Apply rollback marker.delete: unexpected error %v", err)
	}
	if len(tl.Markers) != 1 || tl.Markers[0].ID != "m1" {
		t.Fatalf("Apply rollback marker.delete: want marker m1 restored, got=%+v", tl.Markers)
	}
}

func TestApplyUnsupportedOperationType(t *testing.T) {
	tl := &domain.Timeline{}
	rec := &domain.OperationRecord{OperationType: dispatch.OpTimelineFullReplace, Success: true, RollbackAvailable: true, RollbackData: map[string]any{}}
	if _, err := Apply(tl, rec); err == nil || err.Code != coreerr.CodeRollbackNotAvailable {
		t.Fatalf("Apply unsupported op type: want=%s got=%v", coreerr.CodeRollbackNotAvailable, err)
	}
}
